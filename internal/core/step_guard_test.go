package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepGuard_AcquireRelease(t *testing.T) {
	g := NewStepGuard(2, time.Second)
	ctx := context.Background()

	r1, err := g.Acquire(ctx, "a")
	require.NoError(t, err)
	r2, err := g.Acquire(ctx, "b")
	require.NoError(t, err)

	assert.Equal(t, StepGuardStatus{Active: 2, Available: 0, MaxConcurrent: 2}, g.Status())
	assert.True(t, g.Busy("a"))

	r1()
	r1() // second call is a no-op
	assert.Equal(t, 1, g.ActiveCount())
	assert.False(t, g.Busy("a"))

	r2()
	assert.Equal(t, 0, g.ActiveCount())
}

func TestStepGuard_SameBatchRejected(t *testing.T) {
	g := NewStepGuard(4, time.Second)

	release, err := g.Acquire(context.Background(), "batch")
	require.NoError(t, err)
	defer release()

	_, err = g.Acquire(context.Background(), "batch")
	assert.ErrorIs(t, err, ErrStepInProgress)
}

func TestStepGuard_TimesOutWhenFull(t *testing.T) {
	g := NewStepGuard(1, 50*time.Millisecond)

	release, err := g.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer release()

	_, err = g.Acquire(context.Background(), "b")
	assert.ErrorIs(t, err, ErrTooManySteps)
	assert.False(t, g.Busy("b"), "timed out batch must not stay reserved")
}

func TestStepGuard_ContextCancelled(t *testing.T) {
	g := NewStepGuard(1, time.Minute)

	release, err := g.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = g.Acquire(ctx, "b")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStepGuard_WaitForDrain(t *testing.T) {
	g := NewStepGuard(3, time.Second)

	var releases []func()
	for _, id := range []string{"a", "b", "c"} {
		r, err := g.Acquire(context.Background(), id)
		require.NoError(t, err)
		releases = append(releases, r)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(50 * time.Millisecond)
		for _, r := range releases {
			r()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, g.WaitForDrain(ctx))
	wg.Wait()
}

func TestStepGuard_Defaults(t *testing.T) {
	g := NewStepGuard(0, 0)
	assert.Equal(t, DefaultMaxConcurrentSteps, g.Status().MaxConcurrent)
}
