package core

// step_guard.go bounds step execution.
//
// Steps of one batch must never overlap: both would read the same counters
// and the later write would lose the earlier delta. The guard serialises
// steps per batch and caps the number of steps running across all batches
// with a semaphore. When all slots are occupied, new steps wait up to
// maxWait before failing with ErrTooManySteps.
//
// WaitForDrain blocks until running steps complete and is used on shutdown.

import (
	"context"
	"sync"
	"time"
)

// DefaultMaxConcurrentSteps is the default limit for parallel steps.
const DefaultMaxConcurrentSteps = 5

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 30 * time.Second

// StepGuard controls concurrent step execution.
type StepGuard struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu      sync.Mutex
	running map[string]struct{}
}

// NewStepGuard creates a guard that allows at most maxConcurrent steps at once.
func NewStepGuard(maxConcurrent int, maxWait time.Duration) *StepGuard {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentSteps
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	return &StepGuard{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
		running:   make(map[string]struct{}),
	}
}

// Acquire reserves a slot for a step of batchID.
//
// It fails immediately with ErrStepInProgress when another step of the same
// batch holds a slot, and with ErrTooManySteps when no slot frees up within
// the wait time. The returned release func must be called exactly once.
func (g *StepGuard) Acquire(ctx context.Context, batchID string) (release func(), err error) {
	g.mu.Lock()
	if _, busy := g.running[batchID]; busy {
		g.mu.Unlock()
		return nil, ErrStepInProgress
	}
	g.running[batchID] = struct{}{}
	g.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, g.maxWait)
	defer cancel()

	select {
	case g.semaphore <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-g.semaphore
				g.forget(batchID)
			})
		}, nil

	case <-waitCtx.Done():
		g.forget(batchID)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrTooManySteps
	}
}

func (g *StepGuard) forget(batchID string) {
	g.mu.Lock()
	delete(g.running, batchID)
	g.mu.Unlock()
}

// ActiveCount returns the number of steps holding a slot.
func (g *StepGuard) ActiveCount() int {
	return len(g.semaphore)
}

// Busy reports whether a step of batchID is running or waiting for a slot.
func (g *StepGuard) Busy(batchID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.running[batchID]
	return ok
}

// WaitForDrain blocks until all running steps complete or ctx is cancelled.
func (g *StepGuard) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if g.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// StepGuardStatus is a snapshot of the guard's state.
type StepGuardStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status returns the current guard state for monitoring.
func (g *StepGuard) Status() StepGuardStatus {
	active := len(g.semaphore)
	return StepGuardStatus{
		Active:        active,
		Available:     cap(g.semaphore) - active,
		MaxConcurrent: cap(g.semaphore),
	}
}
