package core

import (
	"context"
	"fmt"
)

// ProgressStore is the durable key/value counter store shared by all imports.
//
// Get returns def when the key is absent. Delete of an absent key is not an
// error. Only single-key atomicity is assumed.
type ProgressStore interface {
	Get(ctx context.Context, key string, def int64) (int64, error)
	Set(ctx context.Context, key string, value int64) error
	Delete(ctx context.Context, key string) error
}

// CurrentCountKey is the key holding the processed row count of a batch.
func CurrentCountKey(batchID string) string {
	return batchID + "_current_count"
}

// TotalCountKey is the key holding the total row count of a batch.
func TotalCountKey(batchID string) string {
	return batchID + "_total_count"
}

// PercentComplete converts counters to a percentage in [0, 100].
// A zero total yields 0.
func PercentComplete(current, total int64) float64 {
	if total <= 0 {
		return 0
	}

	percent := float64(current) / float64(total) * 100
	if percent > 100 {
		return 100
	}
	if percent < 0 {
		return 0
	}
	return percent
}

// counters reads and writes the two progress keys of one batch.
type counters struct {
	store   ProgressStore
	batchID string
}

func (c counters) current(ctx context.Context) (int64, error) {
	v, err := c.store.Get(ctx, CurrentCountKey(c.batchID), 0)
	if err != nil {
		return 0, fmt.Errorf("%w: read current count: %w", ErrStoreUnavailable, err)
	}
	return v, nil
}

func (c counters) total(ctx context.Context) (int64, error) {
	v, err := c.store.Get(ctx, TotalCountKey(c.batchID), 0)
	if err != nil {
		return 0, fmt.Errorf("%w: read total count: %w", ErrStoreUnavailable, err)
	}
	return v, nil
}

func (c counters) setCurrent(ctx context.Context, v int64) error {
	if err := c.store.Set(ctx, CurrentCountKey(c.batchID), v); err != nil {
		return fmt.Errorf("%w: write current count: %w", ErrStoreUnavailable, err)
	}
	return nil
}

func (c counters) setTotal(ctx context.Context, v int64) error {
	if err := c.store.Set(ctx, TotalCountKey(c.batchID), v); err != nil {
		return fmt.Errorf("%w: write total count: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// snapshot reads both counters and derives percent and state.
func (c counters) snapshot(ctx context.Context) (Progress, error) {
	cur, err := c.current(ctx)
	if err != nil {
		return Progress{}, err
	}
	tot, err := c.total(ctx)
	if err != nil {
		return Progress{}, err
	}

	p := Progress{
		BatchID: c.batchID,
		Current: cur,
		Total:   tot,
		Percent: PercentComplete(cur, tot),
	}
	switch {
	case cur == 0 && tot == 0:
		p.State = StateUnstarted
	case tot > 0 && cur >= tot:
		p.State = StateComplete
	default:
		p.State = StateRunning
	}
	return p, nil
}
