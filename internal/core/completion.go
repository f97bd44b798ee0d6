package core

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/JonMunkholm/stepimport/internal/logging"
)

// Finish removes the counters of a batch and then fires the completion hook.
//
// Both keys are deleted even if the first delete fails. The hook only runs
// once cleanup succeeded; a hook failure is logged and does not fail Finish.
// Finishing an already finished batch is a no-op apart from the hook.
func (e *Executor) Finish(ctx context.Context, batchID string) error {
	return e.finish(ctx, batchID, "")
}

// FinishEntity is Finish with the entity name attached to logs and metrics.
func (e *Executor) FinishEntity(ctx context.Context, batchID, entity string) error {
	return e.finish(ctx, batchID, entity)
}

// Purge removes the counters of a batch without firing the hook. It is used
// to abort an import.
func (e *Executor) Purge(ctx context.Context, batchID string) error {
	return e.cleanup(ctx, batchID)
}

func (e *Executor) finish(ctx context.Context, batchID, entity string) error {
	ctx, span := e.tracer.Start(ctx, "import.finish")
	defer span.End()

	if err := e.cleanup(ctx, batchID); err != nil {
		span.RecordError(err)
		return err
	}

	hookFailed := false
	if e.onFinish != nil {
		if err := e.onFinish(ctx, batchID); err != nil {
			hookFailed = true
			logging.WithBatch(ctx, batchID, entity).Error("completion hook failed", "error", err)
		}
	}

	e.recorder.RecordFinish(entity, hookFailed)
	logging.WithBatch(ctx, batchID, entity).Info("import finished")
	return nil
}

func (e *Executor) cleanup(ctx context.Context, batchID string) error {
	var result *multierror.Error

	if err := e.store.Delete(ctx, CurrentCountKey(batchID)); err != nil {
		result = multierror.Append(result, fmt.Errorf("delete current count: %w", err))
	}
	if err := e.store.Delete(ctx, TotalCountKey(batchID)); err != nil {
		result = multierror.Append(result, fmt.Errorf("delete total count: %w", err))
	}

	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}
