package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JonMunkholm/stepimport/internal/logging"
)

const tracerName = "github.com/JonMunkholm/stepimport/internal/core"

// Executor runs import steps and completes batches.
//
// An Executor holds no per-batch state and is safe for concurrent use across
// different batches. Steps of the same batch must be invoked sequentially;
// see StepGuard.
type Executor struct {
	store    ProgressStore
	importer EntityImporter
	onFinish CompletionHook
	recorder Recorder
	tracer   trace.Tracer
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithCompletionHook sets the hook Finish calls after cleanup.
func WithCompletionHook(hook CompletionHook) ExecutorOption {
	return func(e *Executor) { e.onFinish = hook }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) ExecutorOption {
	return func(e *Executor) { e.recorder = r }
}

// WithTracer overrides the global OpenTelemetry tracer.
func WithTracer(t trace.Tracer) ExecutorOption {
	return func(e *Executor) { e.tracer = t }
}

// NewExecutor creates an Executor persisting progress to store and rows
// through importer. importer may be nil for executors that only read
// progress or finish batches.
func NewExecutor(store ProgressStore, importer EntityImporter, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:    store,
		importer: importer,
		recorder: NoopRecorder{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunStep processes the row window of sess.Step and advances the batch's
// counters.
//
// Counters are read before any row is imported and written only after the
// whole window has been processed, so a step that fails with
// ErrStoreUnavailable can be re-invoked with the same index.
func (e *Executor) RunStep(ctx context.Context, sess Session) (StepResult, error) {
	started := time.Now()
	res := StepResult{BatchID: sess.BatchID, Step: sess.Step}

	ctx, span := e.tracer.Start(ctx, "import.run_step",
		trace.WithAttributes(
			attribute.String("batch_id", sess.BatchID),
			attribute.String("entity", sess.Entity),
			attribute.Int("step", sess.Step),
			attribute.Int("per_step", sess.PerStep),
		))
	defer span.End()

	res, err := e.runStep(ctx, sess, res)

	outcome := OutcomeOK
	switch {
	case err == nil:
	case errors.Is(err, ErrSourceExhausted):
		outcome = OutcomeExhausted
	case errors.Is(err, ErrUnauthorized):
		outcome = OutcomeUnauthorized
	default:
		outcome = OutcomeError
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		attribute.Int("accepted", res.Accepted),
		attribute.Int("rejected", res.Rejected),
		attribute.Float64("percent", res.Percent),
		attribute.Bool("done", res.Done),
	)
	e.recorder.RecordStep(sess.Entity, res, outcome, time.Since(started))

	return res, err
}

func (e *Executor) runStep(ctx context.Context, sess Session, res StepResult) (StepResult, error) {
	if !sess.CanProcess(ctx) {
		return res, ErrUnauthorized
	}
	if sess.Step < 0 || sess.PerStep <= 0 {
		return res, fmt.Errorf("%w: step=%d per_step=%d", ErrInvalidStep, sess.Step, sess.PerStep)
	}
	if sess.Source == nil || e.importer == nil {
		return res, fmt.Errorf("%w: session has no source or importer", ErrInvalidStep)
	}

	logger := logging.WithBatch(ctx, sess.BatchID, sess.Entity).With("step", sess.Step)
	c := counters{store: e.store, batchID: sess.BatchID}

	rowCount := sess.Source.RowCount()
	start, end := sess.Window(rowCount)
	res.Start, res.End = start, end

	if start >= rowCount {
		res.End = start
		res.Done = true
		if p, err := c.snapshot(ctx); err == nil {
			res.Current, res.Total, res.Percent = p.Current, p.Total, p.Percent
		}
		return res, fmt.Errorf("%w: step %d starts at row %d of %d", ErrSourceExhausted, sess.Step, start, rowCount)
	}

	current, err := c.current(ctx)
	if err != nil {
		return res, err
	}
	total, err := c.total(ctx)
	if err != nil {
		return res, err
	}

	headers := sess.Source.Headers()
	for i := start; i < end; i++ {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("step %d cancelled at row %d: %w", sess.Step, i, err)
		}

		res.Attempted++

		row, err := sess.Source.RowAt(i)
		if err != nil {
			res.Rejected++
			logger.Warn("row unreadable", "row", i, "error", err)
			continue
		}

		rec := sess.Mapping.Apply(headers, row, i)
		accepted, err := e.importer.ImportRow(ctx, rec)
		switch {
		case err != nil:
			res.Rejected++
			logger.Debug("row rejected", "row", i, "error", err)
		case accepted:
			res.Accepted++
		default:
			res.Rejected++
			logger.Debug("row rejected", "row", i)
		}
	}

	switch e.importer.CountPolicy() {
	case CountAccepted:
		res.Delta = int64(res.Accepted)
	default:
		res.Delta = int64(res.Attempted)
	}

	if total <= 0 {
		total = int64(rowCount)
		if err := c.setTotal(ctx, total); err != nil {
			return res, err
		}
	}

	current += res.Delta
	if err := c.setCurrent(ctx, current); err != nil {
		return res, err
	}

	res.Current = current
	res.Total = total
	res.Percent = PercentComplete(current, total)
	res.Done = current >= total || end >= rowCount

	logger.Info("step processed",
		"rows", fmt.Sprintf("%d-%d", start, end),
		"accepted", res.Accepted,
		"rejected", res.Rejected,
		"percent", res.Percent,
		"done", res.Done,
	)

	return res, nil
}

// Progress reads the counters of a batch. It has no side effects.
func (e *Executor) Progress(ctx context.Context, batchID string) (Progress, error) {
	return counters{store: e.store, batchID: batchID}.snapshot(ctx)
}

// Percent returns the completion percentage of a batch.
func (e *Executor) Percent(ctx context.Context, batchID string) (float64, error) {
	p, err := e.Progress(ctx, batchID)
	if err != nil {
		return 0, err
	}
	return p.Percent, nil
}

// State derives the lifecycle state of a batch from its counters.
func (e *Executor) State(ctx context.Context, batchID string) (State, error) {
	p, err := e.Progress(ctx, batchID)
	if err != nil {
		return "", err
	}
	return p.State, nil
}
