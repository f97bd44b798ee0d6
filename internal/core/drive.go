package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
)

// DriveOptions tune Drive.
type DriveOptions struct {
	// StartStep is the first step index to run. Resuming a run passes the
	// index after the last step that succeeded.
	StartStep int

	// RetryInitialInterval and RetryMaxElapsed bound the exponential backoff
	// applied to retryable step failures.
	RetryInitialInterval time.Duration
	RetryMaxElapsed      time.Duration

	// SkipFinish leaves the counters in place after the last step.
	SkipFinish bool

	// OnStep is called after every successful step.
	OnStep func(StepResult)
}

// DriveSummary totals a driven run.
type DriveSummary struct {
	Steps    int
	Accepted int
	Rejected int
	Last     StepResult
}

// Drive runs sess step by step until the source is exhausted or the batch is
// done, then finishes the batch.
//
// Steps failing with a retryable error are re-run with the same index under
// exponential backoff. Any other error stops the run and leaves the counters
// in place so it can be resumed from the failed step.
func Drive(ctx context.Context, exec *Executor, sess Session, opts DriveOptions) (DriveSummary, error) {
	var sum DriveSummary

	for step := opts.StartStep; ; step++ {
		sess.Step = step

		var res StepResult
		op := func() error {
			var err error
			res, err = exec.RunStep(ctx, sess)
			if err != nil && !IsRetryable(err) {
				return backoff.Permanent(err)
			}
			return err
		}

		err := backoff.Retry(op, backoff.WithContext(newStepBackOff(opts), ctx))
		if errors.Is(err, ErrSourceExhausted) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("step %d: %w", step, err)
		}

		sum.Steps++
		sum.Accepted += res.Accepted
		sum.Rejected += res.Rejected
		sum.Last = res
		if opts.OnStep != nil {
			opts.OnStep(res)
		}

		if res.Done {
			break
		}
	}

	if opts.SkipFinish {
		return sum, nil
	}
	if err := exec.FinishEntity(ctx, sess.BatchID, sess.Entity); err != nil {
		return sum, fmt.Errorf("finish: %w", err)
	}
	return sum, nil
}

func newStepBackOff(opts DriveOptions) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxElapsedTime = time.Minute
	if opts.RetryInitialInterval > 0 {
		b.InitialInterval = opts.RetryInitialInterval
	}
	if opts.RetryMaxElapsed > 0 {
		b.MaxElapsedTime = opts.RetryMaxElapsed
	}
	return b
}
