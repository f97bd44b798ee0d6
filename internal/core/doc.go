// Package core provides the step-wise, resumable import engine.
//
// This package holds the import state machine independent of any transport.
// It is driven by the HTTP API in internal/web and by the importctl CLI, and
// can be exercised by tests with in-memory collaborators.
//
// # Architecture
//
// An import run is split into fixed-size steps. Every step is an independent,
// stateless invocation:
//
//   - [Session]: batch id, tabular source, step index, rows per step and the
//     column-to-field mapping for one invocation.
//   - [Executor]: runs one step, delegating each row to an [EntityImporter]
//     and advancing the durable counters in a [ProgressStore].
//   - Completion: [Executor.Finish] deletes the counters and fires the
//     configured [CompletionHook].
//
// No state survives in memory between steps. The counters live in the
// progress store under two keys per batch, {batch_id}_current_count and
// {batch_id}_total_count, and the step index is supplied by the caller.
//
// # Importer Registry
//
// Importers are registered at init time using [Register]:
//
//	core.Register(core.ImporterDefinition{
//	    Info: core.ImporterInfo{Key: "coupons", Label: "Coupons"},
//	    New:  func(db core.DBTX) core.EntityImporter { ... },
//	})
//
// # Driving a Run
//
//	for step := 0; ; step++ {
//	    sess.Step = step
//	    res, err := exec.RunStep(ctx, sess)
//	    if errors.Is(err, core.ErrSourceExhausted) || res.Done {
//	        break
//	    }
//	}
//	exec.Finish(ctx, sess.BatchID)
//
// [Drive] implements this loop with retries for the CLI.
//
// # Error Handling
//
// Row-level importer failures are absorbed and counted as rejections.
// Authorization and progress store failures propagate to the caller as
// [ErrUnauthorized] and [ErrStoreUnavailable]. [MapError] turns any error into
// a user-facing message with a support code.
package core
