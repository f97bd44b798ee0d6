// Package notify publishes import completion events. Notifiers are combined
// into a core.CompletionHook with Hook.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/JonMunkholm/stepimport/internal/core"
	"github.com/JonMunkholm/stepimport/internal/logging"
)

// Event announces that a batch finished and its progress was cleared.
type Event struct {
	BatchID    string    `json:"batch_id"`
	Entity     string    `json:"entity"`
	FinishedAt time.Time `json:"finished_at"`
}

// Notifier delivers completion events.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Hook returns a completion hook sending an event for entity to every
// notifier. All notifiers are tried; their errors are combined.
func Hook(entity string, notifiers ...Notifier) core.CompletionHook {
	return func(ctx context.Context, batchID string) error {
		ev := Event{BatchID: batchID, Entity: entity, FinishedAt: time.Now().UTC()}

		var result *multierror.Error
		for _, n := range notifiers {
			if err := n.Notify(ctx, ev); err != nil {
				result = multierror.Append(result, err)
			}
		}
		return result.ErrorOrNil()
	}
}

// Log writes completion events to the request logger.
type Log struct{}

func (Log) Notify(ctx context.Context, ev Event) error {
	logging.FromContext(ctx).LogAttrs(ctx, slog.LevelInfo, "import completed",
		slog.String("batch_id", ev.BatchID),
		slog.String("entity", ev.Entity),
		slog.Time("finished_at", ev.FinishedAt),
	)
	return nil
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, ev Event) error

func (f Func) Notify(ctx context.Context, ev Event) error {
	if err := f(ctx, ev); err != nil {
		return fmt.Errorf("notify %s: %w", ev.BatchID, err)
	}
	return nil
}
