package core

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultPerStep is the number of rows processed by one step when the caller
// does not choose a size.
const DefaultPerStep = 20

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// TabularSource exposes a parsed file as a header row and indexed data rows.
type TabularSource interface {
	Headers() []string
	RowCount() int
	RowAt(index int) ([]string, error)
}

// CountPolicy decides how far a step advances the processed counter.
type CountPolicy int

const (
	// CountAttempted advances by the window size, whatever the importer decided.
	CountAttempted CountPolicy = iota
	// CountAccepted advances only by the rows the importer accepted.
	CountAccepted
)

func (p CountPolicy) String() string {
	switch p {
	case CountAttempted:
		return "attempted"
	case CountAccepted:
		return "accepted"
	default:
		return "unknown"
	}
}

// EntityImporter persists one mapped row of a specific entity type.
//
// ImportRow reports whether the row was accepted. A returned error is treated
// as a rejection of that row only; the step carries on with the next row.
type EntityImporter interface {
	ImportRow(ctx context.Context, rec Record) (accepted bool, err error)
	CountPolicy() CountPolicy
}

// PermissionFunc reports whether the caller in ctx may run imports.
type PermissionFunc func(ctx context.Context) bool

// CompletionHook is invoked once a batch has been finished and its counters removed.
type CompletionHook func(ctx context.Context, batchID string) error

// AllowAll is a PermissionFunc for trusted callers such as the CLI.
func AllowAll(context.Context) bool { return true }

// State is the lifecycle position of a batch as derived from its counters.
type State string

const (
	StateUnstarted State = "unstarted"
	StateRunning   State = "running"
	StateComplete  State = "complete"
)

// StepResult is returned to the driving client after every step.
type StepResult struct {
	BatchID   string  `json:"batch_id"`
	Step      int     `json:"step"`
	Start     int     `json:"start"`
	End       int     `json:"end"`
	Attempted int     `json:"attempted"`
	Accepted  int     `json:"accepted"`
	Rejected  int     `json:"rejected"`
	Delta     int64   `json:"delta"`
	Current   int64   `json:"current_count"`
	Total     int64   `json:"total_count"`
	Percent   float64 `json:"percent_complete"`
	Done      bool    `json:"is_done"`
}

// Progress is a read-only snapshot of a batch's counters.
type Progress struct {
	BatchID string  `json:"batch_id"`
	Current int64   `json:"current_count"`
	Total   int64   `json:"total_count"`
	Percent float64 `json:"percent_complete"`
	State   State   `json:"state"`
}
