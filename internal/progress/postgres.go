package progress

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/JonMunkholm/stepimport/internal/core"
)

const (
	getProgress = `SELECT value FROM import_progress WHERE key = $1`

	setProgress = `
INSERT INTO import_progress (key, value, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`

	deleteProgress = `DELETE FROM import_progress WHERE key = $1`
)

var _ core.ProgressStore = (*Postgres)(nil)

// Postgres stores counters in the import_progress table.
type Postgres struct {
	db     core.DBTX
	tracer trace.Tracer
}

// NewPostgres creates a store over db; the table is created by the
// store package migrations.
func NewPostgres(db core.DBTX) *Postgres {
	return &Postgres{
		db:     db,
		tracer: otel.Tracer("github.com/JonMunkholm/stepimport/internal/progress"),
	}
}

func (p *Postgres) Get(ctx context.Context, key string, def int64) (int64, error) {
	ctx, span := p.tracer.Start(ctx, "postgres.get_progress",
		trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	var v int64
	err := p.db.QueryRow(ctx, getProgress, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("get progress %s: %w", key, err)
	}
	return v, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value int64) error {
	ctx, span := p.tracer.Start(ctx, "postgres.set_progress",
		trace.WithAttributes(attribute.String("key", key), attribute.Int64("value", value)))
	defer span.End()

	if _, err := p.db.Exec(ctx, setProgress, key, value); err != nil {
		span.RecordError(err)
		return fmt.Errorf("set progress %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key string) error {
	ctx, span := p.tracer.Start(ctx, "postgres.delete_progress",
		trace.WithAttributes(attribute.String("key", key)))
	defer span.End()

	if _, err := p.db.Exec(ctx, deleteProgress, key); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete progress %s: %w", key, err)
	}
	return nil
}
