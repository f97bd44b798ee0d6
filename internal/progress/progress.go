// Package progress implements core.ProgressStore backends.
//
// Every backend stores plain int64 values under string keys and gives the
// single-key atomicity the import engine relies on. Backends:
//
//   - memory: process-local map (tests and CLI dry runs)
//   - postgres: the import_progress table through pgx
//   - sqlite, mysql: the same table through GORM
package progress

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/stepimport/internal/config"
	"github.com/JonMunkholm/stepimport/internal/core"
)

// Backend names accepted by New.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendMySQL    = "mysql"
)

// New builds the store selected by cfg. db is used by the postgres backend
// and may be nil otherwise. The returned close func releases backend
// resources and is never nil.
func New(cfg config.ProgressConfig, db core.DBTX) (core.ProgressStore, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(cfg.Backend) {
	case BackendMemory:
		return NewMemory(), noop, nil

	case BackendPostgres, "":
		if db == nil {
			return nil, noop, fmt.Errorf("postgres progress backend needs a database pool")
		}
		return NewPostgres(db), noop, nil

	case BackendSQLite, BackendMySQL:
		gdb, err := OpenGorm(cfg.Backend, cfg.DSN)
		if err != nil {
			return nil, noop, err
		}
		store, err := NewGorm(gdb)
		if err != nil {
			return nil, noop, err
		}
		return store, store.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown progress backend %q", cfg.Backend)
	}
}
