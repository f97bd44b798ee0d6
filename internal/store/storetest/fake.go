package storetest

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Call is one statement received by a DB.
type Call struct {
	SQL  string
	Args []any
}

// Result is the canned answer to one Query or QueryRow call.
type Result struct {
	Rows [][]any
	Err  error
}

// DB is a core.DBTX that records statements and answers queries from a queue
// of canned results. An empty queue yields no rows. Scan copies each value
// into its destination, so values must have the destination's exact type.
type DB struct {
	mu      sync.Mutex
	calls   []Call
	results []Result
}

// NewDB returns a DB that answers queries with results in order.
func NewDB(results ...Result) *DB {
	return &DB{results: results}
}

// Calls returns the statements received so far.
func (db *DB) Calls() []Call {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]Call(nil), db.calls...)
}

func (db *DB) record(sql string, args []any) Result {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.calls = append(db.calls, Call{SQL: sql, Args: args})
	if len(db.results) == 0 {
		return Result{}
	}
	res := db.results[0]
	db.results = db.results[1:]
	return res
}

func (db *DB) Exec(_ context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.calls = append(db.calls, Call{SQL: sql, Args: args})
	return pgconn.NewCommandTag("EXEC"), nil
}

func (db *DB) Query(_ context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	res := db.record(sql, args)
	if res.Err != nil {
		return nil, res.Err
	}
	return &rows{data: res.Rows, pos: -1}, nil
}

func (db *DB) QueryRow(_ context.Context, sql string, args ...interface{}) pgx.Row {
	res := db.record(sql, args)
	return row{res: res}
}

type row struct {
	res Result
}

func (r row) Scan(dest ...any) error {
	if r.res.Err != nil {
		return r.res.Err
	}
	if len(r.res.Rows) == 0 {
		return pgx.ErrNoRows
	}
	return scanInto(r.res.Rows[0], dest)
}

type rows struct {
	data [][]any
	pos  int
}

func (r *rows) Close()                                       {}
func (r *rows) Err() error                                   { return nil }
func (r *rows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *rows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *rows) RawValues() [][]byte                          { return nil }
func (r *rows) Conn() *pgx.Conn                              { return nil }

func (r *rows) Next() bool {
	r.pos++
	return r.pos < len(r.data)
}

func (r *rows) Scan(dest ...any) error {
	return scanInto(r.data[r.pos], dest)
}

func (r *rows) Values() ([]any, error) {
	return r.data[r.pos], nil
}

func scanInto(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d destinations", len(values), len(dest))
	}
	for i, v := range values {
		target := reflect.ValueOf(dest[i])
		if target.Kind() != reflect.Pointer || target.IsNil() {
			return fmt.Errorf("scan: destination %d is not a pointer", i)
		}
		if v == nil {
			target.Elem().SetZero()
			continue
		}
		val := reflect.ValueOf(v)
		if !val.Type().AssignableTo(target.Elem().Type()) {
			return fmt.Errorf("scan: cannot assign %T to %s", v, target.Elem().Type())
		}
		target.Elem().Set(val)
	}
	return nil
}
