package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
)

// memStore is a ProgressStore backed by a map with optional failure injection.
type memStore struct {
	mu   sync.Mutex
	data map[string]int64

	failGet    error
	failSet    error
	failDelete error
	sets       int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]int64)}
}

func (s *memStore) Get(_ context.Context, key string, def int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return 0, s.failGet
	}
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return def, nil
}

func (s *memStore) Set(_ context.Context, key string, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSet != nil {
		return s.failSet
	}
	s.sets++
	s.data[key] = value
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failDelete != nil {
		return s.failDelete
	}
	delete(s.data, key)
	return nil
}

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

// sliceSource is a TabularSource over in-memory rows.
type sliceSource struct {
	headers []string
	rows    [][]string
}

func (s sliceSource) Headers() []string { return s.headers }
func (s sliceSource) RowCount() int     { return len(s.rows) }

func (s sliceSource) RowAt(i int) ([]string, error) {
	if i < 0 || i >= len(s.rows) {
		return nil, fmt.Errorf("row %d out of range", i)
	}
	return s.rows[i], nil
}

func numberedSource(n int) sliceSource {
	src := sliceSource{headers: []string{"id", "name"}}
	for i := 0; i < n; i++ {
		src.rows = append(src.rows, []string{strconv.Itoa(i), "row " + strconv.Itoa(i)})
	}
	return src
}

// recordingImporter records every row it sees and rejects the indexes in reject.
type recordingImporter struct {
	policy CountPolicy
	reject map[int]bool
	fail   map[int]bool
	seen   []Record
}

func (r *recordingImporter) ImportRow(_ context.Context, rec Record) (bool, error) {
	r.seen = append(r.seen, rec)
	if r.fail[rec.Index] {
		return false, errors.New("referenced affiliate does not exist")
	}
	return !r.reject[rec.Index], nil
}

func (r *recordingImporter) CountPolicy() CountPolicy { return r.policy }

func (r *recordingImporter) indexes() []int {
	out := make([]int, len(r.seen))
	for i, rec := range r.seen {
		out[i] = rec.Index
	}
	return out
}

func session(batchID string, src TabularSource, perStep int) Session {
	return Session{
		BatchID:    batchID,
		Entity:     "test",
		Source:     src,
		PerStep:    perStep,
		Permission: AllowAll,
	}
}

func indexRange(start, end int) []int {
	out := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		out = append(out, i)
	}
	return out
}
