// Package source reads uploaded files into the tabular form the import
// engine consumes, and persists the per-batch session manifest.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrEmptyFile is returned for input without a header row.
var ErrEmptyFile = errors.New("empty file")

// CSV is a parsed CSV file. It implements core.TabularSource.
//
// Rows are held in memory; an import reads the same file once per step, so
// the file is parsed on every invocation and never cached across requests.
type CSV struct {
	headers []string
	rows    [][]string
}

// Open parses the CSV file at path.
func Open(path string) (*CSV, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads CSV data from r. The first non-empty record is the header row.
// Blank lines and rows whose cells are all whitespace are skipped. Rows may
// have more or fewer cells than the header.
func Parse(r io.Reader) (*CSV, error) {
	reader := csv.NewReader(Clean(r))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	src := &CSV{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid csv: %w", err)
		}
		if isBlank(record) {
			continue
		}

		if src.headers == nil {
			src.headers = make([]string, len(record))
			for i, h := range record {
				src.headers[i] = CleanHeader(h)
			}
			continue
		}
		src.rows = append(src.rows, record)
	}

	if src.headers == nil {
		return nil, ErrEmptyFile
	}
	return src, nil
}

func (c *CSV) Headers() []string { return c.headers }

func (c *CSV) RowCount() int { return len(c.rows) }

func (c *CSV) RowAt(index int) ([]string, error) {
	if index < 0 || index >= len(c.rows) {
		return nil, fmt.Errorf("row %d out of range [0,%d)", index, len(c.rows))
	}
	return c.rows[index], nil
}

// CleanHeader removes spreadsheet export artifacts from a header cell:
// surrounding whitespace and quotes, and a leading '=' or '="..."' formula
// wrapper.
func CleanHeader(s string) string {
	s = strings.TrimSpace(s)

	switch {
	case strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3:
		s = s[2 : len(s)-1]
	case strings.HasPrefix(s, "="):
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
