package core

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// PreviewLength is the number of characters kept when trimming a preview cell.
const PreviewLength = 30

// previewEllipsis is appended to cells cut down by TrimPreview.
const previewEllipsis = "..."

// numericRegex matches the values TrimPreview leaves untouched.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// Session binds the parameters of one step invocation.
//
// A Session is rebuilt on every invocation; nothing in it is carried over in
// memory between steps. Step is supplied by the driving client.
type Session struct {
	BatchID    string
	Entity     string
	Source     TabularSource
	Step       int
	PerStep    int
	Mapping    FieldMapping
	Permission PermissionFunc
}

// CanProcess reports whether the caller may run this import.
// A session without a permission predicate is denied.
func (s Session) CanProcess(ctx context.Context) bool {
	if s.Permission == nil {
		return false
	}
	return s.Permission(ctx)
}

// Columns returns the source column names verbatim.
func (s Session) Columns() []string {
	if s.Source == nil {
		return nil
	}
	return s.Source.Headers()
}

// PreviewRow returns the first data row with every cell passed through
// TrimPreview. It returns nil when the source has no data rows.
func (s Session) PreviewRow() ([]string, error) {
	if s.Source == nil || s.Source.RowCount() == 0 {
		return nil, nil
	}

	row, err := s.Source.RowAt(0)
	if err != nil {
		return nil, fmt.Errorf("read preview row: %w", err)
	}

	preview := make([]string, len(row))
	for i, cell := range row {
		preview[i] = TrimPreview(cell)
	}
	return preview, nil
}

// Window returns the half-open row range [start, end) for the session's step,
// clamped to rowCount. A step past the last row yields start == end ==
// rowCount, which callers treat as exhaustion. The product Step*PerStep is
// never formed for such steps, so it cannot overflow.
func (s Session) Window(rowCount int) (start, end int) {
	if rowCount < 0 {
		rowCount = 0
	}
	if s.Step < 0 || s.PerStep <= 0 || rowCount == 0 || s.Step > (rowCount-1)/s.PerStep {
		return rowCount, rowCount
	}

	start = s.Step * s.PerStep
	end = rowCount
	if s.PerStep < rowCount-start {
		end = start + s.PerStep
	}
	return start, end
}

// TrimPreview shortens a cell for display. Numeric values are returned as
// is; anything else is cut to PreviewLength characters and marked with an
// ellipsis when the original was PreviewLength characters or longer.
func TrimPreview(s string) string {
	if isNumeric(s) {
		return s
	}

	if utf8.RuneCountInString(s) < PreviewLength {
		return s
	}

	runes := []rune(s)
	return string(runes[:PreviewLength]) + previewEllipsis
}

func isNumeric(s string) bool {
	return numericRegex.MatchString(strings.TrimSpace(s))
}

// FieldMap maps one source column to one target field.
type FieldMap struct {
	Column string `json:"column" yaml:"column"`
	Field  string `json:"field" yaml:"field"`
}

// FieldMapping is the ordered column-to-field translation applied to each
// row. An empty mapping keeps every column under its header name.
type FieldMapping []FieldMap

// Validate rejects blank names and fields mapped more than once.
func (m FieldMapping) Validate() error {
	seen := make(map[string]bool, len(m))
	for i, fm := range m {
		if strings.TrimSpace(fm.Column) == "" {
			return fmt.Errorf("mapping entry %d: empty column name", i)
		}
		if strings.TrimSpace(fm.Field) == "" {
			return fmt.Errorf("mapping entry %d: empty field name for column %q", i, fm.Column)
		}
		if seen[fm.Field] {
			return fmt.Errorf("mapping entry %d: field %q mapped more than once", i, fm.Field)
		}
		seen[fm.Field] = true
	}
	return nil
}

// ParseMappingPairs builds a FieldMapping from "Column=field" pairs, keeping
// their order.
func ParseMappingPairs(pairs []string) (FieldMapping, error) {
	mapping := make(FieldMapping, 0, len(pairs))
	for _, pair := range pairs {
		col, field, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid mapping %q: want Column=field", pair)
		}
		mapping = append(mapping, FieldMap{
			Column: strings.TrimSpace(col),
			Field:  strings.TrimSpace(field),
		})
	}
	if err := mapping.Validate(); err != nil {
		return nil, err
	}
	return mapping, nil
}

// MappingFromMap builds a FieldMapping from a column-to-field map. Map
// order is lost, so entries are sorted by column name.
func MappingFromMap(byColumn map[string]string) FieldMapping {
	columns := make([]string, 0, len(byColumn))
	for col := range byColumn {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	mapping := make(FieldMapping, 0, len(columns))
	for _, col := range columns {
		mapping = append(mapping, FieldMap{
			Column: strings.TrimSpace(col),
			Field:  strings.TrimSpace(byColumn[col]),
		})
	}
	return mapping
}

// Apply turns a raw row into a Record. Columns are matched against headers
// case-insensitively; a mapped column missing from the header yields an
// empty value.
func (m FieldMapping) Apply(headers, row []string, index int) Record {
	rec := Record{Index: index}

	if len(m) == 0 {
		rec.Fields = make([]string, 0, len(headers))
		rec.Values = make(map[string]string, len(headers))
		for i, h := range headers {
			if _, dup := rec.Values[h]; dup {
				continue
			}
			rec.Fields = append(rec.Fields, h)
			rec.Values[h] = cellAt(row, i)
		}
		return rec
	}

	idx := MakeHeaderIndex(headers)
	rec.Fields = make([]string, 0, len(m))
	rec.Values = make(map[string]string, len(m))
	for _, fm := range m {
		value := ""
		if i, ok := idx[normalizeHeader(fm.Column)]; ok {
			value = cellAt(row, i)
		}
		rec.Fields = append(rec.Fields, fm.Field)
		rec.Values[fm.Field] = value
	}
	return rec
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// HeaderIndex maps normalized column names to their position in a row.
type HeaderIndex map[string]int

// MakeHeaderIndex indexes headers by their trimmed, lowercased name.
// The first occurrence of a duplicated header wins.
func MakeHeaderIndex(headers []string) HeaderIndex {
	idx := make(HeaderIndex, len(headers))
	for i, h := range headers {
		key := normalizeHeader(h)
		if _, exists := idx[key]; !exists {
			idx[key] = i
		}
	}
	return idx
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// Record is one mapped row handed to an EntityImporter.
type Record struct {
	// Index is the zero-based data row index in the source.
	Index int
	// Fields lists target field names in mapping order.
	Fields []string
	Values map[string]string
}

// Get returns the value of field, or "" when absent.
func (r Record) Get(field string) string {
	return r.Values[field]
}
