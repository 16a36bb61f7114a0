// Package csvimport turns uploaded CSV text into locations and items.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	ErrEmpty         = errors.New("CSV file is empty")
	ErrMissingFields = errors.New("Missing required fields")
	ErrNoRows        = errors.New("Invalid or empty CSV data")
)

// Row is one data line keyed by header name.
type Row struct {
	Line   int // 1-based line in the file
	Fields map[string]string
}

func (r Row) Get(names ...string) string {
	for _, n := range names {
		if v := r.Fields[n]; v != "" {
			return v
		}
	}
	return ""
}

// Table is a parsed CSV file. Errors lists lines that were skipped.
type Table struct {
	Headers []string
	Rows    []Row
	Errors  []string
}

// HasAny reports whether at least one of names is a header.
func (t Table) HasAny(names ...string) bool {
	for _, h := range t.Headers {
		for _, n := range names {
			if h == n {
				return true
			}
		}
	}
	return false
}

// 只有空白的行當成空行
func blank(rec []string) bool {
	return len(rec) == 1 && strings.TrimSpace(rec[0]) == ""
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, `"`), "'")
	return strings.TrimSuffix(strings.TrimSuffix(s, `"`), "'")
}

// Parse reads text with a header row. A missing required header rejects the
// whole file; a line with the wrong number of cells is skipped and reported.
func Parse(text string, required ...string) (Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1 // 欄位數自己檢查，才能逐行回報
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	var header []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return Table{}, ErrEmpty
		}
		if err != nil {
			return Table{}, fmt.Errorf("read header: %w", err)
		}
		if !blank(rec) {
			header = rec
			break
		}
	}

	t := Table{Headers: make([]string, len(header)), Rows: []Row{}, Errors: []string{}}
	for i, h := range header {
		t.Headers[i] = unquote(h)
	}

	var missing []string
	for _, f := range required {
		if !t.HasAny(f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return Table{}, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				t.Errors = append(t.Errors, fmt.Sprintf("Line %d: %v", pe.Line, pe.Err))
				continue
			}
			return Table{}, fmt.Errorf("read csv: %w", err)
		}
		if blank(rec) {
			continue
		}
		line, _ := r.FieldPos(0)
		if len(rec) != len(t.Headers) {
			t.Errors = append(t.Errors, fmt.Sprintf("Line %d: Expected %d values but got %d", line, len(t.Headers), len(rec)))
			continue
		}

		row := Row{Line: line, Fields: make(map[string]string, len(rec))}
		for i, v := range rec {
			row.Fields[t.Headers[i]] = unquote(v)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
