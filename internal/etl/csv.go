package etl

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Table is a CSV file indexed by header name.
type Table struct {
	Path    string
	Columns []string
	index   map[string]int
	Rows    []Row
}

// Row is one record of a Table.
type Row struct {
	t      *Table
	fields []string
	Line   int
}

// Get returns the raw value of column, or "" when the column is absent
// or the row is short.
func (r Row) Get(column string) string {
	i, ok := r.t.index[column]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[i])
}

// Has reports whether the table has column.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// ReadCSVFile opens path and reads it with ReadCSV.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err //nolint:wrapcheck // caller reports the path
	}
	defer func() { _ = f.Close() }()

	t, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	t.Path = path
	return t, nil
}

// ReadCSV reads a header line and every record after it. Index columns
// written by pandas ("Unnamed: 0" and friends) are dropped.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	t := &Table{index: make(map[string]int, len(header))}
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.TrimSpace(name)
		if name == "" || strings.HasPrefix(name, "Unnamed:") {
			continue
		}
		if _, dup := t.index[name]; dup {
			continue
		}
		t.index[name] = i
		t.Columns = append(t.Columns, name)
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("record: %w", err)
		}
		line, _ := cr.FieldPos(0)
		t.Rows = append(t.Rows, Row{t: t, fields: rec, Line: line})
	}
	return t, nil
}
