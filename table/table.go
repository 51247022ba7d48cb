// Package table reads and writes header-keyed CSV files.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyFile      = errors.New("table: file has no header row")
	ErrInvalidHeader  = errors.New("table: invalid header")
	ErrColumnExists   = errors.New("table: column already exists")
	ErrLengthMismatch = errors.New("table: value count does not match row count")
	ErrUnknownColumn  = errors.New("table: unknown column")
)

// Row maps column name to cell value.
type Row map[string]string

// Get returns the trimmed value of the first column in names that is present
// and non-empty.
func (r Row) Get(names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(r[n]); v != "" {
			return v
		}
	}
	return ""
}

// Table is an ordered header plus the rows read under it.
type Table struct {
	Header []string
	Rows   []Row
}

// Read loads every row of the CSV file at path.
func Read(path string) (*Table, error) {
	return ReadLimit(path, 0)
}

// ReadLimit loads at most limit data rows. A limit of zero or less reads all
// rows.
func ReadLimit(path string, limit int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("table: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}
	if err != nil {
		return nil, fmt.Errorf("table: read header of %s: %w", path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	if err := validateHeader(header); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	t := &Table{Header: header}
	for limit <= 0 || len(t.Rows) < limit {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("table: read %s: %w", path, err)
		}
		row := make(Row, len(header))
		for i, name := range header {
			if i < len(record) {
				row[name] = record[i]
			} else {
				row[name] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func validateHeader(header []string) error {
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("%w: column %d has no name", ErrInvalidHeader, i+1)
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate column %q", ErrInvalidHeader, name)
		}
		seen[name] = true
	}
	return nil
}

// HasColumn reports whether name is part of the header.
func (t *Table) HasColumn(name string) bool {
	for _, h := range t.Header {
		if h == name {
			return true
		}
	}
	return false
}

// Column returns the values of one column in row order.
func (t *Table) Column(name string) ([]string, error) {
	if !t.HasColumn(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r[name]
	}
	return out, nil
}

// WithColumn returns a copy of t with one column appended. The receiver is
// not modified.
func (t *Table) WithColumn(name string, values []string) (*Table, error) {
	if t.HasColumn(name) {
		return nil, fmt.Errorf("%w: %q", ErrColumnExists, name)
	}
	if len(values) != len(t.Rows) {
		return nil, fmt.Errorf("%w: %d values for %d rows", ErrLengthMismatch, len(values), len(t.Rows))
	}

	out := &Table{
		Header: append(append([]string(nil), t.Header...), name),
		Rows:   make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		nr := make(Row, len(r)+1)
		for k, v := range r {
			nr[k] = v
		}
		nr[name] = values[i]
		out.Rows[i] = nr
	}
	return out, nil
}

// Write stores t at path in header order.
func (t *Table) Write(path string) error {
	records := make([][]string, len(t.Rows))
	for i, r := range t.Rows {
		rec := make([]string, len(t.Header))
		for j, name := range t.Header {
			rec[j] = r[name]
		}
		records[i] = rec
	}
	return WriteRecords(path, t.Header, records)
}

// WriteRecords writes header and records to path atomically: the data goes
// to a temporary file in the same directory which then replaces path.
func WriteRecords(path string, header []string, records [][]string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("table: create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("table: write header: %w", err)
	}
	if err := w.WriteAll(records); err != nil {
		tmp.Close()
		return fmt.Errorf("table: write rows: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("table: close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("table: replace %s: %w", path, err)
	}
	return nil
}

// DerivedPath names an output file after its input: data.csv with suffix
// "_with_product_ids" becomes data_with_product_ids.csv.
func DerivedPath(input, suffix string) string {
	ext := filepath.Ext(input)
	if strings.EqualFold(ext, ".csv") {
		return strings.TrimSuffix(input, ext) + suffix + ext
	}
	return input + suffix + ".csv"
}
