// Package tabular reads column-oriented tables (CSV exports of the school's
// spreadsheets) into rows keyed by trimmed column name.
package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const utf8BOM = "\ufeff"

// ErrMissingColumn is returned when a required column is absent from the header.
var ErrMissingColumn = errors.New("missing column")

// Row maps a trimmed column name to the raw cell value.
type Row map[string]string

// Table is an ordered list of rows plus the header as read.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// Read parses a CSV stream. Header names are trimmed and a leading BOM is dropped.
// Short records are padded with empty values; blank lines are skipped.
func Read(name string, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &Table{Name: name}, nil
		}
		return nil, fmt.Errorf("read %s header: %w", name, err)
	}
	columns := make([]string, len(header))
	for i, col := range header {
		if i == 0 {
			col = strings.TrimPrefix(col, utf8BOM)
		}
		columns[i] = strings.TrimSpace(col)
	}

	table := &Table{Name: name, Columns: columns}
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read %s line %d: %w", name, line, err)
		}
		if isBlank(record) {
			continue
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			if col == "" {
				continue
			}
			if i < len(record) {
				row[col] = strings.TrimSpace(record[i])
			} else {
				row[col] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// Has reports whether the header contains column.
func (t *Table) Has(column string) bool {
	for _, col := range t.Columns {
		if col == column {
			return true
		}
	}
	return false
}

// Require fails with ErrMissingColumn when any of columns is absent.
func (t *Table) Require(columns ...string) error {
	var missing []string
	for _, col := range columns {
		if !t.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: %w: %s", t.Name, ErrMissingColumn, strings.Join(missing, ", "))
	}
	return nil
}

// String returns the trimmed cell, or "" when the column is absent.
func (r Row) String(column string) string {
	return r[column]
}

// StringOr returns the cell, or fallback when it is absent or empty.
func (r Row) StringOr(column, fallback string) string {
	if value := r[column]; value != "" {
		return value
	}
	return fallback
}

// Float parses the cell permissively: missing, empty, NaN, infinite or
// non-numeric values read as zero.
func (r Row) Float(column string) float64 {
	raw := r[column]
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0
	}
	return value
}

// Int parses an integer cell. Values written as floats ("8.0") are accepted
// when they carry no fraction.
func (r Row) Int(column string) (int, error) {
	raw := r[column]
	if value, err := strconv.Atoi(raw); err == nil {
		return value, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("column %s: %q is not an integer", column, raw)
	}
	return int(f), nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
