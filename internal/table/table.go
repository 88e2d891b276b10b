// Package table defines the in-memory Source Table handed from the readers to
// the schema inferencer and the bulk loader.
//
// A Table is positional: Columns fixes the order, and every Row holds exactly
// one value per column in that order. Missing cells are the empty string,
// never nil, so downstream code never has to distinguish "absent" from "blank".
package table

import (
	"fmt"
	"strconv"
)

// Empty is the missing-value sentinel.
const Empty = ""

// Row is one record aligned to Table.Columns. Values are string, int64 or
// float64.
type Row []any

// Table is an ordered set of named columns plus rows.
type Table struct {
	Columns []string
	Rows    []Row

	// Skipped counts source rows the reader could not fit to Columns.
	Skipped int

	index map[string]int
}

// New returns an empty table with the given column order.
func New(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Index returns the position of col, or -1.
func (t *Table) Index(col string) int {
	if t.index == nil || len(t.index) != len(t.Columns) {
		t.index = make(map[string]int, len(t.Columns))
		for i, c := range t.Columns {
			if _, dup := t.index[c]; !dup {
				t.index[c] = i
			}
		}
	}
	if i, ok := t.index[col]; ok {
		return i
	}
	return -1
}

// Append adds a row after normalizing nil cells to Empty. The row must have
// exactly one value per column.
func (t *Table) Append(row Row) error {
	if len(row) != len(t.Columns) {
		return fmt.Errorf("table: row has %d values, want %d", len(row), len(t.Columns))
	}
	for i, v := range row {
		if v == nil {
			row[i] = Empty
		}
	}
	t.Rows = append(t.Rows, row)
	return nil
}

// Get returns the value of col in row i, or Empty when col is unknown.
func (t *Table) Get(i int, col string) any {
	j := t.Index(col)
	if j < 0 || i < 0 || i >= len(t.Rows) {
		return Empty
	}
	return t.Rows[i][j]
}

// Project returns a new table holding only cols, in the order given.
func (t *Table) Project(cols []string) (*Table, error) {
	pos := make([]int, len(cols))
	for k, c := range cols {
		j := t.Index(c)
		if j < 0 {
			return nil, fmt.Errorf("table: project: unknown column %q", c)
		}
		pos[k] = j
	}
	out := New(cols)
	out.Rows = make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		nr := make(Row, len(pos))
		for k, j := range pos {
			nr[k] = r[j]
		}
		out.Rows = append(out.Rows, nr)
	}
	out.Skipped = t.Skipped
	return out, nil
}

// Strings renders row i as text cells, suitable for CSV output.
func (t *Table) Strings(i int) []string {
	r := t.Rows[i]
	out := make([]string, len(r))
	for j, v := range r {
		out[j] = Format(v)
	}
	return out
}

// Format renders a cell value as text.
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return Empty
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
