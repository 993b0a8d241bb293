package export

import (
	"fmt"
	"strings"
)

// Grid is a labelled two dimensional table such as a weekly timetable:
// one row per RowHeaders entry, one column per ColumnHeaders entry.
// Cell text may contain newlines.
type Grid struct {
	Title         string
	Corner        string
	ColumnHeaders []string
	RowHeaders    []string
	Cells         [][]string
}

// NewGrid allocates an empty grid of the given shape.
func NewGrid(title, corner string, rows, columns []string) Grid {
	cells := make([][]string, len(rows))
	for i := range cells {
		cells[i] = make([]string, len(columns))
	}
	return Grid{Title: title, Corner: corner, ColumnHeaders: columns, RowHeaders: rows, Cells: cells}
}

// Validate checks that the cell matrix matches the headers.
func (g Grid) Validate() error {
	if len(g.ColumnHeaders) == 0 || len(g.RowHeaders) == 0 {
		return fmt.Errorf("grid requires row and column headers")
	}
	if len(g.Cells) != len(g.RowHeaders) {
		return fmt.Errorf("grid has %d rows, expected %d", len(g.Cells), len(g.RowHeaders))
	}
	for i, row := range g.Cells {
		if len(row) != len(g.ColumnHeaders) {
			return fmt.Errorf("grid row %d has %d cells, expected %d", i, len(row), len(g.ColumnHeaders))
		}
	}
	return nil
}

// MaxLines returns the largest number of text lines in row i.
func (g Grid) MaxLines(i int) int {
	most := 1
	for _, cell := range g.Cells[i] {
		if n := strings.Count(cell, "\n") + 1; n > most {
			most = n
		}
	}
	return most
}
