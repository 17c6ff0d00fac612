// Package sheet reads meeting spreadsheets into string grids.
package sheet

import (
	"context"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Reader fetches the first worksheet of a spreadsheet.
type Reader interface {
	Fetch(ctx context.Context, sheetID string) (*Grid, error)
}

// Grid holds a worksheet's formatted cell values. Rows may be ragged:
// trailing empty cells are not stored.
type Grid struct {
	Title string
	Rows  [][]string
}

// Row is one data row with its 1-indexed position in the worksheet.
type Row struct {
	Number int
	Cells  []string
}

// NewGrid cleans every cell of values.
func NewGrid(title string, values [][]string) *Grid {
	rows := make([][]string, len(values))
	for i, row := range values {
		cleaned := make([]string, len(row))
		for j, cell := range row {
			cleaned[j] = CleanCell(cell)
		}
		rows[i] = cleaned
	}
	return &Grid{Title: title, Rows: rows}
}

// Cell returns the value at a 1-indexed row and column and whether it is present.
func (g *Grid) Cell(row, col int) (string, bool) {
	if row < 1 || row > len(g.Rows) {
		return "", false
	}
	cells := g.Rows[row-1]
	if col < 1 || col > len(cells) {
		return "", false
	}
	v := cells[col-1]
	return v, v != ""
}

// RowCount returns the number of stored rows.
func (g *Grid) RowCount() int {
	return len(g.Rows)
}

// DataRows returns the rows after the header block, dropping trailing rows.
func (g *Grid) DataRows(headerRows, trailingRows int) []Row {
	end := len(g.Rows) - trailingRows
	var rows []Row
	for i := headerRows; i < end; i++ {
		if i < 0 {
			continue
		}
		rows = append(rows, Row{Number: i + 1, Cells: g.Rows[i]})
	}
	return rows
}

// CleanCell applies NFKC normalization, which folds non-breaking spaces and
// full-width characters, and trims surrounding whitespace.
func CleanCell(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}
