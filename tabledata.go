package pdftables

import (
	"strings"

	"github.com/tidwall/rtree"
)

// TableCell is one cell of a reconstructed grid. Colspan and Rowspan are
// zero for cells spanning a single column or row.
type TableCell struct {
	MinXY   Point    `json:"minXY"`
	MaxXY   Point    `json:"maxXY"`
	Width   float64  `json:"width"`
	Height  float64  `json:"height"`
	Colspan int      `json:"colspan,omitempty"`
	Rowspan int      `json:"rowspan,omitempty"`
	Text    []string `json:"text"`
}

// Contains reports whether (x, y) lies in the cell, edges included.
func (c *TableCell) Contains(x, y float64) bool {
	return x >= c.MinXY.X && x <= c.MaxXY.X && y >= c.MinXY.Y && y <= c.MaxXY.Y
}

// Span returns the number of grid columns and rows the cell covers.
func (c *TableCell) Span() (cols, rows int) {
	cols, rows = 1, 1
	if c.Colspan > 1 {
		cols = c.Colspan
	}
	if c.Rowspan > 1 {
		rows = c.Rowspan
	}
	return cols, rows
}

// String returns the cell text with surrounding whitespace trimmed.
func (c *TableCell) String() string {
	return strings.TrimSpace(strings.Join(c.Text, ""))
}

// TableData is a finalized grid. Apart from the cell Text slices it is
// read-only once built. It is not safe for concurrent use.
type TableData struct {
	MinXY     Point          `json:"minXY"`
	MaxXY     Point          `json:"maxXY"`
	Rows      [][]*TableCell `json:"rows"`
	RowPivots []float64      `json:"rowPivots"`
	ColPivots []float64      `json:"colPivots"`

	cells []*TableCell
	index *rtree.RTreeG[int]
}

// RowCount returns the number of row bands.
func (t *TableData) RowCount() int {
	return len(t.Rows)
}

// CellCount returns the number of cells over all rows.
func (t *TableData) CellCount() int {
	n := 0
	for _, row := range t.Rows {
		n += len(row)
	}
	return n
}

// buildIndex indexes the cells in row-major order. Rows must not change
// after the first FindCell.
func (t *TableData) buildIndex() {
	t.index = &rtree.RTreeG[int]{}
	t.cells = t.cells[:0]
	for _, row := range t.Rows {
		for _, cell := range row {
			t.index.Insert(
				[2]float64{cell.MinXY.X, cell.MinXY.Y},
				[2]float64{cell.MaxXY.X, cell.MaxXY.Y},
				len(t.cells),
			)
			t.cells = append(t.cells, cell)
		}
	}
}

// FindCell returns the first cell, in row-major order, containing (x, y),
// or nil when the point is outside the table or in no cell.
func (t *TableData) FindCell(x, y float64) *TableCell {
	if x < t.MinXY.X || x > t.MaxXY.X || y < t.MinXY.Y || y > t.MaxXY.Y {
		return nil
	}
	if t.index == nil {
		t.buildIndex()
	}

	best := -1
	pt := [2]float64{x, y}
	t.index.Search(pt, pt, func(_, _ [2]float64, i int) bool {
		if t.cells[i].Contains(x, y) && (best < 0 || i < best) {
			best = i
		}
		return true
	})
	if best < 0 {
		return nil
	}
	return t.cells[best]
}

// ToArray returns the cell texts row by row, trimmed.
func (t *TableData) ToArray() [][]string {
	out := make([][]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		texts := make([]string, 0, len(row))
		for _, cell := range row {
			texts = append(texts, cell.String())
		}
		out = append(out, texts)
	}
	return out
}

// Check reports whether the cells cover the grid exactly: the spans of all
// cells add up to (columns x rows) of the pivot grid.
func (t *TableData) Check() bool {
	if len(t.RowPivots) < 2 || len(t.ColPivots) < 2 {
		return t.CellCount() == 0
	}

	want := (len(t.ColPivots) - 1) * (len(t.RowPivots) - 1)
	got := 0
	for _, row := range t.Rows {
		for _, cell := range row {
			cols, rows := cell.Span()
			got += cols * rows
		}
	}
	return got == want
}

// FillText routes text items into the cells of tables. An item belongs to
// the first table with a cell containing its baseline origin mapped through
// viewport. Items that signal end of line also append a newline.
func FillText(tables []*TableData, items []TextItem, viewport Matrix) {
	if len(tables) == 0 {
		return
	}

	for _, item := range items {
		m := viewport.Multiply(item.Transform)
		x, y := m[4], m[5]
		for _, table := range tables {
			cell := table.FindCell(x, y)
			if cell == nil {
				continue
			}
			cell.Text = append(cell.Text, item.Str)
			if item.HasEOL {
				cell.Text = append(cell.Text, "\n")
			}
			break
		}
	}
}
