package pdftables

import (
	"sort"

	"github.com/pkg/errors"
)

var (
	// ErrWrongDirection is returned when a span query is made on a line of
	// the wrong orientation.
	ErrWrongDirection = errors.New("line has the wrong direction for this query")

	// ErrInvalidRange is returned when a span query has start >= end.
	ErrInvalidRange = errors.New("range start must be less than range end")
)

// Table is one connected group of rulings.
type Table struct {
	hLines     []*Line
	vLines     []*Line
	tolerance  float64
	normalized bool
}

func newTable(seed *Line, tolerance float64) *Table {
	t := &Table{tolerance: tolerance}
	if seed.Direction == DirectionHorizontal {
		t.hLines = append(t.hLines, seed)
	} else {
		t.vLines = append(t.vLines, seed)
	}
	return t
}

// HorizontalLines returns the table's horizontal rulings, top to bottom
// once the table is normalized.
func (t *Table) HorizontalLines() []*Line { return t.hLines }

// VerticalLines returns the table's vertical rulings, left to right once
// the table is normalized.
func (t *Table) VerticalLines() []*Line { return t.vLines }

// IsValid reports whether the table has enough rulings to be a grid.
func (t *Table) IsValid() bool {
	return len(t.hLines)+len(t.vLines) > 4
}

func (t *Table) hasGrid() bool {
	return len(t.hLines) > 1 && len(t.vLines) > 1
}

// Add accepts line when it crosses at least one perpendicular line already
// in the table. Every crossing found is recorded on both lines.
func (t *Table) Add(line *Line) bool {
	if !t.intersects(line) {
		return false
	}
	if line.Direction == DirectionHorizontal {
		t.hLines = append(t.hLines, line)
	} else {
		t.vLines = append(t.vLines, line)
	}
	t.normalized = false
	return true
}

func (t *Table) intersects(line *Line) bool {
	if !line.Valid() {
		return false
	}

	others := t.hLines
	if line.Direction == DirectionHorizontal {
		others = t.vLines
	}

	found := false
	for _, other := range others {
		if _, ok := line.Intersection(other); ok {
			found = true
		}
	}
	return found
}

// RowPivots returns the sorted distinct y positions of the horizontal lines.
func (t *Table) RowPivots() []float64 {
	return pivots(t.hLines)
}

// ColPivots returns the sorted distinct x positions of the vertical lines.
func (t *Table) ColPivots() []float64 {
	return pivots(t.vLines)
}

func pivots(lines []*Line) []float64 {
	values := make([]float64, 0, len(lines))
	seen := make(map[float64]bool, len(lines))
	for _, l := range lines {
		p := l.position()
		if seen[p] {
			continue
		}
		seen[p] = true
		values = append(values, p)
	}
	sort.Float64s(values)
	return values
}

// Normalize drops rulings crossed by fewer than two perpendicular lines and
// merges rulings on the same position into one line per position, keeping
// breaks between them as gaps.
func (t *Table) Normalize() {
	if t.normalized {
		return
	}
	t.hLines = t.mergeGroups(crossedTwice(t.hLines))
	t.vLines = t.mergeGroups(crossedTwice(t.vLines))
	t.normalized = true
}

func crossedTwice(lines []*Line) []*Line {
	kept := make([]*Line, 0, len(lines))
	for _, l := range lines {
		if len(l.Intersections) > 1 {
			kept = append(kept, l)
		}
	}
	return kept
}

func (t *Table) mergeGroups(lines []*Line) []*Line {
	var merged []*Line
	for _, group := range groupByPosition(lines, t.tolerance) {
		merged = append(merged, mergeLines(group, t.tolerance, true)...)
	}
	return merged
}

// ToData materializes the grid. Each band between consecutive horizontal
// rulings yields the cells whose top edge is drawn in that band; a cell
// extends down to the first ruling drawn across its columns and across to
// the next vertical ruling that crosses the band. Missing rulings therefore
// become rowspan and colspan.
func (t *Table) ToData() (*TableData, error) {
	t.Normalize()

	rowPivots := t.RowPivots()
	colPivots := t.ColPivots()
	if len(rowPivots) < 2 || len(colPivots) < 2 {
		return &TableData{RowPivots: rowPivots, ColPivots: colPivots}, nil
	}

	data := &TableData{
		MinXY:     Point{X: colPivots[0], Y: rowPivots[0]},
		MaxXY:     Point{X: colPivots[len(colPivots)-1], Y: rowPivots[len(rowPivots)-1]},
		RowPivots: rowPivots,
		ColPivots: colPivots,
	}

	for i := 0; i < len(t.hLines)-1; i++ {
		top := t.hLines[i]
		indexes, err := t.findVerticalLineIndexes(top, t.hLines[i+1].From.Y)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}

		row := make([]*TableCell, 0, len(indexes))
		for j := 0; j+1 < len(indexes); j++ {
			x1 := t.vLines[indexes[j]].From.X
			x2 := t.vLines[indexes[j+1]].From.X

			drawn, err := t.horizontalExists(top, x1, x2)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d", i)
			}
			if !drawn {
				// the slot belongs to a cell spanning down from an earlier row
				continue
			}

			bottom, err := t.findBottomLineIndex(i, x1, x2)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d", i)
			}

			y2 := t.hLines[bottom].From.Y
			cell := &TableCell{
				MinXY:  Point{X: x1, Y: top.From.Y},
				MaxXY:  Point{X: x2, Y: y2},
				Width:  x2 - x1,
				Height: y2 - top.From.Y,
			}
			if span := indexes[j+1] - indexes[j]; span > 1 {
				cell.Colspan = span
			}
			if span := bottom - i; span > 1 {
				cell.Rowspan = span
			}
			row = append(row, cell)
		}
		data.Rows = append(data.Rows, row)
	}

	return data, nil
}

// findVerticalLineIndexes returns, in x order, the vertical rulings that reach
// the top ruling and run through the band down to bottomY.
func (t *Table) findVerticalLineIndexes(top *Line, bottomY float64) ([]int, error) {
	var indexes []int
	for j, v := range t.vLines {
		x := v.From.X
		if x < top.From.X-t.tolerance || x > top.To.X+t.tolerance {
			continue
		}
		ok, err := t.verticalExists(v, top.From.Y, bottomY)
		if err != nil {
			return nil, err
		}
		if ok {
			indexes = append(indexes, j)
		}
	}
	return indexes, nil
}

// findBottomLineIndex returns the first horizontal ruling below row that is
// drawn across [x1, x2]. The last ruling closes any cell left open.
func (t *Table) findBottomLineIndex(row int, x1, x2 float64) (int, error) {
	for k := row + 1; k < len(t.hLines); k++ {
		ok, err := t.horizontalExists(t.hLines[k], x1, x2)
		if err != nil {
			return 0, err
		}
		if ok {
			return k, nil
		}
	}
	return len(t.hLines) - 1, nil
}

// verticalExists reports whether line is drawn over the whole of [y1, y2]:
// its extent covers the range and none of its gaps overlaps it.
func (t *Table) verticalExists(line *Line, y1, y2 float64) (bool, error) {
	if line.Direction != DirectionVertical {
		return false, errors.Wrapf(ErrWrongDirection, "vertical span query on %s", line)
	}
	return t.spanExists(line, y1, y2)
}

// horizontalExists reports whether line is drawn over the whole of [x1, x2].
func (t *Table) horizontalExists(line *Line, x1, x2 float64) (bool, error) {
	if line.Direction != DirectionHorizontal {
		return false, errors.Wrapf(ErrWrongDirection, "horizontal span query on %s", line)
	}
	return t.spanExists(line, x1, x2)
}

func (t *Table) spanExists(line *Line, from, to float64) (bool, error) {
	if from >= to {
		return false, errors.Wrapf(ErrInvalidRange, "span [%g, %g]", from, to)
	}

	tol := t.tolerance
	if line.start() > from+tol || line.end() < to-tol {
		return false, nil
	}
	for _, gap := range line.Gaps {
		if gap.start() < to-tol && gap.end() > from+tol {
			return false, nil
		}
	}
	return true, nil
}
