package pdftables

import (
	"sort"
)

// LineStore collects the rulings of one page before they are clustered into
// tables. Tables consumes the store.
//
// Clustering tests every candidate line against the lines of every table
// found so far, so it is quadratic in the number of rulings.
type LineStore struct {
	hLines    []*Line
	vLines    []*Line
	tolerance float64
}

// NewLineStore returns an empty store. A non-positive tolerance selects
// DefaultTolerance.
func NewLineStore(tolerance float64) *LineStore {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &LineStore{tolerance: tolerance}
}

// Add stores a valid line; invalid lines are dropped.
func (s *LineStore) Add(line *Line) {
	if !line.Valid() {
		return
	}
	if line.Direction == DirectionHorizontal {
		s.hLines = append(s.hLines, line)
	} else {
		s.vLines = append(s.vLines, line)
	}
}

// AddRectangle stores the valid edges of rect.
func (s *LineStore) AddRectangle(rect *Rectangle) {
	for _, line := range rect.Lines() {
		s.Add(line)
	}
}

// HorizontalLines returns the stored horizontal lines.
func (s *LineStore) HorizontalLines() []*Line { return s.hLines }

// VerticalLines returns the stored vertical lines.
func (s *LineStore) VerticalLines() []*Line { return s.vLines }

// Len returns the number of stored lines.
func (s *LineStore) Len() int {
	return len(s.hLines) + len(s.vLines)
}

// Normalize merges collinear lines that overlap or touch within tolerance.
// Lines on the same position separated by a larger break stay separate.
func (s *LineStore) Normalize() {
	s.normalizeHorizontal()
	s.normalizeVertical()
}

func (s *LineStore) normalizeHorizontal() {
	s.hLines = s.normalizeLines(s.hLines)
}

func (s *LineStore) normalizeVertical() {
	s.vLines = s.normalizeLines(s.vLines)
}

func (s *LineStore) normalizeLines(lines []*Line) []*Line {
	var merged []*Line
	for _, group := range groupByPosition(lines, s.tolerance) {
		merged = append(merged, mergeLines(group, s.tolerance, false)...)
	}
	return merged
}

// Tables clusters the stored lines into connected tables, keeping only those
// with enough rulings to form a grid. Returned tables are normalized. The
// store is empty afterwards.
func (s *LineStore) Tables() []*Table {
	var tables []*Table

	for len(s.hLines) > 0 {
		line := s.hLines[0]
		s.hLines = s.hLines[1:]
		tables = s.place(tables, line)
	}
	for len(s.vLines) > 0 {
		line := s.vLines[0]
		s.vLines = s.vLines[1:]
		tables = s.place(tables, line)
	}

	valid := make([]*Table, 0, len(tables))
	for _, t := range tables {
		if !t.IsValid() {
			continue
		}
		t.Normalize()
		if !t.hasGrid() {
			continue
		}
		valid = append(valid, t)
	}
	return valid
}

// TableData clusters the store and materializes every table grid.
func (s *LineStore) TableData() ([]*TableData, error) {
	tables := s.Tables()
	data := make([]*TableData, 0, len(tables))
	for _, t := range tables {
		d, err := t.ToData()
		if err != nil {
			return nil, err
		}
		data = append(data, d)
	}
	return data, nil
}

// place fits line into the first table it connects to, or seeds a new one.
func (s *LineStore) place(tables []*Table, line *Line) []*Table {
	for _, t := range tables {
		if t.Add(line) {
			s.fillTable(t)
			return tables
		}
	}

	t := newTable(line, s.tolerance)
	s.fillTable(t)
	return append(tables, t)
}

// fillTable moves every remaining line that connects to t into it, repeating
// until a pass adds nothing.
func (s *LineStore) fillTable(t *Table) {
	for {
		var added bool
		s.vLines, added = absorb(t, s.vLines)
		var addedH bool
		s.hLines, addedH = absorb(t, s.hLines)
		if !added && !addedH {
			return
		}
	}
}

func absorb(t *Table, lines []*Line) ([]*Line, bool) {
	remaining := lines[:0]
	added := false
	for _, line := range lines {
		if t.Add(line) {
			added = true
			continue
		}
		remaining = append(remaining, line)
	}
	return remaining, added
}

// groupByPosition sorts lines by their fixed coordinate and groups lines
// within tolerance of each group's first member.
func groupByPosition(lines []*Line, tolerance float64) [][]*Line {
	if len(lines) == 0 {
		return nil
	}

	sorted := make([]*Line, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].position() < sorted[j].position()
	})

	var groups [][]*Line
	current := []*Line{sorted[0]}
	for _, line := range sorted[1:] {
		if line.position()-current[0].position() < tolerance {
			current = append(current, line)
			continue
		}
		groups = append(groups, current)
		current = []*Line{line}
	}
	return append(groups, current)
}

// mergeLines sweeps a group of collinear lines in start order, absorbing
// lines that begin within tolerance of the running end. A break larger than
// tolerance either starts a new output line or, with recordGaps, is kept on a
// single output line as a gap.
func mergeLines(group []*Line, tolerance float64, recordGaps bool) []*Line {
	if len(group) == 0 {
		return nil
	}

	dir := group[0].Direction
	position := group[0].position()

	sorted := make([]*Line, len(group))
	copy(sorted, group)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].start() < sorted[j].start()
	})

	var (
		merged []*Line
		run    []*Line
		start  = sorted[0].start()
		end    = sorted[0].end()
		gaps   []*Line
	)

	emit := func() {
		line := lineAt(dir, position, start, end, tolerance)
		for _, src := range run {
			for _, p := range src.Intersections {
				line.addIntersection(p)
			}
			line.Gaps = append(line.Gaps, src.Gaps...)
		}
		line.Gaps = append(line.Gaps, gaps...)
		merged = append(merged, line)
	}

	run = append(run, sorted[0])
	for _, line := range sorted[1:] {
		if line.start() > end+tolerance {
			if recordGaps {
				gaps = append(gaps, lineAt(dir, position, end, line.start(), tolerance))
			} else {
				emit()
				run = run[:0]
				start = line.start()
			}
		}
		run = append(run, line)
		if line.end() > end {
			end = line.end()
		}
	}
	emit()

	return merged
}
