package pdftables

import (
	"fmt"
	"math"
)

// DefaultTolerance is the distance below which two coordinates are treated
// as the same position when building and comparing rulings.
const DefaultTolerance = 2.0

// Matrix is a 2-D affine transform [a b c d e f], applied as
// x' = a*x + c*y + e and y' = b*x + d*y + f.
type Matrix [6]float64

// Identity returns the identity transform.
func Identity() Matrix {
	return Matrix{1, 0, 0, 1, 0, 0}
}

// Multiply returns the transform that applies n first and then m.
func (m Matrix) Multiply(n Matrix) Matrix {
	return Matrix{
		m[0]*n[0] + m[2]*n[1],
		m[1]*n[0] + m[3]*n[1],
		m[0]*n[2] + m[2]*n[3],
		m[1]*n[2] + m[3]*n[3],
		m[0]*n[4] + m[2]*n[5] + m[4],
		m[1]*n[4] + m[3]*n[5] + m[5],
	}
}

// Point is a coordinate in page viewport space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Equal reports exact equality.
func (p Point) Equal(other Point) bool {
	return p.X == other.X && p.Y == other.Y
}

// Transform returns p mapped through m.
func (p Point) Transform(m Matrix) Point {
	return Point{
		X: m[0]*p.X + m[2]*p.Y + m[4],
		Y: m[1]*p.X + m[3]*p.Y + m[5],
	}
}

// Direction is the orientation of a Line.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionHorizontal
	DirectionVertical
)

func (d Direction) String() string {
	switch d {
	case DirectionHorizontal:
		return "horizontal"
	case DirectionVertical:
		return "vertical"
	default:
		return "none"
	}
}

// Line is an axis-aligned segment. Diagonal segments keep DirectionNone and
// are never valid.
type Line struct {
	From      Point
	To        Point
	Direction Direction
	Length    float64

	// Intersections holds the distinct points where perpendicular lines
	// cross this one.
	Intersections []Point

	// Gaps are sub-segments known to be absent from the ruling.
	Gaps []*Line

	tolerance float64
}

// NewLine builds a line between two points using DefaultTolerance.
func NewLine(from, to Point) *Line {
	return NewLineWithTolerance(from, to, DefaultTolerance)
}

// NewLineWithTolerance builds a line between two points. Endpoints are
// ordered ascending along the varying axis and the fixed coordinate is
// snapped when the two points differ by less than tolerance on it.
func NewLineWithTolerance(from, to Point, tolerance float64) *Line {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	l := &Line{From: from, To: to, tolerance: tolerance}
	l.init()
	return l
}

func (l *Line) init() {
	l.Direction = DirectionNone
	l.Length = 0

	switch {
	case math.Abs(l.From.Y-l.To.Y) < l.tolerance:
		l.Direction = DirectionHorizontal
		l.To.Y = l.From.Y
		if l.From.X > l.To.X {
			l.From, l.To = l.To, l.From
		}
		l.Length = l.To.X - l.From.X
	case math.Abs(l.From.X-l.To.X) < l.tolerance:
		l.Direction = DirectionVertical
		l.To.X = l.From.X
		if l.From.Y > l.To.Y {
			l.From, l.To = l.To, l.From
		}
		l.Length = l.To.Y - l.From.Y
	}
}

// Tolerance returns the tolerance the line was built with.
func (l *Line) Tolerance() float64 {
	return l.tolerance
}

// Valid reports whether the line is axis-aligned and longer than its tolerance.
func (l *Line) Valid() bool {
	return l.Direction != DirectionNone && l.Length > l.tolerance
}

// Normalized returns a copy extended by the tolerance at both ends.
// Lines without a direction are returned as is.
func (l *Line) Normalized() *Line {
	t := l.tolerance
	switch l.Direction {
	case DirectionHorizontal:
		return NewLineWithTolerance(Point{X: l.From.X - t, Y: l.From.Y}, Point{X: l.To.X + t, Y: l.From.Y}, t)
	case DirectionVertical:
		return NewLineWithTolerance(Point{X: l.From.X, Y: l.From.Y - t}, Point{X: l.From.X, Y: l.To.Y + t}, t)
	}
	return l
}

// AddGap records a missing sub-segment of the line.
func (l *Line) AddGap(gap *Line) {
	l.Gaps = append(l.Gaps, gap)
}

// ContainsPoint reports whether p lies on the line: exact match on the fixed
// axis, inclusive range on the other.
func (l *Line) ContainsPoint(p Point) bool {
	switch l.Direction {
	case DirectionHorizontal:
		return p.Y == l.From.Y && p.X >= l.From.X && p.X <= l.To.X
	case DirectionVertical:
		return p.X == l.From.X && p.Y >= l.From.Y && p.Y <= l.To.Y
	}
	return false
}

func (l *Line) addIntersection(p Point) {
	for _, existing := range l.Intersections {
		if existing.Equal(p) {
			return
		}
	}
	l.Intersections = append(l.Intersections, p)
}

// Intersection returns the crossing point of a horizontal and a vertical
// line. The point must lie strictly inside both lines extended by the
// tolerance. On success the point is recorded on both lines.
func (l *Line) Intersection(other *Line) (Point, bool) {
	if !l.Valid() || !other.Valid() {
		return Point{}, false
	}

	var h, v *Line
	switch {
	case l.Direction == DirectionHorizontal && other.Direction == DirectionVertical:
		h, v = l, other
	case l.Direction == DirectionVertical && other.Direction == DirectionHorizontal:
		h, v = other, l
	default:
		return Point{}, false
	}

	hn, vn := h.Normalized(), v.Normalized()
	x, y := vn.From.X, hn.From.Y
	if x > hn.From.X && x < hn.To.X && y > vn.From.Y && y < vn.To.Y {
		p := Point{X: x, Y: y}
		l.addIntersection(p)
		other.addIntersection(p)
		return p, true
	}
	return Point{}, false
}

// Transform maps both endpoints through m and re-derives direction and length.
func (l *Line) Transform(m Matrix) {
	l.From = l.From.Transform(m)
	l.To = l.To.Transform(m)
	l.init()
}

func (l *Line) String() string {
	return fmt.Sprintf("%s(%g,%g)-(%g,%g)", l.Direction, l.From.X, l.From.Y, l.To.X, l.To.Y)
}

// position is the coordinate the line does not vary along.
func (l *Line) position() float64 {
	if l.Direction == DirectionVertical {
		return l.From.X
	}
	return l.From.Y
}

func (l *Line) start() float64 {
	if l.Direction == DirectionVertical {
		return l.From.Y
	}
	return l.From.X
}

func (l *Line) end() float64 {
	if l.Direction == DirectionVertical {
		return l.To.Y
	}
	return l.To.X
}

// lineAt builds an axis-aligned line at position spanning [start, end].
func lineAt(dir Direction, position, start, end, tolerance float64) *Line {
	if dir == DirectionVertical {
		return NewLineWithTolerance(Point{X: position, Y: start}, Point{X: position, Y: end}, tolerance)
	}
	return NewLineWithTolerance(Point{X: start, Y: position}, Point{X: end, Y: position}, tolerance)
}

// Rectangle is an axis-aligned box whose edges may act as rulings.
type Rectangle struct {
	From   Point
	Width  float64
	Height float64

	tolerance float64
}

// NewRectangle builds a rectangle using DefaultTolerance for its edges.
func NewRectangle(from Point, width, height float64) *Rectangle {
	return NewRectangleWithTolerance(from, width, height, DefaultTolerance)
}

// NewRectangleWithTolerance builds a rectangle whose edges use tolerance.
func NewRectangleWithTolerance(from Point, width, height, tolerance float64) *Rectangle {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Rectangle{From: from, Width: width, Height: height, tolerance: tolerance}
}

// To returns the corner opposite From.
func (r *Rectangle) To() Point {
	return Point{X: r.From.X + r.Width, Y: r.From.Y + r.Height}
}

// Lines returns the top, left, right and bottom edges, dropping edges that
// are not valid lines (zero width or height).
func (r *Rectangle) Lines() []*Line {
	to := r.To()
	candidates := []*Line{
		NewLineWithTolerance(r.From, Point{X: to.X, Y: r.From.Y}, r.tolerance),
		NewLineWithTolerance(r.From, Point{X: r.From.X, Y: to.Y}, r.tolerance),
		NewLineWithTolerance(Point{X: to.X, Y: r.From.Y}, to, r.tolerance),
		NewLineWithTolerance(Point{X: r.From.X, Y: to.Y}, to, r.tolerance),
	}

	lines := make([]*Line, 0, len(candidates))
	for _, l := range candidates {
		if l.Valid() {
			lines = append(lines, l)
		}
	}
	return lines
}

// Transform maps both corners through m and re-derives the minimum corner
// and a positive size.
func (r *Rectangle) Transform(m Matrix) {
	p1 := r.From.Transform(m)
	p2 := r.To().Transform(m)

	r.From = Point{X: math.Min(p1.X, p2.X), Y: math.Min(p1.Y, p2.Y)}
	r.Width = math.Abs(p1.X - p2.X)
	r.Height = math.Abs(p1.Y - p2.Y)
}
