package pdftables

import (
	"math"

	"github.com/sirupsen/logrus"
)

// DefaultMinRulingSize is the extent a stroked path must exceed on an axis
// before it is treated as a ruling along that axis.
const DefaultMinRulingSize = 5.0

// OpCode identifies an operator in a page's operator list.
type OpCode int

const (
	// OpSave pushes the current transform (q).
	OpSave OpCode = iota
	// OpRestore pops the last saved transform (Q).
	OpRestore
	// OpTransform concatenates Operator.Matrix onto the current transform (cm).
	OpTransform
	// OpConstructPath is a painted path with a bounding box.
	OpConstructPath
)

// PaintOp is the painting operation that terminates a path.
type PaintOp int

const (
	PaintEndPath PaintOp = iota
	PaintStroke
	PaintCloseStroke
	PaintFill
	PaintEOFill
	PaintFillStroke
	PaintEOFillStroke
	PaintCloseFillStroke
	PaintCloseEOFillStroke
)

// IsStroke reports whether the painting operation strokes the path.
func (p PaintOp) IsStroke() bool {
	switch p {
	case PaintStroke, PaintCloseStroke, PaintFillStroke, PaintEOFillStroke,
		PaintCloseFillStroke, PaintCloseEOFillStroke:
		return true
	}
	return false
}

// BBox is a path bounding box [minX, minY, maxX, maxY] in content space.
type BBox [4]float64

// EmptyBBox returns a box that contains nothing; its minX is +Inf.
func EmptyBBox() BBox {
	return BBox{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
}

// Extend returns the box grown to include (x, y).
func (b BBox) Extend(x, y float64) BBox {
	return BBox{
		math.Min(b[0], x),
		math.Min(b[1], y),
		math.Max(b[2], x),
		math.Max(b[3], y),
	}
}

// IsEmpty reports whether the box has never been extended.
func (b BBox) IsEmpty() bool {
	return math.IsInf(b[0], 1)
}

// Width returns the horizontal extent of the box.
func (b BBox) Width() float64 { return b[2] - b[0] }

// Height returns the vertical extent of the box.
func (b BBox) Height() float64 { return b[3] - b[1] }

// Operator is one entry of a page operator list.
type Operator struct {
	Code OpCode

	// Matrix is set for OpTransform.
	Matrix Matrix

	// Paint and BBox are set for OpConstructPath.
	Paint PaintOp
	BBox  BBox
}

// SaveOp returns an OpSave operator.
func SaveOp() Operator { return Operator{Code: OpSave} }

// RestoreOp returns an OpRestore operator.
func RestoreOp() Operator { return Operator{Code: OpRestore} }

// TransformOp returns an OpTransform operator for m.
func TransformOp(m Matrix) Operator { return Operator{Code: OpTransform, Matrix: m} }

// PathOp returns an OpConstructPath operator.
func PathOp(paint PaintOp, bbox BBox) Operator {
	return Operator{Code: OpConstructPath, Paint: paint, BBox: bbox}
}

// ShapeKind is the ruling classification of a path bounding box.
type ShapeKind int

const (
	ShapeUndefined ShapeKind = iota
	ShapeRectangle
	ShapeHLine
	ShapeVLine
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeRectangle:
		return "rectangle"
	case ShapeHLine:
		return "hline"
	case ShapeVLine:
		return "vline"
	default:
		return "undefined"
	}
}

// Classify decides whether a path bounding box is a rectangle, a horizontal
// or vertical ruling, or too small to matter.
func Classify(b BBox, minSize float64) ShapeKind {
	if b.IsEmpty() {
		return ShapeUndefined
	}

	w, h := b.Width(), b.Height()
	switch {
	case w > minSize && h > minSize:
		return ShapeRectangle
	case w > minSize:
		return ShapeHLine
	case h > minSize:
		return ShapeVLine
	}
	return ShapeUndefined
}

// WalkOptions tunes WalkOperators. Zero values fall back to the defaults.
type WalkOptions struct {
	Tolerance     float64
	MinRulingSize float64
	Logger        logrus.FieldLogger
}

func (o WalkOptions) withDefaults() WalkOptions {
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.MinRulingSize <= 0 {
		o.MinRulingSize = DefaultMinRulingSize
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}

// transformStack tracks the current transform and the q/Q stack.
type transformStack struct {
	ctm   Matrix
	saved []Matrix
}

func newTransformStack() *transformStack {
	return &transformStack{ctm: Identity()}
}

func (s *transformStack) save() {
	s.saved = append(s.saved, s.ctm)
}

func (s *transformStack) restore() bool {
	if len(s.saved) == 0 {
		return false
	}
	s.ctm = s.saved[len(s.saved)-1]
	s.saved = s.saved[:len(s.saved)-1]
	return true
}

func (s *transformStack) transform(m Matrix) {
	s.ctm = s.ctm.Multiply(m)
}

// WalkOperators converts a page's stroked paths into rulings. Each path's
// box is mapped by the current transform and then by viewport. Filled-only
// paths and boxes too small on both axes are skipped.
func WalkOperators(ops []Operator, viewport Matrix, opts WalkOptions) *LineStore {
	opts = opts.withDefaults()
	store := NewLineStore(opts.Tolerance)
	stack := newTransformStack()

	for _, op := range ops {
		switch op.Code {
		case OpSave:
			stack.save()
		case OpRestore:
			if !stack.restore() {
				opts.Logger.Warn("restore without matching save, ignoring")
			}
		case OpTransform:
			stack.transform(op.Matrix)
		case OpConstructPath:
			if !op.Paint.IsStroke() {
				continue
			}
			addPath(store, op.BBox, stack.ctm, viewport, opts)
		}
	}

	return store
}

func addPath(store *LineStore, b BBox, ctm, viewport Matrix, opts WalkOptions) {
	switch Classify(b, opts.MinRulingSize) {
	case ShapeRectangle:
		rect := NewRectangleWithTolerance(Point{X: b[0], Y: b[1]}, b.Width(), b.Height(), opts.Tolerance)
		rect.Transform(ctm)
		rect.Transform(viewport)
		store.AddRectangle(rect)
	case ShapeHLine:
		// a ruling with some thickness runs along the middle of its box
		mid := (b[1] + b[3]) / 2
		line := NewLineWithTolerance(Point{X: b[0], Y: mid}, Point{X: b[2], Y: mid}, opts.Tolerance)
		line.Transform(ctm)
		line.Transform(viewport)
		store.Add(line)
	case ShapeVLine:
		mid := (b[0] + b[2]) / 2
		line := NewLineWithTolerance(Point{X: mid, Y: b[1]}, Point{X: mid, Y: b[3]}, opts.Tolerance)
		line.Transform(ctm)
		line.Transform(viewport)
		store.Add(line)
	}
}
