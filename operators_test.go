package pdftables

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		bbox BBox
		want ShapeKind
	}{
		{"empty", EmptyBBox(), ShapeUndefined},
		{"rectangle", BBox{0, 0, 20, 10}, ShapeRectangle},
		{"horizontal line", BBox{0, 5, 20, 5}, ShapeHLine},
		{"thick horizontal line", BBox{0, 5, 20, 6}, ShapeHLine},
		{"vertical line", BBox{5, 0, 5, 20}, ShapeVLine},
		{"too small", BBox{0, 0, 4, 4}, ShapeUndefined},
		{"exactly threshold", BBox{0, 0, 5, 5}, ShapeUndefined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.bbox, DefaultMinRulingSize))
		})
	}
}

func TestBBox_Extend(t *testing.T) {
	b := EmptyBBox()
	assert.True(t, b.IsEmpty())

	b = b.Extend(10, 5).Extend(2, 8)
	assert.False(t, b.IsEmpty())
	assert.Equal(t, BBox{2, 5, 10, 8}, b)
	assert.Equal(t, 8.0, b.Width())
	assert.Equal(t, 3.0, b.Height())
}

func TestPaintOp_IsStroke(t *testing.T) {
	strokes := []PaintOp{PaintStroke, PaintCloseStroke, PaintFillStroke, PaintEOFillStroke, PaintCloseFillStroke, PaintCloseEOFillStroke}
	for _, p := range strokes {
		assert.True(t, p.IsStroke(), "paint op %d", p)
	}
	for _, p := range []PaintOp{PaintEndPath, PaintFill, PaintEOFill} {
		assert.False(t, p.IsStroke(), "paint op %d", p)
	}
}

func TestWalkOperators(t *testing.T) {
	ops := []Operator{
		SaveOp(),
		TransformOp(Matrix{1, 0, 0, 1, 10, 10}),
		PathOp(PaintStroke, BBox{0, 0, 20, 0}),
		RestoreOp(),
		PathOp(PaintStroke, BBox{0, 0, 0, 20}),
		PathOp(PaintFill, BBox{0, 0, 50, 0}),
		PathOp(PaintStroke, BBox{0, 0, 3, 3}),
	}

	store := WalkOperators(ops, NewViewport(100, 1), WalkOptions{})

	require.Len(t, store.HorizontalLines(), 1)
	h := store.HorizontalLines()[0]
	assert.Equal(t, Point{X: 10, Y: 90}, h.From)
	assert.Equal(t, Point{X: 30, Y: 90}, h.To)

	require.Len(t, store.VerticalLines(), 1, "restore drops the translation and the fill is ignored")
	v := store.VerticalLines()[0]
	assert.Equal(t, Point{X: 0, Y: 80}, v.From)
	assert.Equal(t, Point{X: 0, Y: 100}, v.To)
}

func TestWalkOperators_NestedTransforms(t *testing.T) {
	ops := []Operator{
		TransformOp(Matrix{2, 0, 0, 2, 0, 0}),
		SaveOp(),
		TransformOp(Matrix{1, 0, 0, 1, 5, 0}),
		PathOp(PaintStroke, BBox{0, 0, 10, 0}),
		RestoreOp(),
		PathOp(PaintCloseStroke, BBox{0, 10, 10, 10}),
	}

	store := WalkOperators(ops, Identity(), WalkOptions{})
	lines := store.HorizontalLines()
	require.Len(t, lines, 2)

	// the translation is applied before the outer scale
	assert.Equal(t, Point{X: 10, Y: 0}, lines[0].From)
	assert.Equal(t, Point{X: 30, Y: 0}, lines[0].To)
	assert.Equal(t, Point{X: 0, Y: 20}, lines[1].From)
	assert.Equal(t, Point{X: 20, Y: 20}, lines[1].To)
}

func TestWalkOperators_Rectangle(t *testing.T) {
	ops := []Operator{PathOp(PaintFillStroke, BBox{0, 0, 20, 10})}

	store := WalkOperators(ops, NewViewport(100, 1), WalkOptions{})
	assert.Len(t, store.HorizontalLines(), 2)
	assert.Len(t, store.VerticalLines(), 2)
	assert.Equal(t, 90.0, store.HorizontalLines()[0].From.Y)
	assert.Equal(t, 100.0, store.HorizontalLines()[1].From.Y)
}

func TestWalkOperators_UnbalancedRestore(t *testing.T) {
	logger, hook := test.NewNullLogger()

	ops := []Operator{
		RestoreOp(),
		PathOp(PaintStroke, BBox{0, 0, 20, 0}),
	}

	store := WalkOperators(ops, Identity(), WalkOptions{Logger: logger})
	assert.Len(t, store.HorizontalLines(), 1)

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestWalkOperators_MinRulingSize(t *testing.T) {
	ops := []Operator{PathOp(PaintStroke, BBox{0, 0, 8, 0})}

	assert.Equal(t, 1, WalkOperators(ops, Identity(), WalkOptions{}).Len())
	assert.Equal(t, 0, WalkOperators(ops, Identity(), WalkOptions{MinRulingSize: 10}).Len())
}

func TestWalkOperators_ThickRulings(t *testing.T) {
	tests := []struct {
		name     string
		bbox     BBox
		wantH    int
		wantV    int
		wantFrom Point
		wantTo   Point
	}{
		{"thin horizontal", BBox{0, 100, 100, 100}, 1, 0, Point{X: 0, Y: 100}, Point{X: 100, Y: 100}},
		{"3pt horizontal", BBox{0, 98.5, 100, 101.5}, 1, 0, Point{X: 0, Y: 100}, Point{X: 100, Y: 100}},
		{"2pt vertical", BBox{49, 0, 51, 80}, 0, 1, Point{X: 50, Y: 0}, Point{X: 50, Y: 80}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := WalkOperators([]Operator{PathOp(PaintStroke, tt.bbox)}, Identity(), WalkOptions{})
			require.Len(t, store.HorizontalLines(), tt.wantH)
			require.Len(t, store.VerticalLines(), tt.wantV)

			var lines []*Line
			lines = append(lines, store.HorizontalLines()...)
			lines = append(lines, store.VerticalLines()...)
			assert.Equal(t, tt.wantFrom, lines[0].From)
			assert.Equal(t, tt.wantTo, lines[0].To)
		})
	}
}
