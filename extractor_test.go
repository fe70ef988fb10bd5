package pdftables_test

import (
	"context"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanvanderbyl/pdftables"
)

// fakeDocument serves prepared pages.
type fakeDocument struct {
	pages    []*pdftables.PageContent
	countErr error
	pageErr  map[int]error
	loaded   []int
	closed   bool

	// onLoad runs after each page is served.
	onLoad func(index int)
}

func (d *fakeDocument) PageCount() (int, error) {
	if d.countErr != nil {
		return 0, d.countErr
	}
	return len(d.pages), nil
}

func (d *fakeDocument) Page(_ context.Context, index int) (*pdftables.PageContent, error) {
	if err := d.pageErr[index]; err != nil {
		return nil, err
	}
	d.loaded = append(d.loaded, index)
	if d.onLoad != nil {
		d.onLoad(index)
	}
	return d.pages[index], nil
}

func (d *fakeDocument) Close() error {
	d.closed = true
	return nil
}

// gridPage returns a page whose operators draw an n x n grid of rulings
// spaced step apart, in viewport space (identity viewport).
func gridPage(number, n int, step float64, items ...pdftables.TextItem) *pdftables.PageContent {
	size := float64(n-1) * step
	var ops []pdftables.Operator
	for i := 0; i < n; i++ {
		p := float64(i) * step
		ops = append(ops,
			pdftables.PathOp(pdftables.PaintStroke, pdftables.BBox{0, p, size, p}),
			pdftables.PathOp(pdftables.PaintStroke, pdftables.BBox{p, 0, p, size}),
		)
	}
	return &pdftables.PageContent{
		Number:    number,
		Width:     size,
		Height:    size,
		Viewport:  pdftables.Identity(),
		Operators: ops,
		TextItems: items,
	}
}

func textAt(s string, x, y float64, eol bool) pdftables.TextItem {
	return pdftables.TextItem{Str: s, Transform: pdftables.Matrix{1, 0, 0, 1, x, y}, HasEOL: eol}
}

func TestExtractor_Tables(t *testing.T) {
	doc := &fakeDocument{pages: []*pdftables.PageContent{
		gridPage(1, 3, 10,
			textAt("Name", 2, 5, false),
			textAt("Qty", 12, 5, true),
			textAt("Apples", 2, 15, false),
			textAt("3", 12, 15, false),
			textAt("caption", 50, 50, true),
		),
		{Number: 2, Viewport: pdftables.Identity()},
	}}

	result, err := pdftables.NewExtractor(nil).Tables(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total)
	require.Len(t, result.Pages, 2)
	assert.Equal(t, 1, result.Pages[0].Num)
	assert.Equal(t, [][][]string{{{"Name", "Qty"}, {"Apples", "3"}}}, result.Pages[0].Tables)
	assert.Empty(t, result.Pages[1].Tables, "a page without rulings has no tables")
	assert.Equal(t, 1, result.TableCount())
}

func TestExtractor_TablesInRange(t *testing.T) {
	newDoc := func() *fakeDocument {
		return &fakeDocument{pages: []*pdftables.PageContent{
			gridPage(1, 3, 10),
			gridPage(2, 3, 10),
			gridPage(3, 3, 10),
		}}
	}
	extractor := pdftables.NewExtractor(nil)

	tests := []struct {
		name        string
		first, last int
		wantPages   []int
	}{
		{"middle page", 2, 2, []int{2}},
		{"clamped", 0, 99, []int{1, 2, 3}},
		{"open end", 2, 0, []int{2, 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := extractor.TablesInRange(context.Background(), newDoc(), tt.first, tt.last)
			require.NoError(t, err)

			var got []int
			for _, p := range result.Pages {
				got = append(got, p.Num)
				assert.Len(t, p.Tables, 1)
			}
			assert.Equal(t, tt.wantPages, got)
		})
	}

	_, err := extractor.TablesInRange(context.Background(), newDoc(), 3, 2)
	assert.Error(t, err)
}

func TestExtractor_EmptyDocument(t *testing.T) {
	result, err := pdftables.NewExtractor(nil).Tables(context.Background(), &fakeDocument{})
	require.NoError(t, err)
	assert.Empty(t, result.Pages)
	assert.Zero(t, result.TableCount())
}

func TestExtractor_Errors(t *testing.T) {
	broken := errors.New("broken xref")

	_, err := pdftables.NewExtractor(nil).Tables(context.Background(), &fakeDocument{countErr: broken})
	require.Error(t, err)
	assert.True(t, errors.Is(err, broken))

	doc := &fakeDocument{
		pages:   []*pdftables.PageContent{gridPage(1, 3, 10), gridPage(2, 3, 10)},
		pageErr: map[int]error{1: broken},
	}
	_, err = pdftables.NewExtractor(nil).Tables(context.Background(), doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, broken))
	assert.Contains(t, err.Error(), "page 2")
}

func TestExtractor_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	doc := &fakeDocument{pages: []*pdftables.PageContent{gridPage(1, 3, 10)}}
	_, err := pdftables.NewExtractor(nil).Tables(ctx, doc)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, doc.loaded)
}

func TestExtractor_CancelledAfterLoading(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	doc := &fakeDocument{
		pages: []*pdftables.PageContent{gridPage(1, 3, 10), gridPage(2, 3, 10)},
		onLoad: func(index int) {
			if index == 1 {
				cancel()
			}
		},
	}
	_, err := pdftables.NewExtractor(nil).Tables(ctx, doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "no page is computed once the context is done")
	assert.Equal(t, []int{0, 1}, doc.loaded)
}

func TestExtractor_InvalidConfig(t *testing.T) {
	config := pdftables.DefaultConfig()
	config.Tolerance = -1

	_, err := pdftables.NewExtractorWithConfig(nil, config).Tables(context.Background(), &fakeDocument{})
	assert.Error(t, err)
}

func TestExtractor_NoInstance(t *testing.T) {
	_, err := pdftables.NewExtractor(nil).TablesFromFile(context.Background(), "missing.pdf")
	assert.Error(t, err)
}

func TestExtractor_Concurrency(t *testing.T) {
	var pages []*pdftables.PageContent
	for i := 1; i <= 12; i++ {
		pages = append(pages, gridPage(i, 4, 10, textAt("x", 5, 5, false)))
	}

	config := pdftables.DefaultConfig()
	config.Concurrency = 4
	result, err := pdftables.NewExtractorWithConfig(nil, config).Tables(context.Background(), &fakeDocument{pages: pages})
	require.NoError(t, err)

	require.Len(t, result.Pages, 12)
	for i, p := range result.Pages {
		assert.Equal(t, i+1, p.Num, "pages keep document order")
		require.Len(t, p.Tables, 1)
		assert.Equal(t, "x", p.Tables[0][0][0])
	}
}

func TestExtractPageTables_VerifyGrids(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	config := pdftables.DefaultConfig()
	config.VerifyGrids = true
	config.Logger = logger

	tables, err := pdftables.ExtractPageTables(gridPage(7, 3, 10), config)
	require.NoError(t, err)
	require.Len(t, tables, 1)
	assert.True(t, tables[0].Check())

	for _, entry := range hook.AllEntries() {
		assert.NotEqual(t, logrus.WarnLevel, entry.Level, "a regular grid passes the check")
		assert.Equal(t, 7, entry.Data["page"])
	}
	require.NotEmpty(t, hook.AllEntries())
}

func TestExtractor_MetricsLogging(t *testing.T) {
	logger, hook := test.NewNullLogger()

	config := pdftables.DefaultConfig()
	config.EnableMetricsLogging = true
	config.Logger = logger

	doc := &fakeDocument{pages: []*pdftables.PageContent{gridPage(1, 3, 10)}}
	_, err := pdftables.NewExtractorWithConfig(nil, config).Tables(context.Background(), doc)
	require.NoError(t, err)

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "table extraction metrics", last.Message)
	assert.Equal(t, 1, last.Data["tables"])
}

func TestExtractor_Text(t *testing.T) {
	doc := &fakeDocument{pages: []*pdftables.PageContent{
		{Number: 1, TextItems: []pdftables.TextItem{
			textAt("Hello", 0, 0, false),
			textAt(" world", 0, 0, true),
			textAt("next", 0, 0, false),
		}},
		{Number: 2},
	}}

	result, err := pdftables.NewExtractor(nil).Text(context.Background(), doc)
	require.NoError(t, err)

	require.Len(t, result.Pages, 2)
	assert.Equal(t, "Hello world\nnext", result.Pages[0].Text)
	assert.Equal(t, "", result.Pages[1].Text)
	assert.Equal(t, "Hello world\nnext\f", result.ToText())
}

func TestExtractor_Info(t *testing.T) {
	doc := &fakeDocument{pages: []*pdftables.PageContent{{Number: 1}, {Number: 2}}}

	info, err := pdftables.NewExtractor(nil).Info(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 2, info.PageCount)
	assert.Empty(t, doc.loaded, "info does not load pages")
}

func TestTableResult_ToMarkdown(t *testing.T) {
	result := &pdftables.TableResult{
		Pages: []pdftables.PageTables{
			{Num: 1, Tables: [][][]string{{{"Name", "Qty"}, {"Apples"}}}},
			{Num: 2},
		},
		Total: 2,
	}

	md := result.ToMarkdown()
	assert.Contains(t, md, "## Page 1")
	assert.NotContains(t, md, "Page 2", "pages without tables are omitted")
	assert.Contains(t, md, "Name")
	assert.Contains(t, md, "Apples")

	var tableLines int
	for _, line := range strings.Split(md, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "|") {
			tableLines++
		}
	}
	assert.Equal(t, 3, tableLines, "header, separator and one row")
}

func TestConfig_Defaults(t *testing.T) {
	config := pdftables.DefaultConfig()
	assert.Equal(t, pdftables.DefaultTolerance, config.Tolerance)
	assert.Equal(t, pdftables.DefaultMinRulingSize, config.MinRulingSize)
	assert.Equal(t, 1.0, config.Scale)
	assert.Positive(t, config.Concurrency)

	filled := pdftables.NewExtractorWithConfig(nil, pdftables.Config{VerifyGrids: true}).Config()
	assert.Equal(t, pdftables.DefaultTolerance, filled.Tolerance)
	assert.Equal(t, pdftables.DefaultMinRulingSize, filled.MinRulingSize)
	assert.Equal(t, 1.0, filled.Scale)
	assert.True(t, filled.VerifyGrids)
}
