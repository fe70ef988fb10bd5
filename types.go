package pdftables

import (
	"context"
	"strings"
)

// TextItem is a run of text positioned by its baseline transform.
type TextItem struct {
	Str       string
	Transform Matrix
	HasEOL    bool
}

// PageContent is everything the table pipeline needs from one page.
type PageContent struct {
	Number    int // 1-based
	Width     float64
	Height    float64
	Rotation  int // clockwise degrees
	Viewport  Matrix
	Operators []Operator
	TextItems []TextItem
}

// Text joins the page's text items, breaking lines where items end one.
func (p *PageContent) Text() string {
	var b strings.Builder
	for _, item := range p.TextItems {
		b.WriteString(item.Str)
		if item.HasEOL {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Document is a parsed PDF that yields page contents.
type Document interface {
	PageCount() (int, error)

	// Page loads the page at the 0-based index.
	Page(ctx context.Context, index int) (*PageContent, error)

	Close() error
}

// NewViewport returns the transform from PDF user space (origin bottom-left)
// to viewport space (origin top-left) at the given scale.
func NewViewport(height, scale float64) Matrix {
	return Matrix{scale, 0, 0, -scale, 0, height * scale}
}

// NewRotatedViewport is NewViewport for a page displayed with a clockwise
// rotation of 0, 90, 180 or 270 degrees. width and height are the unrotated
// page size. Other rotations are treated as 0.
func NewRotatedViewport(width, height, scale float64, rotation int) Matrix {
	switch ((rotation % 360) + 360) % 360 {
	case 90:
		return Matrix{0, scale, scale, 0, 0, 0}
	case 180:
		return Matrix{-scale, 0, 0, scale, width * scale, 0}
	case 270:
		return Matrix{0, -scale, -scale, 0, height * scale, width * scale}
	}
	return NewViewport(height, scale)
}

// PageTables holds the tables of one page as rows of trimmed cell text.
type PageTables struct {
	Num    int          `json:"num"`
	Tables [][][]string `json:"tables"`
}

// TableResult is the outcome of a table extraction.
type TableResult struct {
	Pages []PageTables `json:"pages"`
	Total int          `json:"total"`
}

// TableCount returns the number of tables over all pages.
func (r *TableResult) TableCount() int {
	n := 0
	for _, p := range r.Pages {
		n += len(p.Tables)
	}
	return n
}

// PageText is the joined text of one page.
type PageText struct {
	Num  int    `json:"num"`
	Text string `json:"text"`
}

// TextResult is the outcome of a text extraction.
type TextResult struct {
	Pages []PageText `json:"pages"`
	Total int        `json:"total"`
}

// DocumentInfo contains basic information about a PDF document.
type DocumentInfo struct {
	PageCount int `json:"pageCount"`
}
