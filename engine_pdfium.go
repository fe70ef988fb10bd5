package pdftables

import (
	"context"
	"io"
	"math"
	"strings"

	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/enums"
	"github.com/klippa-app/go-pdfium/references"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/pkg/errors"
	"golang.org/x/text/unicode/norm"
)

// runGapFactor is the horizontal gap, in font sizes, that splits a text run.
const runGapFactor = 0.6

// PdfiumDocument is a Document backed by a pdfium instance. It must not be
// used from more than one goroutine at a time.
type PdfiumDocument struct {
	instance pdfium.Pdfium
	document references.FPDF_DOCUMENT
	scale    float64
}

// OpenFile opens a PDF file. config supplies the password and viewport scale.
func OpenFile(instance pdfium.Pdfium, filePath string, config Config) (*PdfiumDocument, error) {
	return openDocument(instance, &requests.OpenDocument{FilePath: &filePath}, config)
}

// OpenBytes opens an in-memory PDF.
func OpenBytes(instance pdfium.Pdfium, pdfBytes []byte, config Config) (*PdfiumDocument, error) {
	return openDocument(instance, &requests.OpenDocument{File: &pdfBytes}, config)
}

// OpenReader opens a PDF read from reader. The reader is measured by seeking
// to its end and rewound before pdfium reads it.
func OpenReader(instance pdfium.Pdfium, reader io.ReadSeeker, config Config) (*PdfiumDocument, error) {
	size, err := reader.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, errors.Wrap(err, "failed to measure PDF reader")
	}
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "failed to rewind PDF reader")
	}
	return openDocument(instance, &requests.OpenDocument{
		FileReader:     reader,
		FileReaderSize: size,
	}, config)
}

func openDocument(instance pdfium.Pdfium, req *requests.OpenDocument, config Config) (*PdfiumDocument, error) {
	if instance == nil {
		return nil, errors.New("no pdfium instance configured")
	}
	if config.Password != "" {
		password := config.Password
		req.Password = &password
	}

	doc, err := instance.OpenDocument(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open PDF document")
	}

	scale := config.Scale
	if scale <= 0 {
		scale = 1
	}
	return &PdfiumDocument{
		instance: instance,
		document: doc.Document,
		scale:    scale,
	}, nil
}

// PageCount returns the number of pages.
func (d *PdfiumDocument) PageCount() (int, error) {
	pageCount, err := d.instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: d.document,
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to get page count")
	}
	return pageCount.PageCount, nil
}

// Close releases the document.
func (d *PdfiumDocument) Close() error {
	_, err := d.instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: d.document,
	})
	return errors.Wrap(err, "failed to close PDF document")
}

// Page loads the page at index and collects its rulings and text.
func (d *PdfiumDocument) Page(ctx context.Context, index int) (*PageContent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pageResp, err := d.instance.FPDF_LoadPage(&requests.FPDF_LoadPage{
		Document: d.document,
		Index:    index,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load page")
	}
	defer d.instance.FPDF_ClosePage(&requests.FPDF_ClosePage{
		Page: pageResp.Page,
	})
	page := pageResp.Page

	pageWidth, err := d.instance.FPDF_GetPageWidthF(&requests.FPDF_GetPageWidthF{
		Page: requests.Page{
			ByReference: &page,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get page width")
	}
	pageHeight, err := d.instance.FPDF_GetPageHeightF(&requests.FPDF_GetPageHeightF{
		Page: requests.Page{
			ByReference: &page,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get page height")
	}

	rotation := 0
	if rotResp, err := d.instance.FPDFPage_GetRotation(&requests.FPDFPage_GetRotation{
		Page: requests.Page{
			ByReference: &page,
		},
	}); err == nil {
		rotation = int(rotResp.PageRotation) * 90
	}

	ops, err := d.pageOperators(page)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read page objects")
	}
	items, err := d.pageTextItems(page)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read page text")
	}

	// pdfium reports the displayed size; the viewport wants the unrotated one
	width, height := float64(pageWidth.PageWidth), float64(pageHeight.PageHeight)
	if rotation == 90 || rotation == 270 {
		width, height = height, width
	}
	return &PageContent{
		Number:    index + 1,
		Width:     float64(pageWidth.PageWidth),
		Height:    float64(pageHeight.PageHeight),
		Rotation:  rotation,
		Viewport:  NewRotatedViewport(width, height, d.scale, rotation),
		Operators: ops,
		TextItems: items,
	}, nil
}

// pageOperators turns the page objects into an operator list. Path objects
// become painted paths bounded by their segment points, under the object's
// own matrix; form objects wrap their children in save, transform and restore.
func (d *PdfiumDocument) pageOperators(page references.FPDF_PAGE) ([]Operator, error) {
	countResp, err := d.instance.FPDFPage_CountObjects(&requests.FPDFPage_CountObjects{
		Page: requests.Page{
			ByReference: &page,
		},
	})
	if err != nil {
		return nil, err
	}

	var ops []Operator
	for i := 0; i < countResp.Count; i++ {
		objResp, err := d.instance.FPDFPage_GetObject(&requests.FPDFPage_GetObject{
			Page: requests.Page{
				ByReference: &page,
			},
			Index: i,
		})
		if err != nil {
			continue
		}
		ops = d.appendObject(ops, objResp.PageObject)
	}
	return ops, nil
}

func (d *PdfiumDocument) appendObject(ops []Operator, obj references.FPDF_PAGEOBJECT) []Operator {
	typeResp, err := d.instance.FPDFPageObj_GetType(&requests.FPDFPageObj_GetType{
		PageObject: obj,
	})
	if err != nil {
		return ops
	}

	switch typeResp.Type {
	case enums.FPDF_PAGEOBJ_PATH:
		ops = d.appendPath(ops, obj)
	case enums.FPDF_PAGEOBJ_FORM:
		ops = d.appendForm(ops, obj)
	}
	return ops
}

// appendPath emits the path bounded by its segment points in object space,
// wrapped in the object matrix. The points exclude the stroke width, so a
// thin rule stays a degenerate box.
func (d *PdfiumDocument) appendPath(ops []Operator, obj references.FPDF_PAGEOBJECT) []Operator {
	segCountResp, err := d.instance.FPDFPath_CountSegments(&requests.FPDFPath_CountSegments{
		PageObject: obj,
	})
	if err != nil || segCountResp.Count < 2 {
		return ops
	}

	bbox := EmptyBBox()
	for i := 0; i < segCountResp.Count; i++ {
		segResp, err := d.instance.FPDFPath_GetPathSegment(&requests.FPDFPath_GetPathSegment{
			PageObject: obj,
			Index:      i,
		})
		if err != nil {
			continue
		}
		point, err := d.instance.FPDFPathSegment_GetPoint(&requests.FPDFPathSegment_GetPoint{
			PathSegment: segResp.PathSegment,
		})
		if err != nil {
			continue
		}
		bbox = bbox.Extend(float64(point.X), float64(point.Y))
	}

	if bbox.IsEmpty() {
		bounds, ok := d.strokeBounds(obj)
		if !ok {
			return ops
		}
		return append(ops, PathOp(d.paintOp(obj), bounds))
	}
	return append(ops,
		SaveOp(),
		TransformOp(d.objectMatrix(obj)),
		PathOp(d.paintOp(obj), bbox),
		RestoreOp(),
	)
}

// strokeBounds returns the object's bounds with half the stroke width taken
// off each side. Used when the segment points cannot be read.
func (d *PdfiumDocument) strokeBounds(obj references.FPDF_PAGEOBJECT) (BBox, bool) {
	boundsResp, err := d.instance.FPDFPageObj_GetBounds(&requests.FPDFPageObj_GetBounds{
		PageObject: obj,
	})
	if err != nil {
		return BBox{}, false
	}

	half := 0.0
	if widthResp, err := d.instance.FPDFPageObj_GetStrokeWidth(&requests.FPDFPageObj_GetStrokeWidth{
		PageObject: obj,
	}); err == nil {
		half = float64(widthResp.StrokeWidth) / 2
	}

	left, right := float64(boundsResp.Left)+half, float64(boundsResp.Right)-half
	bottom, top := float64(boundsResp.Bottom)+half, float64(boundsResp.Top)-half
	if right < left {
		left, right = (left+right)/2, (left+right)/2
	}
	if top < bottom {
		bottom, top = (bottom+top)/2, (bottom+top)/2
	}
	return EmptyBBox().Extend(left, bottom).Extend(right, top), true
}

// objectMatrix returns the object's transform, or the identity when pdfium
// cannot report it.
func (d *PdfiumDocument) objectMatrix(obj references.FPDF_PAGEOBJECT) Matrix {
	matrixResp, err := d.instance.FPDFPageObj_GetMatrix(&requests.FPDFPageObj_GetMatrix{
		PageObject: obj,
	})
	if err != nil {
		return Identity()
	}
	m := matrixResp.Matrix
	return Matrix{float64(m.A), float64(m.B), float64(m.C), float64(m.D), float64(m.E), float64(m.F)}
}

// paintOp maps the path draw mode to a painting operation. Paths whose draw
// mode cannot be read are treated as stroked.
func (d *PdfiumDocument) paintOp(obj references.FPDF_PAGEOBJECT) PaintOp {
	mode, err := d.instance.FPDFPath_GetDrawMode(&requests.FPDFPath_GetDrawMode{
		PageObject: obj,
	})
	if err != nil {
		return PaintStroke
	}

	switch {
	case mode.Stroke && mode.FillMode == enums.FPDF_FILLMODE_ALTERNATE:
		return PaintEOFillStroke
	case mode.Stroke && mode.FillMode == enums.FPDF_FILLMODE_WINDING:
		return PaintFillStroke
	case mode.Stroke:
		return PaintStroke
	case mode.FillMode == enums.FPDF_FILLMODE_ALTERNATE:
		return PaintEOFill
	case mode.FillMode == enums.FPDF_FILLMODE_WINDING:
		return PaintFill
	}
	return PaintEndPath
}

func (d *PdfiumDocument) appendForm(ops []Operator, form references.FPDF_PAGEOBJECT) []Operator {
	countResp, err := d.instance.FPDFFormObj_CountObjects(&requests.FPDFFormObj_CountObjects{
		PageObject: form,
	})
	if err != nil || countResp.Count == 0 {
		return ops
	}

	ops = append(ops, SaveOp(), TransformOp(d.objectMatrix(form)))
	for i := 0; i < countResp.Count; i++ {
		objResp, err := d.instance.FPDFFormObj_GetObject(&requests.FPDFFormObj_GetObject{
			PageObject: form,
			Index:      uint64(i),
		})
		if err != nil {
			continue
		}
		ops = d.appendObject(ops, objResp.PageObject)
	}
	return append(ops, RestoreOp())
}

// pageTextItems groups the page characters into runs sharing a baseline.
func (d *PdfiumDocument) pageTextItems(page references.FPDF_PAGE) ([]TextItem, error) {
	textPage, err := d.instance.FPDFText_LoadPage(&requests.FPDFText_LoadPage{
		Page: requests.Page{
			ByReference: &page,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to load text page")
	}
	defer d.instance.FPDFText_ClosePage(&requests.FPDFText_ClosePage{
		TextPage: textPage.TextPage,
	})

	charCount, err := d.instance.FPDFText_CountChars(&requests.FPDFText_CountChars{
		TextPage: textPage.TextPage,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to count characters")
	}

	var runs runBuilder
	for i := 0; i < charCount.Count; i++ {
		unicodeRes, err := d.instance.FPDFText_GetUnicode(&requests.FPDFText_GetUnicode{
			TextPage: textPage.TextPage,
			Index:    i,
		})
		if err != nil || unicodeRes.Unicode == 0 {
			continue
		}
		r := rune(unicodeRes.Unicode)
		if r == '\r' || r == '\n' {
			runs.endLine()
			continue
		}

		charBox, err := d.instance.FPDFText_GetCharBox(&requests.FPDFText_GetCharBox{
			TextPage: textPage.TextPage,
			Index:    i,
		})
		if err != nil {
			continue
		}

		fontSize := 12.0
		if fs, err := d.instance.FPDFText_GetFontSize(&requests.FPDFText_GetFontSize{
			TextPage: textPage.TextPage,
			Index:    i,
		}); err == nil && fs.FontSize > 0 {
			fontSize = fs.FontSize
		}

		runs.add(r, charBox.Left, charBox.Right, (charBox.Bottom+charBox.Top)/2, fontSize)
	}
	runs.flush(false)

	return runs.items, nil
}

// runBuilder accumulates characters into text items. A run ends at a line
// break, when the next glyph leaves the run's baseline band, or after a
// horizontal gap wider than runGapFactor font sizes. Item positions are the
// left edge and vertical centre of the first glyph, in PDF user space.
type runBuilder struct {
	items []TextItem

	text     strings.Builder
	open     bool
	x, y     float64
	right    float64
	fontSize float64
}

func (b *runBuilder) add(r rune, left, right, midY, fontSize float64) {
	if r == ' ' {
		if b.open {
			b.text.WriteRune(r)
		}
		return
	}

	if b.open {
		if math.Abs(midY-b.y) > b.fontSize/2 || left-b.right > runGapFactor*b.fontSize {
			b.flush(false)
		}
	}
	if !b.open {
		b.open = true
		b.x, b.y = left, midY
		b.fontSize = fontSize
	}
	b.text.WriteRune(r)
	b.right = right
}

// endLine closes the current run as the last one on its line.
func (b *runBuilder) endLine() {
	if b.open {
		b.flush(true)
		return
	}
	if n := len(b.items); n > 0 {
		b.items[n-1].HasEOL = true
	}
}

func (b *runBuilder) flush(eol bool) {
	if !b.open {
		return
	}
	str := norm.NFKC.String(strings.TrimRight(b.text.String(), " "))
	b.items = append(b.items, TextItem{
		Str:       str,
		Transform: Matrix{1, 0, 0, 1, b.x, b.y},
		HasEOL:    eol,
	})
	b.text.Reset()
	b.open = false
}
