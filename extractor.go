package pdftables

import (
	"context"
	"io"
	"time"

	"github.com/klippa-app/go-pdfium"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ProcessingMetrics contains timing and statistics for a table extraction
type ProcessingMetrics struct {
	TotalTime       time.Duration
	PageExtractions []PageMetrics
	Statistics      DocumentStatistics
}

// PageMetrics contains timing for a single page
type PageMetrics struct {
	PageNumber int
	Load       time.Duration
	Compute    time.Duration
	Tables     int
}

// DocumentStatistics contains document-level statistics
type DocumentStatistics struct {
	TotalPages  int
	TotalTables int
	TotalCells  int
	TotalItems  int
}

// Extractor reconstructs ruled tables from PDF documents.
type Extractor struct {
	instance pdfium.Pdfium
	config   Config
}

// NewExtractor creates an extractor with the default configuration.
// instance may be nil when only Document values are passed in.
func NewExtractor(instance pdfium.Pdfium) *Extractor {
	return &Extractor{
		instance: instance,
		config:   DefaultConfig(),
	}
}

// NewExtractorWithConfig creates an extractor with a custom configuration.
// Zero numeric fields fall back to their defaults.
func NewExtractorWithConfig(instance pdfium.Pdfium, config Config) *Extractor {
	def := DefaultConfig()
	if config.Tolerance == 0 {
		config.Tolerance = def.Tolerance
	}
	if config.MinRulingSize == 0 {
		config.MinRulingSize = def.MinRulingSize
	}
	if config.Scale == 0 {
		config.Scale = def.Scale
	}
	if config.Concurrency == 0 {
		config.Concurrency = def.Concurrency
	}
	return &Extractor{
		instance: instance,
		config:   config,
	}
}

// Config returns the extractor configuration.
func (e *Extractor) Config() Config {
	return e.config
}

// TablesFromFile extracts the tables of every page of a PDF file.
func (e *Extractor) TablesFromFile(ctx context.Context, filePath string) (*TableResult, error) {
	doc, err := OpenFile(e.instance, filePath, e.config)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	return e.Tables(ctx, doc)
}

// TablesFromBytes extracts the tables of every page of an in-memory PDF.
func (e *Extractor) TablesFromBytes(ctx context.Context, pdfBytes []byte) (*TableResult, error) {
	doc, err := OpenBytes(e.instance, pdfBytes, e.config)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	return e.Tables(ctx, doc)
}

// TablesFromReader extracts the tables of every page of a PDF read from reader.
func (e *Extractor) TablesFromReader(ctx context.Context, reader io.ReadSeeker) (*TableResult, error) {
	doc, err := OpenReader(e.instance, reader, e.config)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	return e.Tables(ctx, doc)
}

// Tables extracts the tables of every page of doc.
func (e *Extractor) Tables(ctx context.Context, doc Document) (*TableResult, error) {
	return e.TablesInRange(ctx, doc, 1, 0)
}

// TablesInRange extracts the tables of pages first through last, 1-based and
// inclusive. A first below 1 starts at the first page; a last below 1 or past
// the end stops at the last page.
func (e *Extractor) TablesInRange(ctx context.Context, doc Document, first, last int) (*TableResult, error) {
	if err := e.config.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	startTime := time.Now()
	log := e.config.logger()

	count, err := doc.PageCount()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get page count")
	}
	if count == 0 {
		return &TableResult{Pages: []PageTables{}}, nil
	}

	if first < 1 {
		first = 1
	}
	if last < 1 || last > count {
		last = count
	}
	if first > last {
		return nil, errors.New("invalid page range: start page must be <= end page")
	}

	// pdfium is not safe for concurrent use, so pages load one at a time and
	// only the geometry runs in parallel.
	pages := make([]*PageContent, 0, last-first+1)
	metrics := make([]PageMetrics, 0, last-first+1)
	for i := first; i <= last; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		loadStart := time.Now()
		page, err := doc.Page(ctx, i-1)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to extract page %d", i)
		}
		pages = append(pages, page)
		metrics = append(metrics, PageMetrics{PageNumber: i, Load: time.Since(loadStart)})
	}

	results := make([][]*TableData, len(pages))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.concurrency())
	for idx, page := range pages {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			computeStart := time.Now()
			tables, err := ExtractPageTables(page, e.config)
			if err != nil {
				return errors.Wrapf(err, "failed to compute tables on page %d", page.Number)
			}
			results[idx] = tables
			metrics[idx].Compute = time.Since(computeStart)
			metrics[idx].Tables = len(tables)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &TableResult{
		Pages: make([]PageTables, 0, len(pages)),
		Total: count,
	}
	stats := DocumentStatistics{TotalPages: len(pages)}
	for idx, page := range pages {
		grids := make([][][]string, 0, len(results[idx]))
		for _, t := range results[idx] {
			grids = append(grids, t.ToArray())
			stats.TotalCells += t.CellCount()
		}
		stats.TotalTables += len(grids)
		stats.TotalItems += len(page.TextItems)
		result.Pages = append(result.Pages, PageTables{Num: page.Number, Tables: grids})
	}

	if e.config.EnableMetricsLogging {
		logProcessingMetrics(log, ProcessingMetrics{
			TotalTime:       time.Since(startTime),
			PageExtractions: metrics,
			Statistics:      stats,
		})
	}

	return result, nil
}

// ExtractPageTables runs the table pipeline over one page: rulings are
// collected from the operator list, merged, clustered into grids and filled
// with the page text.
func ExtractPageTables(page *PageContent, config Config) ([]*TableData, error) {
	log := config.logger().WithField("page", page.Number)

	store := WalkOperators(page.Operators, page.Viewport, config.walkOptions(log))
	store.Normalize()
	hCount, vCount := len(store.HorizontalLines()), len(store.VerticalLines())

	tables, err := store.TableData()
	if err != nil {
		return nil, err
	}
	FillText(tables, page.TextItems, page.Viewport)

	log.WithFields(logrus.Fields{
		"hlines": hCount,
		"vlines": vCount,
		"tables": len(tables),
	}).Debug("page rulings clustered")

	if config.VerifyGrids {
		for i, t := range tables {
			if !t.Check() {
				log.WithFields(logrus.Fields{
					"table": i,
					"rows":  t.RowCount(),
					"cells": t.CellCount(),
				}).Warn("table cells do not cover the grid")
			}
		}
	}

	return tables, nil
}

// Text returns the joined text of every page of doc.
func (e *Extractor) Text(ctx context.Context, doc Document) (*TextResult, error) {
	count, err := doc.PageCount()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get page count")
	}

	result := &TextResult{
		Pages: make([]PageText, 0, count),
		Total: count,
	}
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := doc.Page(ctx, i)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to extract page %d", i+1)
		}
		result.Pages = append(result.Pages, PageText{Num: page.Number, Text: page.Text()})
	}
	return result, nil
}

// Info returns basic information about doc without extracting it.
func (e *Extractor) Info(ctx context.Context, doc Document) (*DocumentInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	count, err := doc.PageCount()
	if err != nil {
		return nil, errors.Wrap(err, "failed to get page count")
	}
	return &DocumentInfo{PageCount: count}, nil
}

// logProcessingMetrics logs one summary entry and one entry per page.
func logProcessingMetrics(log *logrus.Logger, metrics ProcessingMetrics) {
	for _, pm := range metrics.PageExtractions {
		log.WithFields(logrus.Fields{
			"page":    pm.PageNumber,
			"load":    pm.Load.Round(time.Microsecond),
			"compute": pm.Compute.Round(time.Microsecond),
			"tables":  pm.Tables,
		}).Info("page processed")
	}

	fields := logrus.Fields{
		"total_time": metrics.TotalTime.Round(time.Millisecond),
		"pages":      metrics.Statistics.TotalPages,
		"tables":     metrics.Statistics.TotalTables,
		"cells":      metrics.Statistics.TotalCells,
		"text_items": metrics.Statistics.TotalItems,
	}
	if n := len(metrics.PageExtractions); n > 0 {
		fields["avg_per_page"] = (metrics.TotalTime / time.Duration(n)).Round(time.Microsecond)
	}
	log.WithFields(fields).Info("table extraction metrics")
}
