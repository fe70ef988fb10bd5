package pdftables

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ivanvanderbyl/markdown"
)

// ToMarkdown renders every extracted table as a markdown table, grouped
// under one heading per page. Pages without tables are omitted.
func (r *TableResult) ToMarkdown() string {
	var buf bytes.Buffer
	md := markdown.NewMarkdown(&buf)

	for _, page := range r.Pages {
		if len(page.Tables) == 0 {
			continue
		}
		md.H2(fmt.Sprintf("Page %d", page.Num))
		md.LF()
		for _, table := range page.Tables {
			convertTableToMarkdown(md, table)
			md.LF()
		}
	}

	if err := md.Build(); err != nil {
		// If there's an error building the markdown, fall back to empty string
		return ""
	}

	return buf.String()
}

// convertTableToMarkdown writes one grid. The first row is the header and
// every row is padded to the widest one, since spanned cells leave rows short.
func convertTableToMarkdown(md *markdown.Markdown, table [][]string) {
	if len(table) == 0 {
		return
	}

	numCols := 0
	for _, row := range table {
		numCols = max(numCols, len(row))
	}
	if numCols == 0 {
		return
	}

	var header []string
	var rows [][]string
	for rowIdx, row := range table {
		cells := make([]string, numCols)
		for colIdx := range row {
			cells[colIdx] = strings.ReplaceAll(row[colIdx], "\n", " ")
		}

		if rowIdx == 0 {
			header = cells
		} else {
			rows = append(rows, cells)
		}
	}

	// If we only have a header and no data rows, still create a valid table
	if len(rows) == 0 {
		rows = [][]string{make([]string, numCols)}
	}

	md.Table(markdown.TableSet{
		Header: header,
		Rows:   rows,
	})
}

// ToText joins the page texts, separating pages with a form feed.
func (r *TextResult) ToText() string {
	texts := make([]string, 0, len(r.Pages))
	for _, page := range r.Pages {
		texts = append(texts, page.Text)
	}
	return strings.Join(texts, "\f")
}
