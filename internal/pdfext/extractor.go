// Package pdfext extracts table grids and page text from PDF bytes for
// the import pipeline. It reconstructs tabular rows from positioned text
// fragments; real table structure is not available at this level, so
// cells are split wherever a horizontal gap between fragments is wide
// enough to be a column boundary.
package pdfext

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/worshipplan/server/internal/importer"
)

// minCellGap is the horizontal distance (in points) between two text
// fragments that starts a new cell. Tuned against planning-tool exports.
const minCellGap = 10.0

// Extractor implements importer.PageExtractor over real PDF bytes.
type Extractor struct{}

// New returns a ready Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract pulls row grids and plain text out of every page. The PDF
// library panics on some malformed documents, so extraction runs under a
// recover and reports those as ordinary errors.
func (e *Extractor) Extract(ctx context.Context, data []byte) (out importer.Extraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return importer.Extraction{}, fmt.Errorf("open PDF: %w", err)
	}

	var text strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return importer.Extraction{}, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		if rows, err := page.GetTextByRow(); err == nil && len(rows) > 0 {
			grid := make([][]string, 0, len(rows))
			for _, row := range rows {
				if cells := splitCells(row.Content); len(cells) > 0 {
					grid = append(grid, cells)
				}
			}
			if len(grid) > 0 {
				out.Tables = append(out.Tables, grid)
			}
		}

		if pageText, err := page.GetPlainText(nil); err == nil && pageText != "" {
			text.WriteString(pageText)
			text.WriteString("\n")
		}
	}

	out.Text = text.String()
	return out, nil
}

// splitCells groups a row's positioned fragments into cells. Fragments
// are already ordered left to right; a gap wider than minCellGap between
// the end of one fragment and the start of the next closes the cell.
func splitCells(fragments []pdf.Text) []string {
	var cells []string
	var cell strings.Builder
	var rightEdge float64

	flush := func() {
		if s := strings.TrimSpace(cell.String()); s != "" {
			cells = append(cells, s)
		}
		cell.Reset()
	}

	for i, frag := range fragments {
		if i > 0 && frag.X-rightEdge > minCellGap {
			flush()
		}
		cell.WriteString(frag.S)
		rightEdge = frag.X + frag.W
	}
	flush()

	return cells
}
