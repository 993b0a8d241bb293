package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfLineHeight  = 4.0
	pdfHeaderWidth = 18.0
)

// PDFExporter renders datasets and grids on landscape A4 pages.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := newPDF()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	writeTitle(pdf, tr(title))

	width := usableWidth(pdf) / float64(len(data.Headers))
	pdf.SetFont("Arial", "B", 9)
	for _, header := range data.Headers {
		pdf.CellFormat(width, 7, tr(header), "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, record := range data.Records() {
		for _, value := range record {
			pdf.CellFormat(width, 6, tr(value), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}
	return output(pdf)
}

// RenderGrid draws the grid on a single page with wrapped, centred cells.
func (e *PDFExporter) RenderGrid(grid Grid) ([]byte, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	pdf := newPDF()
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	writeTitle(pdf, tr(grid.Title))

	left, _, _, _ := pdf.GetMargins()
	colWidth := (usableWidth(pdf) - pdfHeaderWidth) / float64(len(grid.ColumnHeaders))

	y := pdf.GetY()
	pdf.SetFont("Arial", "B", 7)
	headerHeight := 3*pdfLineHeight + 2
	drawCell(pdf, left, y, pdfHeaderWidth, headerHeight, tr(grid.Corner))
	for j, header := range grid.ColumnHeaders {
		drawCell(pdf, left+pdfHeaderWidth+float64(j)*colWidth, y, colWidth, headerHeight, tr(header))
	}
	y += headerHeight

	for i, label := range grid.RowHeaders {
		height := float64(grid.MaxLines(i)+1)*pdfLineHeight + 2
		if height < 20 {
			height = 20
		}
		pdf.SetFont("Arial", "B", 8)
		drawCell(pdf, left, y, pdfHeaderWidth, height, tr(label))
		pdf.SetFont("Arial", "", 6)
		for j, cell := range grid.Cells[i] {
			drawCell(pdf, left+pdfHeaderWidth+float64(j)*colWidth, y, colWidth, height, tr(cell))
		}
		y += height
	}
	return output(pdf)
}

func newPDF() *gofpdf.Fpdf {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 10)
	pdf.AddPage()
	return pdf
}

func writeTitle(pdf *gofpdf.Fpdf, title string) {
	if title == "" {
		return
	}
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
	pdf.Ln(3)
}

func usableWidth(pdf *gofpdf.Fpdf) float64 {
	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	return pageWidth - left - right
}

// drawCell outlines a box and writes text centred inside it, wrapping each
// line to the box width.
func drawCell(pdf *gofpdf.Fpdf, x, y, w, h float64, text string) {
	pdf.Rect(x, y, w, h, "D")
	var lines []string
	if text != "" {
		for _, part := range strings.Split(text, "\n") {
			for _, line := range pdf.SplitLines([]byte(part), w-1) {
				lines = append(lines, string(line))
			}
		}
	}
	top := y + (h-float64(len(lines))*pdfLineHeight)/2
	for i, line := range lines {
		pdf.SetXY(x, top+float64(i)*pdfLineHeight)
		pdf.CellFormat(w, pdfLineHeight, line, "", 0, "C", false, 0, "")
	}
}

func output(pdf *gofpdf.Fpdf) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
