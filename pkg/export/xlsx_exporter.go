package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// XLSXExporter renders datasets and grids as spreadsheet workbooks.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render writes the dataset to a single sheet with a header row.
func (e *XLSXExporter) Render(data Dataset, sheet string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	f, name, err := newWorkbook(sheet)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]interface{}, len(data.Headers))
	for i, h := range data.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return nil, fmt.Errorf("write xlsx header: %w", err)
	}
	for i, record := range data.Records() {
		cells := make([]interface{}, len(record))
		for j, v := range record {
			cells[j] = v
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(name, cell, &cells); err != nil {
			return nil, fmt.Errorf("write xlsx row %d: %w", i+1, err)
		}
	}
	return workbookBytes(f)
}

// RenderGrid writes a title row, the column headers and one row per grid row.
// Cells wrap so multi-line entries stay readable.
func (e *XLSXExporter) RenderGrid(grid Grid) ([]byte, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	f, name, err := newWorkbook(grid.Title)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	lastCol, _ := excelize.CoordinatesToCellName(len(grid.ColumnHeaders)+1, 1)
	if err := f.SetCellValue(name, "A1", grid.Title); err != nil {
		return nil, fmt.Errorf("write xlsx title: %w", err)
	}
	if err := f.MergeCell(name, "A1", lastCol); err != nil {
		return nil, fmt.Errorf("merge xlsx title: %w", err)
	}

	header := make([]interface{}, 0, len(grid.ColumnHeaders)+1)
	header = append(header, grid.Corner)
	for _, h := range grid.ColumnHeaders {
		header = append(header, h)
	}
	if err := f.SetSheetRow(name, "A2", &header); err != nil {
		return nil, fmt.Errorf("write xlsx header: %w", err)
	}
	for i, label := range grid.RowHeaders {
		row := make([]interface{}, 0, len(grid.ColumnHeaders)+1)
		row = append(row, label)
		for _, cell := range grid.Cells[i] {
			row = append(row, cell)
		}
		start, _ := excelize.CoordinatesToCellName(1, i+3)
		if err := f.SetSheetRow(name, start, &row); err != nil {
			return nil, fmt.Errorf("write xlsx row %s: %w", label, err)
		}
		if err := f.SetRowHeight(name, i+3, 15*float64(grid.MaxLines(i))); err != nil {
			return nil, fmt.Errorf("size xlsx row %s: %w", label, err)
		}
	}

	if err := styleGrid(f, name, len(grid.ColumnHeaders)+1, len(grid.RowHeaders)+2); err != nil {
		return nil, err
	}
	return workbookBytes(f)
}

func styleGrid(f *excelize.File, sheet string, cols, rows int) error {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	body, err := f.NewStyle(&excelize.Style{
		Border:    border,
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return fmt.Errorf("create xlsx style: %w", err)
	}
	title, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("create xlsx style: %w", err)
	}

	lastTitle, _ := excelize.CoordinatesToCellName(cols, 1)
	if err := f.SetCellStyle(sheet, "A1", lastTitle, title); err != nil {
		return fmt.Errorf("style xlsx title: %w", err)
	}
	lastCell, _ := excelize.CoordinatesToCellName(cols, rows)
	if err := f.SetCellStyle(sheet, "A2", lastCell, body); err != nil {
		return fmt.Errorf("style xlsx grid: %w", err)
	}
	lastColName, _ := excelize.ColumnNumberToName(cols)
	if err := f.SetColWidth(sheet, "B", lastColName, 18); err != nil {
		return fmt.Errorf("size xlsx columns: %w", err)
	}
	return nil
}

func newWorkbook(sheet string) (*excelize.File, string, error) {
	f := excelize.NewFile()
	name := SheetName(sheet)
	if err := f.SetSheetName(f.GetSheetName(0), name); err != nil {
		f.Close()
		return nil, "", fmt.Errorf("name xlsx sheet: %w", err)
	}
	return f, name, nil
}

func workbookBytes(f *excelize.File) ([]byte, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// SheetName strips characters Excel rejects and truncates to 31 runes.
func SheetName(raw string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '-'
		}
		return r
	}, strings.TrimSpace(raw))
	name = strings.Trim(name, "'")
	if name == "" {
		return "Sheet1"
	}
	if runes := []rune(name); len(runes) > maxSheetName {
		name = string(runes[:maxSheetName])
	}
	return name
}
