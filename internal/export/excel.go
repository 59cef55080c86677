package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExcelOptions configures workbook output.
type ExcelOptions struct {
	SheetName    string
	FreezeHeader bool
	AutoFilter   bool
	AutoWidth    bool
	DateFormat   string
	HeaderStyle  *ExcelStyleConfig
	DataStyle    *ExcelStyleConfig
}

// ExcelStyleConfig defines style for cells
type ExcelStyleConfig struct {
	FontBold  bool
	FontSize  int
	FontColor string
	FillColor string
	Alignment string
	Border    bool
}

func DefaultExcelOptions() ExcelOptions {
	return ExcelOptions{
		SheetName:    "Register",
		FreezeHeader: true,
		AutoFilter:   true,
		AutoWidth:    true,
		DateFormat:   "2006-01-02",
		HeaderStyle: &ExcelStyleConfig{
			FontBold:  true,
			FontSize:  11,
			FillColor: "4472C4",
			FontColor: "FFFFFF",
			Alignment: "center",
			Border:    true,
		},
		DataStyle: &ExcelStyleConfig{
			FontSize:  11,
			Alignment: "left",
			Border:    true,
		},
	}
}

// ExcelExporter writes one styled sheet.
type ExcelExporter struct {
	file    *excelize.File
	options ExcelOptions
}

func NewExcelExporter(options ExcelOptions) (*ExcelExporter, error) {
	file := excelize.NewFile()
	if err := file.SetSheetName("Sheet1", options.SheetName); err != nil {
		file.Close()
		return nil, err
	}
	return &ExcelExporter{file: file, options: options}, nil
}

func (e *ExcelExporter) WriteHeader(labels []string) error {
	sheet := e.options.SheetName

	styleID, err := e.createStyle(e.options.HeaderStyle)
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	for i, label := range labels {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := e.file.SetCellValue(sheet, cell, label); err != nil {
			return err
		}
		if styleID > 0 {
			e.file.SetCellStyle(sheet, cell, cell, styleID)
		}
	}

	if e.options.FreezeHeader {
		return e.file.SetPanes(sheet, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		})
	}
	return nil
}

// WriteRows writes rows below the header in column order.
func (e *ExcelExporter) WriteRows(rows []map[string]interface{}, columns []string, labels []string) error {
	sheet := e.options.SheetName

	styleID, err := e.createStyle(e.options.DataStyle)
	if err != nil {
		return fmt.Errorf("failed to create data style: %w", err)
	}

	widths := make([]float64, len(columns))
	for i, label := range labels {
		widths[i] = estimateWidth(label)
	}

	for r, row := range rows {
		for c, col := range columns {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := e.file.SetCellValue(sheet, cell, e.cellValue(row[col])); err != nil {
				return fmt.Errorf("failed to set cell value: %w", err)
			}
			if styleID > 0 {
				e.file.SetCellStyle(sheet, cell, cell, styleID)
			}
			if w := estimateWidth(row[col]); w > widths[c] {
				widths[c] = w
			}
		}
	}

	if e.options.AutoFilter && len(rows) > 0 {
		lastCol, _ := excelize.CoordinatesToCellName(len(columns), 1)
		if err := e.file.AutoFilter(sheet, "A1:"+lastCol, nil); err != nil {
			return err
		}
	}

	if e.options.AutoWidth {
		for i, width := range widths {
			// Min width 10, max width 50
			width = min(max(width, 10), 50)
			name, _ := excelize.ColumnNumberToName(i + 1)
			e.file.SetColWidth(sheet, name, name, width)
		}
	}
	return nil
}

func (e *ExcelExporter) WriteTo(w io.Writer) error {
	return e.file.Write(w)
}

func (e *ExcelExporter) Close() error {
	return e.file.Close()
}

func (e *ExcelExporter) createStyle(config *ExcelStyleConfig) (int, error) {
	if config == nil {
		return 0, nil
	}

	style := &excelize.Style{
		Font: &excelize.Font{
			Bold:  config.FontBold,
			Size:  float64(config.FontSize),
			Color: config.FontColor,
		},
	}
	if config.FillColor != "" {
		style.Fill = excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{config.FillColor},
		}
	}
	if config.Alignment != "" {
		style.Alignment = &excelize.Alignment{Horizontal: config.Alignment}
	}
	if config.Border {
		style.Border = []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		}
	}
	return e.file.NewStyle(style)
}

// cellValue renders dates as text so the register reads the same in every format.
func (e *ExcelExporter) cellValue(val interface{}) interface{} {
	switch v := val.(type) {
	case nil:
		return ""
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(e.options.DateFormat)
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		return v.Format(e.options.DateFormat)
	default:
		return v
	}
}

func estimateWidth(val interface{}) float64 {
	if val == nil {
		return 0
	}
	return float64(len(fmt.Sprintf("%v", val))) * 1.2
}

func writeExcel(w io.Writer, table Table) error {
	exporter, err := NewExcelExporter(DefaultExcelOptions())
	if err != nil {
		return err
	}
	defer exporter.Close()

	labels := table.labels()
	if err := exporter.WriteHeader(labels); err != nil {
		return err
	}
	if err := exporter.WriteRows(table.Rows, table.keys(), labels); err != nil {
		return err
	}
	return exporter.WriteTo(w)
}
