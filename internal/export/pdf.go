package export

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFOptions configures PDF generation
type PDFOptions struct {
	PageSize       string
	Orientation    string // portrait, landscape
	DateFormat     string
	FontFamily     string
	FontSize       float64
	HeaderFontSize float64
	TitleFontSize  float64
	HeaderColor    PDFColor
	AlternateRows  bool
	AlternateColor PDFColor
	Margins        PDFMargins
}

// PDFColor represents an RGB color
type PDFColor struct {
	R, G, B int
}

type PDFMargins struct {
	Left, Right, Top, Bottom float64
}

func DefaultPDFOptions() PDFOptions {
	return PDFOptions{
		PageSize:       "A4",
		Orientation:    "landscape",
		DateFormat:     "2006-01-02",
		FontFamily:     "Arial",
		FontSize:       9,
		HeaderFontSize: 10,
		TitleFontSize:  16,
		HeaderColor:    PDFColor{R: 68, G: 114, B: 196},
		AlternateRows:  true,
		AlternateColor: PDFColor{R: 242, G: 242, B: 242},
		Margins:        PDFMargins{Left: 10, Right: 10, Top: 15, Bottom: 15},
	}
}

// PDFGenerator renders a table as a paginated PDF.
type PDFGenerator struct {
	pdf     *gofpdf.Fpdf
	options PDFOptions
}

func NewPDFGenerator(options PDFOptions) *PDFGenerator {
	orientation := "P"
	if options.Orientation == "landscape" {
		orientation = "L"
	}

	pdf := gofpdf.New(orientation, "mm", options.PageSize, "")
	pdf.SetMargins(options.Margins.Left, options.Margins.Top, options.Margins.Right)
	pdf.SetAutoPageBreak(true, options.Margins.Bottom)

	g := &PDFGenerator{pdf: pdf, options: options}
	g.setFooter()
	return g
}

func (g *PDFGenerator) Generate(table Table) error {
	g.pdf.AddPage()
	g.addTitle(table.Title)
	g.addDate(table.GeneratedAt)
	g.pdf.Ln(6)

	keys, labels := table.keys(), table.labels()
	widths := g.columnWidths(keys, labels, table.Rows)
	g.addTableHeader(labels, widths)
	g.addTableData(keys, labels, table.Rows, widths)

	g.pdf.Ln(4)
	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
	g.pdf.CellFormat(0, 6, fmt.Sprintf("Total records: %d", len(table.Rows)), "", 1, "L", false, 0, "")
	return g.pdf.Error()
}

func (g *PDFGenerator) WriteTo(w io.Writer) error {
	return g.pdf.Output(w)
}

func (g *PDFGenerator) addTitle(title string) {
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.TitleFontSize)
	g.pdf.SetTextColor(0, 0, 0)
	g.pdf.CellFormat(0, 10, title, "", 1, "C", false, 0, "")
}

func (g *PDFGenerator) addDate(at time.Time) {
	if at.IsZero() {
		return
	}
	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize-1)
	g.pdf.SetTextColor(128, 128, 128)
	g.pdf.CellFormat(0, 6, "Generated: "+at.Format(g.options.DateFormat+" 15:04"), "", 1, "R", false, 0, "")
}

// columnWidths sizes columns to their widest value, scaled down to fit the page.
func (g *PDFGenerator) columnWidths(keys, labels []string, rows []map[string]interface{}) []float64 {
	pageWidth, _ := g.pdf.GetPageSize()
	available := pageWidth - g.options.Margins.Left - g.options.Margins.Right

	widths := make([]float64, len(keys))
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.HeaderFontSize)
	for i, label := range labels {
		widths[i] = g.pdf.GetStringWidth(label) + 4
	}

	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
	for _, row := range rows[:min(len(rows), 100)] {
		for i, key := range keys {
			if w := g.pdf.GetStringWidth(g.formatValue(row[key])) + 4; w > widths[i] {
				widths[i] = w
			}
		}
	}

	total := 0.0
	for _, w := range widths {
		total += w
	}
	if total > available {
		scale := available / total
		for i := range widths {
			widths[i] *= scale
		}
	}
	return widths
}

func (g *PDFGenerator) addTableHeader(labels []string, widths []float64) {
	g.pdf.SetFont(g.options.FontFamily, "B", g.options.HeaderFontSize)
	c := g.options.HeaderColor
	g.pdf.SetFillColor(c.R, c.G, c.B)
	g.pdf.SetTextColor(255, 255, 255)
	for i, label := range labels {
		g.pdf.CellFormat(widths[i], 8, label, "1", 0, "C", true, 0, "")
	}
	g.pdf.Ln(-1)
}

func (g *PDFGenerator) addTableData(keys, labels []string, rows []map[string]interface{}, widths []float64) {
	g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
	g.pdf.SetTextColor(0, 0, 0)

	_, pageHeight := g.pdf.GetPageSize()
	for i, row := range rows {
		if g.pdf.GetY()+7 > pageHeight-g.options.Margins.Bottom {
			g.pdf.AddPage()
			g.addTableHeader(labels, widths)
			g.pdf.SetFont(g.options.FontFamily, "", g.options.FontSize)
			g.pdf.SetTextColor(0, 0, 0)
		}

		if g.options.AlternateRows && i%2 == 1 {
			c := g.options.AlternateColor
			g.pdf.SetFillColor(c.R, c.G, c.B)
		} else {
			g.pdf.SetFillColor(255, 255, 255)
		}

		for j, key := range keys {
			g.pdf.CellFormat(widths[j], 7, g.fit(g.formatValue(row[key]), widths[j]), "1", 0, "L", true, 0, "")
		}
		g.pdf.Ln(-1)
	}
}

// fit truncates s with an ellipsis until it fits width.
func (g *PDFGenerator) fit(s string, width float64) string {
	if g.pdf.GetStringWidth(s)+2 <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && g.pdf.GetStringWidth(string(runes)+"...")+2 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}

func (g *PDFGenerator) formatValue(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return ""
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Format(g.options.DateFormat)
	case *time.Time:
		if v == nil || v.IsZero() {
			return ""
		}
		return v.Format(g.options.DateFormat)
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (g *PDFGenerator) setFooter() {
	g.pdf.SetFooterFunc(func() {
		g.pdf.SetY(-12)
		g.pdf.SetFont(g.options.FontFamily, "", 8)
		g.pdf.SetTextColor(128, 128, 128)
		g.pdf.CellFormat(0, 10, fmt.Sprintf("Page %d", g.pdf.PageNo()), "", 0, "C", false, 0, "")
	})
}

func writePDF(w io.Writer, table Table) error {
	g := NewPDFGenerator(DefaultPDFOptions())
	if err := g.Generate(table); err != nil {
		return err
	}
	return g.WriteTo(w)
}
