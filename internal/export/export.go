package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	ierr "sop-portal/portal-backend/internal/errors"
)

// Format is an export file format.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatExcel Format = "xlsx"
	FormatPDF   Format = "pdf"
)

// ParseFormat accepts a format name, defaulting to CSV when empty.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatExcel, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", ierr.NewErrorf("unsupported export format %q", s).
		WithHint("Format must be one of csv, xlsx or pdf").
		Mark(ierr.ErrValidation)
}

func (f Format) ContentType() string {
	switch f {
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

// FileName returns base with the extension of f.
func (f Format) FileName(base string) string {
	return fmt.Sprintf("%s.%s", base, f)
}

// Column is one output column. Key indexes the row maps; Label is the header.
type Column struct {
	Key   string
	Label string
}

// Table is a titled set of rows in column order.
type Table struct {
	Title       string
	Columns     []Column
	Rows        []map[string]interface{}
	GeneratedAt time.Time
}

func (t Table) keys() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Key
	}
	return out
}

func (t Table) labels() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Label
		if out[i] == "" {
			out[i] = c.Key
		}
	}
	return out
}

// Write renders table to w in format f.
func Write(w io.Writer, f Format, table Table) error {
	var err error
	switch f {
	case FormatCSV:
		err = writeCSV(w, table)
	case FormatExcel:
		err = writeExcel(w, table)
	case FormatPDF:
		err = writePDF(w, table)
	default:
		_, err = ParseFormat(string(f))
		return err
	}
	if err != nil {
		return ierr.WithError(err).
			WithMessagef("failed to write %s export", f).
			Mark(ierr.ErrSystem)
	}
	return nil
}
