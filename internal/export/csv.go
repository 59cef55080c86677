package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// CSVOptions configures CSV output.
type CSVOptions struct {
	Delimiter      rune
	UseCRLF        bool
	DateFormat     string
	NullValue      string
	BoolTrueValue  string
	BoolFalseValue string
}

func DefaultCSVOptions() CSVOptions {
	return CSVOptions{
		Delimiter:      ',',
		DateFormat:     "2006-01-02",
		BoolTrueValue:  "true",
		BoolFalseValue: "false",
	}
}

// CSVExporter writes map rows in column order.
type CSVExporter struct {
	writer  *csv.Writer
	options CSVOptions
}

func NewCSVExporter(w io.Writer, options CSVOptions) *CSVExporter {
	writer := csv.NewWriter(w)
	writer.Comma = options.Delimiter
	writer.UseCRLF = options.UseCRLF
	return &CSVExporter{writer: writer, options: options}
}

func (e *CSVExporter) WriteHeader(labels []string) error {
	if err := e.writer.Write(labels); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

func (e *CSVExporter) WriteMapRows(rows []map[string]interface{}, columns []string) error {
	for _, row := range rows {
		record := make([]string, len(columns))
		for i, col := range columns {
			record[i] = e.formatValue(row[col])
		}
		if err := e.writer.Write(record); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	return nil
}

func (e *CSVExporter) Flush() error {
	e.writer.Flush()
	return e.writer.Error()
}

func (e *CSVExporter) formatValue(val interface{}) string {
	switch v := val.(type) {
	case nil:
		return e.options.NullValue
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case bool:
		if v {
			return e.options.BoolTrueValue
		}
		return e.options.BoolFalseValue
	case time.Time:
		if v.IsZero() {
			return e.options.NullValue
		}
		return v.Format(e.options.DateFormat)
	case *time.Time:
		if v == nil || v.IsZero() {
			return e.options.NullValue
		}
		return v.Format(e.options.DateFormat)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func writeCSV(w io.Writer, table Table) error {
	exporter := NewCSVExporter(w, DefaultCSVOptions())
	if err := exporter.WriteHeader(table.labels()); err != nil {
		return err
	}
	if err := exporter.WriteMapRows(table.Rows, table.keys()); err != nil {
		return err
	}
	return exporter.Flush()
}
