package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"fleet-analytics/internal/services"
	"fleet-analytics/pkg/logging"
	"fleet-analytics/pkg/metrics"
)

// Format is an export file format
type Format string

const (
	FormatCSV    Format = "csv"
	FormatXLSX   Format = "xlsx"
	FormatPDF    Format = "pdf"
	FormatSQLite Format = "sqlite"
)

// Formats lists every supported format
var Formats = []Format{FormatCSV, FormatXLSX, FormatPDF, FormatSQLite}

// ParseFormat maps a format name to a Format
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case FormatCSV, FormatXLSX, FormatPDF, FormatSQLite:
		return f, nil
	case "xls", "excel":
		return FormatXLSX, nil
	case "db", "sqlite3":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", name)
	}
}

// Extension returns the file extension without the dot
func (f Format) Extension() string {
	return string(f)
}

// ContentType returns the MIME type served for the format
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	case FormatSQLite:
		return "application/vnd.sqlite3"
	default:
		return "application/octet-stream"
	}
}

// Kind tells sinks how to render and store a column
type Kind int

const (
	KindText Kind = iota
	// KindDate columns hold YYYY-MM-DD strings
	KindDate
	KindDecimal
	KindInteger
)

// Column is a named, typed table column
type Column struct {
	Name string
	Kind Kind
}

// Table is a named grid of raw values. A nil cell is an absent value.
type Table struct {
	Name    string
	Title   string
	Columns []Column
	Rows    [][]any
	// Emphasized marks rows rendered in bold, aligned with Rows; nil means none
	Emphasized []bool
}

// Headers returns the column names
func (t Table) Headers() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

func (t Table) emphasized(i int) bool {
	return i < len(t.Emphasized) && t.Emphasized[i]
}

// Options controls text rendering of exported values
type Options struct {
	Locale services.Locale
	// Title heads PDF documents
	Title string
}

// FormatCell renders a raw value as display text for column c
func (o Options) FormatCell(c Column, v any) string {
	if v == nil {
		return ""
	}
	switch c.Kind {
	case KindDate:
		if s, ok := v.(string); ok {
			return o.Locale.FormatDate(s)
		}
	case KindDecimal:
		switch n := v.(type) {
		case float64:
			return o.Locale.FormatDecimal(n, 2)
		case int:
			return o.Locale.FormatDecimal(float64(n), 2)
		}
	case KindInteger:
		switch n := v.(type) {
		case int:
			return o.Locale.FormatCount(n)
		case float64:
			return o.Locale.FormatDecimal(n, 0)
		}
	}
	return fmt.Sprint(v)
}

// Exporter writes tables in every supported format
type Exporter struct {
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewExporter creates a new exporter
func NewExporter(logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Exporter {
	return &Exporter{
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Write streams tables to w in format
func (e *Exporter) Write(ctx context.Context, w io.Writer, format Format, tables []Table, opts Options) error {
	startTime := time.Now()

	var err error
	switch format {
	case FormatCSV:
		err = WriteCSV(w, tables, opts)
	case FormatXLSX:
		err = WriteXLSX(w, tables)
	case FormatPDF:
		err = WritePDF(w, tables, opts)
	case FormatSQLite:
		err = streamSQLite(ctx, w, tables)
	default:
		err = fmt.Errorf("unsupported export format %q", format)
	}
	if err != nil {
		e.logger.Error(ctx, "[EXPORT_ERROR] Export failed", logging.Fields{
			"format": string(format),
			"tables": len(tables),
		}, err)
		return err
	}

	e.metrics.ExportsTotal.WithLabelValues(string(format)).Inc()
	e.logger.Info(ctx, "[EXPORT_COMPLETE] Export written", logging.Fields{
		"format":      string(format),
		"tables":      len(tables),
		"duration_ms": time.Since(startTime).Milliseconds(),
	})
	return nil
}

// WriteFile writes tables to path, replacing any existing file
func (e *Exporter) WriteFile(ctx context.Context, path string, format Format, tables []Table, opts Options) error {
	if format == FormatSQLite {
		if err := WriteSQLite(ctx, path, tables); err != nil {
			e.logger.Error(ctx, "[EXPORT_ERROR] Export failed", logging.Fields{
				"format": string(format),
				"path":   path,
			}, err)
			return err
		}
		e.metrics.ExportsTotal.WithLabelValues(string(format)).Inc()
		e.logger.Info(ctx, "[EXPORT_COMPLETE] Export written", logging.Fields{
			"format": string(format),
			"path":   path,
		})
		return nil
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating export file: %w", err)
	}
	if err := e.Write(ctx, file, format, tables, opts); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// streamSQLite builds the database in a temporary file and copies it to w
func streamSQLite(ctx context.Context, w io.Writer, tables []Table) error {
	tmp, err := os.CreateTemp("", "fleet-export-*.sqlite")
	if err != nil {
		return fmt.Errorf("error creating temporary database: %w", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if err := WriteSQLite(ctx, path, tables); err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
