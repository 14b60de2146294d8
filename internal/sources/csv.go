package sources

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
)

// CSVSource reads a CSV-with-header from a URL (e.g. a spreadsheet export link) or a file
type CSVSource struct {
	SourceName string
	Location   string
	Client     *http.Client
	// Comma forces a delimiter; zero sniffs between ',' and ';'
	Comma rune
}

func (s *CSVSource) Name() string { return s.SourceName }

// Fetch downloads and parses the whole file
func (s *CSVSource) Fetch(ctx context.Context) (*Table, error) {
	rc, err := openLocation(ctx, s.Client, s.Location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	body, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.Location, err)
	}
	return ParseCSV(body, s.Comma)
}

// ParseCSV parses CSV bytes into a Table. comma of zero sniffs the delimiter from the header line.
func ParseCSV(body []byte, comma rune) (*Table, error) {
	body = bytes.TrimPrefix(body, []byte("\ufeff"))
	if comma == 0 {
		comma = sniffDelimiter(body)
	}

	r := csv.NewReader(bytes.NewReader(body))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no header row")
	}
	return fromRecords(records), nil
}

func sniffDelimiter(body []byte) rune {
	line := body
	if i := bytes.IndexByte(body, '\n'); i >= 0 {
		line = body[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}
