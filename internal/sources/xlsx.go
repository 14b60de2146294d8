package sources

import (
	"context"
	"fmt"
	"net/http"

	"github.com/xuri/excelize/v2"
)

// XLSXSource reads one sheet of a workbook from a URL or a file
type XLSXSource struct {
	SourceName string
	Location   string
	// Sheet defaults to the first sheet of the workbook
	Sheet  string
	Client *http.Client
}

func (s *XLSXSource) Name() string { return s.SourceName }

// Fetch downloads the workbook and returns the sheet's rows
func (s *XLSXSource) Fetch(ctx context.Context) (*Table, error) {
	rc, err := openLocation(ctx, s.Client, s.Location)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	f, err := excelize.OpenReader(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := s.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook %s has no sheets", s.Location)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q has no header row", sheet)
	}
	return fromRecords(rows), nil
}
