package export

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes each table as a header plus display-formatted rows, tables
// separated by a blank line. Locales with a comma decimal use ';' as delimiter.
func WriteCSV(w io.Writer, tables []Table, opts Options) error {
	writer := csv.NewWriter(w)
	if opts.Locale.Decimal == "," {
		writer.Comma = ';'
	}

	for n, t := range tables {
		if n > 0 {
			if err := writer.Write([]string{}); err != nil {
				return err
			}
		}
		if err := writer.Write(t.Headers()); err != nil {
			return fmt.Errorf("error writing CSV header: %w", err)
		}
		record := make([]string, len(t.Columns))
		for _, row := range t.Rows {
			for i, c := range t.Columns {
				var v any
				if i < len(row) {
					v = row[i]
				}
				record[i] = opts.FormatCell(c, v)
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("error writing CSV row: %w", err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}
