package sources

import (
	"strings"
)

// Table is a header row plus string cells, the shape every feed is reduced to
type Table struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of data rows
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// NormalizeHeader folds a header for matching: trimmed, lower-cased, inner whitespace collapsed
func NormalizeHeader(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Index returns the position of the first column matching any of names,
// compared after NormalizeHeader, or -1 when none is present.
func (t *Table) Index(names ...string) int {
	if t == nil {
		return -1
	}
	for _, name := range names {
		want := NormalizeHeader(name)
		for i, col := range t.Columns {
			if NormalizeHeader(col) == want {
				return i
			}
		}
	}
	return -1
}

// Value returns the cell at column idx of row, or "" when idx is -1 or the row is short
func (t *Table) Value(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// fromRecords turns raw records into a Table, treating the first record as header.
// Rows that are entirely blank are skipped.
func fromRecords(records [][]string) *Table {
	if len(records) == 0 {
		return &Table{}
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	t := &Table{Columns: header, Rows: make([][]string, 0, len(records)-1)}
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		row := make([]string, len(rec))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t
}

func isBlank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
