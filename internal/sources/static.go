package sources

import (
	"context"
	"strconv"
	"time"

	"fleet-analytics/internal/models"
)

// StaticSource serves a fixed in-memory table
type StaticSource struct {
	SourceName string
	Table      *Table
	Err        error
}

func (s *StaticSource) Name() string { return s.SourceName }

// Fetch returns a copy of the table so callers cannot mutate the fixture
func (s *StaticSource) Fetch(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Table == nil {
		return &Table{}, nil
	}
	out := &Table{Columns: append([]string(nil), s.Table.Columns...)}
	for _, row := range s.Table.Rows {
		out.Rows = append(out.Rows, append([]string(nil), row...))
	}
	return out, nil
}

// PricingDBSource renders the Postgres pricing table as a Table
type PricingDBSource struct {
	SourceName string
	Store      PricingLister
}

func (s *PricingDBSource) Name() string { return s.SourceName }

// Fetch lists every pricing entry. Open validity bounds render as empty cells.
func (s *PricingDBSource) Fetch(ctx context.Context) (*Table, error) {
	entries, err := s.Store.ListPricing(ctx)
	if err != nil {
		return nil, err
	}
	return PricingTable(entries), nil
}

// PricingTable renders entries with the canonical pricing headers
func PricingTable(entries []models.PricingEntry) *Table {
	t := &Table{
		Columns: []string{"destination", "price_per_unit", "valid_from", "valid_to"},
		Rows:    make([][]string, 0, len(entries)),
	}
	for _, e := range entries {
		t.Rows = append(t.Rows, []string{
			e.Destination,
			formatFloat(e.PricePerUnit),
			formatDate(e.ValidFrom),
			formatDate(e.ValidTo),
		})
	}
	return t
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(models.DateLayout)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
