package export

import (
	"fleet-analytics/internal/models"
	"fleet-analytics/internal/services"
)

// MatrixTable renders matrix rows with roll-ups emphasized
func MatrixTable(rows []models.MatrixRow) Table {
	kinds := []Kind{
		KindDate, KindText, KindDecimal, KindDecimal, KindDecimal, KindDecimal,
		KindInteger, KindInteger, KindInteger, KindInteger, KindInteger, KindDecimal,
	}
	t := Table{
		Name:       "matrix",
		Title:      "Daily Vehicle Matrix",
		Columns:    make([]Column, len(services.MatrixHeaders)),
		Rows:       make([][]any, len(rows)),
		Emphasized: make([]bool, len(rows)),
	}
	for i, h := range services.MatrixHeaders {
		t.Columns[i] = Column{Name: h, Kind: kinds[i]}
	}
	for i, r := range rows {
		t.Rows[i] = services.MatrixValues(r)
		t.Emphasized[i] = r.IsRollup()
	}
	return t
}

// RecordsTable renders enriched trips one per row
func RecordsTable(records []models.EnrichedRecord) Table {
	t := Table{
		Name:  "trips",
		Title: "Trips",
		Columns: []Column{
			{Name: "Date", Kind: KindDate},
			{Name: "Time", Kind: KindText},
			{Name: "Vehicle Tag", Kind: KindText},
			{Name: "Plate", Kind: KindText},
			{Name: "Company", Kind: KindText},
			{Name: "Destination", Kind: KindText},
			{Name: "Material", Kind: KindText},
			{Name: "Volume", Kind: KindDecimal},
			{Name: "Shift", Kind: KindText},
			{Name: "Price per Unit", Kind: KindDecimal},
			{Name: "Revenue", Kind: KindDecimal},
			{Name: "Max Volume", Kind: KindDecimal},
		},
		Rows: make([][]any, len(records)),
	}
	for i := range records {
		r := &records[i]
		t.Rows[i] = []any{
			r.DateOnly.Format(models.DateLayout),
			r.Timestamp.Format("15:04"),
			r.VehicleTag,
			r.Plate,
			r.Company(),
			r.Destination,
			r.Material,
			r.Volume,
			r.Shift,
			r.PricePerUnit,
			r.Revenue,
			r.MaxVolume(),
		}
	}
	return t
}

// BucketsTable renders a chart summary
func BucketsTable(name, title string, buckets []services.Bucket) Table {
	t := Table{
		Name:  name,
		Title: title,
		Columns: []Column{
			{Name: "Key", Kind: KindText},
			{Name: "Label", Kind: KindText},
			{Name: "Volume", Kind: KindDecimal},
			{Name: "Trips", Kind: KindInteger},
			{Name: "Revenue", Kind: KindDecimal},
		},
		Rows: make([][]any, len(buckets)),
	}
	for i, b := range buckets {
		t.Rows[i] = []any{b.Key, b.Label, b.Volume, b.Trips, b.Revenue}
	}
	return t
}

// KPIsTable renders the headline numbers as name/value pairs
func KPIsTable(k services.KPIs, m services.MatrixKPIs) Table {
	return Table{
		Name:    "kpis",
		Title:   "Key Indicators",
		Columns: []Column{{Name: "Indicator", Kind: KindText}, {Name: "Value", Kind: KindDecimal}},
		Rows: [][]any{
			{"Total Volume", k.TotalVolume},
			{"Total Revenue", k.TotalRevenue},
			{"Trips", float64(k.TripCount)},
			{"Vehicle Tags", float64(k.UniqueTags)},
			{"Plates", float64(k.UniquePlates)},
			{"Days in Analysis", float64(m.DaysInAnalysis)},
		},
	}
}
