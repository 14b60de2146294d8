package services

import (
	"testing"

	"fleet-analytics/internal/models"
)

func TestJoin(t *testing.T) {
	fleet := []models.FleetEntry{
		{Plate: "AAA1111", Tag: "T1", Company: "ACME", MaxVolume: 20},
		{Plate: "AAA1111", Tag: "T9", Company: "DUPLICATE"},
		{Plate: "CCC3333", Tag: "T3", Company: "GAMA"},
		{Plate: models.MissingText, Tag: "T0", Company: "NOPLATE"},
	}
	pricing := []models.PricingEntry{
		{Destination: "PEDREIRA", PricePerUnit: 10, ValidFrom: day("2024-01-01"), ValidTo: day("2024-12-31")},
		{Destination: "PEDREIRA", PricePerUnit: 12, ValidFrom: day("2024-02-01"), ValidTo: day("2024-03-31")},
		{Destination: "PEDREIRA", PricePerUnit: 5},
		{Destination: "PORTO", PricePerUnit: 7, ValidFrom: day("2024-01-01"), ValidTo: day("2024-01-31")},
	}

	tests := []struct {
		name        string
		trip        models.TripRecord
		checkValues func(*testing.T, models.EnrichedRecord)
	}{
		{
			name: "fleet match is first-wins",
			trip: trip("T1", "AAA1111", "2024-01-15 07:00", "PEDREIRA", "BRITA", 10),
			checkValues: func(t *testing.T, r models.EnrichedRecord) {
				if r.Fleet == nil {
					t.Fatal("Fleet should not be nil")
				}
				if r.Company() != "ACME" {
					t.Errorf("Company() = %v, want %v", r.Company(), "ACME")
				}
				if r.MaxVolume() != 20 {
					t.Errorf("MaxVolume() = %v, want %v", r.MaxVolume(), 20)
				}
			},
		},
		{
			name: "narrower later window wins inside its range",
			trip: trip("T1", "AAA1111", "2024-02-15 07:00", "PEDREIRA", "BRITA", 10),
			checkValues: func(t *testing.T, r models.EnrichedRecord) {
				if r.PricePerUnit != 12 {
					t.Errorf("PricePerUnit = %v, want %v", r.PricePerUnit, 12)
				}
				if r.Revenue != 120 {
					t.Errorf("Revenue = %v, want %v", r.Revenue, 120)
				}
			},
		},
		{
			name: "year window applies outside the narrow one",
			trip: trip("T1", "AAA1111", "2024-01-15 07:00", "PEDREIRA", "BRITA", 10),
			checkValues: func(t *testing.T, r models.EnrichedRecord) {
				if r.PricePerUnit != 10 {
					t.Errorf("PricePerUnit = %v, want %v", r.PricePerUnit, 10)
				}
			},
		},
		{
			name: "window bounds are inclusive",
			trip: trip("T1", "AAA1111", "2024-03-31 23:59", "PEDREIRA", "BRITA", 1),
			checkValues: func(t *testing.T, r models.EnrichedRecord) {
				if r.PricePerUnit != 12 {
					t.Errorf("PricePerUnit = %v, want %v", r.PricePerUnit, 12)
				}
			},
		},
		{
			name: "open-ended entry is the fallback",
			trip: trip("T1", "AAA1111", "2025-06-01 07:00", "PEDREIRA", "BRITA", 10),
			checkValues: func(t *testing.T, r models.EnrichedRecord) {
				if !r.PriceMatched || r.PricePerUnit != 5 {
					t.Errorf("price = %v matched=%v, want 5 matched", r.PricePerUnit, r.PriceMatched)
				}
			},
		},
		{
			name: "no covering price leaves revenue at zero",
			trip: trip("T3", "CCC3333", "2024-02-10 07:00", "PORTO", "AREIA", 8),
			checkValues: func(t *testing.T, r models.EnrichedRecord) {
				if r.PriceMatched {
					t.Error("PriceMatched should be false")
				}
				if r.Revenue != 0 {
					t.Errorf("Revenue = %v, want 0", r.Revenue)
				}
			},
		},
		{
			name: "unknown plate keeps the trip with missing company",
			trip: trip("T7", "ZZZ0000", "2024-01-15 07:00", "PEDREIRA", "BRITA", 3),
			checkValues: func(t *testing.T, r models.EnrichedRecord) {
				if r.Fleet != nil {
					t.Error("Fleet should be nil")
				}
				if r.Company() != models.MissingText {
					t.Errorf("Company() = %v, want %v", r.Company(), models.MissingText)
				}
			},
		},
		{
			name: "missing tag falls back to fleet tag",
			trip: trip(models.MissingText, "CCC3333", "2024-01-15 07:00", "PORTO", "AREIA", 3),
			checkValues: func(t *testing.T, r models.EnrichedRecord) {
				if r.VehicleTag != "T3" {
					t.Errorf("VehicleTag = %v, want %v", r.VehicleTag, "T3")
				}
			},
		},
		{
			name: "missing tag without fleet match stays missing",
			trip: trip("", "ZZZ0000", "2024-01-15 07:00", "PORTO", "AREIA", 3),
			checkValues: func(t *testing.T, r models.EnrichedRecord) {
				if r.VehicleTag != models.MissingText {
					t.Errorf("VehicleTag = %v, want %v", r.VehicleTag, models.MissingText)
				}
			},
		},
		{
			name: "derived shift and weekday",
			trip: trip("T1", "AAA1111", "2024-01-15 18:00", "PEDREIRA", "BRITA", 1),
			checkValues: func(t *testing.T, r models.EnrichedRecord) {
				if r.Shift != models.Shift2 {
					t.Errorf("Shift = %v, want %v", r.Shift, models.Shift2)
				}
				if r.WeekdayIndex != 0 {
					t.Errorf("WeekdayIndex = %v, want 0", r.WeekdayIndex)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Join([]models.TripRecord{tt.trip}, fleet, pricing)
			if len(got) != 1 {
				t.Fatalf("Join() returned %d records, want 1", len(got))
			}
			tt.checkValues(t, got[0])
		})
	}
}

func TestJoin_PreservesCardinalityAndOrder(t *testing.T) {
	trips := []models.TripRecord{
		trip("T2", "BBB2222", "2024-01-16 07:00", "PEDREIRA", "BRITA", 1),
		trip("T1", "AAA1111", "2024-01-15 07:00", "PEDREIRA", "BRITA", 2),
		trip("T1", "AAA1111", "2024-01-15 07:00", "PEDREIRA", "BRITA", 3),
	}
	got := Join(trips, nil, nil)
	if len(got) != len(trips) {
		t.Fatalf("Join() returned %d records, want %d", len(got), len(trips))
	}
	for i := range trips {
		if got[i].Volume != trips[i].Volume {
			t.Errorf("record %d Volume = %v, want %v", i, got[i].Volume, trips[i].Volume)
		}
	}
}

func TestJoin_TiedStartKeepsInputOrder(t *testing.T) {
	pricing := []models.PricingEntry{
		{Destination: "PEDREIRA", PricePerUnit: 3, ValidFrom: day("2024-01-01")},
		{Destination: "PEDREIRA", PricePerUnit: 4, ValidFrom: day("2024-01-01")},
	}
	got := Join([]models.TripRecord{trip("T1", "AAA1111", "2024-01-02 07:00", "PEDREIRA", "BRITA", 1)}, nil, pricing)
	if got[0].PricePerUnit != 3 {
		t.Errorf("PricePerUnit = %v, want %v", got[0].PricePerUnit, 3)
	}
}
