package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"fleet-analytics/internal/models"
	"fleet-analytics/pkg/logging"
	"fleet-analytics/pkg/metrics"
)

func at(value string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", value)
	if err != nil {
		panic(err)
	}
	return t
}

func day(value string) time.Time {
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		panic(err)
	}
	return t
}

func trip(tag, plate, when, destination, material string, volume float64) models.TripRecord {
	return models.NewTripRecord(tag, plate, at(when), destination, material, volume)
}

func newTestDeps() (*logging.StructuredLogger, *metrics.Collector) {
	return logging.NewDiscardLogger(), metrics.NewCollector("test", prometheus.NewRegistry())
}

// scenarioRecords is the two-vehicle, one-day dataset used across tests:
// T1 runs 10 at 07:00 and 5 at 19:00, T2 runs 20 at 08:00.
func scenarioRecords() []models.EnrichedRecord {
	fleet := []models.FleetEntry{
		{Plate: "AAA1111", Tag: "T1", Company: "ACME", MaxVolume: 20},
		{Plate: "BBB2222", Tag: "T2", Company: "BETA", MaxVolume: 25},
	}
	pricing := []models.PricingEntry{
		{Destination: "PEDREIRA", PricePerUnit: 2},
	}
	trips := []models.TripRecord{
		trip("T1", "AAA1111", "2024-01-15 07:00", "PEDREIRA", "BRITA", 10),
		trip("T2", "BBB2222", "2024-01-15 08:00", "PEDREIRA", "AREIA", 20),
		trip("T1", "AAA1111", "2024-01-15 19:00", "PEDREIRA", "BRITA", 5),
	}
	return Join(trips, fleet, pricing)
}

func fullColumns() ColumnSet {
	return ColumnSet{ColDate: true, ColTime: true, ColTag: true, ColPlate: true, ColVolume: true}
}
