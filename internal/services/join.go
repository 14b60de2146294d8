package services

import (
	"sort"
	"time"

	"fleet-analytics/internal/models"
)

// Join left-joins trips to the fleet registry on plate and then to pricing on
// destination and date. It returns exactly one enriched record per trip, in
// input order, with derived fields filled. Inputs are not modified.
//
// Fleet duplicates are resolved first-wins. When several prices cover the
// same destination and day, the one with the latest ValidFrom wins; entries
// without a ValidFrom rank last and ties keep input order.
func Join(trips []models.TripRecord, fleet []models.FleetEntry, pricing []models.PricingEntry) []models.EnrichedRecord {
	byPlate := make(map[string]*models.FleetEntry, len(fleet))
	for i := range fleet {
		plate := fleet[i].Plate
		if plate == "" || plate == models.MissingText {
			continue
		}
		if _, seen := byPlate[plate]; seen {
			continue
		}
		entry := fleet[i]
		byPlate[plate] = &entry
	}

	prices := newPriceIndex(pricing)

	out := make([]models.EnrichedRecord, len(trips))
	for i, trip := range trips {
		rec := models.EnrichedRecord{TripRecord: trip}

		if trip.Plate != models.MissingText {
			rec.Fleet = byPlate[trip.Plate]
		}
		if rec.VehicleTag == "" || rec.VehicleTag == models.MissingText {
			rec.VehicleTag = models.MissingText
			if rec.Fleet != nil && rec.Fleet.Tag != "" {
				rec.VehicleTag = rec.Fleet.Tag
			}
		}

		if p, ok := prices.resolve(trip.Destination, trip.DateOnly); ok {
			rec.PricePerUnit = p.PricePerUnit
			rec.PriceMatched = true
		}

		Derive(&rec)
		out[i] = rec
	}
	return out
}

// Derive fills shift, weekday index and revenue from already-joined fields
func Derive(rec *models.EnrichedRecord) {
	rec.Shift = models.ClassifyShift(rec.HourOfDay)
	rec.WeekdayIndex = models.WeekdayIndex(rec.Timestamp)
	rec.Revenue = rec.Volume * rec.PricePerUnit
}

// priceIndex holds each destination's prices sorted by ValidFrom descending
type priceIndex map[string][]models.PricingEntry

func newPriceIndex(pricing []models.PricingEntry) priceIndex {
	idx := make(priceIndex)
	for _, p := range pricing {
		idx[p.Destination] = append(idx[p.Destination], p)
	}
	for _, entries := range idx {
		sort.SliceStable(entries, func(a, b int) bool {
			return laterStart(entries[a].ValidFrom, entries[b].ValidFrom)
		})
	}
	return idx
}

// laterStart orders start dates descending with open starts last
func laterStart(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return !a.IsZero() && b.IsZero()
	}
	return a.After(b)
}

func (idx priceIndex) resolve(destination string, day time.Time) (models.PricingEntry, bool) {
	for _, p := range idx[destination] {
		if p.Covers(day) {
			return p, true
		}
	}
	return models.PricingEntry{}, false
}
