package models

import (
	"time"
)

// Shift labels. Hours 06:00-17:59 fall in the first shift.
const (
	Shift1 = "SHIFT_1"
	Shift2 = "SHIFT_2"
)

// Sentinel vehicle tags for rolled-up matrix rows
const (
	TagDayTotal   = "TOTAL_DAY"
	TagGrandTotal = "GRAND_TOTAL"
)

// DateLayout is the canonical rendering of a date-only value
const DateLayout = "2006-01-02"

// TripRecord represents one load/delivery event from the volume feed
type TripRecord struct {
	VehicleTag  string    `json:"vehicle_tag"`
	Plate       string    `json:"plate"`
	Timestamp   time.Time `json:"timestamp"`
	DateOnly    time.Time `json:"date_only"`
	HourOfDay   int       `json:"hour_of_day"`
	Destination string    `json:"destination"`
	Material    string    `json:"material"`
	Volume      float64   `json:"volume"`
}

// NewTripRecord builds a trip with the date and hour projections filled from ts.
func NewTripRecord(tag, plate string, ts time.Time, destination, material string, volume float64) TripRecord {
	return TripRecord{
		VehicleTag:  tag,
		Plate:       plate,
		Timestamp:   ts,
		DateOnly:    TruncateDay(ts),
		HourOfDay:   ts.Hour(),
		Destination: destination,
		Material:    material,
		Volume:      volume,
	}
}

// FleetEntry represents a vehicle in the fleet registry, keyed by plate
type FleetEntry struct {
	Plate          string  `json:"plate"`
	Tag            string  `json:"tag"`
	Company        string  `json:"company"`
	Owner          string  `json:"owner"`
	Model          string  `json:"model"`
	MaxVolume      float64 `json:"max_volume"`
	Status         string  `json:"status"`
	VehicleType    string  `json:"vehicle_type,omitempty"`
	Identification string  `json:"identification,omitempty"`
	FleetNumber    string  `json:"fleet_number,omitempty"`
	Client         string  `json:"client,omitempty"`
}

// PricingEntry is a unit price for a destination over a validity window.
// A zero ValidFrom or ValidTo leaves that side of the window open.
type PricingEntry struct {
	ID           int64     `json:"id,omitempty"`
	Destination  string    `json:"destination"`
	PricePerUnit float64   `json:"price_per_unit"`
	ValidFrom    time.Time `json:"valid_from"`
	ValidTo      time.Time `json:"valid_to"`
}

// Covers reports whether day falls inside the closed interval [ValidFrom, ValidTo].
func (p PricingEntry) Covers(day time.Time) bool {
	day = TruncateDay(day)
	if !p.ValidFrom.IsZero() && day.Before(TruncateDay(p.ValidFrom)) {
		return false
	}
	if !p.ValidTo.IsZero() && day.After(TruncateDay(p.ValidTo)) {
		return false
	}
	return true
}

// Validate rejects inverted validity windows
func (p PricingEntry) Validate() error {
	if NormalizeText(p.Destination) == MissingText {
		return &ValidationError{
			Field:   "destination",
			Value:   p.Destination,
			Message: "destination is required",
		}
	}
	if p.PricePerUnit < 0 {
		return &ValidationError{
			Field:   "price_per_unit",
			Message: "price_per_unit must not be negative",
		}
	}
	if !p.ValidFrom.IsZero() && !p.ValidTo.IsZero() && p.ValidFrom.After(p.ValidTo) {
		return &ValidationError{
			Field:   "valid_from",
			Value:   p.ValidFrom.Format(DateLayout),
			Message: "valid_from must not be after valid_to",
		}
	}
	return nil
}

// EnrichedRecord is a trip joined with its fleet entry and resolved price,
// plus the derived shift, weekday and revenue fields.
type EnrichedRecord struct {
	TripRecord
	Fleet        *FleetEntry `json:"fleet,omitempty"`
	PricePerUnit float64     `json:"price_per_unit"`
	PriceMatched bool        `json:"price_matched"`
	Revenue      float64     `json:"revenue"`
	Shift        string      `json:"shift"`
	WeekdayIndex int         `json:"weekday_index"`
}

// Company returns the fleet company, or MissingText for trips without a fleet match
func (r *EnrichedRecord) Company() string {
	if r.Fleet == nil {
		return MissingText
	}
	return r.Fleet.Company
}

// MaxVolume returns the registered vehicle capacity, 0 when unknown
func (r *EnrichedRecord) MaxVolume() float64 {
	if r.Fleet == nil {
		return 0
	}
	return r.Fleet.MaxVolume
}

// MatrixRowKind distinguishes detail rows from the two roll-up levels
type MatrixRowKind string

const (
	RowDetail     MatrixRowKind = "detail"
	RowDayTotal   MatrixRowKind = "day_total"
	RowGrandTotal MatrixRowKind = "grand_total"
)

// MatrixRow is one line of the day x vehicle summary.
// Date is blank on the grand-total row. FleetSize and AvgTripsPerVehicle
// are only set on roll-up rows.
type MatrixRow struct {
	Kind               MatrixRowKind `json:"kind"`
	Date               string        `json:"date"`
	VehicleTag         string        `json:"vehicle_tag"`
	VolumeSum          float64       `json:"volume_sum"`
	VolumeMin          float64       `json:"volume_min"`
	VolumeMean         float64       `json:"volume_mean"`
	VolumeMax          float64       `json:"volume_max"`
	TripCount          int           `json:"trip_count"`
	TripsShift1        int           `json:"trips_shift1"`
	TripsShift2        int           `json:"trips_shift2"`
	UniquePlateCount   int           `json:"unique_plate_count"`
	FleetSize          *int          `json:"fleet_size"`
	AvgTripsPerVehicle *float64      `json:"avg_trips_per_vehicle"`
}

// IsRollup reports whether the row is a per-day subtotal or the grand total
func (m MatrixRow) IsRollup() bool {
	return m.Kind == RowDayTotal || m.Kind == RowGrandTotal
}

// TruncateDay drops the clock portion of t, keeping its location
func TruncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ClassifyShift maps an hour of day to its shift label
func ClassifyShift(hour int) string {
	if hour >= 6 && hour < 18 {
		return Shift1
	}
	return Shift2
}

// WeekdayIndex returns the day of week with Monday = 0 and Sunday = 6
func WeekdayIndex(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
