package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fleet-analytics/internal/models"
)

// Locale controls separators and date layout of formatted output
type Locale struct {
	Name       string
	Thousands  string
	Decimal    string
	DateLayout string
}

var (
	LocaleBR = Locale{Name: "br", Thousands: ".", Decimal: ",", DateLayout: "02/01/2006"}
	LocaleUS = Locale{Name: "us", Thousands: ",", Decimal: ".", DateLayout: "2006-01-02"}
)

// ParseLocale maps "br" or "us" to a Locale. Anything else is an error.
func ParseLocale(name string) (Locale, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "br", "pt-br", "pt_br":
		return LocaleBR, nil
	case "us", "en", "en-us", "en_us":
		return LocaleUS, nil
	default:
		return Locale{}, fmt.Errorf("unsupported locale %q", name)
	}
}

// FormatDecimal rounds v half away from zero to places digits and renders it
// with the locale's separators, e.g. 1234.5 -> "1.234,50" in LocaleBR.
func (l Locale) FormatDecimal(v float64, places int32) string {
	fixed := decimal.NewFromFloat(v).Round(places).StringFixed(places)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}
	intPart, frac := fixed, ""
	if i := strings.IndexByte(fixed, '.'); i >= 0 {
		intPart, frac = fixed[:i], fixed[i+1:]
	}
	if strings.Trim(intPart, "0") == "" && strings.Trim(frac, "0") == "" {
		sign = ""
	}

	out := sign + groupThousands(intPart, l.Thousands)
	if frac != "" {
		out += l.Decimal + frac
	}
	return out
}

// FormatCount renders an integer with the locale's thousands separator
func (l Locale) FormatCount(n int) string {
	return l.FormatDecimal(float64(n), 0)
}

// FormatDate renders a YYYY-MM-DD date in the locale layout; blank stays blank
func (l Locale) FormatDate(date string) string {
	if date == "" {
		return ""
	}
	t, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format(l.DateLayout)
}

func groupThousands(digits, sep string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormattedMatrixRow is the display rendering of a MatrixRow. Absent values are "".
type FormattedMatrixRow struct {
	Kind               models.MatrixRowKind `json:"kind"`
	Date               string               `json:"date"`
	VehicleTag         string               `json:"vehicle_tag"`
	VolumeSum          string               `json:"volume_sum"`
	VolumeMin          string               `json:"volume_min"`
	VolumeMean         string               `json:"volume_mean"`
	VolumeMax          string               `json:"volume_max"`
	TripCount          string               `json:"trip_count"`
	TripsShift1        string               `json:"trips_shift1"`
	TripsShift2        string               `json:"trips_shift2"`
	UniquePlateCount   string               `json:"unique_plate_count"`
	FleetSize          string               `json:"fleet_size"`
	AvgTripsPerVehicle string               `json:"avg_trips_per_vehicle"`
}

// MatrixHeaders are the column labels of a matrix table, in Cells order
var MatrixHeaders = []string{
	"Date", "Vehicle Tag", "Volume Total", "Volume Min", "Volume Mean", "Volume Max",
	"Trips", "Trips Shift 1", "Trips Shift 2", "Unique Plates", "Fleet Size", "Avg Trips per Vehicle",
}

// Cells returns the row's values in MatrixHeaders order
func (f FormattedMatrixRow) Cells() []string {
	return []string{
		f.Date, f.VehicleTag, f.VolumeSum, f.VolumeMin, f.VolumeMean, f.VolumeMax,
		f.TripCount, f.TripsShift1, f.TripsShift2, f.UniquePlateCount, f.FleetSize, f.AvgTripsPerVehicle,
	}
}

// FormatMatrix renders rows for display: volumes with two decimals, counts
// as integers, both with locale separators.
func FormatMatrix(rows []models.MatrixRow, locale Locale) []FormattedMatrixRow {
	out := make([]FormattedMatrixRow, len(rows))
	for i, r := range rows {
		f := FormattedMatrixRow{
			Kind:             r.Kind,
			Date:             locale.FormatDate(r.Date),
			VehicleTag:       r.VehicleTag,
			VolumeSum:        locale.FormatDecimal(r.VolumeSum, 2),
			VolumeMin:        locale.FormatDecimal(r.VolumeMin, 2),
			VolumeMean:       locale.FormatDecimal(r.VolumeMean, 2),
			VolumeMax:        locale.FormatDecimal(r.VolumeMax, 2),
			TripCount:        locale.FormatCount(r.TripCount),
			TripsShift1:      locale.FormatCount(r.TripsShift1),
			TripsShift2:      locale.FormatCount(r.TripsShift2),
			UniquePlateCount: locale.FormatCount(r.UniquePlateCount),
		}
		if r.FleetSize != nil {
			f.FleetSize = locale.FormatCount(*r.FleetSize)
		}
		if r.AvgTripsPerVehicle != nil {
			f.AvgTripsPerVehicle = locale.FormatDecimal(*r.AvgTripsPerVehicle, 2)
		}
		out[i] = f
	}
	return out
}

// MatrixValues returns a raw row in MatrixHeaders order; absent values are nil
func MatrixValues(r models.MatrixRow) []any {
	var fleet, avg any
	if r.FleetSize != nil {
		fleet = *r.FleetSize
	}
	if r.AvgTripsPerVehicle != nil {
		avg = *r.AvgTripsPerVehicle
	}
	return []any{
		r.Date, r.VehicleTag, r.VolumeSum, r.VolumeMin, r.VolumeMean, r.VolumeMax,
		r.TripCount, r.TripsShift1, r.TripsShift2, r.UniquePlateCount, fleet, avg,
	}
}
