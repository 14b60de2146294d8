package services

import (
	"math"
	"sort"

	"fleet-analytics/internal/models"
)

// MatrixStat selects optional statistic groups of the matrix
type MatrixStat uint8

const (
	// StatShifts fills TripsShift1 and TripsShift2
	StatShifts MatrixStat = 1 << iota
	// StatUniquePlates fills UniquePlateCount
	StatUniquePlates
	// StatFleet fills FleetSize and AvgTripsPerVehicle on roll-up rows
	StatFleet

	StatAll = StatShifts | StatUniquePlates | StatFleet
)

// MatrixOptions parameterizes BuildMatrix. Sums, min, mean, max and trip
// counts are always computed.
type MatrixOptions struct {
	Stats MatrixStat
}

// DefaultMatrixOptions computes every statistic
func DefaultMatrixOptions() MatrixOptions {
	return MatrixOptions{Stats: StatAll}
}

// RequiredMatrixColumns must have been present in the loaded data
var RequiredMatrixColumns = []string{ColDate, ColTag, ColVolume, ColPlate}

type groupAcc struct {
	sum, min, max  float64
	count          int
	shift1, shift2 int
	plates         map[string]struct{}
	tags           map[string]struct{}
}

func newGroupAcc() *groupAcc {
	return &groupAcc{
		min:    math.Inf(1),
		max:    math.Inf(-1),
		plates: make(map[string]struct{}),
		tags:   make(map[string]struct{}),
	}
}

func (g *groupAcc) addRecord(r *models.EnrichedRecord) {
	g.sum += r.Volume
	g.min = math.Min(g.min, r.Volume)
	g.max = math.Max(g.max, r.Volume)
	g.count++
	if r.Shift == models.Shift1 {
		g.shift1++
	} else {
		g.shift2++
	}
	g.plates[r.Plate] = struct{}{}
	g.tags[r.VehicleTag] = struct{}{}
}

// merge rolls a lower-level group into g
func (g *groupAcc) merge(o *groupAcc) {
	g.sum += o.sum
	g.min = math.Min(g.min, o.min)
	g.max = math.Max(g.max, o.max)
	g.count += o.count
	g.shift1 += o.shift1
	g.shift2 += o.shift2
	for p := range o.plates {
		g.plates[p] = struct{}{}
	}
	for t := range o.tags {
		g.tags[t] = struct{}{}
	}
}

func (g *groupAcc) row(kind models.MatrixRowKind, date, tag string, stats MatrixStat) models.MatrixRow {
	row := models.MatrixRow{
		Kind:       kind,
		Date:       date,
		VehicleTag: tag,
		VolumeSum:  g.sum,
		VolumeMin:  g.min,
		VolumeMax:  g.max,
		TripCount:  g.count,
	}
	if g.count > 0 {
		row.VolumeMean = g.sum / float64(g.count)
	} else {
		row.VolumeMin, row.VolumeMax = 0, 0
	}
	if stats&StatShifts != 0 {
		row.TripsShift1 = g.shift1
		row.TripsShift2 = g.shift2
	}
	if stats&StatUniquePlates != 0 {
		row.UniquePlateCount = len(g.plates)
	}
	if kind != models.RowDetail && stats&StatFleet != 0 {
		fleet := len(g.tags)
		avg := 0.0
		if fleet > 0 {
			avg = float64(g.count) / float64(fleet)
		}
		row.FleetSize = &fleet
		row.AvgTripsPerVehicle = &avg
	}
	return row
}

// BuildMatrix aggregates records by (day, vehicle tag), appends a subtotal
// after each day's detail rows and one grand total at the end.
//
// columns is the ColumnSet of the load the records came from; a nil set skips
// the check. When required columns are missing the result is empty and the
// error is an *models.AggregationInputError. Empty input yields an empty
// result and no error.
func BuildMatrix(records []models.EnrichedRecord, columns ColumnSet, opts MatrixOptions) ([]models.MatrixRow, error) {
	if columns != nil {
		if missing := columns.Missing(RequiredMatrixColumns...); len(missing) > 0 {
			return []models.MatrixRow{}, &models.AggregationInputError{Missing: missing}
		}
	}
	if len(records) == 0 {
		return []models.MatrixRow{}, nil
	}

	days := make(map[string]map[string]*groupAcc)
	for i := range records {
		r := &records[i]
		date := r.DateOnly.Format(models.DateLayout)
		tags, ok := days[date]
		if !ok {
			tags = make(map[string]*groupAcc)
			days[date] = tags
		}
		g, ok := tags[r.VehicleTag]
		if !ok {
			g = newGroupAcc()
			tags[r.VehicleTag] = g
		}
		g.addRecord(r)
	}

	dates := make([]string, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	rows := make([]models.MatrixRow, 0, len(records)+len(dates)+1)
	grand := newGroupAcc()
	for _, date := range dates {
		tags := days[date]
		names := make([]string, 0, len(tags))
		for tag := range tags {
			names = append(names, tag)
		}
		sort.Strings(names)

		day := newGroupAcc()
		for _, tag := range names {
			g := tags[tag]
			rows = append(rows, g.row(models.RowDetail, date, tag, opts.Stats))
			day.merge(g)
		}
		rows = append(rows, day.row(models.RowDayTotal, date, models.TagDayTotal, opts.Stats))
		grand.merge(day)
	}
	rows = append(rows, grand.row(models.RowGrandTotal, "", models.TagGrandTotal, opts.Stats))

	return rows, nil
}

// MatrixKPIs are the headline figures shown above the matrix
type MatrixKPIs struct {
	DaysInAnalysis int `json:"days_in_analysis"`
	UniqueTags     int `json:"unique_tags"`
	TotalTrips     int `json:"total_trips"`
}

// ComputeMatrixKPIs counts distinct days and tags and total trips of records
func ComputeMatrixKPIs(records []models.EnrichedRecord) MatrixKPIs {
	days := make(map[string]struct{})
	tags := make(map[string]struct{})
	for i := range records {
		days[records[i].DateOnly.Format(models.DateLayout)] = struct{}{}
		tags[records[i].VehicleTag] = struct{}{}
	}
	return MatrixKPIs{
		DaysInAnalysis: len(days),
		UniqueTags:     len(tags),
		TotalTrips:     len(records),
	}
}
