package services

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"fleet-analytics/internal/models"
)

// Bucket is one group of a chart summary
type Bucket struct {
	Key       string  `json:"key"`
	Label     string  `json:"label,omitempty"`
	Volume    float64 `json:"volume"`
	Trips     int     `json:"trips"`
	Revenue   float64 `json:"revenue"`
	MaxVolume float64 `json:"max_volume"`
}

// Metric selects the value TopN ranks by
type Metric int

const (
	MetricVolume Metric = iota
	MetricTrips
	MetricRevenue
)

func (b Bucket) value(m Metric) float64 {
	switch m {
	case MetricTrips:
		return float64(b.Trips)
	case MetricRevenue:
		return b.Revenue
	default:
		return b.Volume
	}
}

// GroupBy sums records into buckets keyed by key, sorted by key
func GroupBy(records []models.EnrichedRecord, key func(*models.EnrichedRecord) string) []Bucket {
	index := make(map[string]int)
	var buckets []Bucket
	for i := range records {
		r := &records[i]
		k := key(r)
		pos, ok := index[k]
		if !ok {
			pos = len(buckets)
			index[k] = pos
			buckets = append(buckets, Bucket{Key: k})
		}
		b := &buckets[pos]
		b.Volume += r.Volume
		b.Trips++
		b.Revenue += r.Revenue
		b.MaxVolume += r.MaxVolume()
	}
	sort.SliceStable(buckets, func(a, b int) bool { return buckets[a].Key < buckets[b].Key })
	if buckets == nil {
		buckets = []Bucket{}
	}
	return buckets
}

// TopN returns the n largest buckets by metric, ties broken by key. n <= 0 keeps all.
func TopN(buckets []Bucket, n int, metric Metric) []Bucket {
	out := append([]Bucket(nil), buckets...)
	sort.SliceStable(out, func(a, b int) bool {
		va, vb := out[a].value(metric), out[b].value(metric)
		if va != vb {
			return va > vb
		}
		return out[a].Key < out[b].Key
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	if out == nil {
		out = []Bucket{}
	}
	return out
}

// KPIs are the dashboard headline numbers
type KPIs struct {
	TotalVolume  float64 `json:"total_volume"`
	TotalRevenue float64 `json:"total_revenue"`
	TripCount    int     `json:"trip_count"`
	UniqueTags   int     `json:"unique_tags"`
	UniquePlates int     `json:"unique_plates"`
}

// ComputeKPIs totals volume and revenue and counts trips, tags and plates
func ComputeKPIs(records []models.EnrichedRecord) KPIs {
	tags := make(map[string]struct{})
	plates := make(map[string]struct{})
	var k KPIs
	for i := range records {
		k.TotalVolume += records[i].Volume
		k.TotalRevenue += records[i].Revenue
		tags[records[i].VehicleTag] = struct{}{}
		plates[records[i].Plate] = struct{}{}
	}
	k.TripCount = len(records)
	k.UniqueTags = len(tags)
	k.UniquePlates = len(plates)
	return k
}

func byDate(r *models.EnrichedRecord) string     { return r.DateOnly.Format(models.DateLayout) }
func byDest(r *models.EnrichedRecord) string     { return r.Destination }
func byCompany(r *models.EnrichedRecord) string  { return r.Company() }
func byMaterial(r *models.EnrichedRecord) string { return r.Material }
func byTag(r *models.EnrichedRecord) string      { return r.VehicleTag }
func byShift(r *models.EnrichedRecord) string    { return r.Shift }
func byHour(r *models.EnrichedRecord) string     { return fmt.Sprintf("%02d", r.HourOfDay) }
func byYear(r *models.EnrichedRecord) string     { return strconv.Itoa(r.Timestamp.Year()) }
func byWeekday(r *models.EnrichedRecord) string  { return strconv.Itoa(r.WeekdayIndex) }

// Daily groups by day; each bucket carries both volume and trip count
func Daily(records []models.EnrichedRecord) []Bucket { return GroupBy(records, byDate) }

// TopDestinations ranks destinations by volume
func TopDestinations(records []models.EnrichedRecord, n int) []Bucket {
	return TopN(GroupBy(records, byDest), n, MetricVolume)
}

// RevenueByCompany ranks companies by revenue
func RevenueByCompany(records []models.EnrichedRecord, n int) []Bucket {
	return TopN(GroupBy(records, byCompany), n, MetricRevenue)
}

// VolumeByMaterial groups volume by material
func VolumeByMaterial(records []models.EnrichedRecord) []Bucket { return GroupBy(records, byMaterial) }

// TopTagsByTrips ranks vehicles by trip count
func TopTagsByTrips(records []models.EnrichedRecord, n int) []Bucket {
	return TopN(GroupBy(records, byTag), n, MetricTrips)
}

// VolumeByHour groups volume by hour of day, keys "00".."23"
func VolumeByHour(records []models.EnrichedRecord) []Bucket { return GroupBy(records, byHour) }

// VolumeByYear groups volume by calendar year
func VolumeByYear(records []models.EnrichedRecord) []Bucket { return GroupBy(records, byYear) }

// ShiftPerformance groups volume and trips by shift
func ShiftPerformance(records []models.EnrichedRecord) []Bucket { return GroupBy(records, byShift) }

var weekdayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// WeekdayVolume groups volume by weekday, ordered Monday first
func WeekdayVolume(records []models.EnrichedRecord) []Bucket {
	buckets := GroupBy(records, byWeekday)
	for i := range buckets {
		if n, err := strconv.Atoi(buckets[i].Key); err == nil && n >= 0 && n < 7 {
			buckets[i].Label = weekdayNames[n]
		}
	}
	return buckets
}

// TagEfficiency is one line of the vehicle efficiency ranking
type TagEfficiency struct {
	Tag           string  `json:"tag"`
	Trips         int     `json:"trips"`
	Volume        float64 `json:"volume"`
	VolumePerTrip float64 `json:"volume_per_trip"`
}

// TagEfficiencyRanking lists vehicles by trips descending, then tag
func TagEfficiencyRanking(records []models.EnrichedRecord) []TagEfficiency {
	buckets := TopN(GroupBy(records, byTag), 0, MetricTrips)
	out := make([]TagEfficiency, len(buckets))
	for i, b := range buckets {
		out[i] = TagEfficiency{Tag: b.Key, Trips: b.Trips, Volume: b.Volume}
		if b.Trips > 0 {
			out[i].VolumePerTrip = b.Volume / float64(b.Trips)
		}
	}
	return out
}

// CapacityUtilization is total volume over total registered capacity, as a
// percentage, counting only trips whose vehicle has a capacity. 0 when none has.
func CapacityUtilization(records []models.EnrichedRecord) float64 {
	var volume, capacity float64
	for i := range records {
		if limit := records[i].MaxVolume(); limit > 0 {
			volume += records[i].Volume
			capacity += limit
		}
	}
	if capacity <= 0 {
		return 0
	}
	return volume / capacity * 100
}

// HistogramBin counts values in [From, To)
type HistogramBin struct {
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Count int     `json:"count"`
}

// TripGaps holds the hours between consecutive trips of the same vehicle
type TripGaps struct {
	Hours []float64      `json:"hours"`
	Bins  []HistogramBin `json:"bins"`
}

// MaxTripGap bounds the gaps reported by TimeBetweenTrips
const MaxTripGap = 24 * time.Hour

// TimeBetweenTrips computes per-vehicle gaps between consecutive trips,
// keeping gaps shorter than MaxTripGap, with one-hour histogram bins.
func TimeBetweenTrips(records []models.EnrichedRecord) TripGaps {
	ordered := make([]*models.EnrichedRecord, len(records))
	for i := range records {
		ordered[i] = &records[i]
	}
	sort.SliceStable(ordered, func(a, b int) bool {
		if ordered[a].VehicleTag != ordered[b].VehicleTag {
			return ordered[a].VehicleTag < ordered[b].VehicleTag
		}
		return ordered[a].Timestamp.Before(ordered[b].Timestamp)
	})

	bins := make([]HistogramBin, int(MaxTripGap/time.Hour))
	for i := range bins {
		bins[i] = HistogramBin{From: float64(i), To: float64(i + 1)}
	}

	gaps := TripGaps{Hours: []float64{}, Bins: bins}
	for i := 1; i < len(ordered); i++ {
		prev, cur := ordered[i-1], ordered[i]
		if prev.VehicleTag != cur.VehicleTag {
			continue
		}
		gap := cur.Timestamp.Sub(prev.Timestamp)
		if gap >= MaxTripGap {
			continue
		}
		hours := gap.Hours()
		gaps.Hours = append(gaps.Hours, hours)
		gaps.Bins[int(hours)].Count++
	}
	return gaps
}

// MaterialProfit is revenue per unit of volume for one material
type MaterialProfit struct {
	Material       string  `json:"material"`
	Revenue        float64 `json:"revenue"`
	Volume         float64 `json:"volume"`
	RevenuePerUnit float64 `json:"revenue_per_unit"`
}

// ProfitabilityByMaterial ranks materials with volume by revenue per unit, descending
func ProfitabilityByMaterial(records []models.EnrichedRecord) []MaterialProfit {
	out := []MaterialProfit{}
	for _, b := range GroupBy(records, byMaterial) {
		if b.Volume <= 0 {
			continue
		}
		out = append(out, MaterialProfit{
			Material:       b.Key,
			Revenue:        b.Revenue,
			Volume:         b.Volume,
			RevenuePerUnit: b.Revenue / b.Volume,
		})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].RevenuePerUnit > out[b].RevenuePerUnit })
	return out
}

// FilterOptions lists the selectable values of each filter dimension
type FilterOptions struct {
	Companies    []string   `json:"companies"`
	Destinations []string   `json:"destinations"`
	Materials    []string   `json:"materials"`
	MinDate      *time.Time `json:"min_date,omitempty"`
	MaxDate      *time.Time `json:"max_date,omitempty"`
}

// ComputeFilterOptions collects sorted distinct values and the date span of records
func ComputeFilterOptions(records []models.EnrichedRecord) FilterOptions {
	keys := func(buckets []Bucket) []string {
		out := make([]string, len(buckets))
		for i, b := range buckets {
			out[i] = b.Key
		}
		return out
	}
	opts := FilterOptions{
		Companies:    keys(GroupBy(records, byCompany)),
		Destinations: keys(GroupBy(records, byDest)),
		Materials:    keys(GroupBy(records, byMaterial)),
	}
	span := Filter{}.Reset(records)
	opts.MinDate, opts.MaxDate = span.Start, span.End
	return opts
}

// ErrUnknownSummary is returned by RunSummary for an unregistered name
var ErrUnknownSummary = errors.New("unknown summary")

// SummaryNames lists the names accepted by RunSummary
var SummaryNames = []string{
	"kpis", "daily", "destinations", "company-revenue", "materials", "tags",
	"hourly", "yearly", "shifts", "weekdays", "tag-efficiency", "capacity",
	"trip-gaps", "profitability", "matrix-kpis",
}

// RunSummary computes a named summary. n bounds the ranked summaries.
func RunSummary(name string, records []models.EnrichedRecord, n int) (any, error) {
	switch name {
	case "kpis":
		return ComputeKPIs(records), nil
	case "daily":
		return Daily(records), nil
	case "destinations":
		return TopDestinations(records, n), nil
	case "company-revenue":
		return RevenueByCompany(records, n), nil
	case "materials":
		return VolumeByMaterial(records), nil
	case "tags":
		return TopTagsByTrips(records, n), nil
	case "hourly":
		return VolumeByHour(records), nil
	case "yearly":
		return VolumeByYear(records), nil
	case "shifts":
		return ShiftPerformance(records), nil
	case "weekdays":
		return WeekdayVolume(records), nil
	case "tag-efficiency":
		return TagEfficiencyRanking(records), nil
	case "capacity":
		return map[string]float64{"utilization_percent": CapacityUtilization(records)}, nil
	case "trip-gaps":
		return TimeBetweenTrips(records), nil
	case "profitability":
		return ProfitabilityByMaterial(records), nil
	case "matrix-kpis":
		return ComputeMatrixKPIs(records), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSummary, name)
	}
}
