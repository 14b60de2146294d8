package services

import (
	"errors"
	"math"
	"testing"

	"fleet-analytics/internal/models"
)

func TestComputeKPIs(t *testing.T) {
	got := ComputeKPIs(scenarioRecords())
	want := KPIs{TotalVolume: 35, TotalRevenue: 70, TripCount: 3, UniqueTags: 2, UniquePlates: 2}
	if got != want {
		t.Errorf("ComputeKPIs() = %+v, want %+v", got, want)
	}
	if empty := ComputeKPIs(nil); empty != (KPIs{}) {
		t.Errorf("ComputeKPIs(nil) = %+v, want zero", empty)
	}
}

func TestTopN(t *testing.T) {
	buckets := []Bucket{
		{Key: "C", Volume: 5, Trips: 1},
		{Key: "A", Volume: 5, Trips: 3},
		{Key: "B", Volume: 9, Trips: 2},
	}

	tests := []struct {
		name   string
		n      int
		metric Metric
		want   []string
	}{
		{name: "volume with key tie-break", n: 0, metric: MetricVolume, want: []string{"B", "A", "C"}},
		{name: "trips bounded", n: 2, metric: MetricTrips, want: []string{"A", "B"}},
		{name: "n larger than input", n: 10, metric: MetricTrips, want: []string{"A", "B", "C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TopN(buckets, tt.n, tt.metric)
			if len(got) != len(tt.want) {
				t.Fatalf("TopN() returned %d buckets, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Key != tt.want[i] {
					t.Errorf("TopN()[%d] = %v, want %v", i, got[i].Key, tt.want[i])
				}
			}
		})
	}
	if buckets[0].Key != "C" {
		t.Error("TopN() reordered its input")
	}
}

func TestChartSummaries(t *testing.T) {
	records := scenarioRecords()

	tests := []struct {
		name        string
		checkValues func(*testing.T)
	}{
		{
			name: "daily",
			checkValues: func(t *testing.T) {
				got := Daily(records)
				if len(got) != 1 || got[0].Key != "2024-01-15" || got[0].Volume != 35 || got[0].Trips != 3 {
					t.Errorf("Daily() = %+v", got)
				}
			},
		},
		{
			name: "revenue by company",
			checkValues: func(t *testing.T) {
				got := RevenueByCompany(records, 15)
				if len(got) != 2 || got[0].Key != "BETA" || got[0].Revenue != 40 || got[1].Revenue != 30 {
					t.Errorf("RevenueByCompany() = %+v", got)
				}
			},
		},
		{
			name: "top tags by trips",
			checkValues: func(t *testing.T) {
				got := TopTagsByTrips(records, 1)
				if len(got) != 1 || got[0].Key != "T1" || got[0].Trips != 2 {
					t.Errorf("TopTagsByTrips() = %+v", got)
				}
			},
		},
		{
			name: "hourly keys are zero padded",
			checkValues: func(t *testing.T) {
				got := VolumeByHour(records)
				if len(got) != 3 || got[0].Key != "07" || got[2].Key != "19" {
					t.Errorf("VolumeByHour() = %+v", got)
				}
			},
		},
		{
			name: "shifts",
			checkValues: func(t *testing.T) {
				got := ShiftPerformance(records)
				if len(got) != 2 || got[0].Key != models.Shift1 || got[0].Volume != 30 || got[1].Trips != 1 {
					t.Errorf("ShiftPerformance() = %+v", got)
				}
			},
		},
		{
			name: "weekday labels",
			checkValues: func(t *testing.T) {
				got := WeekdayVolume(records)
				if len(got) != 1 || got[0].Key != "0" || got[0].Label != "Monday" {
					t.Errorf("WeekdayVolume() = %+v", got)
				}
			},
		},
		{
			name: "tag efficiency",
			checkValues: func(t *testing.T) {
				got := TagEfficiencyRanking(records)
				if len(got) != 2 || got[0].Tag != "T1" || got[0].VolumePerTrip != 7.5 {
					t.Errorf("TagEfficiencyRanking() = %+v", got)
				}
			},
		},
		{
			name: "capacity utilization",
			checkValues: func(t *testing.T) {
				// 35 moved against 20+20+25 registered
				want := 35.0 / 65.0 * 100
				if got := CapacityUtilization(records); math.Abs(got-want) > 1e-9 {
					t.Errorf("CapacityUtilization() = %v, want %v", got, want)
				}
				if got := CapacityUtilization(nil); got != 0 {
					t.Errorf("CapacityUtilization(nil) = %v, want 0", got)
				}
			},
		},
		{
			name: "profitability",
			checkValues: func(t *testing.T) {
				got := ProfitabilityByMaterial(records)
				if len(got) != 2 || got[0].RevenuePerUnit != 2 {
					t.Errorf("ProfitabilityByMaterial() = %+v", got)
				}
			},
		},
		{
			name: "filter options",
			checkValues: func(t *testing.T) {
				got := ComputeFilterOptions(records)
				if len(got.Companies) != 2 || got.Companies[0] != "ACME" || len(got.Materials) != 2 {
					t.Errorf("ComputeFilterOptions() = %+v", got)
				}
				if got.MinDate == nil || !got.MinDate.Equal(day("2024-01-15")) {
					t.Errorf("MinDate = %v, want 2024-01-15", got.MinDate)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.checkValues)
	}
}

func TestTimeBetweenTrips(t *testing.T) {
	records := Join([]models.TripRecord{
		trip("T1", "A", "2024-01-15 07:00", "X", "Y", 1),
		trip("T2", "B", "2024-01-15 08:00", "X", "Y", 1),
		trip("T1", "A", "2024-01-15 09:30", "X", "Y", 1),
		trip("T1", "A", "2024-01-17 09:30", "X", "Y", 1),
	}, nil, nil)

	got := TimeBetweenTrips(records)
	if len(got.Hours) != 1 || got.Hours[0] != 2.5 {
		t.Fatalf("Hours = %v, want [2.5]", got.Hours)
	}
	if len(got.Bins) != 24 {
		t.Fatalf("Bins has %d entries, want 24", len(got.Bins))
	}
	if got.Bins[2].Count != 1 {
		t.Errorf("Bins[2].Count = %d, want 1", got.Bins[2].Count)
	}
}

func TestRunSummary(t *testing.T) {
	records := scenarioRecords()
	for _, name := range SummaryNames {
		t.Run(name, func(t *testing.T) {
			got, err := RunSummary(name, records, 15)
			if err != nil {
				t.Fatalf("RunSummary(%q) error = %v", name, err)
			}
			if got == nil {
				t.Errorf("RunSummary(%q) returned nil", name)
			}
		})
	}

	if _, err := RunSummary("nope", records, 15); !errors.Is(err, ErrUnknownSummary) {
		t.Errorf("RunSummary(nope) error = %v, want ErrUnknownSummary", err)
	}
}
