package services

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"fleet-analytics/internal/models"
)

func TestBuildMatrix_Scenario(t *testing.T) {
	rows, err := BuildMatrix(scenarioRecords(), fullColumns(), DefaultMatrixOptions())
	if err != nil {
		t.Fatalf("BuildMatrix() error = %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("BuildMatrix() returned %d rows, want 4", len(rows))
	}

	tests := []struct {
		name        string
		row         models.MatrixRow
		checkValues func(*testing.T, models.MatrixRow)
	}{
		{
			name: "T1 detail",
			row:  rows[0],
			checkValues: func(t *testing.T, r models.MatrixRow) {
				if r.Kind != models.RowDetail || r.VehicleTag != "T1" || r.Date != "2024-01-15" {
					t.Errorf("row = %+v, want T1 detail on 2024-01-15", r)
				}
				if r.VolumeSum != 15 || r.VolumeMin != 5 || r.VolumeMax != 10 || r.VolumeMean != 7.5 {
					t.Errorf("volumes = %v/%v/%v/%v, want 15/5/7.5/10", r.VolumeSum, r.VolumeMin, r.VolumeMean, r.VolumeMax)
				}
				if r.TripCount != 2 || r.TripsShift1 != 1 || r.TripsShift2 != 1 {
					t.Errorf("trips = %d (%d/%d), want 2 (1/1)", r.TripCount, r.TripsShift1, r.TripsShift2)
				}
				if r.UniquePlateCount != 1 {
					t.Errorf("UniquePlateCount = %d, want 1", r.UniquePlateCount)
				}
				if r.FleetSize != nil || r.AvgTripsPerVehicle != nil {
					t.Error("detail rows should not carry fleet statistics")
				}
			},
		},
		{
			name: "T2 detail",
			row:  rows[1],
			checkValues: func(t *testing.T, r models.MatrixRow) {
				if r.VehicleTag != "T2" || r.VolumeSum != 20 || r.TripCount != 1 {
					t.Errorf("row = %+v, want T2 with sum 20 and 1 trip", r)
				}
				if r.TripsShift1 != 1 || r.TripsShift2 != 0 {
					t.Errorf("shifts = %d/%d, want 1/0", r.TripsShift1, r.TripsShift2)
				}
			},
		},
		{
			name: "day subtotal",
			row:  rows[2],
			checkValues: func(t *testing.T, r models.MatrixRow) {
				if r.Kind != models.RowDayTotal || r.VehicleTag != models.TagDayTotal || r.Date != "2024-01-15" {
					t.Errorf("row = %+v, want day total", r)
				}
				if r.VolumeSum != 35 || r.TripCount != 3 {
					t.Errorf("sum/trips = %v/%d, want 35/3", r.VolumeSum, r.TripCount)
				}
				if r.VolumeMin != 5 || r.VolumeMax != 20 {
					t.Errorf("min/max = %v/%v, want 5/20", r.VolumeMin, r.VolumeMax)
				}
				if r.UniquePlateCount != 2 {
					t.Errorf("UniquePlateCount = %d, want 2", r.UniquePlateCount)
				}
				if r.FleetSize == nil || *r.FleetSize != 2 {
					t.Errorf("FleetSize = %v, want 2", r.FleetSize)
				}
				if r.AvgTripsPerVehicle == nil || *r.AvgTripsPerVehicle != 1.5 {
					t.Errorf("AvgTripsPerVehicle = %v, want 1.5", r.AvgTripsPerVehicle)
				}
			},
		},
		{
			name: "grand total equals the only subtotal",
			row:  rows[3],
			checkValues: func(t *testing.T, r models.MatrixRow) {
				if r.Kind != models.RowGrandTotal || r.VehicleTag != models.TagGrandTotal || r.Date != "" {
					t.Errorf("row = %+v, want grand total", r)
				}
				sub := rows[2]
				if r.VolumeSum != sub.VolumeSum || r.TripCount != sub.TripCount || *r.FleetSize != *sub.FleetSize {
					t.Errorf("grand total %+v differs from subtotal %+v", r, sub)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.checkValues(t, tt.row)
		})
	}
}

func TestBuildMatrix_EmptyInput(t *testing.T) {
	rows, err := BuildMatrix(nil, fullColumns(), DefaultMatrixOptions())
	if err != nil {
		t.Fatalf("BuildMatrix() error = %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Errorf("BuildMatrix() = %v, want empty non-nil slice", rows)
	}
}

func TestBuildMatrix_MissingColumns(t *testing.T) {
	columns := ColumnSet{ColDate: true, ColVolume: true}
	rows, err := BuildMatrix(scenarioRecords(), columns, DefaultMatrixOptions())

	var inputErr *models.AggregationInputError
	if !errors.As(err, &inputErr) {
		t.Fatalf("BuildMatrix() error = %v, want *AggregationInputError", err)
	}
	if !reflect.DeepEqual(inputErr.Missing, []string{ColTag, ColPlate}) {
		t.Errorf("Missing = %v, want [tag plate]", inputErr.Missing)
	}
	if len(rows) != 0 {
		t.Errorf("BuildMatrix() returned %d rows, want 0", len(rows))
	}
}

func TestBuildMatrix_OptionalStats(t *testing.T) {
	rows, err := BuildMatrix(scenarioRecords(), nil, MatrixOptions{})
	if err != nil {
		t.Fatalf("BuildMatrix() error = %v", err)
	}
	for _, r := range rows {
		if r.TripsShift1 != 0 || r.TripsShift2 != 0 || r.UniquePlateCount != 0 || r.FleetSize != nil {
			t.Errorf("row %+v carries statistics that were not requested", r)
		}
	}
	if rows[2].VolumeSum != 35 {
		t.Errorf("subtotal VolumeSum = %v, want 35", rows[2].VolumeSum)
	}
}

func multiDayRecords() []models.EnrichedRecord {
	var trips []models.TripRecord
	tags := []string{"T3", "T1", "T2"}
	for d := 1; d <= 4; d++ {
		for i, tag := range tags {
			for k := 0; k <= i+d%2; k++ {
				when := fmt.Sprintf("2024-03-%02d %02d:30", d, (5+k*7+i)%24)
				trips = append(trips, trip(tag, "P"+tag, when, "PEDREIRA", "BRITA", float64(d*10+k)+0.5))
			}
		}
	}
	return Join(trips, nil, nil)
}

func TestBuildMatrix_RollupsAreExactSums(t *testing.T) {
	rows, err := BuildMatrix(multiDayRecords(), fullColumns(), DefaultMatrixOptions())
	if err != nil {
		t.Fatalf("BuildMatrix() error = %v", err)
	}

	var daySum, grandSum float64
	var dayTrips, grandTrips, days int
	var prevDate string
	for _, r := range rows {
		switch r.Kind {
		case models.RowDetail:
			if r.Date < prevDate {
				t.Errorf("row for %s follows %s", r.Date, prevDate)
			}
			prevDate = r.Date
			daySum += r.VolumeSum
			dayTrips += r.TripCount
			if r.TripsShift1+r.TripsShift2 != r.TripCount {
				t.Errorf("%s %s shifts %d+%d != trips %d", r.Date, r.VehicleTag, r.TripsShift1, r.TripsShift2, r.TripCount)
			}
		case models.RowDayTotal:
			days++
			if r.VolumeSum != daySum || r.TripCount != dayTrips {
				t.Errorf("%s subtotal = %v/%d, want %v/%d", r.Date, r.VolumeSum, r.TripCount, daySum, dayTrips)
			}
			grandSum += r.VolumeSum
			grandTrips += r.TripCount
			daySum, dayTrips = 0, 0
		case models.RowGrandTotal:
			if r.VolumeSum != grandSum || r.TripCount != grandTrips {
				t.Errorf("grand total = %v/%d, want %v/%d", r.VolumeSum, r.TripCount, grandSum, grandTrips)
			}
		}
	}
	if days != 4 {
		t.Errorf("got %d day totals, want 4", days)
	}
	if last := rows[len(rows)-1]; last.Kind != models.RowGrandTotal {
		t.Errorf("last row kind = %v, want %v", last.Kind, models.RowGrandTotal)
	}
}

func TestBuildMatrix_Deterministic(t *testing.T) {
	records := multiDayRecords()
	reversed := make([]models.EnrichedRecord, len(records))
	for i := range records {
		reversed[len(records)-1-i] = records[i]
	}

	first, err := BuildMatrix(records, fullColumns(), DefaultMatrixOptions())
	if err != nil {
		t.Fatalf("BuildMatrix() error = %v", err)
	}
	second, err := BuildMatrix(reversed, fullColumns(), DefaultMatrixOptions())
	if err != nil {
		t.Fatalf("BuildMatrix() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("BuildMatrix() output depends on input order")
	}
}

func TestComputeMatrixKPIs(t *testing.T) {
	got := ComputeMatrixKPIs(multiDayRecords())
	if got.DaysInAnalysis != 4 || got.UniqueTags != 3 {
		t.Errorf("ComputeMatrixKPIs() = %+v, want 4 days and 3 tags", got)
	}
	if got.TotalTrips != len(multiDayRecords()) {
		t.Errorf("TotalTrips = %d, want %d", got.TotalTrips, len(multiDayRecords()))
	}
}
