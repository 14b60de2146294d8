package services

import (
	"testing"

	"fleet-analytics/internal/models"
)

func TestLocale_FormatDecimal(t *testing.T) {
	tests := []struct {
		name   string
		locale Locale
		value  float64
		places int32
		want   string
	}{
		{name: "br thousands", locale: LocaleBR, value: 1234.5, places: 2, want: "1.234,50"},
		{name: "us thousands", locale: LocaleUS, value: 1234.5, places: 2, want: "1,234.50"},
		{name: "millions", locale: LocaleBR, value: 1234567.891, places: 2, want: "1.234.567,89"},
		{name: "rounds half away from zero", locale: LocaleBR, value: 999.995, places: 2, want: "1.000,00"},
		{name: "zero", locale: LocaleBR, value: 0, places: 2, want: "0,00"},
		{name: "negative zero after rounding", locale: LocaleBR, value: -0.001, places: 2, want: "0,00"},
		{name: "negative", locale: LocaleBR, value: -1234.5, places: 2, want: "-1.234,50"},
		{name: "small", locale: LocaleBR, value: 7.5, places: 2, want: "7,50"},
		{name: "integer places", locale: LocaleBR, value: 1234567, places: 0, want: "1.234.567"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.locale.FormatDecimal(tt.value, tt.places); got != tt.want {
				t.Errorf("FormatDecimal(%v, %d) = %q, want %q", tt.value, tt.places, got, tt.want)
			}
		})
	}
}

func TestParseLocale(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{input: "br", want: "br"},
		{input: "", want: "br"},
		{input: "pt-BR", want: "br"},
		{input: "US", want: "us"},
		{input: "fr", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLocale(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLocale(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got.Name != tt.want {
				t.Errorf("ParseLocale(%q) = %v, want %v", tt.input, got.Name, tt.want)
			}
		})
	}
}

func TestLocale_FormatDate(t *testing.T) {
	if got := LocaleBR.FormatDate("2024-01-15"); got != "15/01/2024" {
		t.Errorf("FormatDate() = %q, want %q", got, "15/01/2024")
	}
	if got := LocaleUS.FormatDate("2024-01-15"); got != "2024-01-15" {
		t.Errorf("FormatDate() = %q, want %q", got, "2024-01-15")
	}
	if got := LocaleBR.FormatDate(""); got != "" {
		t.Errorf("FormatDate(\"\") = %q, want empty", got)
	}
}

func TestFormatMatrix(t *testing.T) {
	rows, err := BuildMatrix(scenarioRecords(), fullColumns(), DefaultMatrixOptions())
	if err != nil {
		t.Fatalf("BuildMatrix() error = %v", err)
	}
	got := FormatMatrix(rows, LocaleBR)
	if len(got) != len(rows) {
		t.Fatalf("FormatMatrix() returned %d rows, want %d", len(got), len(rows))
	}

	detail := got[0]
	if detail.Date != "15/01/2024" || detail.VolumeSum != "15,00" || detail.VolumeMean != "7,50" {
		t.Errorf("detail = %+v", detail)
	}
	if detail.FleetSize != "" || detail.AvgTripsPerVehicle != "" {
		t.Errorf("detail fleet cells = %q/%q, want empty", detail.FleetSize, detail.AvgTripsPerVehicle)
	}

	total := got[2]
	if total.VolumeSum != "35,00" || total.TripCount != "3" || total.FleetSize != "2" || total.AvgTripsPerVehicle != "1,50" {
		t.Errorf("subtotal = %+v", total)
	}
	if grand := got[3]; grand.Date != "" || grand.VehicleTag != models.TagGrandTotal {
		t.Errorf("grand total = %+v", grand)
	}
	if cells := detail.Cells(); len(cells) != len(MatrixHeaders) {
		t.Errorf("Cells() has %d values, want %d", len(cells), len(MatrixHeaders))
	}
}

func TestMatrixValues(t *testing.T) {
	rows, err := BuildMatrix(scenarioRecords(), nil, DefaultMatrixOptions())
	if err != nil {
		t.Fatalf("BuildMatrix() error = %v", err)
	}
	detail := MatrixValues(rows[0])
	if detail[10] != nil || detail[11] != nil {
		t.Errorf("detail fleet values = %v/%v, want nil", detail[10], detail[11])
	}
	total := MatrixValues(rows[2])
	if total[10] != 2 || total[11] != 1.5 {
		t.Errorf("subtotal fleet values = %v/%v, want 2/1.5", total[10], total[11])
	}
}
