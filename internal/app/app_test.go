package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"fleet-analytics/internal/config"
	"fleet-analytics/internal/services"
	"fleet-analytics/pkg/logging"
	"fleet-analytics/pkg/metrics"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Sources: config.SourcesConfig{
			Trips: config.SourceConfig{
				Kind:     config.SourceCSV,
				Location: writeFile(t, dir, "trips.csv", "data;hora;caminhao;placa;destino;material;volume\n15/01/2024;07:00;T1;AAA1111;Pedreira;Brita;10,5\n15/01/2024;19:00;T1;AAA1111;Pedreira;Brita;4,5\n"),
				Aliases:  map[string][]string{services.ColTag: {"caminhao"}},
			},
			Fleet: config.SourceConfig{
				Kind:     config.SourceCSV,
				Location: writeFile(t, dir, "fleet.csv", "placa,empresa,capacidade\nAAA1111,Acme,20\n"),
			},
			Pricing: config.SourceConfig{
				Kind:     config.SourceCSV,
				Location: writeFile(t, dir, "pricing.csv", "destino,preco\nPEDREIRA,2\n"),
			},
			TimeoutSeconds:    5,
			MaxReportedErrors: 10,
		},
		Display: config.DisplayConfig{Locale: "br", TopN: 5},
	}
}

func TestNew(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, logging.NewDiscardLogger(), metrics.NewCollector("test", prometheus.NewRegistry()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if a.Pricing != nil || a.DB != nil {
		t.Error("pricing store should be nil when the database is disabled")
	}
	if a.Locale != services.LocaleBR {
		t.Errorf("Locale = %+v, want br", a.Locale)
	}

	view, err := a.Views.Compute(context.Background(), "cli", services.Filter{})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if view.KPIs.TripCount != 2 || view.KPIs.TotalVolume != 15 || view.KPIs.TotalRevenue != 30 {
		t.Errorf("KPIs = %+v", view.KPIs)
	}
	if view.Records[0].Company() != "ACME" {
		t.Errorf("Company = %q, want ACME", view.Records[0].Company())
	}
	if view.MatrixWarning != "" {
		t.Errorf("MatrixWarning = %q", view.MatrixWarning)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{
			name:   "unknown locale",
			mutate: func(c *config.Config) { c.Display.Locale = "fr" },
		},
		{
			name:   "postgres pricing without a database",
			mutate: func(c *config.Config) { c.Sources.Pricing.Kind = config.SourcePostgres },
		},
		{
			name:   "unsupported kind",
			mutate: func(c *config.Config) { c.Sources.Fleet.Kind = "parquet" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)
			if _, err := New(context.Background(), cfg, logging.NewDiscardLogger(), metrics.NewCollector("test", prometheus.NewRegistry())); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}
