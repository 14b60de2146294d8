package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pterm/pterm"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// writeConfig lays out three CSV feeds and a YAML config pointing at them
func writeConfig(t *testing.T) (dir, configPath string) {
	t.Helper()
	dir = t.TempDir()
	trips := writeFile(t, dir, "trips.csv", strings.Join([]string{
		"data;hora;tag;placa;destino;material;volume",
		"15/01/2024;07:00;T1;AAA1111;PEDREIRA;BRITA;1000",
		"15/01/2024;19:00;T1;AAA1111;PEDREIRA;BRITA;234,5",
		"16/01/2024;08:00;T2;BBB2222;PORTO;AREIA;20",
	}, "\n"))
	fleet := writeFile(t, dir, "fleet.csv", "placa,empresa,capacidade\nAAA1111,ACME,1500\nBBB2222,BETA,25\n")
	pricing := writeFile(t, dir, "pricing.csv", "destino,preco\nPEDREIRA,2\nPORTO,3\n")

	configPath = writeFile(t, dir, "fleet.yaml", strings.Join([]string{
		"sources:",
		"  trips:",
		"    kind: csv",
		"    location: " + trips,
		"  fleet:",
		"    kind: csv",
		"    location: " + fleet,
		"  pricing:",
		"    kind: csv",
		"    location: " + pricing,
		"display:",
		"  locale: br",
		"  top_n: 5",
	}, "\n"))
	return dir, configPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	pterm.DisableStyling()
	t.Cleanup(pterm.EnableStyling)

	var out bytes.Buffer
	app := NewCLIApp("test")
	app.SetOutput(&out, io.Discard)
	app.SetArgs(args)
	err := app.Execute()
	return out.String(), err
}

func TestCLI_Commands(t *testing.T) {
	dir, cfg := writeConfig(t)

	tests := []struct {
		name        string
		args        []string
		wantErr     bool
		checkValues func(*testing.T, string)
	}{
		{
			name: "matrix",
			args: []string{"matrix", "--config", cfg},
			checkValues: func(t *testing.T, out string) {
				for _, want := range []string{"15/01/2024", "1.234,50", "TOTAL_DAY", "GRAND_TOTAL", "1.254,50", "2 days, 2 tags, 3 trips"} {
					if !strings.Contains(out, want) {
						t.Errorf("output is missing %q:\n%s", want, out)
					}
				}
			},
		},
		{
			name: "matrix in us locale with a date filter",
			args: []string{"matrix", "--config", cfg, "--locale", "us", "--start", "2024-01-16"},
			checkValues: func(t *testing.T, out string) {
				if !strings.Contains(out, "2024-01-16") || strings.Contains(out, "2024-01-15") {
					t.Errorf("output:\n%s", out)
				}
				if !strings.Contains(out, "1 days, 1 tags, 1 trips") {
					t.Errorf("output:\n%s", out)
				}
			},
		},
		{
			name: "matrix with nothing selected",
			args: []string{"matrix", "--config", cfg, "--company", "NOBODY"},
			checkValues: func(t *testing.T, out string) {
				if !strings.Contains(out, "No trips match") {
					t.Errorf("output:\n%s", out)
				}
			},
		},
		{
			name: "kpis",
			args: []string{"kpis", "--config", cfg, "--company", "acme"},
			checkValues: func(t *testing.T, out string) {
				for _, want := range []string{"1.234,50", "2.469,00"} {
					if !strings.Contains(out, want) {
						t.Errorf("output is missing %q:\n%s", want, out)
					}
				}
			},
		},
		{
			name: "summary",
			args: []string{"summary", "destinations", "--config", cfg, "-n", "1"},
			checkValues: func(t *testing.T, out string) {
				var buckets []struct {
					Key string `json:"key"`
				}
				if err := json.Unmarshal([]byte(out), &buckets); err != nil {
					t.Fatalf("output is not JSON: %v\n%s", err, out)
				}
				if len(buckets) != 1 || buckets[0].Key != "PEDREIRA" {
					t.Errorf("buckets = %+v", buckets)
				}
			},
		},
		{
			name:    "unknown summary",
			args:    []string{"summary", "weather", "--config", cfg},
			wantErr: true,
		},
		{
			name:    "bad date",
			args:    []string{"kpis", "--config", cfg, "--end", "16/01/2024"},
			wantErr: true,
		},
		{
			name:    "bad locale",
			args:    []string{"kpis", "--config", cfg, "--locale", "fr"},
			wantErr: true,
		},
		{
			name: "export csv",
			args: []string{"export", "--config", cfg, "--format", "csv", "--out", filepath.Join(dir, "m.csv"), "--with-records"},
			checkValues: func(t *testing.T, out string) {
				if !strings.Contains(out, "Exported 5 matrix rows") {
					t.Errorf("output:\n%s", out)
				}
				body, err := os.ReadFile(filepath.Join(dir, "m.csv"))
				if err != nil {
					t.Fatal(err)
				}
				if !strings.HasPrefix(string(body), "Date;Vehicle Tag;") {
					t.Errorf("csv starts with %q", string(body)[:30])
				}
			},
		},
		{
			name: "export sqlite",
			args: []string{"export", "--config", cfg, "-f", "sqlite", "-o", filepath.Join(dir, "m.db")},
			checkValues: func(t *testing.T, out string) {
				body, err := os.ReadFile(filepath.Join(dir, "m.db"))
				if err != nil {
					t.Fatal(err)
				}
				if !bytes.HasPrefix(body, []byte("SQLite format 3")) {
					t.Error("output file is not a SQLite database")
				}
			},
		},
		{
			name:    "export unknown format",
			args:    []string{"export", "--config", cfg, "--format", "docx"},
			wantErr: true,
		},
		{
			name:    "missing config file",
			args:    []string{"kpis", "--config", filepath.Join(dir, "missing.yaml")},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v\n%s", err, tt.wantErr, out)
			}
			if tt.checkValues != nil {
				tt.checkValues(t, out)
			}
		})
	}
}
