// Package cli implements the fleetctl command-line interface.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"fleet-analytics/internal/app"
	"fleet-analytics/internal/config"
	"fleet-analytics/internal/export"
	"fleet-analytics/internal/models"
	"fleet-analytics/internal/services"
	"fleet-analytics/pkg/logging"
	"fleet-analytics/pkg/metrics"
)

const cliSession = "fleetctl"

// CLIApp represents the command-line interface application
type CLIApp struct {
	rootCmd *cobra.Command
	version string
}

// NewCLIApp builds the fleetctl command tree
func NewCLIApp(version string) *CLIApp {
	a := &CLIApp{version: version}

	rootCmd := &cobra.Command{
		Use:           "fleetctl",
		Short:         "Fleet operations analytics from the command line",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "C", "", "Path to a TOML or YAML configuration file")
	flags.String("start", "", "First day to include (YYYY-MM-DD)")
	flags.String("end", "", "Last day to include (YYYY-MM-DD)")
	flags.StringSlice("company", nil, "Companies to include (comma-separated)")
	flags.StringSlice("destination", nil, "Destinations to include (comma-separated)")
	flags.StringSlice("material", nil, "Materials to include (comma-separated)")
	flags.String("locale", "", "Number and date locale: br or us (default from configuration)")
	flags.BoolP("verbose", "v", false, "Write structured logs to stderr")

	matrixCmd := &cobra.Command{
		Use:   "matrix",
		Short: "Print the daily operations matrix",
		Args:  cobra.NoArgs,
		RunE:  a.runMatrix,
	}

	kpisCmd := &cobra.Command{
		Use:   "kpis",
		Short: "Print the headline KPIs",
		Args:  cobra.NoArgs,
		RunE:  a.runKPIs,
	}

	summaryCmd := &cobra.Command{
		Use:       "summary <name>",
		Short:     "Print a named summary as JSON",
		Args:      cobra.ExactArgs(1),
		ValidArgs: services.SummaryNames,
		RunE:      a.runSummary,
	}
	summaryCmd.Flags().IntP("top", "n", 0, "Bound for ranked summaries (default from configuration)")

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export the matrix and KPIs to a file",
		Args:  cobra.NoArgs,
		RunE:  a.runExport,
	}
	exportCmd.Flags().StringP("format", "f", "xlsx", "Export format: csv, xlsx, pdf or sqlite")
	exportCmd.Flags().StringP("out", "o", "", "Output file (default: matrix_<timestamp>.<ext> in the current directory)")
	exportCmd.Flags().Bool("with-records", false, "Also export the filtered trip records")

	rootCmd.AddCommand(matrixCmd, kpisCmd, summaryCmd, exportCmd)
	a.rootCmd = rootCmd
	return a
}

// Execute runs the CLI application
func (a *CLIApp) Execute() error {
	return a.rootCmd.Execute()
}

// SetArgs overrides os.Args, for tests
func (a *CLIApp) SetArgs(args []string) {
	a.rootCmd.SetArgs(args)
}

// SetOutput redirects command output
func (a *CLIApp) SetOutput(out, errOut io.Writer) {
	a.rootCmd.SetOut(out)
	a.rootCmd.SetErr(errOut)
}

// run holds what every subcommand needs
type run struct {
	app    *app.App
	filter services.Filter
	out    io.Writer
	errOut io.Writer
}

func (a *CLIApp) setup(cmd *cobra.Command) (*run, error) {
	flags := cmd.Flags()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if path, _ := flags.GetString("config"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			return nil, err
		}
	}
	if locale, _ := flags.GetString("locale"); locale != "" {
		cfg.Display.Locale = locale
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	filter, err := filterFromFlags(cmd)
	if err != nil {
		return nil, err
	}

	logger := logging.NewStructuredLogger("fleetctl", a.version, logging.ParseLevel(cfg.Logging.Level))
	logger.SetOutput(cmd.ErrOrStderr())
	if verbose, _ := flags.GetBool("verbose"); !verbose {
		logger.SetLevel(logging.WarnLevel)
	}

	application, err := app.New(cmd.Context(), cfg, logger, metrics.NewCollector("fleetctl", prometheus.NewRegistry()))
	if err != nil {
		return nil, err
	}
	return &run{app: application, filter: filter, out: cmd.OutOrStdout(), errOut: cmd.ErrOrStderr()}, nil
}

func (r *run) view(ctx context.Context) (*services.View, error) {
	spinner, _ := pterm.DefaultSpinner.WithWriter(r.errOut).WithRemoveWhenDone().Start("Loading sources...")
	defer spinner.Stop()
	return r.app.Views.Compute(ctx, cliSession, r.filter)
}

func (a *CLIApp) runMatrix(cmd *cobra.Command, args []string) error {
	r, err := a.setup(cmd)
	if err != nil {
		return err
	}
	defer r.app.Close()

	view, err := r.view(cmd.Context())
	if err != nil {
		return err
	}
	if view.MatrixWarning != "" {
		fmt.Fprint(r.out, pterm.Warning.Sprintln(view.MatrixWarning))
		return nil
	}
	if len(view.Matrix) == 0 {
		fmt.Fprint(r.out, pterm.Info.Sprintln("No trips match the current filter"))
		return nil
	}

	fmt.Fprintln(r.out, renderMatrix(view.Matrix, r.app.Locale))
	fmt.Fprint(r.out, pterm.Info.Sprintfln("%d days, %d tags, %d trips",
		view.MatrixKPIs.DaysInAnalysis, view.MatrixKPIs.UniqueTags, view.MatrixKPIs.TotalTrips))
	return nil
}

func (a *CLIApp) runKPIs(cmd *cobra.Command, args []string) error {
	r, err := a.setup(cmd)
	if err != nil {
		return err
	}
	defer r.app.Close()

	view, err := r.view(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintln(r.out, renderKPIs(view, r.app.Locale))
	return nil
}

func (a *CLIApp) runSummary(cmd *cobra.Command, args []string) error {
	r, err := a.setup(cmd)
	if err != nil {
		return err
	}
	defer r.app.Close()

	n, _ := cmd.Flags().GetInt("top")
	if n <= 0 {
		n = r.app.Config.Display.TopN
	}

	view, err := r.view(cmd.Context())
	if err != nil {
		return err
	}

	result, err := services.RunSummary(args[0], view.Records, n)
	if err != nil {
		return fmt.Errorf("%w %q", err, args[0])
	}

	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func (a *CLIApp) runExport(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	rawFormat, _ := flags.GetString("format")
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return err
	}

	r, err := a.setup(cmd)
	if err != nil {
		return err
	}
	defer r.app.Close()

	view, err := r.view(cmd.Context())
	if err != nil {
		return err
	}
	if view.MatrixWarning != "" {
		return fmt.Errorf("cannot export matrix: %s", view.MatrixWarning)
	}

	out, _ := flags.GetString("out")
	if out == "" {
		out = fmt.Sprintf("matrix_%s.%s", time.Now().Format("20060102_150405"), format.Extension())
	}
	if abs, err := filepath.Abs(out); err == nil {
		out = abs
	}

	tables := []export.Table{
		export.MatrixTable(view.Matrix),
		export.KPIsTable(view.KPIs, view.MatrixKPIs),
	}
	if withRecords, _ := flags.GetBool("with-records"); withRecords {
		tables = append(tables, export.RecordsTable(view.Records))
	}

	opts := export.Options{Locale: r.app.Locale, Title: "Fleet Operations Matrix"}
	if err := r.app.Exporter.WriteFile(cmd.Context(), out, format, tables, opts); err != nil {
		return err
	}

	fmt.Fprint(r.out, pterm.Success.Sprintfln("Exported %d matrix rows to %s", len(view.Matrix), out))
	return nil
}

func filterFromFlags(cmd *cobra.Command) (services.Filter, error) {
	flags := cmd.Flags()
	var f services.Filter

	for _, bound := range []struct {
		flag string
		dst  **time.Time
	}{{"start", &f.Start}, {"end", &f.End}} {
		raw, _ := flags.GetString(bound.flag)
		if raw == "" {
			continue
		}
		d, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			return services.Filter{}, fmt.Errorf("invalid --%s %q, expected YYYY-MM-DD", bound.flag, raw)
		}
		*bound.dst = &d
	}

	f.Companies, _ = flags.GetStringSlice("company")
	f.Destinations, _ = flags.GetStringSlice("destination")
	f.Materials, _ = flags.GetStringSlice("material")
	return f, nil
}

// renderMatrix draws the formatted matrix; roll-up rows are bold
func renderMatrix(rows []models.MatrixRow, locale services.Locale) string {
	data := pterm.TableData{services.MatrixHeaders}
	for i, f := range services.FormatMatrix(rows, locale) {
		cells := f.Cells()
		if rows[i].IsRollup() {
			for j := range cells {
				cells[j] = pterm.Bold.Sprint(cells[j])
			}
		}
		data = append(data, cells)
	}

	table, _ := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithRightAlignment().
		WithData(data).
		Srender()
	return table
}

func renderKPIs(view *services.View, locale services.Locale) string {
	data := pterm.TableData{
		{"KPI", "Value"},
		{"Total Volume", locale.FormatDecimal(view.KPIs.TotalVolume, 2)},
		{"Total Revenue", locale.FormatDecimal(view.KPIs.TotalRevenue, 2)},
		{"Trips", locale.FormatCount(view.KPIs.TripCount)},
		{"Vehicle Tags", locale.FormatCount(view.KPIs.UniqueTags)},
		{"Plates", locale.FormatCount(view.KPIs.UniquePlates)},
		{"Days in Analysis", locale.FormatCount(view.MatrixKPIs.DaysInAnalysis)},
		{"Capacity Utilization %", locale.FormatDecimal(services.CapacityUtilization(view.Records), 2)},
	}

	table, _ := pterm.DefaultTable.
		WithHasHeader().
		WithBoxed().
		WithHeaderStyle(pterm.NewStyle(pterm.FgLightCyan)).
		WithData(data).
		Srender()
	return table
}
