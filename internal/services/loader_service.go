package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleet-analytics/internal/models"
	"fleet-analytics/internal/sources"
	"fleet-analytics/pkg/logging"
	"fleet-analytics/pkg/metrics"
)

// Canonical column names. Source headers are mapped onto these through Aliases.
const (
	ColDate           = "date"
	ColTime           = "time"
	ColTag            = "tag"
	ColPlate          = "plate"
	ColDestination    = "destination"
	ColMaterial       = "material"
	ColVolume         = "volume"
	ColCompany        = "company"
	ColOwner          = "owner"
	ColModel          = "model"
	ColMaxVolume      = "max_volume"
	ColStatus         = "status"
	ColVehicleType    = "vehicle_type"
	ColIdentification = "identification"
	ColFleetNumber    = "fleet_number"
	ColClient         = "client"
	ColPrice          = "price_per_unit"
	ColValidFrom      = "valid_from"
	ColValidTo        = "valid_to"
)

// Aliases maps a canonical column to the header spellings accepted for it
type Aliases map[string][]string

// DefaultAliases returns the built-in header spellings for each source
func DefaultAliases() map[string]Aliases {
	return map[string]Aliases{
		sources.NameTrips: {
			ColDate:        {"date", "data"},
			ColTime:        {"time", "hora"},
			ColTag:         {"tag", "vehicle_tag", "coluna1"},
			ColPlate:       {"plate", "placa"},
			ColDestination: {"destination", "destino", "frente"},
			ColMaterial:    {"material"},
			ColVolume:      {"volume"},
		},
		sources.NameFleet: {
			ColPlate:          {"plate", "placa"},
			ColTag:            {"tag", "vehicle_tag", "coluna1"},
			ColCompany:        {"company", "empresa"},
			ColOwner:          {"owner", "proprietario", "proprietário"},
			ColModel:          {"model", "modelo"},
			ColMaxVolume:      {"max_volume", "volume máx", "volume max", "capacidade"},
			ColStatus:         {"status"},
			ColVehicleType:    {"vehicle_type", "tipo"},
			ColIdentification: {"identification", "identificação", "identificacao"},
			ColFleetNumber:    {"fleet_number", "frota"},
			ColClient:         {"client", "cliente"},
		},
		sources.NamePricing: {
			ColDestination: {"destination", "destino", "frente"},
			ColPrice:       {"price_per_unit", "price_per_ton", "valor bruto", "preço", "preco"},
			ColValidFrom:   {"valid_from", "start_date", "início", "inicio"},
			ColValidTo:     {"valid_to", "end_date", "fim"},
		},
	}
}

// MergeAliases puts the configured spellings ahead of the defaults
func MergeAliases(defaults, extra Aliases) Aliases {
	out := make(Aliases, len(defaults))
	for col, names := range defaults {
		out[col] = append([]string(nil), names...)
	}
	for col, names := range extra {
		out[col] = append(append([]string(nil), names...), out[col]...)
	}
	return out
}

// ColumnSet records which canonical columns were present in the loaded data
type ColumnSet map[string]bool

// Has reports whether col was present
func (c ColumnSet) Has(col string) bool {
	return c[col]
}

// Missing returns the subset of cols that were not present, in input order
func (c ColumnSet) Missing(cols ...string) []string {
	var missing []string
	for _, col := range cols {
		if !c[col] {
			missing = append(missing, col)
		}
	}
	return missing
}

// SourceReport summarizes the parsing of one source
type SourceReport struct {
	Source          string `json:"source"`
	TotalRows       int    `json:"total_rows"`
	AcceptedRows    int    `json:"accepted_rows"`
	DroppedRows     int    `json:"dropped_rows"`
	ZeroFilledCells int    `json:"zero_filled_cells"`
}

// LoadReport contains load statistics
type LoadReport struct {
	Trips    SourceReport  `json:"trips"`
	Fleet    SourceReport  `json:"fleet"`
	Pricing  SourceReport  `json:"pricing"`
	Duration time.Duration `json:"duration"`
	// Errors holds the first row problems, capped by LoaderOptions.MaxReportedErrors
	Errors      []string `json:"errors"`
	ErrorsTotal int      `json:"errors_total"`
}

// LoadResult is the typed output of one three-source load
type LoadResult struct {
	Trips   []models.TripRecord
	Fleet   []models.FleetEntry
	Pricing []models.PricingEntry
	Columns ColumnSet
	Report  LoadReport
}

// LoaderOptions configures a LoaderService
type LoaderOptions struct {
	// Aliases holds per-source extra header spellings keyed by source name
	Aliases           map[string]Aliases
	MaxReportedErrors int
	AllowEmptyPricing bool
}

// LoaderService fetches the three feeds and turns them into typed records
type LoaderService struct {
	provider *sources.Provider
	aliases  map[string]Aliases
	opts     LoaderOptions
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// NewLoaderService creates a new loader service
func NewLoaderService(provider *sources.Provider, opts LoaderOptions, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *LoaderService {
	aliases := DefaultAliases()
	for name, extra := range opts.Aliases {
		aliases[name] = MergeAliases(aliases[name], extra)
	}
	return &LoaderService{
		provider: provider,
		aliases:  aliases,
		opts:     opts,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// Load fetches and parses all sources. Row problems are absorbed into the
// report; an unreachable or empty source fails the whole load with a
// *models.DataLoadError.
func (s *LoaderService) Load(ctx context.Context) (*LoadResult, error) {
	startTime := time.Now()

	s.logger.Info(ctx, "[LOAD_START] Starting data load", logging.Fields{
		"stage": "FETCH",
	})

	tables, err := s.provider.FetchAll(ctx)
	if err != nil {
		var loadErr *models.DataLoadError
		if errors.As(err, &loadErr) {
			s.metrics.RecordLoadError(loadErr.Source)
		}
		s.logger.Error(ctx, "[LOAD_FETCH_ERROR] Source fetch failed", logging.Fields{
			"stage": "FETCH",
		}, err)
		return nil, err
	}

	result := &LoadResult{Columns: ColumnSet{}}
	collector := &rowErrors{max: s.opts.MaxReportedErrors, metrics: s.metrics}

	result.Trips, result.Report.Trips = s.parseTrips(tables.Trips, result.Columns, collector)
	result.Fleet, result.Report.Fleet = s.parseFleet(tables.Fleet, result.Columns, collector)
	result.Pricing, result.Report.Pricing = s.parsePricing(tables.Pricing, result.Columns, collector)
	result.Report.Errors = collector.messages
	result.Report.ErrorsTotal = collector.total

	for _, rep := range []SourceReport{result.Report.Trips, result.Report.Fleet, result.Report.Pricing} {
		s.metrics.RecordLoadRows(rep.Source, rep.AcceptedRows, rep.DroppedRows)
		s.logger.WithFields(logging.Fields{"source": rep.Source}).Info(ctx, "[LOAD_SOURCE] Source parsed", logging.Fields{
			"total_rows":        rep.TotalRows,
			"accepted_rows":     rep.AcceptedRows,
			"dropped_rows":      rep.DroppedRows,
			"zero_filled_cells": rep.ZeroFilledCells,
			"stage":             "PARSE",
		})
	}

	if err := s.checkEmpty(result); err != nil {
		var loadErr *models.DataLoadError
		if errors.As(err, &loadErr) {
			s.metrics.RecordLoadError(loadErr.Source)
		}
		s.logger.Error(ctx, "[LOAD_EMPTY_SOURCE] Source yielded no usable rows", logging.Fields{
			"stage": "VALIDATE",
		}, err)
		return nil, err
	}

	result.Report.Duration = time.Since(startTime)
	s.metrics.LoadDuration.Observe(result.Report.Duration.Seconds())

	s.logger.Info(ctx, "[LOAD_COMPLETE] Data load completed", logging.Fields{
		"trips":            len(result.Trips),
		"fleet":            len(result.Fleet),
		"pricing":          len(result.Pricing),
		"row_errors":       result.Report.ErrorsTotal,
		"duration_seconds": result.Report.Duration.Seconds(),
		"stage":            "COMPLETE",
	})

	return result, nil
}

func (s *LoaderService) checkEmpty(result *LoadResult) error {
	noRows := errors.New("no usable rows after parsing")
	if len(result.Trips) == 0 {
		return &models.DataLoadError{Source: sources.NameTrips, Cause: noRows}
	}
	if len(result.Fleet) == 0 {
		return &models.DataLoadError{Source: sources.NameFleet, Cause: noRows}
	}
	if len(result.Pricing) == 0 && !s.opts.AllowEmptyPricing {
		return &models.DataLoadError{Source: sources.NamePricing, Cause: noRows}
	}
	return nil
}

// columnIndex resolves every canonical column of a source against the table header
func (s *LoaderService) columnIndex(source string, t *sources.Table, present ColumnSet) map[string]int {
	idx := make(map[string]int, len(s.aliases[source]))
	for col, names := range s.aliases[source] {
		i := t.Index(names...)
		idx[col] = i
		if i >= 0 {
			present[col] = true
		}
	}
	return idx
}

func (s *LoaderService) parseTrips(t *sources.Table, present ColumnSet, errs *rowErrors) ([]models.TripRecord, SourceReport) {
	rep := SourceReport{Source: sources.NameTrips, TotalRows: t.Len()}
	idx := s.columnIndex(sources.NameTrips, t, present)
	trips := make([]models.TripRecord, 0, t.Len())

	for i, row := range t.Rows {
		rowNum := i + 2 // header is row 1
		date := t.Value(row, idx[ColDate])
		clock := t.Value(row, idx[ColTime])

		ts, err := models.ParseTimestamp(date, clock)
		if err != nil {
			rep.DroppedRows++
			errs.add("timestamp", &models.MalformedRowError{
				Source: rep.Source, Row: rowNum, Column: ColDate,
				Value: strings.TrimSpace(date + " " + clock), Reason: "unparseable timestamp, row dropped",
			})
			continue
		}

		volume, filled := numericCell(t.Value(row, idx[ColVolume]))
		if filled {
			rep.ZeroFilledCells++
			errs.add("numeric", &models.MalformedRowError{
				Source: rep.Source, Row: rowNum, Column: ColVolume,
				Value: t.Value(row, idx[ColVolume]), Reason: "not numeric, zero-filled",
			})
		}
		if volume < 0 {
			rep.ZeroFilledCells++
			errs.add("negative_volume", &models.MalformedRowError{
				Source: rep.Source, Row: rowNum, Column: ColVolume,
				Value: t.Value(row, idx[ColVolume]), Reason: "negative volume, zero-filled",
			})
			volume = 0
		}

		tag := ""
		if idx[ColTag] >= 0 {
			tag = models.NormalizeText(t.Value(row, idx[ColTag]))
		}

		trips = append(trips, models.NewTripRecord(
			tag,
			models.NormalizeText(t.Value(row, idx[ColPlate])),
			ts,
			models.NormalizeText(t.Value(row, idx[ColDestination])),
			models.NormalizeText(t.Value(row, idx[ColMaterial])),
			volume,
		))
	}

	rep.AcceptedRows = len(trips)
	return trips, rep
}

func (s *LoaderService) parseFleet(t *sources.Table, present ColumnSet, errs *rowErrors) ([]models.FleetEntry, SourceReport) {
	rep := SourceReport{Source: sources.NameFleet, TotalRows: t.Len()}
	fleetPresent := ColumnSet{}
	idx := s.columnIndex(sources.NameFleet, t, fleetPresent)
	// Only the tag and capacity columns of the registry feed the trip-level column set
	if fleetPresent.Has(ColTag) {
		present[ColTag] = true
	}
	if fleetPresent.Has(ColMaxVolume) {
		present[ColMaxVolume] = true
	}
	if fleetPresent.Has(ColCompany) {
		present[ColCompany] = true
	}
	entries := make([]models.FleetEntry, 0, t.Len())

	text := func(row []string, col string) string {
		return models.NormalizeText(t.Value(row, idx[col]))
	}

	for i, row := range t.Rows {
		rowNum := i + 2
		plate := text(row, ColPlate)
		if plate == models.MissingText {
			rep.DroppedRows++
			errs.add("missing_key", &models.MalformedRowError{
				Source: rep.Source, Row: rowNum, Column: ColPlate, Reason: "missing plate, row dropped",
			})
			continue
		}

		maxVolume, filled := numericCell(t.Value(row, idx[ColMaxVolume]))
		if filled {
			rep.ZeroFilledCells++
			errs.add("numeric", &models.MalformedRowError{
				Source: rep.Source, Row: rowNum, Column: ColMaxVolume,
				Value: t.Value(row, idx[ColMaxVolume]), Reason: "not numeric, zero-filled",
			})
		}

		entry := models.FleetEntry{
			Plate:          plate,
			Company:        text(row, ColCompany),
			Owner:          text(row, ColOwner),
			Model:          text(row, ColModel),
			MaxVolume:      maxVolume,
			Status:         text(row, ColStatus),
			VehicleType:    text(row, ColVehicleType),
			Identification: text(row, ColIdentification),
			FleetNumber:    text(row, ColFleetNumber),
			Client:         text(row, ColClient),
		}
		if idx[ColTag] >= 0 {
			entry.Tag = text(row, ColTag)
		}
		entries = append(entries, entry)
	}

	rep.AcceptedRows = len(entries)
	return entries, rep
}

func (s *LoaderService) parsePricing(t *sources.Table, present ColumnSet, errs *rowErrors) ([]models.PricingEntry, SourceReport) {
	rep := SourceReport{Source: sources.NamePricing, TotalRows: t.Len()}
	idx := s.columnIndex(sources.NamePricing, t, ColumnSet{})
	if idx[ColPrice] >= 0 {
		present[ColPrice] = true
	}
	entries := make([]models.PricingEntry, 0, t.Len())

	for i, row := range t.Rows {
		rowNum := i + 2
		destination := models.NormalizeText(t.Value(row, idx[ColDestination]))
		if destination == models.MissingText {
			rep.DroppedRows++
			errs.add("missing_key", &models.MalformedRowError{
				Source: rep.Source, Row: rowNum, Column: ColDestination, Reason: "missing destination, row dropped",
			})
			continue
		}

		price, filled := numericCell(t.Value(row, idx[ColPrice]))
		if filled {
			rep.ZeroFilledCells++
			errs.add("numeric", &models.MalformedRowError{
				Source: rep.Source, Row: rowNum, Column: ColPrice,
				Value: t.Value(row, idx[ColPrice]), Reason: "not numeric, zero-filled",
			})
		}

		entry := models.PricingEntry{Destination: destination, PricePerUnit: price}
		var bad bool
		for _, bound := range []struct {
			col string
			dst *time.Time
		}{{ColValidFrom, &entry.ValidFrom}, {ColValidTo, &entry.ValidTo}} {
			raw := strings.TrimSpace(t.Value(row, idx[bound.col]))
			if raw == "" {
				continue
			}
			d, err := models.ParseDate(raw)
			if err != nil {
				errs.add("validity", &models.MalformedRowError{
					Source: rep.Source, Row: rowNum, Column: bound.col, Value: raw, Reason: "unparseable date, row dropped",
				})
				bad = true
				break
			}
			*bound.dst = d
		}
		if !bad {
			if err := entry.Validate(); err != nil {
				errs.add("validity", &models.MalformedRowError{
					Source: rep.Source, Row: rowNum, Column: ColValidFrom,
					Value: fmt.Sprintf("%s..%s", formatDay(entry.ValidFrom), formatDay(entry.ValidTo)), Reason: err.Error() + ", row dropped",
				})
				bad = true
			}
		}
		if bad {
			rep.DroppedRows++
			continue
		}
		entries = append(entries, entry)
	}

	rep.AcceptedRows = len(entries)
	return entries, rep
}

// numericCell parses a numeric cell. filled is true when a non-blank cell had
// to be zero-filled; blank cells are 0 without being reported.
func numericCell(raw string) (value float64, filled bool) {
	if strings.TrimSpace(raw) == "" {
		return 0, false
	}
	v, ok := models.ParseNumeric(raw)
	if !ok {
		return 0, true
	}
	return v, false
}

func formatDay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(models.DateLayout)
}

// rowErrors accumulates row problems for the load report
type rowErrors struct {
	max      int
	total    int
	messages []string
	metrics  *metrics.Collector
}

func (r *rowErrors) add(kind string, err *models.MalformedRowError) {
	r.total++
	r.metrics.RecordMalformedRow(err.Source, kind)
	if len(r.messages) < r.max {
		r.messages = append(r.messages, err.Error())
	}
}
