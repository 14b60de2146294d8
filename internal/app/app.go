// Package app wires configuration into the loader, snapshot store, view
// service and exporter shared by the server and the CLI.
package app

import (
	"context"
	"fmt"

	"fleet-analytics/internal/config"
	"fleet-analytics/internal/export"
	"fleet-analytics/internal/repository"
	"fleet-analytics/internal/services"
	"fleet-analytics/internal/sources"
	"fleet-analytics/pkg/database"
	"fleet-analytics/pkg/logging"
	"fleet-analytics/pkg/metrics"
)

// App holds the wired components
type App struct {
	Config   *config.Config
	DB       *database.PostgresDB
	Pricing  repository.PricingRepository
	Loader   *services.LoaderService
	Store    *services.DatasetStore
	Views    *services.ViewService
	Exporter *export.Exporter
	Locale   services.Locale
}

// PostgresConfig converts the database section for pkg/database
func PostgresConfig(c config.DatabaseConfig) *database.Config {
	return &database.Config{
		Host:            c.Host,
		Port:            c.Port,
		User:            c.User,
		Password:        c.Password,
		Database:        c.Database,
		SSLMode:         c.SSLMode,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
	}
}

// New connects the optional pricing database and builds every component.
// Call Close when done.
func New(ctx context.Context, cfg *config.Config, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*App, error) {
	locale, err := services.ParseLocale(cfg.Display.Locale)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Locale: locale}

	var lister sources.PricingLister
	if cfg.Database.Enabled {
		db, err := database.NewPostgresDB(ctx, PostgresConfig(cfg.Database), logger, metricsCollector)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to pricing database: %w", err)
		}
		a.DB = db
		a.Pricing = repository.NewPricingRepository(db, logger, metricsCollector)
		lister = a.Pricing
	}

	provider, err := newProvider(cfg.Sources, lister)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Loader = services.NewLoaderService(provider, services.LoaderOptions{
		Aliases: map[string]services.Aliases{
			sources.NameTrips:   cfg.Sources.Trips.Aliases,
			sources.NameFleet:   cfg.Sources.Fleet.Aliases,
			sources.NamePricing: cfg.Sources.Pricing.Aliases,
		},
		MaxReportedErrors: cfg.Sources.MaxReportedErrors,
		AllowEmptyPricing: cfg.Sources.AllowEmptyPricing,
	}, logger, metricsCollector)

	a.Store = services.NewDatasetStore(a.Loader, cfg.Cache.StaleAfter, logger, metricsCollector)
	a.Views = services.NewViewService(a.Store, services.DefaultMatrixOptions(), logger, metricsCollector)
	a.Exporter = export.NewExporter(logger, metricsCollector)

	return a, nil
}

func newProvider(cfg config.SourcesConfig, lister sources.PricingLister) (*sources.Provider, error) {
	trips, err := sources.NewSource(sources.NameTrips, cfg.Trips, cfg.Timeout(), lister)
	if err != nil {
		return nil, err
	}
	fleet, err := sources.NewSource(sources.NameFleet, cfg.Fleet, cfg.Timeout(), lister)
	if err != nil {
		return nil, err
	}
	pricing, err := sources.NewSource(sources.NamePricing, cfg.Pricing, cfg.Timeout(), lister)
	if err != nil {
		return nil, err
	}
	return &sources.Provider{Trips: trips, Fleet: fleet, Pricing: pricing}, nil
}

// Close releases the database connection, if any
func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
