package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fleet-analytics/internal/app"
	"fleet-analytics/internal/config"
	"fleet-analytics/internal/handlers"
	"fleet-analytics/pkg/logging"
	"fleet-analytics/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := logging.NewStructuredLogger("fleet-api", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting fleet analytics API server", logging.Fields{
		"version":        "1.0.0",
		"server_host":    cfg.Server.Host,
		"server_port":    cfg.Server.Port,
		"trips_source":   cfg.Sources.Trips.Kind,
		"pricing_source": cfg.Sources.Pricing.Kind,
		"db_enabled":     cfg.Database.Enabled,
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("fleet_analytics", prometheus.DefaultRegisterer)

	// Wire sources, snapshot store and services
	application, err := app.New(ctx, cfg, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to initialize application", logging.Fields{}, err)
	}
	defer application.Close()

	// Warm the snapshot; a failure here is served as 503 until a reload succeeds
	warmCtx, cancelWarm := context.WithTimeout(ctx, cfg.Sources.Timeout()+5*time.Second)
	if _, err := application.Store.Reload(warmCtx); err != nil {
		logger.Warn(ctx, "[STARTUP_LOAD_FAILED] Initial dataset load failed", logging.Fields{
			"error": err.Error(),
		})
	}
	cancelWarm()

	// Initialize handlers
	dashboardHandler := handlers.NewDashboardHandler(
		application.Store,
		application.Views,
		application.Exporter,
		application.Pricing,
		handlers.HandlerOptions{Locale: application.Locale, TopN: cfg.Display.TopN},
		logger,
		metricsCollector,
	)

	// Setup router
	router := mux.NewRouter()

	// Register routes
	dashboardHandler.RegisterRoutes(router)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
