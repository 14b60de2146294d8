package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"fleet-analytics/internal/config"
	"fleet-analytics/internal/models"
)

// Source names used in errors, logs and metrics
const (
	NameTrips   = "trips"
	NameFleet   = "fleet"
	NamePricing = "pricing"
)

// TableSource fetches one feed as a Table
type TableSource interface {
	Name() string
	Fetch(ctx context.Context) (*Table, error)
}

// Provider holds the three feeds the loader needs
type Provider struct {
	Trips   TableSource
	Fleet   TableSource
	Pricing TableSource
}

// FetchTrips fetches the trip/volume feed
func (p *Provider) FetchTrips(ctx context.Context) (*Table, error) {
	return fetch(ctx, NameTrips, p.Trips)
}

// FetchFleet fetches the fleet registry
func (p *Provider) FetchFleet(ctx context.Context) (*Table, error) {
	return fetch(ctx, NameFleet, p.Fleet)
}

// FetchPricing fetches the pricing schedule
func (p *Provider) FetchPricing(ctx context.Context) (*Table, error) {
	return fetch(ctx, NamePricing, p.Pricing)
}

// Tables is the result of FetchAll
type Tables struct {
	Trips   *Table
	Fleet   *Table
	Pricing *Table
}

// FetchAll fetches the three feeds concurrently. The first failure cancels
// the others and is returned as a *models.DataLoadError.
func (p *Provider) FetchAll(ctx context.Context) (*Tables, error) {
	var out Tables
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, err := p.FetchTrips(gctx)
		out.Trips = t
		return err
	})
	g.Go(func() error {
		t, err := p.FetchFleet(gctx)
		out.Fleet = t
		return err
	})
	g.Go(func() error {
		t, err := p.FetchPricing(gctx)
		out.Pricing = t
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

func fetch(ctx context.Context, name string, src TableSource) (*Table, error) {
	if src == nil {
		return nil, &models.DataLoadError{Source: name, Cause: fmt.Errorf("no source configured")}
	}
	t, err := src.Fetch(ctx)
	if err != nil {
		return nil, &models.DataLoadError{Source: name, Cause: err}
	}
	if t == nil {
		t = &Table{}
	}
	return t, nil
}

// PricingLister is the read side of the pricing store
type PricingLister interface {
	ListPricing(ctx context.Context) ([]models.PricingEntry, error)
}

// NewSource builds a TableSource from configuration. A postgres kind needs a
// non-nil lister.
func NewSource(name string, cfg config.SourceConfig, timeout time.Duration, lister PricingLister) (TableSource, error) {
	client := &http.Client{Timeout: timeout}

	switch cfg.Kind {
	case config.SourceCSV:
		return &CSVSource{SourceName: name, Location: cfg.Location, Client: client}, nil
	case config.SourceXLSX:
		return &XLSXSource{SourceName: name, Location: cfg.Location, Sheet: cfg.Sheet, Client: client}, nil
	case config.SourcePostgres:
		if lister == nil {
			return nil, fmt.Errorf("%s source: postgres kind requires a database connection", name)
		}
		return &PricingDBSource{SourceName: name, Store: lister}, nil
	default:
		return nil, fmt.Errorf("%s source: unsupported kind %q", name, cfg.Kind)
	}
}

// openLocation opens an http(s) URL or a local file path
func openLocation(ctx context.Context, client *http.Client, location string) (io.ReadCloser, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		if client == nil {
			client = &http.Client{Timeout: 30 * time.Second}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", location, err)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to download %s: received status code %d", location, resp.StatusCode)
		}
		return resp.Body, nil
	}

	f, err := os.Open(location)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", location, err)
	}
	return f, nil
}
