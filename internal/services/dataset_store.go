package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"fleet-analytics/internal/models"
	"fleet-analytics/pkg/logging"
	"fleet-analytics/pkg/metrics"
)

// Snapshot is an immutable enriched dataset. Nothing may modify a published snapshot.
type Snapshot struct {
	Records  []models.EnrichedRecord
	Columns  ColumnSet
	Report   LoadReport
	LoadedAt time.Time
	Version  uint64
}

// Loader produces one complete load of the three sources
type Loader interface {
	Load(ctx context.Context) (*LoadResult, error)
}

// SnapshotSource hands out the current dataset snapshot
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// DatasetStore owns the cached enriched dataset. The first Snapshot call
// loads it; Reload refreshes it explicitly; a non-zero staleAfter makes
// Snapshot refresh once the snapshot is older than that. Concurrent reloads
// share one load, and a failed load keeps the previous snapshot published.
type DatasetStore struct {
	loader     Loader
	staleAfter time.Duration
	current    atomic.Pointer[Snapshot]
	version    atomic.Uint64
	group      singleflight.Group
	now        func() time.Time
	logger     *logging.StructuredLogger
	metrics    *metrics.Collector
}

// NewDatasetStore creates a new dataset store
func NewDatasetStore(loader Loader, staleAfter time.Duration, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *DatasetStore {
	return &DatasetStore{
		loader:     loader,
		staleAfter: staleAfter,
		now:        time.Now,
		logger:     logger,
		metrics:    metricsCollector,
	}
}

// Current returns the published snapshot without loading; nil before the first load
func (s *DatasetStore) Current() *Snapshot {
	return s.current.Load()
}

// Snapshot returns the published snapshot, loading it on first use. When the
// snapshot is stale and the refresh fails, the stale snapshot is returned.
func (s *DatasetStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	cur := s.current.Load()
	if cur == nil {
		return s.Reload(ctx)
	}
	if s.staleAfter <= 0 || s.now().Sub(cur.LoadedAt) < s.staleAfter {
		return cur, nil
	}

	snap, err := s.Reload(ctx)
	if err != nil {
		s.logger.Warn(ctx, "[SNAPSHOT_STALE] Refresh failed, serving last-known-good snapshot", logging.Fields{
			"version":   cur.Version,
			"loaded_at": cur.LoadedAt.Format(time.RFC3339),
			"error":     err.Error(),
		})
		return cur, nil
	}
	return snap, nil
}

// Reload loads and publishes a new snapshot. Callers arriving while a load
// is in flight wait for that load. A caller whose ctx ends stops waiting but
// does not cancel the shared load.
func (s *DatasetStore) Reload(ctx context.Context) (*Snapshot, error) {
	ch := s.group.DoChan("reload", func() (interface{}, error) {
		return s.load(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

func (s *DatasetStore) load(ctx context.Context) (*Snapshot, error) {
	startTime := time.Now()

	result, err := s.loader.Load(ctx)
	if err != nil {
		s.metrics.RecordSnapshotFailure()
		s.logger.Error(ctx, "[SNAPSHOT_LOAD_ERROR] Dataset load failed", logging.Fields{
			"has_previous": s.current.Load() != nil,
		}, err)
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	snap := &Snapshot{
		Records:  Join(result.Trips, result.Fleet, result.Pricing),
		Columns:  result.Columns,
		Report:   result.Report,
		LoadedAt: s.now(),
		Version:  s.version.Add(1),
	}
	s.current.Store(snap)
	s.metrics.ProcessingTimeMS.WithLabelValues("snapshot_load").Observe(float64(time.Since(startTime).Milliseconds()))

	s.metrics.RecordSnapshot(len(snap.Records), snap.LoadedAt)
	s.logger.Info(ctx, "[SNAPSHOT_PUBLISHED] Dataset snapshot published", logging.Fields{
		"version":    snap.Version,
		"records":    len(snap.Records),
		"row_errors": snap.Report.ErrorsTotal,
	})

	return snap, nil
}
