package services

import (
	"context"
	"errors"
	"sync"

	"fleet-analytics/internal/models"
	"fleet-analytics/pkg/logging"
	"fleet-analytics/pkg/metrics"
)

// ErrStaleView means a newer request from the same session superseded this one
var ErrStaleView = errors.New("view superseded by a newer request")

// View is everything derived from one filter selection
type View struct {
	Filter          Filter                  `json:"filter"`
	Records         []models.EnrichedRecord `json:"-"`
	Matrix          []models.MatrixRow      `json:"matrix"`
	MatrixWarning   string                  `json:"matrix_warning,omitempty"`
	KPIs            KPIs                    `json:"kpis"`
	MatrixKPIs      MatrixKPIs              `json:"matrix_kpis"`
	SnapshotVersion uint64                  `json:"snapshot_version"`
	Generation      uint64                  `json:"generation"`
}

// sessionState tracks the computations in flight for the session's current
// filter selection
type sessionState struct {
	generation uint64
	key        string
	inflight   map[uint64]context.CancelFunc
}

// ViewService computes filtered views with last-request-wins semantics per
// session. A Compute with a different filter cancels the session's computations
// in flight, whose results are then discarded with ErrStaleView. A Compute with
// the same filter runs alongside them, so parallel panels of one selection
// all succeed.
type ViewService struct {
	store   SnapshotSource
	opts    MatrixOptions
	logger  *logging.StructuredLogger
	metrics *metrics.Collector

	mu       sync.Mutex
	sessions map[string]*sessionState
	nextGen  uint64
	nextReq  uint64
}

// NewViewService creates a new view service
func NewViewService(store SnapshotSource, opts MatrixOptions, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *ViewService {
	return &ViewService{
		store:    store,
		opts:     opts,
		logger:   logger,
		metrics:  metricsCollector,
		sessions: make(map[string]*sessionState),
	}
}

// Compute filters the current snapshot and aggregates the result
func (s *ViewService) Compute(ctx context.Context, session string, f Filter) (*View, error) {
	ctx, gen, req := s.begin(ctx, session, f.Key())
	defer s.end(session, req)

	snap, err := s.store.Snapshot(ctx)
	if err != nil {
		if !s.isCurrent(session, gen) {
			return nil, s.stale(ctx, session, gen)
		}
		return nil, err
	}

	timer := s.metrics.NewTimer(s.metrics.MatrixBuildDuration)
	records := ApplyFilters(snap.Records, f)
	if ctx.Err() != nil || !s.isCurrent(session, gen) {
		return nil, s.stale(ctx, session, gen)
	}

	view := &View{
		Filter:          f,
		Records:         records,
		KPIs:            ComputeKPIs(records),
		MatrixKPIs:      ComputeMatrixKPIs(records),
		SnapshotVersion: snap.Version,
		Generation:      gen,
	}

	matrix, err := BuildMatrix(records, snap.Columns, s.opts)
	var inputErr *models.AggregationInputError
	if errors.As(err, &inputErr) {
		s.metrics.AggregationInputErrors.Inc()
		s.logger.Warn(ctx, "[MATRIX_INPUT_MISSING_COLUMNS] Matrix skipped, dataset lacks required columns", logging.Fields{
			"missing":          inputErr.Missing,
			"snapshot_version": snap.Version,
		})
		view.MatrixWarning = inputErr.Error()
	}
	view.Matrix = matrix
	timer.ObserveDuration()

	if ctx.Err() != nil || !s.isCurrent(session, gen) {
		return nil, s.stale(ctx, session, gen)
	}
	return view, nil
}

func (s *ViewService) begin(ctx context.Context, session, key string) (context.Context, uint64, uint64) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[session]
	if !ok || st.key != key {
		if ok {
			for _, prev := range st.inflight {
				prev()
			}
		}
		s.nextGen++
		st = &sessionState{generation: s.nextGen, key: key, inflight: make(map[uint64]context.CancelFunc)}
		s.sessions[session] = st
	}
	s.nextReq++
	st.inflight[s.nextReq] = cancel
	return ctx, st.generation, s.nextReq
}

func (s *ViewService) end(session string, req uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[session]
	if !ok {
		return
	}
	if cancel, ok := st.inflight[req]; ok {
		cancel()
		delete(st.inflight, req)
		if len(st.inflight) == 0 {
			delete(s.sessions, session)
		}
	}
}

func (s *ViewService) isCurrent(session string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[session]
	return ok && st.generation == gen
}

func (s *ViewService) stale(ctx context.Context, session string, gen uint64) error {
	s.metrics.StaleViewsTotal.Inc()
	s.logger.Debug(ctx, "[VIEW_STALE] Discarding superseded view computation", logging.Fields{
		"session":    session,
		"generation": gen,
	})
	return ErrStaleView
}
