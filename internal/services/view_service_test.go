package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"fleet-analytics/internal/models"
)

type staticSnapshots struct {
	snap *Snapshot
	err  error
}

func (s *staticSnapshots) Snapshot(ctx context.Context) (*Snapshot, error) {
	return s.snap, s.err
}

// blockingSnapshots holds its first caller until release is closed or its ctx ends
type blockingSnapshots struct {
	snap    *Snapshot
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSnapshots) Snapshot(ctx context.Context) (*Snapshot, error) {
	if b.calls.Add(1) == 1 {
		close(b.entered)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.release:
		}
	}
	return b.snap, nil
}

func newTestViews(src SnapshotSource) *ViewService {
	logger, collector := newTestDeps()
	return NewViewService(src, DefaultMatrixOptions(), logger, collector)
}

func TestViewService_Compute(t *testing.T) {
	snap := &Snapshot{Records: scenarioRecords(), Columns: fullColumns(), Version: 3}
	views := newTestViews(&staticSnapshots{snap: snap})

	tests := []struct {
		name        string
		filter      Filter
		checkValues func(*testing.T, *View)
	}{
		{
			name:   "unfiltered",
			filter: Filter{},
			checkValues: func(t *testing.T, v *View) {
				if len(v.Records) != 3 || len(v.Matrix) != 4 {
					t.Errorf("records/matrix = %d/%d, want 3/4", len(v.Records), len(v.Matrix))
				}
				if v.KPIs.TotalVolume != 35 || v.MatrixKPIs.UniqueTags != 2 {
					t.Errorf("kpis = %+v %+v", v.KPIs, v.MatrixKPIs)
				}
				if v.SnapshotVersion != 3 {
					t.Errorf("SnapshotVersion = %d, want 3", v.SnapshotVersion)
				}
			},
		},
		{
			name:   "company filter",
			filter: Filter{Companies: []string{"BETA"}},
			checkValues: func(t *testing.T, v *View) {
				if len(v.Records) != 1 || v.Matrix[len(v.Matrix)-1].VolumeSum != 20 {
					t.Errorf("view = %+v", v)
				}
			},
		},
		{
			name:   "empty selection",
			filter: Filter{Materials: []string{"CALCARIO"}},
			checkValues: func(t *testing.T, v *View) {
				if len(v.Records) != 0 || len(v.Matrix) != 0 || v.MatrixWarning != "" {
					t.Errorf("view = %+v, want empty", v)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := views.Compute(context.Background(), "session-a", tt.filter)
			if err != nil {
				t.Fatalf("Compute() error = %v", err)
			}
			tt.checkValues(t, v)
		})
	}
}

func TestViewService_MissingColumnsDegradesMatrix(t *testing.T) {
	snap := &Snapshot{Records: scenarioRecords(), Columns: ColumnSet{ColDate: true, ColVolume: true, ColPlate: true}}
	views := newTestViews(&staticSnapshots{snap: snap})

	v, err := views.Compute(context.Background(), "s", Filter{})
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if len(v.Matrix) != 0 || v.MatrixWarning == "" {
		t.Errorf("matrix = %d rows, warning %q; want empty with warning", len(v.Matrix), v.MatrixWarning)
	}
	if v.KPIs.TripCount != 3 {
		t.Errorf("KPIs.TripCount = %d, want 3", v.KPIs.TripCount)
	}
}

func TestViewService_StoreError(t *testing.T) {
	want := &models.DataLoadError{Source: "fleet", Cause: errors.New("timeout")}
	views := newTestViews(&staticSnapshots{err: want})

	_, err := views.Compute(context.Background(), "s", Filter{})
	var loadErr *models.DataLoadError
	if !errors.As(err, &loadErr) {
		t.Errorf("Compute() error = %v, want DataLoadError", err)
	}
}

func TestViewService_LastRequestWins(t *testing.T) {
	src := &blockingSnapshots{
		snap:    &Snapshot{Records: scenarioRecords(), Columns: fullColumns()},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	views := newTestViews(src)
	defer close(src.release)

	type outcome struct {
		view *View
		err  error
	}
	older := make(chan outcome, 1)
	go func() {
		v, err := views.Compute(context.Background(), "s", Filter{})
		older <- outcome{v, err}
	}()
	<-src.entered

	newer, err := views.Compute(context.Background(), "s", Filter{Materials: []string{"AREIA"}})
	if err != nil {
		t.Fatalf("newer Compute() error = %v", err)
	}
	if len(newer.Records) != 1 {
		t.Errorf("newer view has %d records, want 1", len(newer.Records))
	}

	select {
	case got := <-older:
		if !errors.Is(got.err, ErrStaleView) {
			t.Errorf("older Compute() error = %v, want ErrStaleView", got.err)
		}
		if got.view != nil {
			t.Error("older Compute() should not return a view")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("older Compute() did not return")
	}
}

func TestViewService_SessionsAreIndependent(t *testing.T) {
	src := &blockingSnapshots{
		snap:    &Snapshot{Records: scenarioRecords(), Columns: fullColumns()},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	views := newTestViews(src)

	first := make(chan error, 1)
	go func() {
		_, err := views.Compute(context.Background(), "alice", Filter{})
		first <- err
	}()
	<-src.entered

	if _, err := views.Compute(context.Background(), "bob", Filter{}); err != nil {
		t.Fatalf("Compute(bob) error = %v", err)
	}

	close(src.release)
	select {
	case err := <-first:
		if err != nil {
			t.Errorf("Compute(alice) error = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Compute(alice) did not return")
	}
}

func TestViewService_SameFilterRunsAlongside(t *testing.T) {
	src := &blockingSnapshots{
		snap:    &Snapshot{Records: scenarioRecords(), Columns: fullColumns()},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	views := newTestViews(src)

	type outcome struct {
		view *View
		err  error
	}
	first := make(chan outcome, 1)
	go func() {
		v, err := views.Compute(context.Background(), "s", Filter{Materials: []string{"BRITA"}})
		first <- outcome{v, err}
	}()
	<-src.entered

	// Another panel of the same selection, spelled differently
	second, err := views.Compute(context.Background(), "s", Filter{Materials: []string{" brita", "BRITA"}})
	if err != nil {
		t.Fatalf("second Compute() error = %v", err)
	}
	if len(second.Records) != 2 {
		t.Errorf("second view has %d records, want 2", len(second.Records))
	}

	close(src.release)
	select {
	case got := <-first:
		if got.err != nil {
			t.Fatalf("first Compute() error = %v, want nil", got.err)
		}
		if len(got.view.Records) != 2 || got.view.Generation != second.Generation {
			t.Errorf("first view = %d records, generation %d; want 2 records, generation %d",
				len(got.view.Records), got.view.Generation, second.Generation)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first Compute() did not return")
	}

	// Both finished, so the next selection starts a fresh generation
	next, err := views.Compute(context.Background(), "s", Filter{Materials: []string{"AREIA"}})
	if err != nil {
		t.Fatalf("next Compute() error = %v", err)
	}
	if next.Generation == second.Generation {
		t.Errorf("next Generation = %d, want a new generation", next.Generation)
	}
}

func TestViewService_ChangedFilterSupersedesJoinedRequests(t *testing.T) {
	src := &blockingSnapshots{
		snap:    &Snapshot{Records: scenarioRecords(), Columns: fullColumns()},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	views := newTestViews(src)
	defer close(src.release)

	older := make(chan error, 1)
	go func() {
		_, err := views.Compute(context.Background(), "s", Filter{})
		older <- err
	}()
	<-src.entered

	// Joins the blocked request; the source only blocks its first caller
	if _, err := views.Compute(context.Background(), "s", Filter{}); err != nil {
		t.Fatalf("joined Compute() error = %v", err)
	}
	if _, err := views.Compute(context.Background(), "s", Filter{Companies: []string{"BETA"}}); err != nil {
		t.Fatalf("newer Compute() error = %v", err)
	}

	select {
	case err := <-older:
		if !errors.Is(err, ErrStaleView) {
			t.Errorf("older Compute() error = %v, want ErrStaleView", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("older Compute() did not return")
	}
}
