package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/pathframe/frenet"
	"github.com/banshee-data/pathframe/refline"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	s, err := NewStoreWithMigrationCheck(dbPath, false)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// straightLine builds a 30 m reference line along the x axis.
func straightLine(t *testing.T) *refline.Line {
	t.Helper()
	var wps []refline.Waypoint
	for i := 0; i <= 30; i++ {
		wps = append(wps, refline.Waypoint{X: float64(i), Y: 0})
	}
	line, err := refline.NewLine(wps, refline.Options{})
	if err != nil {
		t.Fatalf("NewLine failed: %v", err)
	}
	return line
}

// testPathData returns a PathData with n samples in both representations,
// set through the normal conversion pipeline.
func testPathData(t *testing.T, n int) *frenet.PathData {
	t.Helper()
	line := straightLine(t)

	fpts := make([]frenet.FramePoint, n)
	for i := range fpts {
		fpts[i] = frenet.FramePoint{S: 2 + 2*float64(i), L: 1}
	}

	pd := &frenet.PathData{}
	pd.SetReferenceLine(line)
	if err := pd.SetFramePath(frenet.NewFramePath(fpts)); err != nil {
		t.Fatalf("SetFramePath failed: %v", err)
	}
	return pd
}

func TestRecordAndGetCycle(t *testing.T) {
	s := newTestStore(t)
	pd := testPathData(t, 5)

	started := time.Date(2026, 8, 10, 9, 30, 0, 0, time.UTC)
	ended := started.Add(3 * time.Minute)

	id, err := s.RecordCycle("morning loop", pd, started, ended)
	if err != nil {
		t.Fatalf("RecordCycle failed: %v", err)
	}
	if len(id) <= len("cyc_") || id[:4] != "cyc_" {
		t.Errorf("expected generated ID with cyc_ prefix, got %q", id)
	}

	c, err := s.GetCycle(id)
	if err != nil {
		t.Fatalf("GetCycle failed: %v", err)
	}
	if c.Name != "morning loop" {
		t.Errorf("expected name %q, got %q", "morning loop", c.Name)
	}
	if c.Notes != "" {
		t.Errorf("expected empty notes on a new cycle, got %q", c.Notes)
	}
	if c.PointCount != 5 {
		t.Errorf("expected 5 points, got %d", c.PointCount)
	}
	// Samples sit 2 m apart along a straight line, so 5 of them span 8 m.
	if c.LengthM < 7.9 || c.LengthM > 8.1 {
		t.Errorf("expected ~8 m length, got %f", c.LengthM)
	}
	if !c.StartedAt.Equal(started) {
		t.Errorf("expected started %v, got %v", started, c.StartedAt)
	}
	if !c.EndedAt.Equal(ended) {
		t.Errorf("expected ended %v, got %v", ended, c.EndedAt)
	}
}

func TestRecordCycleEmpty(t *testing.T) {
	s := newTestStore(t)

	_, err := s.RecordCycle("empty", &frenet.PathData{}, time.Now(), time.Now())
	if err == nil {
		t.Fatal("expected error recording a cycle with no samples")
	}
}

func TestRecordCycleDiverged(t *testing.T) {
	s := newTestStore(t)
	pd := testPathData(t, 5)

	// A failing Cartesian set overwrites the path side and leaves the
	// frame side behind, so the two representations no longer pair up.
	bad := frenet.NewPath([]frenet.PathPoint{{X: 500, Y: 0}})
	if err := pd.SetPath(bad); err == nil {
		t.Fatal("expected SetPath beyond the line domain to fail")
	}

	_, err := s.RecordCycle("diverged", pd, time.Now(), time.Now())
	if !errors.Is(err, frenet.ErrInconsistentPath) {
		t.Errorf("expected ErrInconsistentPath, got %v", err)
	}
}

func TestCyclePathRoundTrip(t *testing.T) {
	s := newTestStore(t)
	pd := testPathData(t, 6)

	id, err := s.RecordCycle("roundtrip", pd, time.Now(), time.Now())
	if err != nil {
		t.Fatalf("RecordCycle failed: %v", err)
	}

	path, frame, err := s.CyclePath(id)
	if err != nil {
		t.Fatalf("CyclePath failed: %v", err)
	}

	if diff := cmp.Diff(pd.Path().Points(), path.Points()); diff != "" {
		t.Errorf("cartesian samples changed across storage (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(pd.FramePath().Points(), frame.Points()); diff != "" {
		t.Errorf("frenet samples changed across storage (-want +got):\n%s", diff)
	}
}

func TestCyclePathCartesianOnly(t *testing.T) {
	s := newTestStore(t)
	line := straightLine(t)

	// A set that fails projection populates only the Cartesian side.
	pd := &frenet.PathData{}
	pd.SetReferenceLine(line)
	bad := frenet.NewPath([]frenet.PathPoint{
		{X: 1, Y: 0, S: 0},
		{X: 2, Y: 0, S: 1},
		{X: 500, Y: 0, S: 499},
	})
	if err := pd.SetPath(bad); err == nil {
		t.Fatal("expected SetPath beyond the line domain to fail")
	}
	if pd.FramePath().Len() != 0 {
		t.Fatalf("expected empty frame path, got %d samples", pd.FramePath().Len())
	}

	id, err := s.RecordCycle("raw track", pd, time.Now(), time.Now())
	if err != nil {
		t.Fatalf("RecordCycle failed: %v", err)
	}

	path, frame, err := s.CyclePath(id)
	if err != nil {
		t.Fatalf("CyclePath failed: %v", err)
	}
	if path.Len() != 3 {
		t.Errorf("expected 3 cartesian samples, got %d", path.Len())
	}
	if frame.Len() != 0 {
		t.Errorf("expected no frenet samples, got %d", frame.Len())
	}
}

func TestCyclesOrdering(t *testing.T) {
	s := newTestStore(t)
	pd := testPathData(t, 3)

	base := time.Date(2026, 8, 10, 8, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		started := base.Add(time.Duration(i) * 10 * time.Minute)
		id, err := s.RecordCycle("loop", pd, started, started.Add(5*time.Minute))
		if err != nil {
			t.Fatalf("RecordCycle %d failed: %v", i, err)
		}
		ids = append(ids, id)
	}

	cycles, err := s.Cycles(10)
	if err != nil {
		t.Fatalf("Cycles failed: %v", err)
	}
	if len(cycles) != 3 {
		t.Fatalf("expected 3 cycles, got %d", len(cycles))
	}
	// Newest first.
	if cycles[0].ID != ids[2] || cycles[2].ID != ids[0] {
		t.Errorf("cycles not ordered newest first: %v", []string{cycles[0].ID, cycles[1].ID, cycles[2].ID})
	}

	limited, err := s.Cycles(2)
	if err != nil {
		t.Fatalf("Cycles with limit failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected limit of 2 to hold, got %d cycles", len(limited))
	}
}

func TestSetCycleNotes(t *testing.T) {
	s := newTestStore(t)
	pd := testPathData(t, 3)

	id, err := s.RecordCycle("noted", pd, time.Now(), time.Now())
	if err != nil {
		t.Fatalf("RecordCycle failed: %v", err)
	}

	if err := s.SetCycleNotes(id, "wet tarmac, GPS drifted near the gate"); err != nil {
		t.Fatalf("SetCycleNotes failed: %v", err)
	}

	c, err := s.GetCycle(id)
	if err != nil {
		t.Fatalf("GetCycle failed: %v", err)
	}
	if c.Notes != "wet tarmac, GPS drifted near the gate" {
		t.Errorf("notes not stored, got %q", c.Notes)
	}

	if err := s.SetCycleNotes("cyc_missing", "x"); !errors.Is(err, ErrCycleNotFound) {
		t.Errorf("expected ErrCycleNotFound, got %v", err)
	}
}

func TestDeleteCycle(t *testing.T) {
	s := newTestStore(t)
	pd := testPathData(t, 4)

	id, err := s.RecordCycle("doomed", pd, time.Now(), time.Now())
	if err != nil {
		t.Fatalf("RecordCycle failed: %v", err)
	}

	if err := s.DeleteCycle(id); err != nil {
		t.Fatalf("DeleteCycle failed: %v", err)
	}

	if _, err := s.GetCycle(id); !errors.Is(err, ErrCycleNotFound) {
		t.Errorf("expected ErrCycleNotFound after delete, got %v", err)
	}

	// The delete must cascade to the samples.
	var remaining int
	if err := s.QueryRow(`SELECT COUNT(*) FROM cycle_points WHERE cycle_id = ?`, id).Scan(&remaining); err != nil {
		t.Fatalf("failed to count leftover points: %v", err)
	}
	if remaining != 0 {
		t.Errorf("expected 0 leftover points, got %d", remaining)
	}

	if err := s.DeleteCycle(id); !errors.Is(err, ErrCycleNotFound) {
		t.Errorf("expected ErrCycleNotFound on double delete, got %v", err)
	}
}

func TestGetCycleNotFound(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.GetCycle("cyc_0000"); !errors.Is(err, ErrCycleNotFound) {
		t.Errorf("expected ErrCycleNotFound, got %v", err)
	}
}
