package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
	sqlitestore "github.com/BrandonDHaskell/geowatch/internal/geowatch/store/sqlite"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func sampleFor(emp string, captured time.Time, lat, lon float64) store.Sample {
	s := store.Sample{
		Lat:            lat,
		Lon:            lon,
		AccuracyMeters: 8,
		CapturedAt:     captured,
		ReceivedAt:     captured.Add(time.Second),
		Source:         store.SourceAutomatic,
	}
	if emp != "" {
		s.EmployeeID = ptr(emp)
	}
	return s
}

// ═══════════════════════════════════════════════════════════════════════════
// InsertSample
// ═══════════════════════════════════════════════════════════════════════════

func TestSampleStore_InsertSample_StoresDerivedFields(t *testing.T) {
	conn := openTestDB(t)
	ss := sqlitestore.NewSampleStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	in := sampleFor("E1", t0, -2.2, -79.9)
	in.BatteryPct = ptr(40)
	in.AltitudeMeters = ptr(12.5)
	in.DistanceMeters = ptr(1234.5)
	in.ActiveSession = true
	in.DeviceInfo = "pixel-7"

	stored, inserted, err := ss.InsertSample(ctx, in)
	if err != nil {
		t.Fatalf("InsertSample: %v", err)
	}
	if !inserted || stored.ID == 0 {
		t.Fatalf("expected a new row, got inserted=%v id=%d", inserted, stored.ID)
	}

	hist, err := ss.History(ctx, "E1", t0.Add(-time.Minute), t0.Add(time.Minute))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(hist))
	}
	got := hist[0]
	if got.ZoneID != nil || got.WithinZone {
		t.Errorf("expected no zone, got %+v", got)
	}
	if got.DistanceMeters == nil || *got.DistanceMeters != 1234.5 {
		t.Errorf("distance = %v", got.DistanceMeters)
	}
	if got.BatteryPct == nil || *got.BatteryPct != 40 || !got.ActiveSession || got.DeviceInfo != "pixel-7" {
		t.Errorf("unexpected sample %+v", got)
	}
	if !got.CapturedAt.Equal(t0) {
		t.Errorf("captured_at = %v", got.CapturedAt)
	}
}

func TestSampleStore_InsertSample_DuplicateReturnsOriginal(t *testing.T) {
	conn := openTestDB(t)
	ss := sqlitestore.NewSampleStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	first, inserted, err := ss.InsertSample(ctx, sampleFor("E1", t0, -2.2, -79.9))
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}

	retry := sampleFor("E1", t0, -2.2, -79.9)
	retry.ReceivedAt = t0.Add(time.Hour)
	second, inserted, err := ss.InsertSample(ctx, retry)
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if inserted {
		t.Error("duplicate must not insert")
	}
	if second.ID != first.ID {
		t.Errorf("duplicate returned id %d, want %d", second.ID, first.ID)
	}

	var count int
	if err := conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM location_samples`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}
}

func TestSampleStore_InsertSample_AnonymousNeverDeduplicated(t *testing.T) {
	conn := openTestDB(t)
	ss := sqlitestore.NewSampleStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, inserted, err := ss.InsertSample(ctx, sampleFor("", t0, 1, 1))
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
		if !inserted {
			t.Errorf("insert %d: anonymous samples have no dedup key", i)
		}
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Queries
// ═══════════════════════════════════════════════════════════════════════════

func TestSampleStore_LatestPerEmployee(t *testing.T) {
	conn := openTestDB(t)
	ss := sqlitestore.NewSampleStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	for _, s := range []store.Sample{
		sampleFor("E1", t0, 1, 1),
		sampleFor("E1", t0.Add(5*time.Minute), 1, 2),
		sampleFor("E2", t0.Add(2*time.Minute), 2, 2),
		sampleFor("E3", t0.Add(-2*time.Hour), 3, 3), // too old
		sampleFor("", t0.Add(6*time.Minute), 4, 4),  // anonymous
	} {
		if _, _, err := ss.InsertSample(ctx, s); err != nil {
			t.Fatalf("InsertSample: %v", err)
		}
	}

	live, err := ss.LatestPerEmployee(ctx, t0.Add(-time.Hour))
	if err != nil {
		t.Fatalf("LatestPerEmployee: %v", err)
	}
	if len(live) != 2 {
		t.Fatalf("expected 2 employees, got %d", len(live))
	}
	if live[0].Employee() != "E1" || live[0].Lon != 2 {
		t.Errorf("first = %+v, want newest E1 fix", live[0])
	}
	if live[1].Employee() != "E2" {
		t.Errorf("second = %s, want E2", live[1].Employee())
	}
}

func TestSampleStore_History_RangeInclusiveNewestFirst(t *testing.T) {
	conn := openTestDB(t)
	ss := sqlitestore.NewSampleStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		s := sampleFor("E1", t0.Add(time.Duration(i)*10*time.Minute), 1, float64(i))
		if _, _, err := ss.InsertSample(ctx, s); err != nil {
			t.Fatalf("InsertSample: %v", err)
		}
	}

	hist, err := ss.History(ctx, "E1", t0.Add(10*time.Minute), t0.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(hist))
	}
	if !hist[0].CapturedAt.Equal(t0.Add(30*time.Minute)) || !hist[2].CapturedAt.Equal(t0.Add(10*time.Minute)) {
		t.Errorf("unexpected order: %v .. %v", hist[0].CapturedAt, hist[2].CapturedAt)
	}
}

func TestSampleStore_PruneOlderThan(t *testing.T) {
	conn := openTestDB(t)
	ss := sqlitestore.NewSampleStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s := sampleFor("E1", t0.Add(time.Duration(i)*time.Hour), 1, float64(i))
		if _, _, err := ss.InsertSample(ctx, s); err != nil {
			t.Fatalf("InsertSample: %v", err)
		}
	}

	n, err := ss.PruneOlderThan(ctx, t0.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("PruneOlderThan: %v", err)
	}
	if n != 2 {
		t.Errorf("pruned %d, want 2", n)
	}

	hist, err := ss.History(ctx, "E1", t0, t0.Add(10*time.Hour))
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 3 {
		t.Errorf("expected 3 survivors, got %d", len(hist))
	}
}
