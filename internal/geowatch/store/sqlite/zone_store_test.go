package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/geo"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
	sqlitestore "github.com/BrandonDHaskell/geowatch/internal/geowatch/store/sqlite"
)

func saveOffice(t *testing.T, zs *sqlitestore.ZoneStore) store.Zone {
	t.Helper()
	z, err := zs.SaveZone(context.Background(), store.Zone{
		Name:         "Office",
		Kind:         store.ZoneOffice,
		Center:       geo.PointFromFloat(-2.1894, -79.8890),
		RadiusMeters: 100,
		Hours:        &store.TimeWindow{StartMinute: 8 * 60, EndMinute: 18 * 60},
		Active:       true,
	})
	if err != nil {
		t.Fatalf("SaveZone: %v", err)
	}
	return z
}

// ═══════════════════════════════════════════════════════════════════════════
// Zones
// ═══════════════════════════════════════════════════════════════════════════

func TestZoneStore_SaveZone_RoundTripsExactCenter(t *testing.T) {
	conn := openTestDB(t)
	zs := sqlitestore.NewZoneStore(conn, newTestWriter(t, conn))

	z := saveOffice(t, zs)
	if z.ID == 0 {
		t.Fatal("expected assigned zone id")
	}

	got, err := zs.GetZone(context.Background(), z.ID)
	if err != nil {
		t.Fatalf("GetZone: %v", err)
	}
	if got.Center.String() != "-2.1894,-79.889" {
		t.Errorf("center = %s", got.Center)
	}
	if got.Hours == nil || got.Hours.StartMinute != 480 || got.Hours.EndMinute != 1080 {
		t.Errorf("hours = %+v", got.Hours)
	}
	if !got.Active || got.Kind != store.ZoneOffice || got.RadiusMeters != 100 {
		t.Errorf("unexpected zone %+v", got)
	}
}

func TestZoneStore_SaveZone_UpdateKeepsCreatedAt(t *testing.T) {
	conn := openTestDB(t)
	zs := sqlitestore.NewZoneStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	z := saveOffice(t, zs)
	created := z.CreatedAt

	z.RadiusMeters = 250
	z.CreatedAt = time.Time{}
	updated, err := zs.SaveZone(ctx, z)
	if err != nil {
		t.Fatalf("SaveZone update: %v", err)
	}
	if !updated.CreatedAt.Equal(created.Truncate(time.Millisecond)) {
		t.Errorf("created_at changed: %v -> %v", created, updated.CreatedAt)
	}

	zones, err := zs.ListZones(ctx)
	if err != nil {
		t.Fatalf("ListZones: %v", err)
	}
	if len(zones) != 1 || zones[0].RadiusMeters != 250 {
		t.Errorf("expected single updated zone, got %+v", zones)
	}
}

func TestZoneStore_GetZone_Unknown(t *testing.T) {
	conn := openTestDB(t)
	zs := sqlitestore.NewZoneStore(conn, newTestWriter(t, conn))

	if _, err := zs.GetZone(context.Background(), 42); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := zs.SetZoneActive(context.Background(), 42, false, time.Now()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("SetZoneActive: expected ErrNotFound, got %v", err)
	}
}

func TestZoneStore_SetZoneActive(t *testing.T) {
	conn := openTestDB(t)
	zs := sqlitestore.NewZoneStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	z := saveOffice(t, zs)
	if err := zs.SetZoneActive(ctx, z.ID, false, time.Now()); err != nil {
		t.Fatalf("SetZoneActive: %v", err)
	}
	got, err := zs.GetZone(ctx, z.ID)
	if err != nil {
		t.Fatalf("GetZone: %v", err)
	}
	if got.Active {
		t.Error("zone should be inactive")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Assignments
// ═══════════════════════════════════════════════════════════════════════════

func TestZoneStore_SaveAssignment_UniquePerEmployeeZone(t *testing.T) {
	conn := openTestDB(t)
	zs := sqlitestore.NewZoneStore(conn, newTestWriter(t, conn))
	ctx := context.Background()
	z := saveOffice(t, zs)

	a := store.Assignment{
		EmployeeID:      "E1",
		ZoneID:          z.ID,
		Primary:         true,
		ToleranceMeters: 20,
		Days:            store.DayMaskOf(time.Monday, time.Friday),
		Active:          true,
	}
	first, err := zs.SaveAssignment(ctx, a)
	if err != nil {
		t.Fatalf("SaveAssignment: %v", err)
	}

	if _, err := zs.SaveAssignment(ctx, a); !errors.Is(err, store.ErrConflict) {
		t.Errorf("duplicate pair: expected ErrConflict, got %v", err)
	}

	list, err := zs.ListAssignments(ctx)
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 assignment, got %d", len(list))
	}
	got := list[0]
	if got.ID != first.ID || got.Days != store.DayMaskOf(time.Monday, time.Friday) || got.Window != nil {
		t.Errorf("unexpected assignment %+v", got)
	}
}

func TestZoneStore_SaveAssignment_UnknownZone(t *testing.T) {
	conn := openTestDB(t)
	zs := sqlitestore.NewZoneStore(conn, newTestWriter(t, conn))

	_, err := zs.SaveAssignment(context.Background(), store.Assignment{
		EmployeeID: "E1", ZoneID: 99, Days: store.AllDays, Active: true,
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestZoneStore_SaveAssignment_WindowAcrossMidnight(t *testing.T) {
	conn := openTestDB(t)
	zs := sqlitestore.NewZoneStore(conn, newTestWriter(t, conn))
	ctx := context.Background()
	z := saveOffice(t, zs)

	saved, err := zs.SaveAssignment(ctx, store.Assignment{
		EmployeeID: "night-guard",
		ZoneID:     z.ID,
		Days:       store.AllDays,
		Window:     &store.TimeWindow{StartMinute: 22 * 60, EndMinute: 6 * 60},
		Active:     true,
	})
	if err != nil {
		t.Fatalf("SaveAssignment: %v", err)
	}

	if err := zs.SetAssignmentActive(ctx, saved.ID, false, time.Now()); err != nil {
		t.Fatalf("SetAssignmentActive: %v", err)
	}
	list, err := zs.ListAssignments(ctx)
	if err != nil {
		t.Fatalf("ListAssignments: %v", err)
	}
	if len(list) != 1 || list[0].Active {
		t.Fatalf("expected one inactive assignment, got %+v", list)
	}
	if w := list[0].Window; w == nil || w.StartMinute != 1320 || w.EndMinute != 360 {
		t.Errorf("window = %+v", w)
	}
}
