package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/directory"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/geo"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/notify"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/service"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store/memory"
)

// Monday 2026-03-02 10:00 UTC.
var monday10 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	clock    *fakeClock
	zones    *memory.ZoneStore
	samples  *memory.SampleStore
	alerts   *memory.AlertStore
	dir      *directory.Static
	registry *service.ZoneRegistry
	manager  *service.AlertManager
	ingestor *service.LocationIngestor
	query    *service.QueryService
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	alertStore store.AlertStore
	dir        directory.Directory
	policy     service.AlertPolicy
	notifier   notify.Notifier
}

func withAlertStore(s store.AlertStore) fixtureOption {
	return func(c *fixtureConfig) { c.alertStore = s }
}

func withDirectory(d directory.Directory) fixtureOption {
	return func(c *fixtureConfig) { c.dir = d }
}

func withPolicy(p service.AlertPolicy) fixtureOption {
	return func(c *fixtureConfig) { c.policy = p }
}

func withNotifier(n notify.Notifier) fixtureOption {
	return func(c *fixtureConfig) { c.notifier = n }
}

// newFixture wires the engine over in-memory stores with a fixed clock and
// employees E1 and E2 active in the directory.
func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	f := &fixture{
		clock:   newClock(monday10),
		zones:   memory.NewZoneStore(),
		samples: memory.NewSampleStore(),
		alerts:  memory.NewAlertStore(),
		dir: directory.NewStatic(
			directory.Employee{ID: "E1", DisplayName: "Ana", Active: true},
			directory.Employee{ID: "E2", DisplayName: "Luis", Active: true},
			directory.Employee{ID: "E3", DisplayName: "Marta", Active: false},
		),
	}
	cfg := fixtureConfig{alertStore: f.alerts, dir: f.dir}
	for _, o := range opts {
		o(&cfg)
	}

	logger := zap.NewNop()
	f.registry = service.NewZoneRegistry(f.zones, service.RegistryOptions{Now: f.clock.Now, Logger: logger})

	var d *notify.Dispatcher
	if cfg.notifier != nil {
		d = notify.NewDispatcher(cfg.notifier, time.Second, logger)
	}
	f.manager = service.NewAlertManager(cfg.alertStore, cfg.policy, d, f.clock.Now, logger)
	t.Cleanup(f.manager.Wait)

	f.ingestor = service.NewLocationIngestor(
		f.samples,
		f.registry,
		service.NewEmployeeRegistry(cfg.dir, logger),
		f.manager,
		service.IngestorOptions{Now: f.clock.Now, Logger: logger},
	)
	f.query = service.NewQueryService(f.samples, cfg.alertStore, f.registry, f.clock.Now)
	return f
}

// office creates the "Office" zone at (-2.1894, -79.8890), radius 100 m.
func (f *fixture) office(t *testing.T) store.Zone {
	t.Helper()
	return f.zone(t, "Office", -2.1894, -79.8890, 100)
}

func (f *fixture) zone(t *testing.T, name string, lat, lon, radius float64) store.Zone {
	t.Helper()
	z, err := f.registry.SaveZone(context.Background(), store.Zone{
		Name:         name,
		Kind:         store.ZoneOffice,
		Center:       geo.PointFromFloat(lat, lon),
		RadiusMeters: radius,
		Active:       true,
	})
	require.NoError(t, err)
	return z
}

func (f *fixture) assign(t *testing.T, emp string, zoneID int64, tolerance float64, primary bool) store.Assignment {
	t.Helper()
	a, err := f.registry.SaveAssignment(context.Background(), store.Assignment{
		EmployeeID:      emp,
		ZoneID:          zoneID,
		Primary:         primary,
		ToleranceMeters: tolerance,
		Days:            store.AllDays,
		Active:          true,
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) raw(emp string, lat, lon float64) service.RawSample {
	return service.RawSample{
		EmployeeID:     emp,
		Lat:            lat,
		Lon:            lon,
		AccuracyMeters: 5,
		CapturedAt:     f.clock.Now(),
	}
}

func ptr[T any](v T) *T { return &v }
