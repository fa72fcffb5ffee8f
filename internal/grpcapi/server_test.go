package grpcapi_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/directory"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/geo"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/service"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store/memory"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/types"
	"github.com/BrandonDHaskell/geowatch/internal/grpcapi"
)

// Monday 2026-03-02 10:00 UTC.
var now = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

const (
	officeLat = -2.1894
	officeLon = -79.8890
	awayLat   = -2.1804
)

// newClient serves the tracking service over an in-memory listener and
// returns a client connected to it.
func newClient(t *testing.T) *grpcapi.Client {
	t.Helper()
	ctx := context.Background()
	logger := zap.NewNop()

	samples := memory.NewSampleStore()
	alerts := memory.NewAlertStore()
	registry := service.NewZoneRegistry(memory.NewZoneStore(), service.RegistryOptions{Now: clock, Logger: logger})
	office, err := registry.SaveZone(ctx, store.Zone{
		Name:         "Office",
		Kind:         store.ZoneOffice,
		Center:       geo.PointFromFloat(officeLat, officeLon),
		RadiusMeters: 100,
		Active:       true,
	})
	require.NoError(t, err)
	_, err = registry.SaveAssignment(ctx, store.Assignment{
		EmployeeID: "E1", ZoneID: office.ID, Primary: true, Days: store.AllDays, Active: true,
	})
	require.NoError(t, err)

	manager := service.NewAlertManager(alerts, service.AlertPolicy{}, nil, clock, logger)
	svc := grpcapi.NewService(grpcapi.Dependencies{
		Logger: logger,
		Ingestor: service.NewLocationIngestor(samples, registry,
			service.NewEmployeeRegistry(directory.NewStatic(directory.Employee{ID: "E1", Active: true}), logger),
			manager, service.IngestorOptions{Now: clock, Logger: logger}),
		Alerts: manager,
		Query:  service.NewQueryService(samples, alerts, registry, clock),
		Now:    clock,
	})

	lis := bufconn.Listen(1 << 20)
	srv := grpcapi.NewServer(svc)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return grpcapi.NewClient(conn)
}

func ptr[T any](v T) *T { return &v }

func location(emp string, lat, lon float64) types.RecordLocationRequest {
	return types.RecordLocationRequest{
		EmployeeID: emp,
		Lat:        ptr(lat),
		Lon:        ptr(lon),
		Timestamp:  now.Format(time.RFC3339),
	}
}

func requireCode(t *testing.T, want codes.Code, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, status.Code(err), "error: %v", err)
}

// ═══════════════════════════════════════════════════════════════════════════
// Tracking service
// ═══════════════════════════════════════════════════════════════════════════

func TestRecordLocation_WithinZone(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	resp, err := c.RecordLocation(ctx, location("E1", officeLat, officeLon))
	require.NoError(t, err)
	assert.True(t, resp.WithinZone)
	require.NotNil(t, resp.Zone)
	assert.Equal(t, "Office", resp.Zone.Name)

	again, err := c.RecordLocation(ctx, location("E1", officeLat, officeLon))
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, resp.SampleID, again.SampleID)
}

func TestRecordLocation_ErrorCodes(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	_, err := c.RecordLocation(ctx, types.RecordLocationRequest{Lon: ptr(1.0), Timestamp: now.Format(time.RFC3339)})
	requireCode(t, codes.InvalidArgument, err)

	req := location("E1", officeLat, officeLon)
	req.ZoneID = ptr(int64(404))
	_, err = c.RecordLocation(ctx, req)
	requireCode(t, codes.NotFound, err)
}

func TestQueries(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	_, err := c.RecordLocation(ctx, location("E1", awayLat, officeLon))
	require.NoError(t, err)

	live, err := c.GetLiveLocations(ctx, types.LiveLocationsQuery{MaxAgeSeconds: 300})
	require.NoError(t, err)
	require.Len(t, live.Locations, 1)
	assert.Equal(t, "E1", live.Locations[0].EmployeeID)

	hist, err := c.GetEmployeeHistory(ctx, types.HistoryQuery{EmployeeID: "E1"})
	require.NoError(t, err)
	assert.Len(t, hist.Samples, 1)

	_, err = c.GetLiveLocations(ctx, types.LiveLocationsQuery{MaxAgeSeconds: -5})
	requireCode(t, codes.InvalidArgument, err)
}

func TestAlertTransitions(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	resp, err := c.RecordLocation(ctx, location("E1", awayLat, officeLon))
	require.NoError(t, err)
	require.True(t, resp.AlertCreated)
	id := *resp.AlertID

	open, err := c.ListOpenAlerts(ctx, types.AlertsQuery{Severity: "warning"})
	require.NoError(t, err)
	require.Len(t, open.Alerts, 1)
	assert.Equal(t, "out_of_zone", open.Alerts[0].Kind)

	a, err := c.AcknowledgeAlert(ctx, types.AlertActionRequest{AlertID: id, ActorID: "sup-1"})
	require.NoError(t, err)
	assert.Equal(t, "acknowledged", a.Status)
	assert.Equal(t, "sup-1", a.AcknowledgedBy)

	_, err = c.AcknowledgeAlert(ctx, types.AlertActionRequest{AlertID: id, ActorID: "sup-1"})
	requireCode(t, codes.FailedPrecondition, err)

	a, err = c.ResolveAlert(ctx, types.AlertActionRequest{AlertID: id, ActorID: "sup-2", Notes: "back on site"})
	require.NoError(t, err)
	assert.True(t, a.Resolved)

	_, err = c.MarkFalseAlarm(ctx, types.AlertActionRequest{AlertID: id, ActorID: "sup-2"})
	requireCode(t, codes.FailedPrecondition, err)

	_, err = c.ResolveAlert(ctx, types.AlertActionRequest{ActorID: "sup-2"})
	requireCode(t, codes.InvalidArgument, err)

	_, err = c.ResolveAlert(ctx, types.AlertActionRequest{AlertID: 999, ActorID: "sup-2"})
	requireCode(t, codes.NotFound, err)
}
