package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/fault"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/notify"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/service"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
)

func outOfZoneSample(emp string, zoneID int64) store.Sample {
	d := 1750.0
	return store.Sample{
		ID:             1,
		EmployeeID:     ptr(emp),
		ZoneID:         ptr(zoneID),
		DistanceMeters: &d,
		Source:         store.SourceAutomatic,
		ActiveSession:  true,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Evaluate
// ═══════════════════════════════════════════════════════════════════════════

func TestEvaluate_InsideZoneRaisesNothing(t *testing.T) {
	f := newFixture(t)
	smp := outOfZoneSample("E1", 1)
	smp.WithinZone = true

	a, err := f.manager.Evaluate(context.Background(), smp)
	require.NoError(t, err)
	assert.Nil(t, a)
	assert.Empty(t, f.alerts.Alerts())
}

func TestEvaluate_AnonymousNeverAlerts(t *testing.T) {
	f := newFixture(t)
	smp := outOfZoneSample("E1", 1)
	smp.EmployeeID = nil
	smp.Source = store.SourceEmergency

	a, err := f.manager.Evaluate(context.Background(), smp)
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestEvaluate_DedupPerEmployeeAndKind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a1, err := f.manager.Evaluate(ctx, outOfZoneSample("E1", 1))
	require.NoError(t, err)
	require.NotNil(t, a1)

	a2, err := f.manager.Evaluate(ctx, outOfZoneSample("E2", 1))
	require.NoError(t, err)
	require.NotNil(t, a2, "other employees are not suppressed")

	sos := outOfZoneSample("E1", 1)
	sos.Source = store.SourceEmergency
	a3, err := f.manager.Evaluate(ctx, sos)
	require.NoError(t, err)
	require.NotNil(t, a3, "other kinds are not suppressed")
	assert.Equal(t, store.AlertEmergency, a3.Kind)

	assert.Len(t, f.alerts.Alerts(), 3)
}

func TestEvaluate_ResolvedAlertDoesNotSuppress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.manager.Evaluate(ctx, outOfZoneSample("E1", 1))
	require.NoError(t, err)
	_, err = f.manager.Resolve(ctx, a.ID, "sup-1", "")
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	again, err := f.manager.Evaluate(ctx, outOfZoneSample("E1", 1))
	require.NoError(t, err)
	assert.NotNil(t, again, "a new violation spawns a new alert instead of reopening")
}

func TestEvaluate_ConcurrentSamplesCreateOneAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.Evaluate(ctx, outOfZoneSample("E1", 1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, f.alerts.Alerts(), 1)
}

func TestEvaluate_NotifiesRecipients(t *testing.T) {
	var (
		mu   sync.Mutex
		sent [][]string
	)
	n := notify.Func(func(_ context.Context, recipients []string, _ store.Alert) error {
		mu.Lock()
		sent = append(sent, recipients)
		mu.Unlock()
		return nil
	})
	f := newFixture(t,
		withNotifier(n),
		withPolicy(service.AlertPolicy{Recipients: []string{"ops@example.com"}}),
	)

	a, err := f.manager.Evaluate(context.Background(), outOfZoneSample("E1", 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"ops@example.com"}, a.Recipients)

	f.manager.Wait()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]string{{"ops@example.com"}}, sent)
}

// ═══════════════════════════════════════════════════════════════════════════
// State machine
// ═══════════════════════════════════════════════════════════════════════════

func TestAlertLifecycle_AcknowledgeThenResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.manager.Evaluate(ctx, outOfZoneSample("E1", 1))
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	acked, err := f.manager.Acknowledge(ctx, a.ID, "sup-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusAcknowledged, acked.Status)
	assert.Equal(t, "sup-1", acked.AcknowledgedBy)
	require.NotNil(t, acked.AcknowledgedAt)
	assert.True(t, acked.AcknowledgedAt.Equal(f.clock.Now()))

	f.clock.Advance(time.Minute)
	resolved, err := f.manager.Resolve(ctx, a.ID, "sup-2", "called employee")
	require.NoError(t, err)
	assert.Equal(t, store.StatusResolved, resolved.Status)
	assert.True(t, resolved.Resolved())
	assert.Equal(t, "sup-2", resolved.ResolvedBy)
	assert.Equal(t, "called employee", resolved.ResolutionNotes)

	_, err = f.manager.Acknowledge(ctx, a.ID, "sup-3")
	assert.True(t, fault.IsPolicy(err), "acknowledging a resolved alert, got %v", err)
	_, err = f.manager.Resolve(ctx, a.ID, "sup-3", "")
	assert.True(t, fault.IsPolicy(err), "resolving twice, got %v", err)

	got, err := f.manager.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "sup-2", got.ResolvedBy, "a rejected move leaves the alert untouched")
}

func TestAlertLifecycle_FalseAlarm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.manager.Evaluate(ctx, outOfZoneSample("E1", 1))
	require.NoError(t, err)

	fa, err := f.manager.MarkFalseAlarm(ctx, a.ID, "sup-1", "gps drift")
	require.NoError(t, err)
	assert.Equal(t, store.StatusFalseAlarm, fa.Status)

	_, err = f.manager.Acknowledge(ctx, a.ID, "sup-1")
	assert.True(t, fault.IsPolicy(err))
}

func TestAlertLifecycle_DoubleAcknowledge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, err := f.manager.Evaluate(ctx, outOfZoneSample("E1", 1))
	require.NoError(t, err)

	_, err = f.manager.Acknowledge(ctx, a.ID, "sup-1")
	require.NoError(t, err)
	_, err = f.manager.Acknowledge(ctx, a.ID, "sup-1")
	assert.True(t, fault.IsPolicy(err))
}

func TestAlertLifecycle_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.Acknowledge(ctx, 12345, "sup-1")
	assert.True(t, fault.IsNotFound(err), "got %v", err)

	a, err := f.manager.Evaluate(ctx, outOfZoneSample("E1", 1))
	require.NoError(t, err)
	_, err = f.manager.Acknowledge(ctx, a.ID, "   ")
	assert.True(t, fault.IsValidation(err), "got %v", err)
}
