package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/notify"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDispatcher_DeliversAndWaits(t *testing.T) {
	var (
		mu  sync.Mutex
		got []int64
	)
	n := notify.Func(func(_ context.Context, recipients []string, a store.Alert) error {
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		got = append(got, a.ID)
		mu.Unlock()
		assert.Equal(t, []string{"sup@example.com"}, recipients)
		return nil
	})

	d := notify.NewDispatcher(n, time.Second, zap.NewNop())
	for id := int64(1); id <= 3; id++ {
		d.Dispatch(store.Alert{ID: id, Recipients: []string{"sup@example.com"}})
	}
	d.Wait()

	assert.ElementsMatch(t, []int64{1, 2, 3}, got)
}

func TestDispatcher_SkipsEmptyRecipients(t *testing.T) {
	called := false
	d := notify.NewDispatcher(notify.Func(func(context.Context, []string, store.Alert) error {
		called = true
		return nil
	}), 0, nil)

	d.Dispatch(store.Alert{ID: 1})
	d.Wait()
	assert.False(t, called)
}

func TestDispatcher_FailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	d := notify.NewDispatcher(notify.Func(func(context.Context, []string, store.Alert) error {
		return errors.New("push gateway down")
	}), time.Second, zap.New(core))

	d.Dispatch(store.Alert{ID: 7, Recipients: []string{"x"}})
	d.Wait()

	entries := logs.FilterMessage("alert notification failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(7), entries[0].ContextMap()["alert_id"])
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	err := notify.LogNotifier{Logger: zap.New(core)}.Notify(context.Background(),
		[]string{"a", "b"}, store.Alert{ID: 3, Kind: store.AlertEmergency, Severity: store.SeverityEmergency})
	require.NoError(t, err)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "emergency", logs.All()[0].ContextMap()["severity"])
}

func TestNilDispatcherIsSafe(t *testing.T) {
	var d *notify.Dispatcher
	d.Dispatch(store.Alert{ID: 1, Recipients: []string{"x"}})
	d.Wait()
}
