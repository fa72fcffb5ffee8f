package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/service"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store/memory"
)

func TestSamplePruner_DisabledWhenRetentionZero(t *testing.T) {
	pruner := service.NewSamplePruner(memory.NewSampleStore(), service.PrunerConfig{
		RetentionDays: 0,
		IntervalHours: 1,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pruner.Start(ctx)
	// Stop should return immediately.
	pruner.Stop()
}

func TestSamplePruner_PrunesOldSamples(t *testing.T) {
	ms := memory.NewSampleStore()
	ctx := context.Background()
	now := monday10

	for _, age := range []time.Duration{40 * 24 * time.Hour, 24 * time.Hour} {
		_, _, err := ms.InsertSample(ctx, store.Sample{
			EmployeeID: ptr("E1"),
			CapturedAt: now.Add(-age),
			ReceivedAt: now.Add(-age),
			Source:     store.SourceAutomatic,
		})
		require.NoError(t, err)
	}

	pruner := service.NewSamplePruner(ms, service.PrunerConfig{
		RetentionDays: 30,
		Now:           func() time.Time { return now },
	}, zap.NewNop())

	assert.EqualValues(t, 1, pruner.PruneOnce(ctx))
	assert.EqualValues(t, 0, pruner.PruneOnce(ctx), "second pass finds nothing")
	require.Len(t, ms.Samples(), 1)
	assert.True(t, ms.Samples()[0].CapturedAt.Equal(now.Add(-24*time.Hour)))
}

func TestSamplePruner_LoopRunsImmediately(t *testing.T) {
	ms := memory.NewSampleStore()
	_, _, err := ms.InsertSample(context.Background(), store.Sample{
		EmployeeID: ptr("E1"),
		CapturedAt: monday10.AddDate(0, 0, -100),
		Source:     store.SourceAutomatic,
	})
	require.NoError(t, err)

	pruner := service.NewSamplePruner(ms, service.PrunerConfig{
		RetentionDays: 90,
		Interval:      time.Hour,
		Now:           func() time.Time { return monday10 },
	}, zap.NewNop())
	pruner.Start(context.Background())
	defer pruner.Stop()

	assert.Eventually(t, func() bool { return len(ms.Samples()) == 0 },
		time.Second, 5*time.Millisecond)
}

func TestSamplePruner_StopIsIdempotent(t *testing.T) {
	pruner := service.NewSamplePruner(memory.NewSampleStore(), service.PrunerConfig{
		RetentionDays: 30,
		IntervalHours: 1,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	pruner.Start(ctx)

	cancel()
	pruner.Stop()
	pruner.Stop()
}

func TestSamplePruner_StopWithoutStart(t *testing.T) {
	pruner := service.NewSamplePruner(memory.NewSampleStore(), service.PrunerConfig{RetentionDays: 30}, nil)
	pruner.Stop()
}
