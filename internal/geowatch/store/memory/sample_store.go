package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
)

type sampleKey struct {
	employeeID string
	capturedAt int64
	lat, lon   float64
}

// SampleStore is an in-memory append-only sample log.
// It is intended for use in tests and dev environments.
type SampleStore struct {
	mu      sync.RWMutex
	nextID  int64
	samples []store.Sample
	byKey   map[sampleKey]int // index into samples
}

func NewSampleStore() *SampleStore {
	return &SampleStore{byKey: make(map[sampleKey]int)}
}

func (s *SampleStore) InsertSample(ctx context.Context, smp store.Sample) (store.Sample, bool, error) {
	if err := ctx.Err(); err != nil {
		return store.Sample{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var key *sampleKey
	if smp.EmployeeID != nil {
		key = &sampleKey{
			employeeID: *smp.EmployeeID,
			capturedAt: smp.CapturedAt.UnixMilli(),
			lat:        smp.Lat,
			lon:        smp.Lon,
		}
		if idx, ok := s.byKey[*key]; ok {
			return s.samples[idx], false, nil
		}
	}

	if smp.ReceivedAt.IsZero() {
		smp.ReceivedAt = time.Now().UTC()
	}
	s.nextID++
	smp.ID = s.nextID
	s.samples = append(s.samples, smp)
	if key != nil {
		s.byKey[*key] = len(s.samples) - 1
	}
	return smp, true, nil
}

func (s *SampleStore) LatestPerEmployee(_ context.Context, since time.Time) ([]store.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	latest := make(map[string]store.Sample)
	for _, smp := range s.samples {
		if smp.EmployeeID == nil || smp.CapturedAt.Before(since) {
			continue
		}
		cur, ok := latest[*smp.EmployeeID]
		if !ok || smp.CapturedAt.After(cur.CapturedAt) ||
			(smp.CapturedAt.Equal(cur.CapturedAt) && smp.ID > cur.ID) {
			latest[*smp.EmployeeID] = smp
		}
	}

	out := make([]store.Sample, 0, len(latest))
	for _, smp := range latest {
		out = append(out, smp)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *SampleStore) History(_ context.Context, employeeID string, from, to time.Time) ([]store.Sample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Sample
	for _, smp := range s.samples {
		if smp.EmployeeID == nil || *smp.EmployeeID != employeeID {
			continue
		}
		if smp.CapturedAt.Before(from) || smp.CapturedAt.After(to) {
			continue
		}
		out = append(out, smp)
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *SampleStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.samples[:0]
	var deleted int64
	for _, smp := range s.samples {
		if smp.CapturedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, smp)
	}
	s.samples = kept

	s.byKey = make(map[sampleKey]int, len(kept))
	for i, smp := range kept {
		if smp.EmployeeID == nil {
			continue
		}
		s.byKey[sampleKey{
			employeeID: *smp.EmployeeID,
			capturedAt: smp.CapturedAt.UnixMilli(),
			lat:        smp.Lat,
			lon:        smp.Lon,
		}] = i
	}
	return deleted, nil
}

// Samples returns a copy of every stored sample in insertion order.
// Test-only helper.
func (s *SampleStore) Samples() []store.Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Sample, len(s.samples))
	copy(out, s.samples)
	return out
}

func sortNewestFirst(ss []store.Sample) {
	sort.Slice(ss, func(i, j int) bool {
		if !ss[i].CapturedAt.Equal(ss[j].CapturedAt) {
			return ss[i].CapturedAt.After(ss[j].CapturedAt)
		}
		return ss[i].ID > ss[j].ID
	})
}
