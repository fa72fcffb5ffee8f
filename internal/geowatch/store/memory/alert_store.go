package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
)

// AlertStore keeps alerts in memory.  A single mutex makes the dedup
// check-and-insert atomic, mirroring the serialized writer of the SQLite
// store.
type AlertStore struct {
	mu     sync.Mutex
	nextID int64
	alerts map[int64]store.Alert
}

func NewAlertStore() *AlertStore {
	return &AlertStore{alerts: make(map[int64]store.Alert)}
}

func (s *AlertStore) CreateUnlessOpen(ctx context.Context, a store.Alert, since time.Time) (store.Alert, bool, error) {
	if err := ctx.Err(); err != nil {
		return store.Alert{}, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var newest *store.Alert
	for _, existing := range s.alerts {
		if existing.EmployeeID != a.EmployeeID || existing.Kind != a.Kind || !existing.Status.Open() {
			continue
		}
		if !existing.CreatedAt.After(since) {
			continue
		}
		if newest == nil || existing.CreatedAt.After(newest.CreatedAt) {
			e := existing
			newest = &e
		}
	}
	if newest != nil {
		return cloneAlert(*newest), false, nil
	}

	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Status == "" {
		a.Status = store.StatusPending
	}
	s.nextID++
	a.ID = s.nextID
	a.Recipients = slices.Clone(a.Recipients)
	s.alerts[a.ID] = a
	return cloneAlert(a), true, nil
}

func (s *AlertStore) GetAlert(_ context.Context, id int64) (store.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return store.Alert{}, store.ErrNotFound
	}
	return cloneAlert(a), nil
}

func (s *AlertStore) Transition(ctx context.Context, t store.AlertTransition) (store.Alert, error) {
	if err := ctx.Err(); err != nil {
		return store.Alert{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[t.ID]
	if !ok {
		return store.Alert{}, store.ErrNotFound
	}
	if !slices.Contains(t.From, a.Status) {
		return cloneAlert(a), store.ErrConflict
	}

	at := t.At
	a.Status = t.To
	switch t.To {
	case store.StatusAcknowledged:
		a.AcknowledgedBy = t.Actor
		a.AcknowledgedAt = &at
	case store.StatusResolved, store.StatusFalseAlarm:
		a.ResolvedBy = t.Actor
		a.ResolvedAt = &at
		a.ResolutionNotes = t.Notes
	}
	s.alerts[a.ID] = a
	return cloneAlert(a), nil
}

func (s *AlertStore) ListOpen(_ context.Context, f store.AlertFilter) ([]store.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.Alert
	for _, a := range s.alerts {
		if !a.Status.Open() {
			continue
		}
		if f.Kind != "" && a.Kind != f.Kind {
			continue
		}
		if f.Severity != "" && a.Severity != f.Severity {
			continue
		}
		out = append(out, cloneAlert(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Alerts returns a copy of every stored alert ordered by id.  Test-only helper.
func (s *AlertStore) Alerts() []store.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, cloneAlert(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func cloneAlert(a store.Alert) store.Alert {
	a.Recipients = slices.Clone(a.Recipients)
	return a
}
