package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
)

type pairKey struct {
	employeeID string
	zoneID     int64
}

// ZoneStore keeps zone configuration in memory.  Zones and assignments are
// never removed, matching the soft-deactivate rule of the SQLite store.
type ZoneStore struct {
	mu          sync.RWMutex
	nextZone    int64
	nextAssign  int64
	zones       map[int64]store.Zone
	assignments map[int64]store.Assignment
	pairs       map[pairKey]int64
}

func NewZoneStore() *ZoneStore {
	return &ZoneStore{
		zones:       make(map[int64]store.Zone),
		assignments: make(map[int64]store.Assignment),
		pairs:       make(map[pairKey]int64),
	}
}

func (s *ZoneStore) ListZones(_ context.Context) ([]store.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Zone, 0, len(s.zones))
	for _, z := range s.zones {
		out = append(out, z)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ZoneStore) ListAssignments(_ context.Context) ([]store.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Assignment, 0, len(s.assignments))
	for _, a := range s.assignments {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *ZoneStore) GetZone(_ context.Context, id int64) (store.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	z, ok := s.zones[id]
	if !ok {
		return store.Zone{}, store.ErrNotFound
	}
	return z, nil
}

func (s *ZoneStore) SaveZone(_ context.Context, z store.Zone) (store.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, other := range s.zones {
		if id != z.ID && other.Name == z.Name {
			return store.Zone{}, store.ErrConflict
		}
	}

	now := time.Now().UTC()
	if z.ID == 0 {
		s.nextZone++
		z.ID = s.nextZone
		if z.CreatedAt.IsZero() {
			z.CreatedAt = now
		}
	} else {
		prev, ok := s.zones[z.ID]
		if !ok {
			return store.Zone{}, store.ErrNotFound
		}
		z.CreatedAt = prev.CreatedAt
	}
	z.UpdatedAt = now
	s.zones[z.ID] = z
	return z, nil
}

func (s *ZoneStore) SetZoneActive(_ context.Context, id int64, active bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	z, ok := s.zones[id]
	if !ok {
		return store.ErrNotFound
	}
	z.Active = active
	z.UpdatedAt = at
	s.zones[id] = z
	return nil
}

func (s *ZoneStore) SaveAssignment(_ context.Context, a store.Assignment) (store.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.zones[a.ZoneID]; !ok {
		return store.Assignment{}, store.ErrNotFound
	}

	key := pairKey{employeeID: a.EmployeeID, zoneID: a.ZoneID}
	if existing, ok := s.pairs[key]; ok && existing != a.ID {
		return store.Assignment{}, store.ErrConflict
	}

	now := time.Now().UTC()
	if a.ID == 0 {
		s.nextAssign++
		a.ID = s.nextAssign
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
	} else {
		prev, ok := s.assignments[a.ID]
		if !ok {
			return store.Assignment{}, store.ErrNotFound
		}
		delete(s.pairs, pairKey{employeeID: prev.EmployeeID, zoneID: prev.ZoneID})
		a.CreatedAt = prev.CreatedAt
	}
	a.UpdatedAt = now
	s.assignments[a.ID] = a
	s.pairs[key] = a.ID
	return a, nil
}

func (s *ZoneStore) SetAssignmentActive(_ context.Context, id int64, active bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assignments[id]
	if !ok {
		return store.ErrNotFound
	}
	a.Active = active
	a.UpdatedAt = at
	s.assignments[id] = a
	return nil
}
