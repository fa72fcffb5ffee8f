package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/fault"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/geo"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
)

// tieEpsilon is the distance, in meters, under which two zones count as
// equally near.
const tieEpsilon = 1e-6

// Resolution is the outcome of nearest-zone resolution for one point.
type Resolution struct {
	Assignment     store.Assignment
	Zone           store.Zone
	DistanceMeters float64
}

// Snapshot is an immutable view of zones and assignments taken at one
// instant.  All resolution logic lives here so it stays a pure function of
// its inputs.
type Snapshot struct {
	zones      map[int64]store.Zone
	byEmployee map[string][]store.Assignment // ordered by assignment ID
	loc        *time.Location
	takenAt    time.Time
}

// NewSnapshot indexes zones and assignments.  loc is the zone in which day
// masks and time windows are evaluated; nil means UTC.
func NewSnapshot(zones []store.Zone, assignments []store.Assignment, loc *time.Location, takenAt time.Time) *Snapshot {
	if loc == nil {
		loc = time.UTC
	}
	s := &Snapshot{
		zones:      make(map[int64]store.Zone, len(zones)),
		byEmployee: make(map[string][]store.Assignment),
		loc:        loc,
		takenAt:    takenAt,
	}
	for _, z := range zones {
		s.zones[z.ID] = z
	}
	for _, a := range assignments {
		s.byEmployee[a.EmployeeID] = append(s.byEmployee[a.EmployeeID], a)
	}
	for _, list := range s.byEmployee {
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	return s
}

func (s *Snapshot) TakenAt() time.Time { return s.takenAt }

func (s *Snapshot) Zone(id int64) (store.Zone, bool) {
	z, ok := s.zones[id]
	return z, ok
}

// Assignment returns the employee's active assignment to zoneID, if any.
func (s *Snapshot) Assignment(employeeID string, zoneID int64) (store.Assignment, bool) {
	for _, a := range s.byEmployee[employeeID] {
		if a.ZoneID == zoneID && a.Active {
			return a, true
		}
	}
	return store.Assignment{}, false
}

// Applicable returns the employee's assignments that apply at the given
// instant, ordered by assignment ID.  An assignment applies when it and its
// zone are active, its day mask includes the local weekday, and the
// effective time window (the assignment's, else the zone's hours) contains
// the local time of day.
func (s *Snapshot) Applicable(employeeID string, at time.Time) []store.Assignment {
	local := at.In(s.loc)
	var out []store.Assignment
	for _, a := range s.byEmployee[employeeID] {
		if !a.Active {
			continue
		}
		z, ok := s.zones[a.ZoneID]
		if !ok || !z.Active {
			continue
		}
		if !a.Days.Has(local.Weekday()) {
			continue
		}
		window := a.Window
		if window == nil {
			window = z.Hours
		}
		if window != nil && !window.Contains(local) {
			continue
		}
		out = append(out, a)
	}
	return out
}

// ResolveNearest picks the applicable zone whose center is closest to p.
// Distances within tieEpsilon are ties, broken by the primary flag and then
// by the lowest assignment ID, so identical inputs always resolve the same.
func (s *Snapshot) ResolveNearest(employeeID string, p geo.Point, at time.Time) (Resolution, bool) {
	var (
		best  Resolution
		found bool
	)
	for _, a := range s.Applicable(employeeID, at) {
		z := s.zones[a.ZoneID]
		d := geo.DistanceMeters(z.Center, p)
		cand := Resolution{Assignment: a, Zone: z, DistanceMeters: d}
		if !found || closer(cand, best) {
			best, found = cand, true
		}
	}
	return best, found
}

func closer(c, best Resolution) bool {
	if math.Abs(c.DistanceMeters-best.DistanceMeters) > tieEpsilon {
		return c.DistanceMeters < best.DistanceMeters
	}
	if c.Assignment.Primary != best.Assignment.Primary {
		return c.Assignment.Primary
	}
	return c.Assignment.ID < best.Assignment.ID
}

// ── ZoneRegistry ─────────────────────────────────────────────────────────────

type RegistryOptions struct {
	// Refresh bounds how stale a cached snapshot may get.  Defaults to 30s.
	Refresh  time.Duration
	Location *time.Location
	Now      func() time.Time
	Logger   *zap.Logger
}

// ZoneRegistry serves zone resolution from a cached Snapshot.  Readers load
// the current snapshot through an atomic pointer; refreshes build a new one
// and swap it in, so a write in flight never disturbs a reader.
type ZoneRegistry struct {
	store   store.ZoneStore
	refresh time.Duration
	loc     *time.Location
	now     func() time.Time
	logger  *zap.Logger

	snap  atomic.Pointer[Snapshot]
	dirty atomic.Bool
	group singleflight.Group
}

func NewZoneRegistry(st store.ZoneStore, opts RegistryOptions) *ZoneRegistry {
	if opts.Refresh <= 0 {
		opts.Refresh = 30 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &ZoneRegistry{
		store:   st,
		refresh: opts.Refresh,
		loc:     opts.Location,
		now:     opts.Now,
		logger:  opts.Logger,
	}
}

// Snapshot returns the cached snapshot, reloading it when it is older than
// the refresh interval or has been invalidated.  A failed reload keeps
// serving the previous snapshot; with none to fall back on it returns a
// PersistenceError.
func (r *ZoneRegistry) Snapshot(ctx context.Context) (*Snapshot, error) {
	cur := r.snap.Load()
	if cur != nil && !r.dirty.Load() && r.now().Sub(cur.TakenAt()) < r.refresh {
		return cur, nil
	}

	v, err, _ := r.group.Do("snapshot", func() (any, error) {
		return r.load(ctx)
	})
	if err != nil {
		if cur != nil {
			r.logger.Warn("zone registry refresh failed; serving previous snapshot",
				zap.Time("snapshot_at", cur.TakenAt()), zap.Error(err))
			return cur, nil
		}
		return nil, fault.Persistence("load zone registry", err)
	}
	return v.(*Snapshot), nil
}

func (r *ZoneRegistry) load(ctx context.Context) (*Snapshot, error) {
	// Cleared first so a write that lands mid-load marks the new snapshot
	// stale again.
	r.dirty.Store(false)

	zones, err := r.store.ListZones(ctx)
	if err != nil {
		r.dirty.Store(true)
		return nil, err
	}
	assignments, err := r.store.ListAssignments(ctx)
	if err != nil {
		r.dirty.Store(true)
		return nil, err
	}
	s := NewSnapshot(zones, assignments, r.loc, r.now())
	r.snap.Store(s)
	return s, nil
}

// Invalidate forces the next read to reload.
func (r *ZoneRegistry) Invalidate() { r.dirty.Store(true) }

func (r *ZoneRegistry) ApplicableAssignments(ctx context.Context, employeeID string, at time.Time) ([]store.Assignment, error) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.Applicable(strings.TrimSpace(employeeID), at), nil
}

func (r *ZoneRegistry) ResolveNearest(ctx context.Context, employeeID string, p geo.Point, at time.Time) (Resolution, bool, error) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		return Resolution{}, false, err
	}
	res, ok := s.ResolveNearest(strings.TrimSpace(employeeID), p, at)
	return res, ok, nil
}

// ── Operator writes ──────────────────────────────────────────────────────────

func (r *ZoneRegistry) ListZones(ctx context.Context) ([]store.Zone, error) {
	zones, err := r.store.ListZones(ctx)
	if err != nil {
		return nil, fault.Persistence("list zones", err)
	}
	return zones, nil
}

func (r *ZoneRegistry) ListAssignments(ctx context.Context) ([]store.Assignment, error) {
	list, err := r.store.ListAssignments(ctx)
	if err != nil {
		return nil, fault.Persistence("list assignments", err)
	}
	return list, nil
}

// SaveZone creates (ID 0) or updates a zone after checking its geometry.
func (r *ZoneRegistry) SaveZone(ctx context.Context, z store.Zone) (store.Zone, error) {
	z.Name = strings.TrimSpace(z.Name)
	if err := validateZone(z); err != nil {
		return store.Zone{}, err
	}
	saved, err := r.store.SaveZone(ctx, z)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return store.Zone{}, fault.NotFound("zone", z.ID)
	case errors.Is(err, store.ErrConflict):
		return store.Zone{}, fault.Policy("zone name %q already in use", z.Name)
	case err != nil:
		return store.Zone{}, fault.Persistence("save zone", err)
	}
	r.Invalidate()
	return saved, nil
}

// DeactivateZone soft-deletes a zone; samples keep referencing it.
func (r *ZoneRegistry) DeactivateZone(ctx context.Context, id int64) error {
	err := r.store.SetZoneActive(ctx, id, false, r.now())
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fault.NotFound("zone", id)
	case err != nil:
		return fault.Persistence("deactivate zone", err)
	}
	r.Invalidate()
	return nil
}

// SaveAssignment creates (ID 0) or updates an assignment.  A second
// assignment for the same (employee, zone) is a PolicyError.  Several
// primary assignments per employee are accepted; primary only breaks ties.
func (r *ZoneRegistry) SaveAssignment(ctx context.Context, a store.Assignment) (store.Assignment, error) {
	a.EmployeeID = strings.TrimSpace(a.EmployeeID)
	if err := validateAssignment(a); err != nil {
		return store.Assignment{}, err
	}
	saved, err := r.store.SaveAssignment(ctx, a)
	switch {
	case errors.Is(err, store.ErrNotFound):
		if a.ID != 0 {
			return store.Assignment{}, fault.NotFound("assignment or zone", a.ID)
		}
		return store.Assignment{}, fault.NotFound("zone", a.ZoneID)
	case errors.Is(err, store.ErrConflict):
		return store.Assignment{}, fault.Policy("employee %q already has an assignment to zone %d", a.EmployeeID, a.ZoneID)
	case err != nil:
		return store.Assignment{}, fault.Persistence("save assignment", err)
	}
	r.Invalidate()
	return saved, nil
}

func (r *ZoneRegistry) DeactivateAssignment(ctx context.Context, id int64) error {
	err := r.store.SetAssignmentActive(ctx, id, false, r.now())
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fault.NotFound("assignment", id)
	case err != nil:
		return fault.Persistence("deactivate assignment", err)
	}
	r.Invalidate()
	return nil
}

func validateZone(z store.Zone) error {
	if z.Name == "" {
		return fault.Policy("zone name is required")
	}
	if !z.Kind.Valid() {
		return fault.Policy("unknown zone kind %q", z.Kind)
	}
	if !finiteNonNegative(z.RadiusMeters) || z.RadiusMeters == 0 {
		return fault.Policy("zone radius must be a positive number of meters, got %v", z.RadiusMeters)
	}
	lat, lon := z.Center.Degrees()
	if err := geo.Validate(lat, lon); err != nil {
		return fault.Policy("zone center %s: %v", z.Center, err)
	}
	if z.Hours != nil && !z.Hours.Valid() {
		return fault.Policy("zone hours %d-%d out of range", z.Hours.StartMinute, z.Hours.EndMinute)
	}
	return nil
}

func validateAssignment(a store.Assignment) error {
	if a.EmployeeID == "" {
		return fault.Policy("assignment employee is required")
	}
	if a.ZoneID <= 0 {
		return fault.Policy("assignment zone is required")
	}
	if !finiteNonNegative(a.ToleranceMeters) {
		return fault.Policy("tolerance must be zero or more meters, got %v", a.ToleranceMeters)
	}
	if !a.Days.Valid() {
		return fault.Policy("malformed day mask %#x", uint8(a.Days))
	}
	if a.Window != nil && !a.Window.Valid() {
		return fault.Policy("assignment window %d-%d out of range", a.Window.StartMinute, a.Window.EndMinute)
	}
	return nil
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
