package store

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/geo"
)

type ZoneKind string

const (
	ZoneOffice   ZoneKind = "office"
	ZoneBuilding ZoneKind = "building"
	ZonePatrol   ZoneKind = "patrol"
	ZoneEvent    ZoneKind = "event"
	ZoneOther    ZoneKind = "other"
)

func (k ZoneKind) Valid() bool {
	switch k {
	case ZoneOffice, ZoneBuilding, ZonePatrol, ZoneEvent, ZoneOther:
		return true
	}
	return false
}

// DayMask is a weekday bitset; bit i is time.Weekday(i), so Sunday is bit 0.
type DayMask uint8

const AllDays DayMask = 0x7F

func DayMaskOf(days ...time.Weekday) DayMask {
	var m DayMask
	for _, d := range days {
		m |= 1 << uint(d)
	}
	return m
}

func (m DayMask) Has(d time.Weekday) bool { return m&(1<<uint(d)) != 0 }

// Valid reports whether m names at least one day and no bits past Saturday.
func (m DayMask) Valid() bool { return m != 0 && m&^AllDays == 0 }

// TimeWindow is a daily window in minutes from local midnight.  End before
// Start wraps past midnight; Start == End covers the whole day.
type TimeWindow struct {
	StartMinute int
	EndMinute   int
}

const minutesPerDay = 24 * 60

func (w TimeWindow) Valid() bool {
	return w.StartMinute >= 0 && w.StartMinute < minutesPerDay &&
		w.EndMinute >= 0 && w.EndMinute < minutesPerDay
}

// Contains checks the wall-clock minute of t, in t's own location.
func (w TimeWindow) Contains(t time.Time) bool {
	m := t.Hour()*60 + t.Minute()
	switch {
	case w.StartMinute == w.EndMinute:
		return true
	case w.StartMinute < w.EndMinute:
		return m >= w.StartMinute && m < w.EndMinute
	default:
		return m >= w.StartMinute || m < w.EndMinute
	}
}

// Zone is a named circular geofence.  Zones are deactivated, never deleted,
// so historical samples keep a valid reference.
type Zone struct {
	ID           int64
	Name         string
	Kind         ZoneKind
	Center       geo.Point
	RadiusMeters float64
	Hours        *TimeWindow // default operating hours; nil = always
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Assignment binds one employee to one zone.
type Assignment struct {
	ID              int64
	EmployeeID      string
	ZoneID          int64
	Primary         bool
	ToleranceMeters float64
	Days            DayMask
	Window          *TimeWindow // overrides Zone.Hours when set
	Active          bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ZoneStore persists zone configuration.  SaveZone and SaveAssignment create
// when ID is zero and update otherwise.  SaveZone returns ErrConflict for a
// name already used by another zone; SaveAssignment returns ErrConflict
// when another assignment already exists for the same (employee, zone).
type ZoneStore interface {
	ListZones(ctx context.Context) ([]Zone, error)
	ListAssignments(ctx context.Context) ([]Assignment, error)
	GetZone(ctx context.Context, id int64) (Zone, error)
	SaveZone(ctx context.Context, z Zone) (Zone, error)
	SetZoneActive(ctx context.Context, id int64, active bool, at time.Time) error
	SaveAssignment(ctx context.Context, a Assignment) (Assignment, error)
	SetAssignmentActive(ctx context.Context, id int64, active bool, at time.Time) error
}
