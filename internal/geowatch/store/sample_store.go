package store

import (
	"context"
	"time"
)

type SampleSource string

const (
	SourceAutomatic  SampleSource = "automatic"
	SourceManual     SampleSource = "manual"
	SourceAttendance SampleSource = "attendance"
	SourcePatrol     SampleSource = "patrol"
	SourceEmergency  SampleSource = "emergency"
)

func (s SampleSource) Valid() bool {
	switch s {
	case SourceAutomatic, SourceManual, SourceAttendance, SourcePatrol, SourceEmergency:
		return true
	}
	return false
}

// Sample is one GPS fix plus the fields derived once at insert time
// (ZoneID, WithinZone, DistanceMeters, ActiveSession).
type Sample struct {
	ID             int64
	EmployeeID     *string // nil for anonymous pings
	Lat            float64
	Lon            float64
	AccuracyMeters float64
	AltitudeMeters *float64
	CapturedAt     time.Time
	ReceivedAt     time.Time
	Source         SampleSource
	BatteryPct     *int
	DeviceInfo     string

	ZoneID         *int64
	WithinZone     bool
	DistanceMeters *float64
	ActiveSession  bool
}

// Employee returns the employee reference or "" for anonymous samples.
func (s Sample) Employee() string {
	if s.EmployeeID == nil {
		return ""
	}
	return *s.EmployeeID
}

// SampleStore is the append-only sample log.
//
// InsertSample stores s and reports inserted=true, or, when a sample with
// the same (employee, captured_at, lat, lon) already exists, returns the
// stored row with inserted=false.
type SampleStore interface {
	InsertSample(ctx context.Context, s Sample) (stored Sample, inserted bool, err error)
	LatestPerEmployee(ctx context.Context, since time.Time) ([]Sample, error)
	History(ctx context.Context, employeeID string, from, to time.Time) ([]Sample, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
