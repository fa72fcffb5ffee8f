package store

import (
	"context"
	"time"
)

type AlertKind string

const (
	AlertOutOfZone      AlertKind = "out_of_zone"
	AlertLateArrival    AlertKind = "late_arrival"
	AlertEarlyDeparture AlertKind = "early_departure"
	AlertNoMovement     AlertKind = "no_movement"
	AlertEmergency      AlertKind = "emergency"
	AlertLowBattery     AlertKind = "low_battery"
)

func (k AlertKind) Valid() bool {
	switch k {
	case AlertOutOfZone, AlertLateArrival, AlertEarlyDeparture, AlertNoMovement, AlertEmergency, AlertLowBattery:
		return true
	}
	return false
}

type Severity string

const (
	SeverityInfo      Severity = "info"
	SeverityWarning   Severity = "warning"
	SeverityCritical  Severity = "critical"
	SeverityEmergency Severity = "emergency"
)

// Rank orders severities; higher is more severe, unknown is 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 1
	case SeverityWarning:
		return 2
	case SeverityCritical:
		return 3
	case SeverityEmergency:
		return 4
	}
	return 0
}

func (s Severity) Valid() bool { return s.Rank() > 0 }

type AlertStatus string

const (
	StatusPending      AlertStatus = "pending"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
	StatusFalseAlarm   AlertStatus = "false_alarm"
)

// OpenStatuses are the statuses that count as unresolved for dedup.
var OpenStatuses = []AlertStatus{StatusPending, StatusAcknowledged}

func (s AlertStatus) Open() bool { return s == StatusPending || s == StatusAcknowledged }

type Alert struct {
	ID         int64
	EmployeeID string
	ZoneID     *int64
	SampleID   *int64
	Kind       AlertKind
	Severity   Severity
	Title      string
	Message    string
	Status     AlertStatus
	Recipients []string
	CreatedAt  time.Time

	AcknowledgedBy  string
	AcknowledgedAt  *time.Time
	ResolvedBy      string
	ResolvedAt      *time.Time
	ResolutionNotes string
}

// Resolved is true once the alert has left the open states.
func (a Alert) Resolved() bool { return !a.Status.Open() }

// AlertTransition moves one alert from any of From to To.
type AlertTransition struct {
	ID    int64
	From  []AlertStatus
	To    AlertStatus
	Actor string
	Notes string
	At    time.Time
}

type AlertFilter struct {
	Kind     AlertKind // "" = any
	Severity Severity  // "" = any
}

// AlertStore persists alerts.
//
// CreateUnlessOpen inserts a unless an open alert of the same kind for the
// same employee was created after since; the check and the insert are one
// atomic step.  When suppressed it returns the existing alert and
// created=false.
//
// Transition returns ErrNotFound for an unknown id and ErrConflict (with
// the current row) when the alert is not in one of t.From.
type AlertStore interface {
	CreateUnlessOpen(ctx context.Context, a Alert, since time.Time) (stored Alert, created bool, err error)
	GetAlert(ctx context.Context, id int64) (Alert, error)
	Transition(ctx context.Context, t AlertTransition) (Alert, error)
	ListOpen(ctx context.Context, f AlertFilter) ([]Alert, error)
}
