package service

import (
	"context"
	"strings"
	"time"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/fault"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
)

// LiveLocation is an employee's most recent fix.
type LiveLocation struct {
	Sample store.Sample
	Zone   *store.Zone
}

type SeverityGroup struct {
	Severity store.Severity
	Alerts   []store.Alert
}

// QueryService is the read side.  It reads the stores directly and never
// queues behind the write path.
type QueryService struct {
	samples  store.SampleStore
	alerts   store.AlertStore
	registry *ZoneRegistry
	now      func() time.Time
}

func NewQueryService(samples store.SampleStore, alerts store.AlertStore, registry *ZoneRegistry, now func() time.Time) *QueryService {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &QueryService{samples: samples, alerts: alerts, registry: registry, now: now}
}

// LiveLocations returns the latest sample per employee captured within
// maxAge of now, newest first.
func (q *QueryService) LiveLocations(ctx context.Context, maxAge time.Duration) ([]LiveLocation, error) {
	if maxAge <= 0 {
		return nil, fault.Validation("max_age_s", "must be positive")
	}
	latest, err := q.samples.LatestPerEmployee(ctx, q.now().Add(-maxAge))
	if err != nil {
		return nil, fault.Persistence("live locations", err)
	}

	// Zone names are decoration; a registry failure leaves them off.
	var snap *Snapshot
	if q.registry != nil {
		snap, _ = q.registry.Snapshot(ctx)
	}

	out := make([]LiveLocation, 0, len(latest))
	for _, s := range latest {
		ll := LiveLocation{Sample: s}
		if snap != nil && s.ZoneID != nil {
			if z, ok := snap.Zone(*s.ZoneID); ok {
				ll.Zone = &z
			}
		}
		out = append(out, ll)
	}
	return out, nil
}

// EmployeeHistory returns samples captured in [from, to], newest first.  A
// zero to means now; a zero from means 24 hours before to.
func (q *QueryService) EmployeeHistory(ctx context.Context, employeeID string, from, to time.Time) ([]store.Sample, error) {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return nil, fault.Validation("employee_id", "required")
	}
	if to.IsZero() {
		to = q.now()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	if from.After(to) {
		return nil, fault.Validation("from", "must not be after to")
	}

	out, err := q.samples.History(ctx, employeeID, from, to)
	if err != nil {
		return nil, fault.Persistence("employee history", err)
	}
	return out, nil
}

func (q *QueryService) OpenAlerts(ctx context.Context, f store.AlertFilter) ([]store.Alert, error) {
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, fault.Validation("kind", "unknown alert kind "+string(f.Kind))
	}
	if f.Severity != "" && !f.Severity.Valid() {
		return nil, fault.Validation("severity", "unknown severity "+string(f.Severity))
	}
	out, err := q.alerts.ListOpen(ctx, f)
	if err != nil {
		return nil, fault.Persistence("open alerts", err)
	}
	return out, nil
}

// OpenAlertsBySeverity groups open alerts, most severe group first.  Empty
// groups are omitted.
func (q *QueryService) OpenAlertsBySeverity(ctx context.Context) ([]SeverityGroup, error) {
	open, err := q.OpenAlerts(ctx, store.AlertFilter{})
	if err != nil {
		return nil, err
	}

	order := []store.Severity{store.SeverityEmergency, store.SeverityCritical, store.SeverityWarning, store.SeverityInfo}
	bySev := make(map[store.Severity][]store.Alert, len(order))
	for _, a := range open {
		bySev[a.Severity] = append(bySev[a.Severity], a)
	}

	var out []SeverityGroup
	for _, sev := range order {
		if list := bySev[sev]; len(list) > 0 {
			out = append(out, SeverityGroup{Severity: sev, Alerts: list})
		}
	}
	return out, nil
}
