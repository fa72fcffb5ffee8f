package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/fault"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/notify"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
)

type AlertPolicy struct {
	// DedupWindow suppresses a new alert while an open alert of the same
	// kind for the same employee is younger than this.  Defaults to 15m.
	DedupWindow time.Duration

	// LowBatteryPercent raises a low_battery alert at or below this level
	// during an active session.  0 disables the rule.
	LowBatteryPercent int

	// Recipients are recorded on every alert and passed to the notifier.
	Recipients []string
}

const DefaultDedupWindow = 15 * time.Minute

type AlertManager struct {
	store      store.AlertStore
	policy     AlertPolicy
	dispatcher *notify.Dispatcher
	now        func() time.Time
	logger     *zap.Logger
}

// NewAlertManager wires the alert store and an optional dispatcher.  now
// may be nil for the wall clock.
func NewAlertManager(st store.AlertStore, policy AlertPolicy, d *notify.Dispatcher, now func() time.Time, logger *zap.Logger) *AlertManager {
	if policy.DedupWindow <= 0 {
		policy.DedupWindow = DefaultDedupWindow
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertManager{store: st, policy: policy, dispatcher: d, now: now, logger: logger}
}

// Evaluate applies the alert rules to an enriched sample and returns the
// most severe alert it created, or nil.  Anonymous samples never alert.
//
// Rules, in order:
//   - emergency source raises an emergency alert;
//   - a resolved zone with the sample outside it raises out_of_zone;
//   - a battery level at or below the threshold during an active session
//     raises low_battery.
//
// Each candidate goes through the store's atomic dedup insert.  A failure
// on one rule does not stop the others; failures are joined.
func (m *AlertManager) Evaluate(ctx context.Context, smp store.Sample) (*store.Alert, error) {
	emp := smp.Employee()
	if emp == "" {
		return nil, nil
	}

	now := m.now()
	since := now.Add(-m.policy.DedupWindow)

	var (
		best *store.Alert
		errs []error
	)
	for _, cand := range m.candidates(smp, now) {
		stored, created, err := m.store.CreateUnlessOpen(ctx, cand, since)
		if err != nil {
			errs = append(errs, fmt.Errorf("create %s alert: %w", cand.Kind, err))
			continue
		}
		if !created {
			m.logger.Debug("alert suppressed by open alert",
				zap.String("employee_id", emp),
				zap.String("kind", string(cand.Kind)),
				zap.Int64("open_alert_id", stored.ID),
			)
			continue
		}

		m.logger.Info("alert created",
			zap.Int64("alert_id", stored.ID),
			zap.String("employee_id", emp),
			zap.String("kind", string(stored.Kind)),
			zap.String("severity", string(stored.Severity)),
		)
		m.dispatcher.Dispatch(stored)

		if best == nil || stored.Severity.Rank() > best.Severity.Rank() {
			a := stored
			best = &a
		}
	}
	if len(errs) > 0 {
		return best, fault.Persistence("evaluate alerts", errors.Join(errs...))
	}
	return best, nil
}

func (m *AlertManager) candidates(smp store.Sample, now time.Time) []store.Alert {
	base := store.Alert{
		EmployeeID: smp.Employee(),
		ZoneID:     smp.ZoneID,
		Status:     store.StatusPending,
		Recipients: slices.Clone(m.policy.Recipients),
		CreatedAt:  now,
	}
	if smp.ID != 0 {
		id := smp.ID
		base.SampleID = &id
	}

	var out []store.Alert
	if smp.Source == store.SourceEmergency {
		a := base
		a.Kind = store.AlertEmergency
		a.Severity = store.SeverityEmergency
		a.Title = "Emergency signal"
		a.Message = fmt.Sprintf("Employee %s sent an emergency signal at %.6f,%.6f.", a.EmployeeID, smp.Lat, smp.Lon)
		out = append(out, a)
	}
	if smp.ZoneID != nil && !smp.WithinZone {
		a := base
		a.Kind = store.AlertOutOfZone
		a.Severity = store.SeverityWarning
		a.Title = "Outside assigned zone"
		if smp.DistanceMeters != nil {
			a.Message = fmt.Sprintf("Employee %s is %.0f m from the center of zone %d.", a.EmployeeID, *smp.DistanceMeters, *smp.ZoneID)
		} else {
			a.Message = fmt.Sprintf("Employee %s is outside zone %d.", a.EmployeeID, *smp.ZoneID)
		}
		out = append(out, a)
	}
	if m.policy.LowBatteryPercent > 0 && smp.ActiveSession && smp.BatteryPct != nil && *smp.BatteryPct <= m.policy.LowBatteryPercent {
		a := base
		a.Kind = store.AlertLowBattery
		a.Severity = store.SeverityInfo
		a.Title = "Low battery"
		a.Message = fmt.Sprintf("Employee %s device battery at %d%%.", a.EmployeeID, *smp.BatteryPct)
		out = append(out, a)
	}
	return out
}

// ── State machine ────────────────────────────────────────────────────────────

func (m *AlertManager) Get(ctx context.Context, id int64) (store.Alert, error) {
	a, err := m.store.GetAlert(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return store.Alert{}, fault.NotFound("alert", id)
	case err != nil:
		return store.Alert{}, fault.Persistence("get alert", err)
	}
	return a, nil
}

// Acknowledge moves a pending alert to acknowledged.
func (m *AlertManager) Acknowledge(ctx context.Context, id int64, actor string) (store.Alert, error) {
	return m.transition(ctx, id, actor, "", []store.AlertStatus{store.StatusPending}, store.StatusAcknowledged)
}

// Resolve closes a pending or acknowledged alert.  Notes are optional.
func (m *AlertManager) Resolve(ctx context.Context, id int64, actor, notes string) (store.Alert, error) {
	return m.transition(ctx, id, actor, notes, store.OpenStatuses, store.StatusResolved)
}

// MarkFalseAlarm closes a pending or acknowledged alert as a false alarm.
func (m *AlertManager) MarkFalseAlarm(ctx context.Context, id int64, actor, notes string) (store.Alert, error) {
	return m.transition(ctx, id, actor, notes, store.OpenStatuses, store.StatusFalseAlarm)
}

func (m *AlertManager) transition(ctx context.Context, id int64, actor, notes string, from []store.AlertStatus, to store.AlertStatus) (store.Alert, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return store.Alert{}, fault.Validation("actor_id", "required")
	}

	a, err := m.store.Transition(ctx, store.AlertTransition{
		ID:    id,
		From:  from,
		To:    to,
		Actor: actor,
		Notes: strings.TrimSpace(notes),
		At:    m.now(),
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return store.Alert{}, fault.NotFound("alert", id)
	case errors.Is(err, store.ErrConflict):
		return store.Alert{}, fault.Policy("alert %d is %s; cannot move to %s", id, a.Status, to)
	case err != nil:
		return store.Alert{}, fault.Persistence("transition alert", err)
	}

	m.logger.Info("alert transitioned",
		zap.Int64("alert_id", id),
		zap.String("status", string(to)),
		zap.String("actor_id", actor),
	)
	return a, nil
}

// Wait blocks until queued notifications have been delivered.
func (m *AlertManager) Wait() { m.dispatcher.Wait() }
