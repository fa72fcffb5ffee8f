package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/geowatch/internal/db"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
)

type AlertStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAlertStore(db *sql.DB, writer *dbpkg.Worker) *AlertStore {
	return &AlertStore{db: db, writer: writer}
}

const alertColumns = `alert_id, employee_id, zone_id, sample_id, kind, severity,
  title, message, status, recipients, created_at_ms,
  acknowledged_by, acknowledged_at_ms, resolved_by, resolved_at_ms, resolution_notes`

func scanAlert(sc interface{ Scan(...any) error }) (store.Alert, error) {
	var (
		a                        store.Alert
		zoneID, sampleID         sql.NullInt64
		kind, severity, status   string
		recipients               string
		createdMs                int64
		ackBy, resolvedBy, notes sql.NullString
		ackAt, resolvedAt        sql.NullInt64
	)
	if err := sc.Scan(&a.ID, &a.EmployeeID, &zoneID, &sampleID, &kind, &severity,
		&a.Title, &a.Message, &status, &recipients, &createdMs,
		&ackBy, &ackAt, &resolvedBy, &resolvedAt, &notes); err != nil {
		return store.Alert{}, err
	}
	if err := json.Unmarshal([]byte(recipients), &a.Recipients); err != nil {
		return store.Alert{}, fmt.Errorf("alert %d recipients: %w", a.ID, err)
	}
	a.ZoneID = int64Ptr(zoneID)
	a.SampleID = int64Ptr(sampleID)
	a.Kind = store.AlertKind(kind)
	a.Severity = store.Severity(severity)
	a.Status = store.AlertStatus(status)
	a.CreatedAt = timeOf(createdMs)
	a.AcknowledgedBy = ackBy.String
	a.AcknowledgedAt = timePtr(ackAt)
	a.ResolvedBy = resolvedBy.String
	a.ResolvedAt = timePtr(resolvedAt)
	a.ResolutionNotes = notes.String
	return a, nil
}

// statusList renders statuses as a quoted SQL IN list.  Values come from
// the closed AlertStatus set, never from callers.
func statusList(statuses []store.AlertStatus) string {
	parts := make([]string, len(statuses))
	for i, s := range statuses {
		parts[i] = "'" + string(s) + "'"
	}
	return strings.Join(parts, ",")
}

// CreateUnlessOpen runs the dedup lookup and the insert in one write
// transaction, so two concurrent evaluations for the same employee and
// kind can never both insert.
func (s *AlertStore) CreateUnlessOpen(ctx context.Context, a store.Alert, since time.Time) (store.Alert, bool, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Status == "" {
		a.Status = store.StatusPending
	}
	if a.Recipients == nil {
		a.Recipients = []string{}
	}
	recipients, err := json.Marshal(a.Recipients)
	if err != nil {
		return store.Alert{}, false, fmt.Errorf("CreateUnlessOpen recipients: %w", err)
	}

	var (
		stored  store.Alert
		created bool
	)
	err = s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		existing, err := scanAlert(tx.QueryRowContext(ctx, `
SELECT `+alertColumns+`
FROM alerts
WHERE employee_id = ? AND kind = ?
  AND status IN (`+statusList(store.OpenStatuses)+`)
  AND created_at_ms > ?
ORDER BY created_at_ms DESC, alert_id DESC
LIMIT 1;
`, a.EmployeeID, string(a.Kind), msOf(since)))
		switch {
		case err == nil:
			stored = existing
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("CreateUnlessOpen lookup: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
INSERT INTO alerts(
  employee_id, zone_id, sample_id, kind, severity,
  title, message, status, recipients, created_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, a.EmployeeID, nullableInt64(a.ZoneID), nullableInt64(a.SampleID), string(a.Kind), string(a.Severity),
			a.Title, a.Message, string(a.Status), string(recipients), msOf(a.CreatedAt))
		if err != nil {
			return fmt.Errorf("CreateUnlessOpen insert: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("CreateUnlessOpen id: %w", err)
		}
		stored = a
		stored.ID = id
		created = true
		return nil
	})
	if err != nil {
		return store.Alert{}, false, err
	}
	return stored, created, nil
}

func (s *AlertStore) GetAlert(ctx context.Context, id int64) (store.Alert, error) {
	a, err := scanAlert(s.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE alert_id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Alert{}, store.ErrNotFound
	}
	if err != nil {
		return store.Alert{}, fmt.Errorf("GetAlert query: %w", err)
	}
	return a, nil
}

// Transition applies t with a guarded UPDATE.  When nothing matches it
// reloads the row to tell an unknown id from a disallowed move.
func (s *AlertStore) Transition(ctx context.Context, t store.AlertTransition) (store.Alert, error) {
	if len(t.From) == 0 {
		return store.Alert{}, fmt.Errorf("Transition: empty From")
	}

	var query string
	args := []any{string(t.To)}
	switch t.To {
	case store.StatusAcknowledged:
		query = `UPDATE alerts SET status = ?, acknowledged_by = ?, acknowledged_at_ms = ?`
		args = append(args, t.Actor, msOf(t.At))
	default:
		query = `UPDATE alerts SET status = ?, resolved_by = ?, resolved_at_ms = ?, resolution_notes = ?`
		args = append(args, t.Actor, msOf(t.At), t.Notes)
	}
	query += ` WHERE alert_id = ? AND status IN (` + statusList(t.From) + `);`
	args = append(args, t.ID)

	var out store.Alert
	var conflict bool
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("Transition update: %w", err)
		}
		n, _ := res.RowsAffected()

		out, err = scanAlert(tx.QueryRowContext(ctx,
			`SELECT `+alertColumns+` FROM alerts WHERE alert_id = ?;`, t.ID))
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("Transition reload: %w", err)
		}
		conflict = n == 0
		return nil
	})
	if err != nil {
		return store.Alert{}, err
	}
	if conflict {
		return out, store.ErrConflict
	}
	return out, nil
}

func (s *AlertStore) ListOpen(ctx context.Context, f store.AlertFilter) ([]store.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE status IN (` + statusList(store.OpenStatuses) + `)`
	var args []any
	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(f.Kind))
	}
	if f.Severity != "" {
		query += ` AND severity = ?`
		args = append(args, string(f.Severity))
	}
	query += ` ORDER BY created_at_ms DESC, alert_id DESC;`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListOpen query: %w", err)
	}
	defer rows.Close()

	var out []store.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("ListOpen scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
