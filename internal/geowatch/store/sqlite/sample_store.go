package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/geowatch/internal/db"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
)

type SampleStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewSampleStore(db *sql.DB, writer *dbpkg.Worker) *SampleStore {
	return &SampleStore{db: db, writer: writer}
}

const sampleColumns = `sample_id, employee_id, lat, lon, accuracy_m, altitude_m,
  captured_at_ms, received_at_ms, source, battery_pct, device_info,
  zone_id, within_zone, distance_m, active_session`

func scanSample(sc interface{ Scan(...any) error }) (store.Sample, error) {
	var (
		smp                   store.Sample
		employee              sql.NullString
		altitude, distance    sql.NullFloat64
		battery, zoneID       sql.NullInt64
		capturedMs, recvMs    int64
		source                string
		within, activeSession int
	)
	if err := sc.Scan(&smp.ID, &employee, &smp.Lat, &smp.Lon, &smp.AccuracyMeters, &altitude,
		&capturedMs, &recvMs, &source, &battery, &smp.DeviceInfo,
		&zoneID, &within, &distance, &activeSession); err != nil {
		return store.Sample{}, err
	}
	smp.EmployeeID = stringPtr(employee)
	smp.AltitudeMeters = floatPtr(altitude)
	smp.CapturedAt = timeOf(capturedMs)
	smp.ReceivedAt = timeOf(recvMs)
	smp.Source = store.SampleSource(source)
	smp.BatteryPct = intPtr(battery)
	smp.ZoneID = int64Ptr(zoneID)
	smp.WithinZone = within == 1
	smp.DistanceMeters = floatPtr(distance)
	smp.ActiveSession = activeSession == 1
	return smp, nil
}

// InsertSample appends smp.  On an exact-duplicate key it leaves the table
// untouched and returns the row already stored.
func (s *SampleStore) InsertSample(ctx context.Context, smp store.Sample) (store.Sample, bool, error) {
	if smp.ReceivedAt.IsZero() {
		smp.ReceivedAt = time.Now().UTC()
	}

	var (
		stored   store.Sample
		inserted bool
	)
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO location_samples(
  employee_id, lat, lon, accuracy_m, altitude_m,
  captured_at_ms, received_at_ms, source, battery_pct, device_info,
  zone_id, within_zone, distance_m, active_session
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT DO NOTHING;
`,
			nullableString(smp.EmployeeID), smp.Lat, smp.Lon, smp.AccuracyMeters, nullableFloat(smp.AltitudeMeters),
			msOf(smp.CapturedAt), msOf(smp.ReceivedAt), string(smp.Source), nullableInt(smp.BatteryPct), smp.DeviceInfo,
			nullableInt64(smp.ZoneID), boolInt(smp.WithinZone), nullableFloat(smp.DistanceMeters), boolInt(smp.ActiveSession),
		)
		if err != nil {
			return fmt.Errorf("InsertSample insert: %w", err)
		}

		if n, _ := res.RowsAffected(); n == 1 {
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("InsertSample id: %w", err)
			}
			stored = smp
			stored.ID = id
			inserted = true
			return nil
		}

		// Duplicate delivery: hand back the original row.
		stored, err = scanSample(tx.QueryRowContext(ctx, `
SELECT `+sampleColumns+`
FROM location_samples
WHERE employee_id = ? AND captured_at_ms = ? AND lat = ? AND lon = ?;
`, nullableString(smp.EmployeeID), msOf(smp.CapturedAt), smp.Lat, smp.Lon))
		if err != nil {
			return fmt.Errorf("InsertSample load duplicate: %w", err)
		}
		return nil
	})
	if err != nil {
		return store.Sample{}, false, err
	}
	return stored, inserted, nil
}

// LatestPerEmployee returns each employee's newest sample captured at or
// after since, newest first.  Anonymous samples are excluded.
func (s *SampleStore) LatestPerEmployee(ctx context.Context, since time.Time) ([]store.Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+sampleColumns+` FROM (
  SELECT *, ROW_NUMBER() OVER (
    PARTITION BY employee_id ORDER BY captured_at_ms DESC, sample_id DESC
  ) AS rn
  FROM location_samples
  WHERE employee_id IS NOT NULL AND captured_at_ms >= ?
)
WHERE rn = 1
ORDER BY captured_at_ms DESC, sample_id DESC;
`, msOf(since))
	if err != nil {
		return nil, fmt.Errorf("LatestPerEmployee query: %w", err)
	}
	return collectSamples(rows, "LatestPerEmployee")
}

// History returns employeeID's samples captured within [from, to], newest first.
func (s *SampleStore) History(ctx context.Context, employeeID string, from, to time.Time) ([]store.Sample, error) {
	employeeID = strings.TrimSpace(employeeID)
	rows, err := s.db.QueryContext(ctx, `
SELECT `+sampleColumns+`
FROM location_samples
WHERE employee_id = ? AND captured_at_ms BETWEEN ? AND ?
ORDER BY captured_at_ms DESC, sample_id DESC;
`, employeeID, msOf(from), msOf(to))
	if err != nil {
		return nil, fmt.Errorf("History query: %w", err)
	}
	return collectSamples(rows, "History")
}

// PruneOlderThan deletes samples captured before cutoff.  Alerts keep their
// rows; the FK nulls their sample reference.
//
// Uses the idx_samples_time index for an efficient range scan.
func (s *SampleStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM location_samples
WHERE captured_at_ms < ?;
`, msOf(cutoff))
		if err != nil {
			return fmt.Errorf("PruneOlderThan: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	return deleted, err
}

func collectSamples(rows *sql.Rows, op string) ([]store.Sample, error) {
	defer rows.Close()
	var out []store.Sample
	for rows.Next() {
		smp, err := scanSample(rows)
		if err != nil {
			return nil, fmt.Errorf("%s scan: %w", op, err)
		}
		out = append(out, smp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s rows: %w", op, err)
	}
	return out, nil
}
