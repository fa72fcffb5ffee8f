package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/BrandonDHaskell/geowatch/internal/db"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/geo"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
)

type ZoneStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewZoneStore(db *sql.DB, writer *dbpkg.Worker) *ZoneStore {
	return &ZoneStore{db: db, writer: writer}
}

const zoneColumns = `zone_id, name, kind, center_lat, center_lon, radius_m,
  hours_start_min, hours_end_min, active, created_at_ms, updated_at_ms`

func scanZone(sc interface{ Scan(...any) error }) (store.Zone, error) {
	var (
		z                   store.Zone
		kind, lat, lon      string
		hStart, hEnd        sql.NullInt64
		active              int
		createdMs, updateMs int64
	)
	if err := sc.Scan(&z.ID, &z.Name, &kind, &lat, &lon, &z.RadiusMeters,
		&hStart, &hEnd, &active, &createdMs, &updateMs); err != nil {
		return store.Zone{}, err
	}
	center, err := geo.ParsePoint(lat, lon)
	if err != nil {
		return store.Zone{}, fmt.Errorf("zone %d center: %w", z.ID, err)
	}
	z.Kind = store.ZoneKind(kind)
	z.Center = center
	z.Hours = windowFrom(hStart, hEnd)
	z.Active = active == 1
	z.CreatedAt = timeOf(createdMs)
	z.UpdatedAt = timeOf(updateMs)
	return z, nil
}

func (s *ZoneStore) ListZones(ctx context.Context) ([]store.Zone, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+zoneColumns+` FROM zones ORDER BY zone_id;`)
	if err != nil {
		return nil, fmt.Errorf("ListZones query: %w", err)
	}
	defer rows.Close()

	var out []store.Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, fmt.Errorf("ListZones scan: %w", err)
		}
		out = append(out, z)
	}
	return out, rows.Err()
}

func (s *ZoneStore) GetZone(ctx context.Context, id int64) (store.Zone, error) {
	z, err := scanZone(s.db.QueryRowContext(ctx,
		`SELECT `+zoneColumns+` FROM zones WHERE zone_id = ?;`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return store.Zone{}, store.ErrNotFound
	}
	if err != nil {
		return store.Zone{}, fmt.Errorf("GetZone query: %w", err)
	}
	return z, nil
}

func (s *ZoneStore) SaveZone(ctx context.Context, z store.Zone) (store.Zone, error) {
	now := time.Now().UTC()
	if z.CreatedAt.IsZero() {
		z.CreatedAt = now
	}
	z.UpdatedAt = now
	hStart, hEnd := windowColumns(z.Hours)

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if z.ID == 0 {
			res, err := tx.ExecContext(ctx, `
INSERT INTO zones(
  name, kind, center_lat, center_lon, radius_m,
  hours_start_min, hours_end_min, active, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, z.Name, string(z.Kind), z.Center.Lat.String(), z.Center.Lon.String(), z.RadiusMeters,
				hStart, hEnd, boolInt(z.Active), msOf(z.CreatedAt), msOf(z.UpdatedAt))
			if err != nil {
				if isUniqueViolation(err) {
					return store.ErrConflict
				}
				return fmt.Errorf("SaveZone insert: %w", err)
			}
			z.ID, err = res.LastInsertId()
			return err
		}

		res, err := tx.ExecContext(ctx, `
UPDATE zones
SET name = ?, kind = ?, center_lat = ?, center_lon = ?, radius_m = ?,
    hours_start_min = ?, hours_end_min = ?, active = ?, updated_at_ms = ?
WHERE zone_id = ?;
`, z.Name, string(z.Kind), z.Center.Lat.String(), z.Center.Lon.String(), z.RadiusMeters,
			hStart, hEnd, boolInt(z.Active), msOf(z.UpdatedAt), z.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrConflict
			}
			return fmt.Errorf("SaveZone update: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		var createdMs int64
		if err := tx.QueryRowContext(ctx,
			`SELECT created_at_ms FROM zones WHERE zone_id = ?;`, z.ID).Scan(&createdMs); err != nil {
			return fmt.Errorf("SaveZone reload: %w", err)
		}
		z.CreatedAt = timeOf(createdMs)
		return nil
	})
	if err != nil {
		return store.Zone{}, err
	}
	return z, nil
}

func (s *ZoneStore) SetZoneActive(ctx context.Context, id int64, active bool, at time.Time) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE zones SET active = ?, updated_at_ms = ? WHERE zone_id = ?;
`, boolInt(active), msOf(at), id)
		if err != nil {
			return fmt.Errorf("SetZoneActive: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

const assignmentColumns = `assignment_id, employee_id, zone_id, is_primary, tolerance_m,
  day_mask, window_start_min, window_end_min, active, created_at_ms, updated_at_ms`

func (s *ZoneStore) ListAssignments(ctx context.Context) ([]store.Assignment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+assignmentColumns+` FROM zone_assignments ORDER BY assignment_id;`)
	if err != nil {
		return nil, fmt.Errorf("ListAssignments query: %w", err)
	}
	defer rows.Close()

	var out []store.Assignment
	for rows.Next() {
		var (
			a                    store.Assignment
			primary, active      int
			mask                 int64
			wStart, wEnd         sql.NullInt64
			createdMs, updatedMs int64
		)
		if err := rows.Scan(&a.ID, &a.EmployeeID, &a.ZoneID, &primary, &a.ToleranceMeters,
			&mask, &wStart, &wEnd, &active, &createdMs, &updatedMs); err != nil {
			return nil, fmt.Errorf("ListAssignments scan: %w", err)
		}
		a.Primary = primary == 1
		a.Days = store.DayMask(mask)
		a.Window = windowFrom(wStart, wEnd)
		a.Active = active == 1
		a.CreatedAt = timeOf(createdMs)
		a.UpdatedAt = timeOf(updatedMs)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *ZoneStore) SaveAssignment(ctx context.Context, a store.Assignment) (store.Assignment, error) {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	wStart, wEnd := windowColumns(a.Window)

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM zones WHERE zone_id = ?;`, a.ZoneID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("SaveAssignment zone lookup: %w", err)
		}

		if a.ID == 0 {
			res, err := tx.ExecContext(ctx, `
INSERT INTO zone_assignments(
  employee_id, zone_id, is_primary, tolerance_m, day_mask,
  window_start_min, window_end_min, active, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, a.EmployeeID, a.ZoneID, boolInt(a.Primary), a.ToleranceMeters, int64(a.Days),
				wStart, wEnd, boolInt(a.Active), msOf(a.CreatedAt), msOf(a.UpdatedAt))
			if err != nil {
				if isUniqueViolation(err) {
					return store.ErrConflict
				}
				return fmt.Errorf("SaveAssignment insert: %w", err)
			}
			a.ID, err = res.LastInsertId()
			return err
		}

		res, err := tx.ExecContext(ctx, `
UPDATE zone_assignments
SET employee_id = ?, zone_id = ?, is_primary = ?, tolerance_m = ?, day_mask = ?,
    window_start_min = ?, window_end_min = ?, active = ?, updated_at_ms = ?
WHERE assignment_id = ?;
`, a.EmployeeID, a.ZoneID, boolInt(a.Primary), a.ToleranceMeters, int64(a.Days),
			wStart, wEnd, boolInt(a.Active), msOf(a.UpdatedAt), a.ID)
		if err != nil {
			if isUniqueViolation(err) {
				return store.ErrConflict
			}
			return fmt.Errorf("SaveAssignment update: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		var createdMs int64
		if err := tx.QueryRowContext(ctx,
			`SELECT created_at_ms FROM zone_assignments WHERE assignment_id = ?;`, a.ID).Scan(&createdMs); err != nil {
			return fmt.Errorf("SaveAssignment reload: %w", err)
		}
		a.CreatedAt = timeOf(createdMs)
		return nil
	})
	if err != nil {
		return store.Assignment{}, err
	}
	return a, nil
}

func (s *ZoneStore) SetAssignmentActive(ctx context.Context, id int64, active bool, at time.Time) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE zone_assignments SET active = ?, updated_at_ms = ? WHERE assignment_id = ?;
`, boolInt(active), msOf(at), id)
		if err != nil {
			return fmt.Errorf("SetAssignmentActive: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

// isUniqueViolation matches SQLite's constraint message; the driver's typed
// error codes are not part of database/sql.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
