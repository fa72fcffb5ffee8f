package sqlite

import (
	"database/sql"
	"time"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
)

// Helpers for the nullable and millisecond-timestamp column conventions
// shared by every table.

func msOf(t time.Time) int64 { return t.UTC().UnixMilli() }

func timeOf(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableFloat(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableString(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableTimeMs(p *time.Time) any {
	if p == nil {
		return nil
	}
	return msOf(*p)
}

func windowColumns(w *store.TimeWindow) (start, end any) {
	if w == nil {
		return nil, nil
	}
	return w.StartMinute, w.EndMinute
}

func windowFrom(start, end sql.NullInt64) *store.TimeWindow {
	if !start.Valid || !end.Valid {
		return nil
	}
	return &store.TimeWindow{StartMinute: int(start.Int64), EndMinute: int(end.Int64)}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := timeOf(n.Int64)
	return &t
}
