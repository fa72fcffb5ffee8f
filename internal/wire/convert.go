package wire

import (
	"strings"
	"time"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/fault"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/service"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/types"
)

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// ParseTime accepts RFC3339 with or without fractional seconds.
func ParseTime(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fault.Validation(field, "required")
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fault.Validation(field, "must be an RFC3339 timestamp")
	}
	return t.UTC(), nil
}

// ParseOptionalTime returns the zero time for an empty string.
func ParseOptionalTime(field, s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return ParseTime(field, s)
}

// ── Locations ────────────────────────────────────────────────────────────────

func RawSample(req types.RecordLocationRequest) (service.RawSample, error) {
	if req.Lat == nil {
		return service.RawSample{}, fault.Validation("lat", "required")
	}
	if req.Lon == nil {
		return service.RawSample{}, fault.Validation("lon", "required")
	}
	at, err := ParseTime("timestamp", req.Timestamp)
	if err != nil {
		return service.RawSample{}, err
	}
	return service.RawSample{
		EmployeeID:     req.EmployeeID,
		Lat:            *req.Lat,
		Lon:            *req.Lon,
		AccuracyMeters: req.AccuracyM,
		AltitudeMeters: req.AltitudeM,
		CapturedAt:     at,
		Source:         store.SampleSource(strings.ToLower(strings.TrimSpace(req.Source))),
		BatteryPct:     req.BatteryPct,
		DeviceInfo:     req.DeviceInfo,
		ZoneID:         req.ZoneID,
	}, nil
}

func zoneRef(z *store.Zone) *types.ZoneRef {
	if z == nil {
		return nil
	}
	return &types.ZoneRef{ID: z.ID, Name: z.Name, Kind: string(z.Kind)}
}

func RecordLocationResponse(res service.IngestResult, now time.Time) types.RecordLocationResponse {
	out := types.RecordLocationResponse{
		SampleID:       res.Sample.ID,
		Duplicate:      !res.Inserted,
		WithinZone:     res.Sample.WithinZone,
		Zone:           zoneRef(res.Zone),
		DistanceMeters: res.Sample.DistanceMeters,
		AlertCreated:   res.Alert != nil,
		ServerTime:     formatTime(now),
	}
	if res.Zone == nil && res.Sample.ZoneID != nil {
		out.Zone = &types.ZoneRef{ID: *res.Sample.ZoneID}
	}
	if res.Alert != nil {
		id := res.Alert.ID
		out.AlertID = &id
	}
	return out
}

func Sample(s store.Sample) types.Sample {
	return types.Sample{
		ID:             s.ID,
		EmployeeID:     s.Employee(),
		Lat:            s.Lat,
		Lon:            s.Lon,
		AccuracyM:      s.AccuracyMeters,
		AltitudeM:      s.AltitudeMeters,
		Timestamp:      formatTime(s.CapturedAt),
		ReceivedAt:     formatTime(s.ReceivedAt),
		Source:         string(s.Source),
		BatteryPct:     s.BatteryPct,
		DeviceInfo:     s.DeviceInfo,
		ZoneID:         s.ZoneID,
		WithinZone:     s.WithinZone,
		DistanceMeters: s.DistanceMeters,
		ActiveSession:  s.ActiveSession,
	}
}

func Samples(in []store.Sample) []types.Sample {
	out := make([]types.Sample, 0, len(in))
	for _, s := range in {
		out = append(out, Sample(s))
	}
	return out
}

func LiveLocations(in []service.LiveLocation, now time.Time) types.LiveLocationsResponse {
	out := types.LiveLocationsResponse{
		Locations:  make([]types.LiveLocation, 0, len(in)),
		ServerTime: formatTime(now),
	}
	for _, ll := range in {
		loc := types.LiveLocation{
			EmployeeID: ll.Sample.Employee(),
			Lat:        ll.Sample.Lat,
			Lon:        ll.Sample.Lon,
			Timestamp:  formatTime(ll.Sample.CapturedAt),
			Zone:       zoneRef(ll.Zone),
			WithinZone: ll.Sample.WithinZone,
			BatteryPct: ll.Sample.BatteryPct,
		}
		if loc.Zone == nil && ll.Sample.ZoneID != nil {
			loc.Zone = &types.ZoneRef{ID: *ll.Sample.ZoneID}
		}
		out.Locations = append(out.Locations, loc)
	}
	return out
}

// ── Alerts ───────────────────────────────────────────────────────────────────

func Alert(a store.Alert) types.Alert {
	recipients := a.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	return types.Alert{
		ID:              a.ID,
		EmployeeID:      a.EmployeeID,
		ZoneID:          a.ZoneID,
		SampleID:        a.SampleID,
		Kind:            string(a.Kind),
		Severity:        string(a.Severity),
		Title:           a.Title,
		Message:         a.Message,
		Status:          string(a.Status),
		Resolved:        a.Resolved(),
		Recipients:      recipients,
		CreatedAt:       formatTime(a.CreatedAt),
		AcknowledgedBy:  a.AcknowledgedBy,
		AcknowledgedAt:  formatOptionalTime(a.AcknowledgedAt),
		ResolvedBy:      a.ResolvedBy,
		ResolvedAt:      formatOptionalTime(a.ResolvedAt),
		ResolutionNotes: a.ResolutionNotes,
	}
}

func Alerts(in []store.Alert) types.AlertsResponse {
	out := types.AlertsResponse{Alerts: make([]types.Alert, 0, len(in))}
	for _, a := range in {
		out.Alerts = append(out.Alerts, Alert(a))
	}
	return out
}

func AlertsBySeverity(groups []service.SeverityGroup) types.AlertsBySeverityResponse {
	out := types.AlertsBySeverityResponse{Groups: make([]types.SeverityGroup, 0, len(groups))}
	for _, g := range groups {
		out.Groups = append(out.Groups, types.SeverityGroup{
			Severity: string(g.Severity),
			Count:    len(g.Alerts),
			Alerts:   Alerts(g.Alerts).Alerts,
		})
	}
	return out
}

func AlertFilter(q types.AlertsQuery) store.AlertFilter {
	return store.AlertFilter{
		Kind:     store.AlertKind(strings.ToLower(strings.TrimSpace(q.Kind))),
		Severity: store.Severity(strings.ToLower(strings.TrimSpace(q.Severity))),
	}
}

func Stats(s service.IngestStats, now time.Time) types.StatsResponse {
	return types.StatsResponse{
		Ingested:      s.Ingested,
		Duplicates:    s.Duplicates,
		Unmonitored:   s.Unmonitored,
		AlertFailures: s.AlertFailures,
		ServerTime:    formatTime(now),
	}
}
