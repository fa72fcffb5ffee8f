package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/fault"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/geo"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
)

// RawSample is one location fix as reported by a device.
type RawSample struct {
	EmployeeID     string
	Lat            float64
	Lon            float64
	AccuracyMeters float64
	AltitudeMeters *float64
	CapturedAt     time.Time
	Source         store.SampleSource // "" = automatic
	BatteryPct     *int
	DeviceInfo     string

	// ZoneID pins the sample to one zone instead of resolving the nearest.
	ZoneID *int64
}

type IngestResult struct {
	Sample   store.Sample
	Inserted bool         // false when the sample was an exact duplicate
	Zone     *store.Zone  // resolved zone, nil when unmonitored
	Alert    *store.Alert // most severe alert raised, if any
}

type IngestStats struct {
	Ingested      uint64 `json:"ingested"`
	Duplicates    uint64 `json:"duplicates"`
	Unmonitored   uint64 `json:"unmonitored"`
	AlertFailures uint64 `json:"alert_failures"`
}

type IngestorOptions struct {
	// FutureSkew is how far past now a capture time may be.  Defaults to 2m.
	FutureSkew time.Duration

	// IngestTimeout applies when the caller's context has no deadline.
	// Defaults to 5s.
	IngestTimeout time.Duration

	// AlertTimeout bounds alert evaluation after the sample is stored.
	// Defaults to 5s.
	AlertTimeout time.Duration

	// BatchParallelism caps concurrent employees in IngestBatch.
	// Defaults to 8.
	BatchParallelism int

	Now    func() time.Time
	Logger *zap.Logger
}

type LocationIngestor struct {
	samples   store.SampleStore
	registry  *ZoneRegistry
	employees *EmployeeRegistry
	alerts    *AlertManager
	opts      IngestorOptions

	ingested      atomic.Uint64
	duplicates    atomic.Uint64
	unmonitored   atomic.Uint64
	alertFailures atomic.Uint64
}

func NewLocationIngestor(
	samples store.SampleStore,
	registry *ZoneRegistry,
	employees *EmployeeRegistry,
	alerts *AlertManager,
	opts IngestorOptions,
) *LocationIngestor {
	if opts.FutureSkew <= 0 {
		opts.FutureSkew = 2 * time.Minute
	}
	if opts.IngestTimeout <= 0 {
		opts.IngestTimeout = 5 * time.Second
	}
	if opts.AlertTimeout <= 0 {
		opts.AlertTimeout = 5 * time.Second
	}
	if opts.BatchParallelism <= 0 {
		opts.BatchParallelism = 8
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &LocationIngestor{
		samples:   samples,
		registry:  registry,
		employees: employees,
		alerts:    alerts,
		opts:      opts,
	}
}

// Ingest validates, enriches and stores one sample, then hands it to the
// alert manager.  The sample write is the only step whose failure is
// reported; alert problems are logged and counted.
func (in *LocationIngestor) Ingest(ctx context.Context, raw RawSample) (IngestResult, error) {
	now := in.opts.Now()

	raw.EmployeeID = strings.TrimSpace(raw.EmployeeID)
	if raw.Source == "" {
		raw.Source = store.SourceAutomatic
	}
	if err := validateRaw(raw, now, in.opts.FutureSkew); err != nil {
		return IngestResult{}, err
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, in.opts.IngestTimeout)
		defer cancel()
	}

	smp := store.Sample{
		Lat:            raw.Lat,
		Lon:            raw.Lon,
		AccuracyMeters: raw.AccuracyMeters,
		AltitudeMeters: raw.AltitudeMeters,
		CapturedAt:     raw.CapturedAt.UTC(),
		ReceivedAt:     now,
		Source:         raw.Source,
		BatteryPct:     raw.BatteryPct,
		DeviceInfo:     strings.TrimSpace(raw.DeviceInfo),
	}
	if raw.EmployeeID != "" {
		emp := raw.EmployeeID
		smp.EmployeeID = &emp
		smp.ActiveSession = in.employees.IsMonitored(ctx, emp)
	}

	zone, err := in.enrich(ctx, raw, &smp)
	if err != nil {
		return IngestResult{}, err
	}

	stored, inserted, err := in.samples.InsertSample(ctx, smp)
	if err != nil {
		return IngestResult{}, fault.Persistence("store sample", err)
	}
	if !inserted {
		// The first delivery's derived state wins; report its zone.
		in.duplicates.Add(1)
		return IngestResult{Sample: stored, Zone: in.storedZone(ctx, stored)}, nil
	}
	res := IngestResult{Sample: stored, Inserted: true, Zone: zone}
	in.ingested.Add(1)
	if zone == nil {
		in.unmonitored.Add(1)
	}

	res.Alert = in.evaluate(ctx, stored)
	return res, nil
}

// enrich fills the derived zone fields.  An explicit zone must exist and be
// active; otherwise the nearest applicable zone is used when the employee
// is monitored.  Finding no zone is not an error.
func (in *LocationIngestor) enrich(ctx context.Context, raw RawSample, smp *store.Sample) (*store.Zone, error) {
	p := geo.PointFromFloat(raw.Lat, raw.Lon)

	if raw.ZoneID != nil {
		snap, err := in.registry.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
		z, ok := snap.Zone(*raw.ZoneID)
		if !ok || !z.Active {
			return nil, fault.NotFound("zone", *raw.ZoneID)
		}
		var tolerance float64
		if a, ok := snap.Assignment(raw.EmployeeID, z.ID); ok {
			tolerance = a.ToleranceMeters
		}
		applyZone(smp, z, geo.DistanceMeters(z.Center, p), tolerance)
		return &z, nil
	}

	if !smp.ActiveSession {
		return nil, nil
	}
	res, ok, err := in.registry.ResolveNearest(ctx, raw.EmployeeID, p, smp.CapturedAt)
	if err != nil || !ok {
		return nil, err
	}
	applyZone(smp, res.Zone, res.DistanceMeters, res.Assignment.ToleranceMeters)
	return &res.Zone, nil
}

// storedZone looks up the zone a stored sample references.  A zone that has
// since been deleted is reported as nil.
func (in *LocationIngestor) storedZone(ctx context.Context, smp store.Sample) *store.Zone {
	if smp.ZoneID == nil {
		return nil
	}
	snap, err := in.registry.Snapshot(ctx)
	if err != nil {
		in.opts.Logger.Warn("zone lookup for duplicate sample failed",
			zap.Int64("sample_id", smp.ID),
			zap.Error(err),
		)
		return nil
	}
	z, ok := snap.Zone(*smp.ZoneID)
	if !ok {
		return nil
	}
	return &z
}

func applyZone(smp *store.Sample, z store.Zone, distance, tolerance float64) {
	id := z.ID
	smp.ZoneID = &id
	smp.DistanceMeters = &distance
	// Same comparison as geo.IsWithin, reusing the distance already computed.
	smp.WithinZone = distance <= z.RadiusMeters+tolerance
}

func (in *LocationIngestor) evaluate(ctx context.Context, smp store.Sample) *store.Alert {
	if in.alerts == nil {
		return nil
	}
	// The sample is already committed; alerting gets its own budget and
	// survives the caller hanging up.
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), in.opts.AlertTimeout)
	defer cancel()

	a, err := in.alerts.Evaluate(actx, smp)
	if err != nil {
		in.alertFailures.Add(1)
		in.opts.Logger.Error("alert evaluation failed",
			zap.Int64("sample_id", smp.ID),
			zap.String("employee_id", smp.Employee()),
			zap.Error(err),
		)
	}
	return a
}

func (in *LocationIngestor) Stats() IngestStats {
	return IngestStats{
		Ingested:      in.ingested.Load(),
		Duplicates:    in.duplicates.Load(),
		Unmonitored:   in.unmonitored.Load(),
		AlertFailures: in.alertFailures.Load(),
	}
}

func validateRaw(raw RawSample, now time.Time, skew time.Duration) error {
	if err := geo.Validate(raw.Lat, raw.Lon); err != nil {
		return err
	}
	if math.IsNaN(raw.AccuracyMeters) || math.IsInf(raw.AccuracyMeters, 0) || raw.AccuracyMeters < 0 {
		return fault.Validation("accuracy_m", "must be a non-negative number")
	}
	if raw.AltitudeMeters != nil && (math.IsNaN(*raw.AltitudeMeters) || math.IsInf(*raw.AltitudeMeters, 0)) {
		return fault.Validation("altitude_m", "must be a finite number")
	}
	if raw.BatteryPct != nil && (*raw.BatteryPct < 0 || *raw.BatteryPct > 100) {
		return fault.Validation("battery_pct", fmt.Sprintf("%d outside 0-100", *raw.BatteryPct))
	}
	if !raw.Source.Valid() {
		return fault.Validation("source", fmt.Sprintf("unknown source %q", raw.Source))
	}
	if raw.CapturedAt.IsZero() {
		return fault.Validation("captured_at", "required")
	}
	if raw.CapturedAt.After(now.Add(skew)) {
		return fault.Validation("captured_at", "in the future")
	}
	return nil
}
