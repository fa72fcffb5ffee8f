package grpcapi

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/fault"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/service"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
	"github.com/BrandonDHaskell/geowatch/internal/geowatch/types"
	"github.com/BrandonDHaskell/geowatch/internal/wire"
)

const defaultLiveMaxAge = 15 * time.Minute

type Dependencies struct {
	Logger   *zap.Logger
	Ingestor *service.LocationIngestor
	Alerts   *service.AlertManager
	Query    *service.QueryService
	Now      func() time.Time
}

// Service implements TrackingServer over the engine.
type Service struct {
	logger   *zap.Logger
	ingestor *service.LocationIngestor
	alerts   *service.AlertManager
	query    *service.QueryService
	now      func() time.Time
}

func NewService(d Dependencies) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		logger:   d.Logger,
		ingestor: d.Ingestor,
		alerts:   d.Alerts,
		query:    d.Query,
		now:      d.Now,
	}
}

// NewServer returns a grpc.Server with the tracking service registered and
// request logging installed.
func NewServer(svc *Service, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(logUnary(svc.logger)))
	s := grpc.NewServer(opts...)
	RegisterTrackingServer(s, svc)
	return s
}

func logUnary(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		fields := []zap.Field{
			zap.String("method", info.FullMethod),
			zap.String("code", code.String()),
			zap.Duration("latency", time.Since(start)),
		}
		switch code {
		case codes.Internal, codes.Unavailable:
			logger.Error("grpc request", append(fields, zap.Error(err))...)
		default:
			logger.Info("grpc request", fields...)
		}
		return resp, err
	}
}

// statusOf maps the error taxonomy onto gRPC codes.
func statusOf(err error) error {
	if err == nil {
		return nil
	}
	body := wire.Error(err)
	switch wire.Classify(err) {
	case wire.KindValidation:
		return status.Error(codes.InvalidArgument, body.Message)
	case wire.KindNotFound:
		return status.Error(codes.NotFound, body.Message)
	case wire.KindPolicy:
		return status.Error(codes.FailedPrecondition, body.Message)
	case wire.KindUnavailable:
		return status.Error(codes.Unavailable, body.Message)
	case wire.KindTimeout:
		return status.Error(codes.DeadlineExceeded, body.Message)
	}
	return status.Error(codes.Internal, body.Message)
}

func decode(in *structpb.Struct, v any) error {
	if err := wire.FromStruct(in, v); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return nil
}

func reply(v any) (*structpb.Struct, error) {
	out, err := wire.ToStruct(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}

// ── Locations ────────────────────────────────────────────────────────────────

func (s *Service) RecordLocation(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req types.RecordLocationRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	raw, err := wire.RawSample(req)
	if err != nil {
		return nil, statusOf(err)
	}
	res, err := s.ingestor.Ingest(ctx, raw)
	if err != nil {
		return nil, statusOf(err)
	}
	return reply(wire.RecordLocationResponse(res, s.now()))
}

func (s *Service) GetLiveLocations(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var q types.LiveLocationsQuery
	if err := decode(in, &q); err != nil {
		return nil, err
	}
	maxAge := defaultLiveMaxAge
	if q.MaxAgeSeconds != 0 {
		maxAge = time.Duration(q.MaxAgeSeconds) * time.Second
	}
	live, err := s.query.LiveLocations(ctx, maxAge)
	if err != nil {
		return nil, statusOf(err)
	}
	return reply(wire.LiveLocations(live, s.now()))
}

func (s *Service) GetEmployeeHistory(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var q types.HistoryQuery
	if err := decode(in, &q); err != nil {
		return nil, err
	}
	from, err := wire.ParseOptionalTime("from", q.From)
	if err != nil {
		return nil, statusOf(err)
	}
	to, err := wire.ParseOptionalTime("to", q.To)
	if err != nil {
		return nil, statusOf(err)
	}
	if to.IsZero() {
		to = s.now()
	}
	if from.IsZero() {
		from = to.Add(-24 * time.Hour)
	}
	samples, err := s.query.EmployeeHistory(ctx, q.EmployeeID, from, to)
	if err != nil {
		return nil, statusOf(err)
	}
	return reply(types.HistoryResponse{
		EmployeeID: q.EmployeeID,
		From:       from.UTC().Format(time.RFC3339Nano),
		To:         to.UTC().Format(time.RFC3339Nano),
		Samples:    wire.Samples(samples),
	})
}

// ── Alerts ───────────────────────────────────────────────────────────────────

func (s *Service) ListOpenAlerts(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var q types.AlertsQuery
	if err := decode(in, &q); err != nil {
		return nil, err
	}
	alerts, err := s.query.OpenAlerts(ctx, wire.AlertFilter(q))
	if err != nil {
		return nil, statusOf(err)
	}
	return reply(wire.Alerts(alerts))
}

func (s *Service) AcknowledgeAlert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.act(in, func(req types.AlertActionRequest) (store.Alert, error) {
		return s.alerts.Acknowledge(ctx, req.AlertID, req.ActorID)
	})
}

func (s *Service) ResolveAlert(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.act(in, func(req types.AlertActionRequest) (store.Alert, error) {
		return s.alerts.Resolve(ctx, req.AlertID, req.ActorID, req.Notes)
	})
}

func (s *Service) MarkFalseAlarm(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	return s.act(in, func(req types.AlertActionRequest) (store.Alert, error) {
		return s.alerts.MarkFalseAlarm(ctx, req.AlertID, req.ActorID, req.Notes)
	})
}

func (s *Service) act(in *structpb.Struct, fn func(types.AlertActionRequest) (store.Alert, error)) (*structpb.Struct, error) {
	var req types.AlertActionRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	if req.AlertID <= 0 {
		return nil, statusOf(fault.Validation("alert_id", "must be a positive integer"))
	}
	a, err := fn(req)
	if err != nil {
		return nil, statusOf(err)
	}
	return reply(wire.Alert(a))
}
