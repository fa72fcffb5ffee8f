// Package grpcapi exposes the engine as the geowatch.v1.Tracking gRPC
// service.  Messages are google.protobuf.Struct values carrying the same
// fields as the HTTP JSON bodies, so no generated code is needed.
package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "geowatch.v1.Tracking"

// TrackingServer is the server side of geowatch.v1.Tracking.
type TrackingServer interface {
	RecordLocation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLiveLocations(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEmployeeHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOpenAlerts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AcknowledgeAlert(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveAlert(context.Context, *structpb.Struct) (*structpb.Struct, error)
	MarkFalseAlarm(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type method func(TrackingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call method) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(TrackingServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(TrackingServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc is registered in place of a protoc-generated descriptor.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TrackingServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("RecordLocation", TrackingServer.RecordLocation),
		unary("GetLiveLocations", TrackingServer.GetLiveLocations),
		unary("GetEmployeeHistory", TrackingServer.GetEmployeeHistory),
		unary("ListOpenAlerts", TrackingServer.ListOpenAlerts),
		unary("AcknowledgeAlert", TrackingServer.AcknowledgeAlert),
		unary("ResolveAlert", TrackingServer.ResolveAlert),
		unary("MarkFalseAlarm", TrackingServer.MarkFalseAlarm),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "geowatch/v1/tracking.proto",
}

func RegisterTrackingServer(s grpc.ServiceRegistrar, srv TrackingServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func FullMethod(name string) string { return "/" + ServiceName + "/" + name }
