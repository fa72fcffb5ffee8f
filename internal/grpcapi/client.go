package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/types"
	"github.com/BrandonDHaskell/geowatch/internal/wire"
)

// Client calls geowatch.v1.Tracking with the shared DTOs.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) call(ctx context.Context, name string, in, out any) error {
	req, err := wire.ToStruct(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(name), req, resp); err != nil {
		return err
	}
	return wire.FromStruct(resp, out)
}

func (c *Client) RecordLocation(ctx context.Context, req types.RecordLocationRequest) (types.RecordLocationResponse, error) {
	var out types.RecordLocationResponse
	err := c.call(ctx, "RecordLocation", req, &out)
	return out, err
}

func (c *Client) GetLiveLocations(ctx context.Context, q types.LiveLocationsQuery) (types.LiveLocationsResponse, error) {
	var out types.LiveLocationsResponse
	err := c.call(ctx, "GetLiveLocations", q, &out)
	return out, err
}

func (c *Client) GetEmployeeHistory(ctx context.Context, q types.HistoryQuery) (types.HistoryResponse, error) {
	var out types.HistoryResponse
	err := c.call(ctx, "GetEmployeeHistory", q, &out)
	return out, err
}

func (c *Client) ListOpenAlerts(ctx context.Context, q types.AlertsQuery) (types.AlertsResponse, error) {
	var out types.AlertsResponse
	err := c.call(ctx, "ListOpenAlerts", q, &out)
	return out, err
}

func (c *Client) AcknowledgeAlert(ctx context.Context, req types.AlertActionRequest) (types.Alert, error) {
	var out types.Alert
	err := c.call(ctx, "AcknowledgeAlert", req, &out)
	return out, err
}

func (c *Client) ResolveAlert(ctx context.Context, req types.AlertActionRequest) (types.Alert, error) {
	var out types.Alert
	err := c.call(ctx, "ResolveAlert", req, &out)
	return out, err
}

func (c *Client) MarkFalseAlarm(ctx context.Context, req types.AlertActionRequest) (types.Alert, error) {
	var out types.Alert
	err := c.call(ctx, "MarkFalseAlarm", req, &out)
	return out, err
}
