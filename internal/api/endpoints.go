package api

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/ibsar/voicedialog/pkg/events"
	"github.com/ibsar/voicedialog/pkg/notify"
	"github.com/ibsar/voicedialog/pkg/urlvalidation"
)

const defaultDeliveryLimit = 50

var errEndpointsDisabled = errors.New("event endpoints disabled")

func (h *Handler) CreateEndpoint(ctx context.Context, req *connect.Request[CreateEndpointRequest]) (*connect.Response[CreateEndpointResponse], error) {
	if h.endpoints == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errEndpointsDisabled)
	}
	if err := urlvalidation.Check(ctx, req.Msg.URL, h.urlOpts...); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	secret, err := notify.NewSecret()
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("generate secret: %w", err))
	}

	e := &notify.Endpoint{
		Name:       req.Msg.Name,
		URL:        req.Msg.URL,
		Secret:     secret,
		EventTypes: notify.EventSet(req.Msg.EventTypes),
		Active:     true,
	}
	if err := h.endpoints.Create(ctx, e); err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("create endpoint: %w", err))
	}
	return connect.NewResponse(&CreateEndpointResponse{Endpoint: endpointView(*e), Secret: secret}), nil
}

func (h *Handler) ListEndpoints(ctx context.Context, _ *connect.Request[Empty]) (*connect.Response[ListEndpointsResponse], error) {
	if h.endpoints == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errEndpointsDisabled)
	}
	list, err := h.endpoints.List(ctx)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("list endpoints: %w", err))
	}
	out := make([]EndpointInfo, 0, len(list))
	for _, e := range list {
		out = append(out, endpointView(e))
	}
	return connect.NewResponse(&ListEndpointsResponse{Endpoints: out}), nil
}

func (h *Handler) DeleteEndpoint(ctx context.Context, req *connect.Request[EndpointRequest]) (*connect.Response[Ack], error) {
	if h.endpoints == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errEndpointsDisabled)
	}
	err := h.endpoints.Delete(ctx, req.Msg.EndpointID)
	if errors.Is(err, notify.ErrNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("delete endpoint: %w", err))
	}
	return connect.NewResponse(&Ack{Accepted: true}), nil
}

func (h *Handler) ListDeliveries(ctx context.Context, req *connect.Request[DeliveriesRequest]) (*connect.Response[DeliveriesResponse], error) {
	if h.endpoints == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errEndpointsDisabled)
	}
	if _, err := h.endpoints.Get(ctx, req.Msg.EndpointID); errors.Is(err, notify.ErrNotFound) {
		return nil, connect.NewError(connect.CodeNotFound, err)
	}
	limit := req.Msg.Limit
	if limit == 0 {
		limit = defaultDeliveryLimit
	}
	list, err := h.endpoints.Deliveries(ctx, req.Msg.EndpointID, limit)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("list deliveries: %w", err))
	}
	return connect.NewResponse(&DeliveriesResponse{Deliveries: list}), nil
}

func endpointView(e notify.Endpoint) EndpointInfo {
	return EndpointInfo{
		ID:         e.ID,
		Name:       e.Name,
		URL:        e.URL,
		EventTypes: []events.EventType(e.EventTypes),
		Active:     e.Active,
		Failures:   e.Failures,
		CreatedAt:  e.CreatedAt,
	}
}
