package api

import (
	"context"

	"connectrpc.com/connect"

	"github.com/ibsar/voicedialog/internal/connectutil"
	"github.com/ibsar/voicedialog/pkg/notify"
)

// Client calls the dialog service.
type Client struct {
	listSessions   *connect.Client[Empty, ListSessionsResponse]
	getSession     *connect.Client[ConnectionRequest, SessionInfo]
	sendUtterance  *connect.Client[UtteranceRequest, Ack]
	pressKey       *connect.Client[KeyRequest, Ack]
	notifyLocation *connect.Client[LocationRequest, Ack]
	getTranscript  *connect.Client[TranscriptRequest, TranscriptResponse]
	getMenu        *connect.Client[MenuRequest, MenuResponse]
	getStats       *connect.Client[Empty, StatsResponse]
	createEndpoint *connect.Client[CreateEndpointRequest, CreateEndpointResponse]
	listEndpoints  *connect.Client[Empty, ListEndpointsResponse]
	deleteEndpoint *connect.Client[EndpointRequest, Ack]
	listDeliveries *connect.Client[DeliveriesRequest, DeliveriesResponse]
}

// NewClient creates a client for the service at baseURL.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	opts = append(connectutil.DefaultClientOptions(), opts...)
	return &Client{
		listSessions:   connect.NewClient[Empty, ListSessionsResponse](httpClient, baseURL+ListSessionsProcedure, opts...),
		getSession:     connect.NewClient[ConnectionRequest, SessionInfo](httpClient, baseURL+GetSessionProcedure, opts...),
		sendUtterance:  connect.NewClient[UtteranceRequest, Ack](httpClient, baseURL+SendUtteranceProcedure, opts...),
		pressKey:       connect.NewClient[KeyRequest, Ack](httpClient, baseURL+PressKeyProcedure, opts...),
		notifyLocation: connect.NewClient[LocationRequest, Ack](httpClient, baseURL+NotifyLocationProcedure, opts...),
		getTranscript:  connect.NewClient[TranscriptRequest, TranscriptResponse](httpClient, baseURL+GetTranscriptProcedure, opts...),
		getMenu:        connect.NewClient[MenuRequest, MenuResponse](httpClient, baseURL+GetMenuProcedure, opts...),
		getStats:       connect.NewClient[Empty, StatsResponse](httpClient, baseURL+GetStatsProcedure, opts...),
		createEndpoint: connect.NewClient[CreateEndpointRequest, CreateEndpointResponse](httpClient, baseURL+CreateEndpointProcedure, opts...),
		listEndpoints:  connect.NewClient[Empty, ListEndpointsResponse](httpClient, baseURL+ListEndpointsProcedure, opts...),
		deleteEndpoint: connect.NewClient[EndpointRequest, Ack](httpClient, baseURL+DeleteEndpointProcedure, opts...),
		listDeliveries: connect.NewClient[DeliveriesRequest, DeliveriesResponse](httpClient, baseURL+ListDeliveriesProcedure, opts...),
	}
}

func (c *Client) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	resp, err := c.listSessions.CallUnary(ctx, connect.NewRequest(&Empty{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.Sessions, nil
}

func (c *Client) GetSession(ctx context.Context, connectionID string) (SessionInfo, error) {
	resp, err := c.getSession.CallUnary(ctx, connect.NewRequest(&ConnectionRequest{ConnectionID: connectionID}))
	if err != nil {
		return SessionInfo{}, err
	}
	return *resp.Msg, nil
}

func (c *Client) SendUtterance(ctx context.Context, connectionID, text string) error {
	_, err := c.sendUtterance.CallUnary(ctx, connect.NewRequest(&UtteranceRequest{ConnectionID: connectionID, Text: text}))
	return err
}

func (c *Client) PressKey(ctx context.Context, connectionID, key string) error {
	_, err := c.pressKey.CallUnary(ctx, connect.NewRequest(&KeyRequest{ConnectionID: connectionID, Key: key}))
	return err
}

func (c *Client) NotifyLocation(ctx context.Context, connectionID, location string) error {
	_, err := c.notifyLocation.CallUnary(ctx, connect.NewRequest(&LocationRequest{ConnectionID: connectionID, Location: location}))
	return err
}

func (c *Client) GetTranscript(ctx context.Context, sessionID string, limit int) (*TranscriptResponse, error) {
	resp, err := c.getTranscript.CallUnary(ctx, connect.NewRequest(&TranscriptRequest{SessionID: sessionID, Limit: limit}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) GetMenu(ctx context.Context, location string) (*MenuResponse, error) {
	resp, err := c.getMenu.CallUnary(ctx, connect.NewRequest(&MenuRequest{Location: location}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) GetStats(ctx context.Context) (*StatsResponse, error) {
	resp, err := c.getStats.CallUnary(ctx, connect.NewRequest(&Empty{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) CreateEndpoint(ctx context.Context, req *CreateEndpointRequest) (*CreateEndpointResponse, error) {
	resp, err := c.createEndpoint.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) ListEndpoints(ctx context.Context) ([]EndpointInfo, error) {
	resp, err := c.listEndpoints.CallUnary(ctx, connect.NewRequest(&Empty{}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.Endpoints, nil
}

func (c *Client) DeleteEndpoint(ctx context.Context, endpointID string) error {
	_, err := c.deleteEndpoint.CallUnary(ctx, connect.NewRequest(&EndpointRequest{EndpointID: endpointID}))
	return err
}

func (c *Client) ListDeliveries(ctx context.Context, endpointID string, limit int) ([]notify.Delivery, error) {
	resp, err := c.listDeliveries.CallUnary(ctx, connect.NewRequest(&DeliveriesRequest{EndpointID: endpointID, Limit: limit}))
	if err != nil {
		return nil, err
	}
	return resp.Msg.Deliveries, nil
}
