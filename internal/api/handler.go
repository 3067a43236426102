// Package api serves the dialog inspection and control API as Connect unary
// calls with JSON bodies.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"connectrpc.com/connect"

	"github.com/ibsar/voicedialog/internal/sessions"
	"github.com/ibsar/voicedialog/pkg/dialog"
	"github.com/ibsar/voicedialog/pkg/events"
	"github.com/ibsar/voicedialog/pkg/menu"
	"github.com/ibsar/voicedialog/pkg/notify"
	"github.com/ibsar/voicedialog/pkg/transcript"
	"github.com/ibsar/voicedialog/pkg/urlvalidation"
)

const servicePath = "/voicedialog.v1.DialogService/"

// Procedures served by Handler.
const (
	ListSessionsProcedure   = servicePath + "ListSessions"
	GetSessionProcedure     = servicePath + "GetSession"
	SendUtteranceProcedure  = servicePath + "SendUtterance"
	PressKeyProcedure       = servicePath + "PressKey"
	NotifyLocationProcedure = servicePath + "NotifyLocation"
	GetTranscriptProcedure  = servicePath + "GetTranscript"
	GetMenuProcedure        = servicePath + "GetMenu"
	GetStatsProcedure       = servicePath + "GetStats"
	CreateEndpointProcedure = servicePath + "CreateEndpoint"
	ListEndpointsProcedure  = servicePath + "ListEndpoints"
	DeleteEndpointProcedure = servicePath + "DeleteEndpoint"
	ListDeliveriesProcedure = servicePath + "ListDeliveries"
)

const defaultTranscriptLimit = 50

// TranscriptReader lists journal turns. transcript.Store implements it.
type TranscriptReader interface {
	List(ctx context.Context, sessionID string, limit int) ([]transcript.Turn, error)
}

// Handler implements the dialog service.
type Handler struct {
	store     *sessions.Store
	menus     dialog.MenuSource
	journal   TranscriptReader
	stats     *events.Stats
	endpoints notify.Store
	urlOpts   []urlvalidation.Option
}

// Option configures a Handler.
type Option func(*Handler)

// WithJournal serves GetTranscript from r.
func WithJournal(r TranscriptReader) Option {
	return func(h *Handler) { h.journal = r }
}

// WithStats serves GetStats from s.
func WithStats(s *events.Stats) Option {
	return func(h *Handler) { h.stats = s }
}

// WithEndpoints enables event endpoint management. opts relax the URL check
// applied on registration.
func WithEndpoints(s notify.Store, opts ...urlvalidation.Option) Option {
	return func(h *Handler) {
		h.endpoints = s
		h.urlOpts = opts
	}
}

// NewHandler creates the service. Calls whose backing store is not
// configured answer CodeUnimplemented.
func NewHandler(store *sessions.Store, menus dialog.MenuSource, opts ...Option) *Handler {
	h := &Handler{store: store, menus: menus}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Mount registers every procedure on mux.
func (h *Handler) Mount(mux *http.ServeMux, opts ...connect.HandlerOption) {
	mux.Handle(ListSessionsProcedure, connect.NewUnaryHandler(ListSessionsProcedure, h.ListSessions, opts...))
	mux.Handle(GetSessionProcedure, connect.NewUnaryHandler(GetSessionProcedure, h.GetSession, opts...))
	mux.Handle(SendUtteranceProcedure, connect.NewUnaryHandler(SendUtteranceProcedure, h.SendUtterance, opts...))
	mux.Handle(PressKeyProcedure, connect.NewUnaryHandler(PressKeyProcedure, h.PressKey, opts...))
	mux.Handle(NotifyLocationProcedure, connect.NewUnaryHandler(NotifyLocationProcedure, h.NotifyLocation, opts...))
	mux.Handle(GetTranscriptProcedure, connect.NewUnaryHandler(GetTranscriptProcedure, h.GetTranscript, opts...))
	mux.Handle(GetMenuProcedure, connect.NewUnaryHandler(GetMenuProcedure, h.GetMenu, opts...))
	mux.Handle(GetStatsProcedure, connect.NewUnaryHandler(GetStatsProcedure, h.GetStats, opts...))
	mux.Handle(CreateEndpointProcedure, connect.NewUnaryHandler(CreateEndpointProcedure, h.CreateEndpoint, opts...))
	mux.Handle(ListEndpointsProcedure, connect.NewUnaryHandler(ListEndpointsProcedure, h.ListEndpoints, opts...))
	mux.Handle(DeleteEndpointProcedure, connect.NewUnaryHandler(DeleteEndpointProcedure, h.DeleteEndpoint, opts...))
	mux.Handle(ListDeliveriesProcedure, connect.NewUnaryHandler(ListDeliveriesProcedure, h.ListDeliveries, opts...))
}

func (h *Handler) ListSessions(_ context.Context, _ *connect.Request[Empty]) (*connect.Response[ListSessionsResponse], error) {
	entries := h.store.List()
	out := make([]SessionInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, info(e))
	}
	return connect.NewResponse(&ListSessionsResponse{Sessions: out}), nil
}

func (h *Handler) GetSession(_ context.Context, req *connect.Request[ConnectionRequest]) (*connect.Response[SessionInfo], error) {
	e, err := h.lookup(req.Msg.ConnectionID)
	if err != nil {
		return nil, err
	}
	resp := info(e)
	return connect.NewResponse(&resp), nil
}

func (h *Handler) SendUtterance(_ context.Context, req *connect.Request[UtteranceRequest]) (*connect.Response[Ack], error) {
	e, err := h.lookup(req.Msg.ConnectionID)
	if err != nil {
		return nil, err
	}
	h.store.Touch(e.ID)
	e.Driver.PushTranscript(req.Msg.Text, !req.Msg.Interim)
	return connect.NewResponse(&Ack{Accepted: true}), nil
}

func (h *Handler) PressKey(_ context.Context, req *connect.Request[KeyRequest]) (*connect.Response[Ack], error) {
	e, err := h.lookup(req.Msg.ConnectionID)
	if err != nil {
		return nil, err
	}
	h.store.Touch(e.ID)
	e.Driver.PushKey(req.Msg.Key)
	return connect.NewResponse(&Ack{Accepted: true}), nil
}

func (h *Handler) NotifyLocation(_ context.Context, req *connect.Request[LocationRequest]) (*connect.Response[Ack], error) {
	e, err := h.lookup(req.Msg.ConnectionID)
	if err != nil {
		return nil, err
	}
	h.store.Touch(e.ID)
	e.Driver.NotifyLocation(req.Msg.Location)
	return connect.NewResponse(&Ack{Accepted: true}), nil
}

func (h *Handler) GetTranscript(ctx context.Context, req *connect.Request[TranscriptRequest]) (*connect.Response[TranscriptResponse], error) {
	if h.journal == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("transcript journal disabled"))
	}
	limit := req.Msg.Limit
	if limit == 0 {
		limit = defaultTranscriptLimit
	}
	turns, err := h.journal.List(ctx, req.Msg.SessionID, limit)
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("list transcript: %w", err))
	}
	return connect.NewResponse(&TranscriptResponse{Turns: turns}), nil
}

func (h *Handler) GetMenu(_ context.Context, req *connect.Request[MenuRequest]) (*connect.Response[MenuResponse], error) {
	reg := h.menus.Registry()
	loc := menu.CanonicalLocation(req.Msg.Location)
	resp := &MenuResponse{Location: loc}
	resp.Flow, _ = reg.Flow(loc)
	if def, ok := reg.Menu(loc); ok {
		resp.Menu = &def
		resp.Prompt = def.Prompt()
	}
	if resp.Menu == nil && resp.Flow == "" {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("no menu or flow at %q", loc))
	}
	return connect.NewResponse(resp), nil
}

func (h *Handler) GetStats(_ context.Context, _ *connect.Request[Empty]) (*connect.Response[StatsResponse], error) {
	if h.stats == nil {
		return nil, connect.NewError(connect.CodeUnimplemented, errors.New("stats disabled"))
	}
	return connect.NewResponse(&StatsResponse{Stats: h.stats.Snapshot()}), nil
}

func (h *Handler) lookup(id string) (sessions.Entry, error) {
	e, err := h.store.Get(id)
	if errors.Is(err, sessions.ErrNotFound) {
		return sessions.Entry{}, connect.NewError(connect.CodeNotFound, fmt.Errorf("connection %q not found", id))
	}
	return e, err
}

func info(e sessions.Entry) SessionInfo {
	return SessionInfo{
		ConnectionID: e.ID,
		ConnectedAt:  e.ConnectedAt,
		LastActive:   e.LastActive(),
		Session:      e.Driver.Snapshot(),
	}
}
