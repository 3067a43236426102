package api

import (
	"time"

	"github.com/ibsar/voicedialog/pkg/dialog"
	"github.com/ibsar/voicedialog/pkg/events"
	"github.com/ibsar/voicedialog/pkg/menu"
	"github.com/ibsar/voicedialog/pkg/notify"
	"github.com/ibsar/voicedialog/pkg/transcript"
)

// Empty is the request of calls without parameters.
type Empty struct{}

// ConnectionRequest names a connected user.
type ConnectionRequest struct {
	ConnectionID string `json:"connection_id" validate:"required"`
}

// SessionInfo describes a connection and its current dialog session.
type SessionInfo struct {
	ConnectionID string          `json:"connection_id"`
	ConnectedAt  time.Time       `json:"connected_at"`
	LastActive   time.Time       `json:"last_active"`
	Session      dialog.Snapshot `json:"session"`
}

// ListSessionsResponse lists every connection.
type ListSessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// UtteranceRequest injects recognized speech.
type UtteranceRequest struct {
	ConnectionID string `json:"connection_id" validate:"required"`
	Text         string `json:"text"          validate:"required"`
	// Interim transcripts are debounced like the browser's.
	Interim bool `json:"interim,omitempty"`
}

// KeyRequest injects a key press.
type KeyRequest struct {
	ConnectionID string `json:"connection_id" validate:"required"`
	Key          string `json:"key"           validate:"required"`
}

// LocationRequest reports a location change.
type LocationRequest struct {
	ConnectionID string `json:"connection_id" validate:"required"`
	Location     string `json:"location"      validate:"required,startswith=/"`
}

// Ack acknowledges an accepted input. Inputs are processed asynchronously.
type Ack struct {
	Accepted bool `json:"accepted"`
}

// TranscriptRequest selects a dialog session's journal.
type TranscriptRequest struct {
	SessionID string `json:"session_id" validate:"required"`
	Limit     int    `json:"limit"      validate:"min=0,max=1000"`
}

// TranscriptResponse holds journal turns, oldest first.
type TranscriptResponse struct {
	Turns []transcript.Turn `json:"turns"`
}

// MenuRequest selects a location.
type MenuRequest struct {
	Location string `json:"location" validate:"required"`
}

// MenuResponse is the menu and flow bound to a location.
type MenuResponse struct {
	Location string               `json:"location"`
	Flow     string               `json:"flow,omitempty"`
	Menu     *menu.MenuDefinition `json:"menu,omitempty"`
	Prompt   string               `json:"prompt,omitempty"`
}

// StatsResponse holds the event counters.
type StatsResponse struct {
	Stats events.StatsSnapshot `json:"stats"`
}

// CreateEndpointRequest registers an event receiver. No event types means
// every event.
type CreateEndpointRequest struct {
	Name       string             `json:"name"        validate:"required,max=255"`
	URL        string             `json:"url"         validate:"required,url,max=2048"`
	EventTypes []events.EventType `json:"event_types" validate:"max=32"`
}

// EndpointInfo describes a registered receiver without its secret.
type EndpointInfo struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	URL        string             `json:"url"`
	EventTypes []events.EventType `json:"event_types"`
	Active     bool               `json:"active"`
	Failures   int                `json:"failures"`
	CreatedAt  time.Time          `json:"created_at"`
}

// CreateEndpointResponse carries the signing secret. It is shown only once.
type CreateEndpointResponse struct {
	Endpoint EndpointInfo `json:"endpoint"`
	Secret   string       `json:"secret"`
}

// ListEndpointsResponse lists receivers.
type ListEndpointsResponse struct {
	Endpoints []EndpointInfo `json:"endpoints"`
}

// EndpointRequest names a receiver.
type EndpointRequest struct {
	EndpointID string `json:"endpoint_id" validate:"required"`
}

// DeliveriesRequest selects a receiver's delivery log.
type DeliveriesRequest struct {
	EndpointID string `json:"endpoint_id" validate:"required"`
	Limit      int    `json:"limit"       validate:"min=0,max=500"`
}

// DeliveriesResponse lists attempts, newest first.
type DeliveriesResponse struct {
	Deliveries []notify.Delivery `json:"deliveries"`
}
