package events

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of event flowing through the system.
type EventType string

const (
	SessionStarted  EventType = "session.started"
	SpeechPartial   EventType = "speech.partial"
	SpeechFinal     EventType = "speech.final"
	KeyPressed      EventType = "key.pressed"
	StateTransition EventType = "state.transition"
	ShortcutFired   EventType = "shortcut.fired"
	ActionExecuted  EventType = "action.executed"
	PromptSpoken    EventType = "prompt.spoken"
	SilenceTimeout  EventType = "silence.timeout"
	BackendCalled   EventType = "backend.called"
	BackendFailed   EventType = "backend.failed"
	IntentResolved  EventType = "intent.resolved"
	MenuReloaded    EventType = "menu.reloaded"
	SystemError     EventType = "error"
)

// Envelope is the standard event wrapper published to the event bus.
type Envelope struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	Source    string            `json:"source"`
	SessionID string            `json:"session_id"`
	Timestamp time.Time         `json:"timestamp"`
	Data      json.RawMessage   `json:"data"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// SessionStartedData is the payload for session.started events.
type SessionStartedData struct {
	Location string `json:"location"`
	Flow     string `json:"flow"`
}

// SpeechData is the payload for speech.partial and speech.final events.
type SpeechData struct {
	Transcript string `json:"transcript"`
	Location   string `json:"location"`
}

// KeyData is the payload for key.pressed events.
type KeyData struct {
	Key     string `json:"key"`
	Command string `json:"command"`
}

// StateTransitionData is the payload for state.transition events.
type StateTransitionData struct {
	FromState    string `json:"from_state"`
	ToState      string `json:"to_state"`
	TriggerEvent string `json:"trigger_event"`
	Location     string `json:"location"`
	Wizard       string `json:"wizard,omitempty"`
	WizardState  string `json:"wizard_state,omitempty"`
}

// ShortcutData is the payload for shortcut.fired events.
type ShortcutData struct {
	Digit    int    `json:"digit"`
	Shortcut string `json:"shortcut"`
}

// ActionExecutedData is the payload for action.executed events.
type ActionExecutedData struct {
	ActionType string `json:"action_type"`
	Payload    string `json:"payload,omitempty"`
	Location   string `json:"location"`
	Error      string `json:"error,omitempty"`
}

// PromptData is the payload for prompt.spoken events.
type PromptData struct {
	Text string `json:"text"`
}

// SilenceTimeoutData is the payload for silence.timeout events.
type SilenceTimeoutData struct {
	RetryCount int  `json:"retry_count"`
	Escalated  bool `json:"escalated"`
}

// BackendData is the payload for backend.called and backend.failed events.
type BackendData struct {
	Operation  string `json:"operation"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// IntentData is the payload for intent.resolved events.
type IntentData struct {
	Text       string  `json:"text"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Classifier string  `json:"classifier"`
}

// MenuReloadedData is the payload for menu.reloaded events.
type MenuReloadedData struct {
	Locations []string `json:"locations"`
}

// ErrorData is the payload for error events.
type ErrorData struct {
	Where string `json:"where"`
	Error string `json:"error"`
}
