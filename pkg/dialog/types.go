package dialog

import (
	"time"

	"github.com/ibsar/voicedialog/pkg/menu"
	"github.com/ibsar/voicedialog/pkg/wizard"
)

// FlowState is the supervisor state derived from the session's flow.
type FlowState string

const (
	NoFlow           FlowState = "NO_FLOW"
	MenuAwaitChoice  FlowState = "MENU_AWAIT_CHOICE"
	MenuAwaitConfirm FlowState = "MENU_AWAIT_CONFIRM"
	WizardActive     FlowState = "WIZARD_ACTIVE"
)

// Confirmation is a menu choice waiting for a yes or no.
type Confirmation struct {
	Action menu.Action `json:"action"`
	Label  string      `json:"label"`
	// Seed holds what the classifier already understood for a wizard action.
	Seed wizard.Seed `json:"seed"`
}

// Config tunes the supervisor.
type Config struct {
	MenuTimeout   time.Duration
	WizardTimeout time.Duration
	SpeakTimeout  time.Duration
	// Debounce is how long an interim transcript must stay unchanged before
	// it is taken as the utterance.
	Debounce time.Duration
	Locale   string
	Wizard   wizard.Config
	// MinIntentConfidence is the lowest classifier confidence acted upon.
	MinIntentConfidence float64
	// ListLimit bounds how many items READ_LIST speaks.
	ListLimit int
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		MenuTimeout:         10 * time.Second,
		WizardTimeout:       8 * time.Second,
		SpeakTimeout:        15 * time.Second,
		Debounce:            1800 * time.Millisecond,
		Locale:              "ar-TN",
		MinIntentConfidence: 0.6,
		ListLimit:           3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MenuTimeout <= 0 {
		c.MenuTimeout = d.MenuTimeout
	}
	if c.WizardTimeout <= 0 {
		c.WizardTimeout = d.WizardTimeout
	}
	if c.SpeakTimeout <= 0 {
		c.SpeakTimeout = d.SpeakTimeout
	}
	if c.Debounce <= 0 {
		c.Debounce = d.Debounce
	}
	if c.Locale == "" {
		c.Locale = d.Locale
	}
	if c.MinIntentConfidence <= 0 {
		c.MinIntentConfidence = d.MinIntentConfidence
	}
	if c.ListLimit <= 0 {
		c.ListLimit = d.ListLimit
	}
	return c
}

// Snapshot is a point-in-time copy of the current session.
type Snapshot struct {
	SessionID   string        `json:"session_id"`
	Location    string        `json:"location"`
	State       FlowState     `json:"state"`
	Wizard      string        `json:"wizard,omitempty"`
	WizardState string        `json:"wizard_state,omitempty"`
	Pending     *Confirmation `json:"pending,omitempty"`
	RetryCount  int           `json:"retry_count"`
	LastPrompt  string        `json:"last_prompt"`
	StartTime   time.Time     `json:"start_time"`
	History     []StateRecord `json:"history"`
}
