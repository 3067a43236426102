package dialog

import (
	"sync"
	"time"

	"github.com/rs/xid"
)

// DefaultMaxHistory is the maximum number of state records before eviction.
const DefaultMaxHistory = 200

// StateRecord records a state transition.
type StateRecord struct {
	FromState FlowState `json:"from_state"`
	ToState   FlowState `json:"to_state"`
	Trigger   string    `json:"trigger"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the state of one location visit. The supervisor loop is the
// only writer; readers on other goroutines go through the locked getters.
type Session struct {
	mu         sync.RWMutex
	maxHistory int

	ID          string
	Location    string
	State       FlowState
	Wizard      string
	WizardState string
	Pending     *Confirmation
	RetryCount  int
	LastPrompt  string
	History     []StateRecord
	StartTime   time.Time
}

// NewSession creates a session for a location, starting in NO_FLOW.
func NewSession(location string) *Session {
	return &Session{
		ID:         xid.New().String(),
		Location:   location,
		State:      NoFlow,
		StartTime:  time.Now(),
		maxHistory: DefaultMaxHistory,
	}
}

// RecordTransition moves to state and appends to the history.
// Evicts the oldest 10% of entries when the history cap is reached.
func (s *Session) RecordTransition(to FlowState, trigger string) FlowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	from := s.State
	if len(s.History) >= s.maxHistory {
		evict := max(s.maxHistory/10, 1)
		s.History = s.History[evict:]
	}
	s.History = append(s.History, StateRecord{
		FromState: from,
		ToState:   to,
		Trigger:   trigger,
		Timestamp: time.Now(),
	})
	s.State = to
	return from
}

// CurrentState returns the flow state.
func (s *Session) CurrentState() FlowState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State
}

// SetWizard records the active wizard entry and state.
func (s *Session) SetWizard(entry, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Wizard = entry
	s.WizardState = state
}

// SetPending stores or clears (nil) the pending confirmation.
func (s *Session) SetPending(c *Confirmation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Pending = c
}

// PendingConfirmation returns the pending confirmation, if any.
func (s *Session) PendingConfirmation() *Confirmation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Pending
}

// Retries returns the retry count.
func (s *Session) Retries() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.RetryCount
}

// SetRetries sets the retry count.
func (s *Session) SetRetries(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RetryCount = n
}

// Prompt returns the last listening prompt.
func (s *Session) Prompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastPrompt
}

// SetPrompt records the last listening prompt.
func (s *Session) SetPrompt(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastPrompt = p
}

// Snapshot copies the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		SessionID:   s.ID,
		Location:    s.Location,
		State:       s.State,
		Wizard:      s.Wizard,
		WizardState: s.WizardState,
		RetryCount:  s.RetryCount,
		LastPrompt:  s.LastPrompt,
		StartTime:   s.StartTime,
		History:     make([]StateRecord, len(s.History)),
	}
	copy(snap.History, s.History)
	if s.Pending != nil {
		p := *s.Pending
		snap.Pending = &p
	}
	return snap
}
