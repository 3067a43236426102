package events

import (
	"context"
	"maps"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/pitabwire/util"
)

// Stats aggregates dialog events. It can consume the event queue as a frame
// subscriber (Handle) or a local subscription (Follow).
type Stats struct {
	mu        sync.Mutex
	events    map[EventType]int
	locations map[string]int
	shortcuts map[string]int
	actions   map[string]int
	failures  map[string]int
	intents   map[string]int
	escalated int
}

// StatsSnapshot is a copy of the counters.
type StatsSnapshot struct {
	Events      map[EventType]int `json:"events"`
	Locations   map[string]int    `json:"locations"`
	Shortcuts   map[string]int    `json:"shortcuts"`
	Actions     map[string]int    `json:"actions"`
	Failures    map[string]int    `json:"backend_failures"`
	Intents     map[string]int    `json:"intents"`
	Escalations int               `json:"silence_escalations"`
}

// NewStats creates empty counters.
func NewStats() *Stats {
	return &Stats{
		events:    make(map[EventType]int),
		locations: make(map[string]int),
		shortcuts: make(map[string]int),
		actions:   make(map[string]int),
		failures:  make(map[string]int),
		intents:   make(map[string]int),
	}
}

// Handle is called by frame's pub/sub for each event message.
func (s *Stats) Handle(ctx context.Context, _ map[string]string, message []byte) error {
	var env Envelope
	if err := sonic.Unmarshal(message, &env); err != nil {
		util.Log(ctx).WithError(err).Error("stats subscriber: unmarshal envelope")
		return err
	}
	if err := s.Observe(env); err != nil {
		util.Log(ctx).WithError(err).Error("stats subscriber: unmarshal payload " + string(env.Type))
	}
	return nil
}

// Follow consumes a local subscription until it is closed or ctx is done.
func (s *Stats) Follow(ctx context.Context, ch <-chan Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			if err := s.Observe(env); err != nil {
				util.Log(ctx).WithError(err).Error("stats: unmarshal payload " + string(env.Type))
			}
		}
	}
}

// Observe counts one event. The event is counted even if its payload
// cannot be decoded.
func (s *Stats) Observe(env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[env.Type]++

	var err error
	switch env.Type {
	case SessionStarted:
		var d SessionStartedData
		if err = sonic.Unmarshal(env.Data, &d); err == nil {
			s.locations[d.Location]++
		}
	case ShortcutFired:
		var d ShortcutData
		if err = sonic.Unmarshal(env.Data, &d); err == nil {
			s.shortcuts[d.Shortcut]++
		}
	case ActionExecuted:
		var d ActionExecutedData
		if err = sonic.Unmarshal(env.Data, &d); err == nil {
			s.actions[d.ActionType]++
		}
	case BackendFailed:
		var d BackendData
		if err = sonic.Unmarshal(env.Data, &d); err == nil {
			s.failures[d.Operation]++
		}
	case IntentResolved:
		var d IntentData
		if err = sonic.Unmarshal(env.Data, &d); err == nil {
			s.intents[d.Intent]++
		}
	case SilenceTimeout:
		var d SilenceTimeoutData
		if err = sonic.Unmarshal(env.Data, &d); err == nil && d.Escalated {
			s.escalated++
		}
	}
	return err
}

// Snapshot copies the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		Events:      maps.Clone(s.events),
		Locations:   maps.Clone(s.locations),
		Shortcuts:   maps.Clone(s.shortcuts),
		Actions:     maps.Clone(s.actions),
		Failures:    maps.Clone(s.failures),
		Intents:     maps.Clone(s.intents),
		Escalations: s.escalated,
	}
}
