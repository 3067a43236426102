package transcript

import (
	"context"
	"sync"
	"time"

	"github.com/rs/xid"
)

const defaultMaxTurns = 200

// MemoryStore keeps turns in process memory, bounded per session.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]Turn
	maxTurns int
}

// NewMemoryStore creates a store retaining at most maxTurns per session.
func NewMemoryStore(maxTurns int) *MemoryStore {
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &MemoryStore{sessions: make(map[string][]Turn), maxTurns: maxTurns}
}

func (s *MemoryStore) Append(_ context.Context, turn Turn) error {
	if err := validate(turn); err != nil {
		return err
	}
	if turn.ID == "" {
		turn.ID = xid.New().String()
	}
	if turn.At.IsZero() {
		turn.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	turns := append(s.sessions[turn.SessionID], turn)
	if len(turns) > s.maxTurns {
		turns = turns[len(turns)-s.maxTurns:]
	}
	s.sessions[turn.SessionID] = turns
	return nil
}

func (s *MemoryStore) List(_ context.Context, sessionID string, limit int) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tail(s.sessions[sessionID], limit), nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string][]Turn)
	return nil
}
