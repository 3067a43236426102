// Package sessions tracks the dialog supervisors of connected users.
package sessions

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ibsar/voicedialog/pkg/dialog"
)

const (
	// DefaultIdleTTL is how long a connection may stay silent before the
	// reaper closes it.
	DefaultIdleTTL = 30 * time.Minute
	reaperInterval = time.Minute
)

// ErrNotFound is returned for an unknown connection id.
var ErrNotFound = errors.New("session not found")

// Driver is the part of a supervisor that remote callers may drive.
// *dialog.Supervisor implements it.
type Driver interface {
	PushTranscript(text string, final bool)
	PushKey(key string)
	NotifyLocation(location string)
	Snapshot() dialog.Snapshot
}

// Entry is a registered connection.
type Entry struct {
	ID          string
	Driver      Driver
	ConnectedAt time.Time
	lastActive  time.Time
	cancel      context.CancelFunc
}

// LastActive reports when input last arrived on the connection.
func (e *Entry) LastActive() time.Time { return e.lastActive }

// Store holds the active connections.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates a store whose reaper drops connections idle for ttl.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	return &Store{entries: make(map[string]*Entry), ttl: ttl, now: time.Now}
}

// Add registers a connection. cancel is called when the connection is reaped.
func (s *Store) Add(id string, d Driver, cancel context.CancelFunc) {
	now := s.now()
	s.mu.Lock()
	s.entries[id] = &Entry{ID: id, Driver: d, ConnectedAt: now, lastActive: now, cancel: cancel}
	s.mu.Unlock()
}

// Remove forgets a connection.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// Touch marks input on a connection.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	if e, ok := s.entries[id]; ok {
		e.lastActive = s.now()
	}
	s.mu.Unlock()
}

// Get returns a copy of the entry for id.
func (s *Store) Get(id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return *e, nil
}

// List returns all entries ordered by connection time.
func (s *Store) List() []Entry {
	s.mu.RLock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, *e)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// Len returns the number of connections.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// StartReaper closes idle connections until ctx is done. run starts the
// reaper loop; nil means a plain goroutine.
func (s *Store) StartReaper(ctx context.Context, run dialog.Runner) {
	if run == nil {
		run = dialog.Go
	}
	run(func() {
		ticker := time.NewTicker(reaperInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Reap()
			}
		}
	})
}

// Reap closes and removes connections idle longer than the TTL.
func (s *Store) Reap() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, e := range s.entries {
		if now.Sub(e.lastActive) <= s.ttl {
			continue
		}
		slog.Warn("reaping idle dialog session", slog.String("connection_id", id))
		if e.cancel != nil {
			e.cancel()
		}
		delete(s.entries, id)
		n++
	}
	return n
}
