// Package transcript keeps a per-session journal of conversation turns.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is one line of a conversation.
type Turn struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Location  string    `json:"location"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	State     string    `json:"state,omitempty"`
	At        time.Time `json:"at"`
}

// Store persists turns.
type Store interface {
	Append(ctx context.Context, turn Turn) error
	// List returns the latest limit turns of a session, oldest first.
	// A non-positive limit returns all retained turns.
	List(ctx context.Context, sessionID string, limit int) ([]Turn, error)
	Close() error
}

// Driver names.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverSQL    = "sql"
)

var (
	ErrUnknownDriver = errors.New("unknown transcript driver")
	ErrInvalidTurn   = errors.New("invalid transcript turn")
)

func validate(turn Turn) error {
	if turn.SessionID == "" {
		return fmt.Errorf("%w: session id is required", ErrInvalidTurn)
	}
	switch turn.Role {
	case RoleUser, RoleAssistant, RoleSystem:
	default:
		return fmt.Errorf("%w: role %q", ErrInvalidTurn, turn.Role)
	}
	return nil
}

// tail returns the last limit elements of turns.
func tail(turns []Turn, limit int) []Turn {
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
