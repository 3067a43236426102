package transcript

import (
	"context"
	"fmt"
	"time"

	"github.com/pitabwire/frame/data"
	"gorm.io/gorm"
)

// TurnRecord is the database row of a turn.
type TurnRecord struct {
	data.BaseModel

	SessionID string    `gorm:"type:varchar(50);not null;index:idx_tt_session" json:"session_id"`
	Location  string    `gorm:"type:varchar(255)"                              json:"location"`
	Role      string    `gorm:"type:varchar(20);not null"                      json:"role"`
	Text      string    `gorm:"type:text"                                      json:"text"`
	State     string    `gorm:"type:varchar(50)"                               json:"state"`
	SpokenAt  time.Time `gorm:"index:idx_tt_session"                           json:"spoken_at"`
}

func (TurnRecord) TableName() string { return "transcript_turns" }

// DB yields a connection. The frame datastore pool satisfies it.
type DB interface {
	DB(ctx context.Context, readOnly bool) *gorm.DB
}

// SQLStore persists turns through gorm.
type SQLStore struct {
	pool DB
}

// NewSQLStore creates a store and migrates its table.
func NewSQLStore(ctx context.Context, pool DB) (*SQLStore, error) {
	if err := pool.DB(ctx, false).AutoMigrate(&TurnRecord{}); err != nil {
		return nil, fmt.Errorf("migrate transcript_turns: %w", err)
	}
	return &SQLStore{pool: pool}, nil
}

func (s *SQLStore) Append(ctx context.Context, turn Turn) error {
	if err := validate(turn); err != nil {
		return err
	}
	if turn.At.IsZero() {
		turn.At = time.Now()
	}
	rec := &TurnRecord{
		SessionID: turn.SessionID,
		Location:  turn.Location,
		Role:      string(turn.Role),
		Text:      turn.Text,
		State:     turn.State,
		SpokenAt:  turn.At,
	}
	if turn.ID != "" {
		rec.ID = turn.ID
	}
	return s.pool.DB(ctx, false).Create(rec).Error
}

func (s *SQLStore) List(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	var recs []TurnRecord
	q := s.pool.DB(ctx, true).
		Where("session_id = ?", sessionID).
		Order("spoken_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}

	turns := make([]Turn, len(recs))
	for i, r := range recs {
		turns[len(recs)-1-i] = Turn{
			ID:        r.ID,
			SessionID: r.SessionID,
			Location:  r.Location,
			Role:      Role(r.Role),
			Text:      r.Text,
			State:     r.State,
			At:        r.SpokenAt,
		}
	}
	return turns, nil
}

// Close is a no-op; the pool belongs to the service.
func (s *SQLStore) Close() error { return nil }
