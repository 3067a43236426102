package transcript

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/xid"
)

const (
	keyPrefix  = "transcript:"
	defaultTTL = 24 * time.Hour
)

// RedisStore keeps each session's turns in a capped Redis list.
type RedisStore struct {
	client   *redis.Client
	ttl      time.Duration
	maxTurns int
}

// NewRedisStore creates a Redis-backed store. Keys expire ttl after the
// last append.
func NewRedisStore(client *redis.Client, ttl time.Duration, maxTurns int) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}
	return &RedisStore{client: client, ttl: ttl, maxTurns: maxTurns}
}

func (s *RedisStore) Append(ctx context.Context, turn Turn) error {
	if err := validate(turn); err != nil {
		return err
	}
	if turn.ID == "" {
		turn.ID = xid.New().String()
	}
	if turn.At.IsZero() {
		turn.At = time.Now()
	}
	val, err := sonic.Marshal(turn)
	if err != nil {
		return fmt.Errorf("encode turn: %w", err)
	}

	key := s.key(turn.SessionID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, val)
	pipe.LTrim(ctx, key, int64(-s.maxTurns), -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context, sessionID string, limit int) ([]Turn, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	vals, err := s.client.LRange(ctx, s.key(sessionID), start, -1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list turns: %w", err)
	}

	turns := make([]Turn, 0, len(vals))
	for _, v := range vals {
		var t Turn
		if err := sonic.UnmarshalString(v, &t); err != nil {
			return nil, fmt.Errorf("decode turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(sessionID string) string {
	return keyPrefix + sessionID
}
