package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fyrsmithlabs/supportd/internal/turn"
)

const (
	sessionKeyPrefix = "session:"
	defaultTTL       = 24 * time.Hour
)

// RedisStore persists session history as a Redis list per session, one
// JSON-encoded message per element. TTL is refreshed on every access so
// active sessions stay alive.
type RedisStore struct {
	client     *redis.Client
	ttl        time.Duration
	maxHistory int
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client *redis.Client, ttl time.Duration, maxHistory int) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{client: client, ttl: ttl, maxHistory: maxHistory}
}

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, sessionID string, msgs ...turn.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	key := s.key(sessionID)

	vals := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		vals = append(vals, b)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, vals...)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append session %s: %w", sessionID, err)
	}
	return nil
}

// History implements Store.
func (s *RedisStore) History(ctx context.Context, sessionID string) ([]turn.Message, error) {
	key := s.key(sessionID)

	raw, err := s.client.LRange(ctx, key, 0, -1).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", sessionID, err)
	}

	history := make([]turn.Message, 0, len(raw))
	for _, item := range raw {
		var m turn.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("corrupt history entry in session %s: %w", sessionID, err)
		}
		history = append(history, m)
	}

	// Refresh TTL on read; failure is not fatal.
	_ = s.client.Expire(ctx, key, s.ttl).Err()

	return truncate(history, s.maxHistory), nil
}

// Close implements Store.
func (s *RedisStore) Close() error { return s.client.Close() }

func (s *RedisStore) key(sessionID string) string {
	return sessionKeyPrefix + sessionID
}
