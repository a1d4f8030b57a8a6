package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemorySink keeps trails in memory. Used in tests and single-node dev
// deployments.
type MemorySink struct {
	mu     sync.RWMutex
	trails map[string][]Entry
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{trails: make(map[string][]Entry)}
}

// Append implements Sink.
func (s *MemorySink) Append(_ context.Context, sessionID, turnID string, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sessionID + ":" + turnID
	s.trails[key] = append(s.trails[key], entries...)
	return nil
}

// Trail returns the recorded trail for a turn, or nil.
func (s *MemorySink) Trail(sessionID, turnID string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	trail := s.trails[sessionID+":"+turnID]
	out := make([]Entry, len(trail))
	copy(out, trail)
	return out
}

const traceKeyPrefix = "trace:"

// RedisSink appends trails to Redis lists keyed trace:<session>:<turn>,
// with a TTL so old trails age out after the evaluation job consumes them.
type RedisSink struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSink creates a Redis-backed sink.
func NewRedisSink(client *redis.Client, ttl time.Duration) *RedisSink {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisSink{client: client, ttl: ttl}
}

// Append implements Sink. Entries are serialized individually so the
// evaluation job can stream them with LRANGE.
func (s *RedisSink) Append(ctx context.Context, sessionID, turnID string, entries []Entry) error {
	key := fmt.Sprintf("%s%s:%s", traceKeyPrefix, sessionID, turnID)

	vals := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal trace entry: %w", err)
		}
		vals = append(vals, b)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, vals...)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append trace %s: %w", key, err)
	}
	return nil
}
