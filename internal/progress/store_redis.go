package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps progress snapshots in Redis so multiple API instances
// can serve progress for jobs running elsewhere.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis using a redis:// URL and verifies the
// connection with a ping.
func NewRedisStore(ctx context.Context, url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

func key(analysisID string) string {
	return "progress:" + analysisID
}

func (s *RedisStore) Set(ctx context.Context, state State) error {
	// Keep percent monotonic across instances: read-modify-write is fine
	// here because a single orchestrator owns each job's updates. A late
	// update with a lower percent is stale and dropped whole.
	if existing, ok, err := s.Get(ctx, state.AnalysisID); err == nil && ok && existing.Percent > state.Percent {
		return nil
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	ttl := time.Duration(0)
	if state.Terminal() {
		ttl = TTL
	}
	return s.client.Set(ctx, key(state.AnalysisID), payload, ttl).Err()
}

func (s *RedisStore) Get(ctx context.Context, analysisID string) (State, bool, error) {
	raw, err := s.client.Get(ctx, key(analysisID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, err
	}
	var state State
	if err := json.Unmarshal(raw, &state); err != nil {
		return State{}, false, err
	}
	return state, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, analysisID string) error {
	return s.client.Del(ctx, key(analysisID)).Err()
}

// Close releases the underlying connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
