package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amishk599/jobsync/internal/model"
)

// kv is the subset of the Redis client the cursor store uses.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Close() error
}

// RedisCursorStore keeps batch cursors in Redis, one JSON value per sync type.
type RedisCursorStore struct {
	client kv
	prefix string
	ttl    time.Duration
}

var _ model.CursorStore = (*RedisCursorStore)(nil)

// NewRedisCursorStore connects to the Redis server at url (redis://...).
// A zero ttl keeps cursors forever.
func NewRedisCursorStore(url, prefix string, ttl time.Duration) (*RedisCursorStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return &RedisCursorStore{
		client: redis.NewClient(opts),
		prefix: prefix,
		ttl:    ttl,
	}, nil
}

// Close closes the Redis client.
func (s *RedisCursorStore) Close() error {
	return s.client.Close()
}

func (s *RedisCursorStore) key(syncType string) string {
	return s.prefix + "cursor:" + syncType
}

// LoadCursor reads the cursor of syncType. A missing key is the zero state.
func (s *RedisCursorStore) LoadCursor(ctx context.Context, syncType string) (model.BatchState, error) {
	var state model.BatchState
	val, err := s.client.Get(ctx, s.key(syncType)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return state, nil
		}
		return state, fmt.Errorf("loading %s cursor: %w", syncType, err)
	}
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return state, fmt.Errorf("decoding %s cursor: %w", syncType, err)
	}
	return state, nil
}

// SaveCursor writes the cursor of syncType.
func (s *RedisCursorStore) SaveCursor(ctx context.Context, syncType string, state model.BatchState) error {
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding %s cursor: %w", syncType, err)
	}
	if err := s.client.Set(ctx, s.key(syncType), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("saving %s cursor: %w", syncType, err)
	}
	return nil
}
