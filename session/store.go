package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// HandleStore persists the resumption handle across process restarts.
type HandleStore interface {
	Load(ctx context.Context) (Handle, bool, error)
	Save(ctx context.Context, h Handle) error
	Clear(ctx context.Context) error
}

// RedisHandleStore keeps one handle per profile in a redis hash.
type RedisHandleStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisHandleStore(client *redis.Client, profile string, ttl time.Duration) *RedisHandleStore {
	return &RedisHandleStore{
		client: client,
		key:    "resumption:" + profile,
		ttl:    ttl,
	}
}

func (s *RedisHandleStore) Load(ctx context.Context) (Handle, bool, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return Handle{}, false, fmt.Errorf("load resumption handle: %w", err)
	}
	value := fields["handle"]
	if value == "" {
		return Handle{}, false, nil
	}
	return Handle{Value: value, Resumable: fields["resumable"] == "1"}, true, nil
}

func (s *RedisHandleStore) Save(ctx context.Context, h Handle) error {
	resumable := "0"
	if h.Resumable {
		resumable = "1"
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.key, map[string]interface{}{
		"handle":     h.Value,
		"resumable":  resumable,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	})
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save resumption handle: %w", err)
	}
	return nil
}

func (s *RedisHandleStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear resumption handle: %w", err)
	}
	return nil
}
