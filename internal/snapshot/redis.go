package snapshot

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/rzbill/pricerelay/internal/record"
)

// RedisStore keeps the snapshot in one Redis string key. SET replaces the
// value atomically.
type RedisStore struct {
	client *redis.Client
	key    string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore uses key on client. Close closes the client.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) WriteLatest(ctx context.Context, rec record.Record) error {
	b, err := encode(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, b, 0).Err(); err != nil {
		return &StoreError{Op: "write", Err: err}
	}
	return nil
}

func (s *RedisStore) ReadCurrent(ctx context.Context) ([]byte, error) {
	b, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, &StoreError{Op: "read", Err: err}
	}
	return b, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return &StoreError{Op: "ping", Err: err}
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
