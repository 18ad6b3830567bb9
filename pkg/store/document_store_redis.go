package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisDocumentStore keeps each registry document as a single Redis string.
type RedisDocumentStore struct {
	client *redis.Client
	prefix string
}

// NewRedisDocumentStore connects to addr. Keys are stored as prefix+key.
func NewRedisDocumentStore(addr, password string, db int, prefix string) *RedisDocumentStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return NewRedisDocumentStoreWithClient(rdb, prefix)
}

// NewRedisDocumentStoreWithClient wraps an existing client.
func NewRedisDocumentStoreWithClient(client *redis.Client, prefix string) *RedisDocumentStore {
	return &RedisDocumentStore{client: client, prefix: prefix}
}

func (s *RedisDocumentStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis load %s: %w", key, err)
	}
	return data, nil
}

func (s *RedisDocumentStore) Save(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis save %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying client.
func (s *RedisDocumentStore) Close() error {
	return s.client.Close()
}
