package store

import (
	"context"
	"fmt"
	"io"
)

// Backend names a DocumentStore implementation.
type Backend string

const (
	BackendFile     Backend = "file"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendRedis    Backend = "redis"
)

// Config selects and configures the registry backend.
type Config struct {
	Backend       Backend
	Dir           string // file backend
	SQLitePath    string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// Open returns the configured DocumentStore. The returned closer is never nil.
func Open(ctx context.Context, cfg Config) (DocumentStore, io.Closer, error) {
	switch cfg.Backend {
	case "", BackendFile:
		s, err := NewFileDocumentStore(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		return s, nopCloser{}, nil
	case BackendSQLite:
		s, err := OpenSQLiteDocumentStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("DATABASE_URL is required for the postgres registry backend")
		}
		s, err := OpenPostgresDocumentStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case BackendRedis:
		if cfg.RedisAddr == "" {
			return nil, nil, fmt.Errorf("REDIS_ADDR is required for the redis registry backend")
		}
		s := NewRedisDocumentStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unsupported registry backend: %s", cfg.Backend)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
