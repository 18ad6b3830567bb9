package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // Postgres driver
)

const pgDocumentSchema = `
CREATE TABLE IF NOT EXISTS registry_documents (
	doc_key TEXT PRIMARY KEY,
	document JSONB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
`

// PostgresDocumentStore keeps registry documents in a shared Postgres table.
type PostgresDocumentStore struct {
	db *sql.DB
}

func NewPostgresDocumentStore(db *sql.DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

// OpenPostgresDocumentStore connects to dsn and ensures the schema exists.
func OpenPostgresDocumentStore(ctx context.Context, dsn string) (*PostgresDocumentStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewPostgresDocumentStore(db)
	if err := s.Init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresDocumentStore) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, pgDocumentSchema); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}

func (s *PostgresDocumentStore) Load(ctx context.Context, key string) ([]byte, error) {
	var doc []byte
	err := s.db.QueryRowContext(ctx, "SELECT document FROM registry_documents WHERE doc_key = $1", key).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres load %s: %w", key, err)
	}
	return doc, nil
}

func (s *PostgresDocumentStore) Save(ctx context.Context, key string, data []byte) error {
	query := `
		INSERT INTO registry_documents (doc_key, document, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (doc_key) DO UPDATE
		SET document = $2, updated_at = $3
	`
	if _, err := s.db.ExecContext(ctx, query, key, data, time.Now().UTC()); err != nil {
		return fmt.Errorf("postgres save %s: %w", key, err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PostgresDocumentStore) Close() error {
	return s.db.Close()
}
