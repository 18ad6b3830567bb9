package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteDocumentStore keeps registry documents in a local SQLite database.
type SQLiteDocumentStore struct {
	db *sql.DB
}

// OpenSQLiteDocumentStore opens (or creates) the database at path.
func OpenSQLiteDocumentStore(ctx context.Context, path string) (*SQLiteDocumentStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection: the registry is single-writer and :memory: databases
	// are per-connection.
	db.SetMaxOpenConns(1)
	return NewSQLiteDocumentStore(ctx, db)
}

func NewSQLiteDocumentStore(ctx context.Context, db *sql.DB) (*SQLiteDocumentStore, error) {
	s := &SQLiteDocumentStore{db: db}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteDocumentStore) migrate(ctx context.Context) error {
	query := `
    CREATE TABLE IF NOT EXISTS registry_documents (
        doc_key TEXT PRIMARY KEY,
        document TEXT NOT NULL,
        updated_at DATETIME NOT NULL
    );`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("sqlite migrate: %w", err)
	}
	return nil
}

func (s *SQLiteDocumentStore) Load(ctx context.Context, key string) ([]byte, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM registry_documents WHERE doc_key = ?`, key).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite load %s: %w", key, err)
	}
	return []byte(doc), nil
}

func (s *SQLiteDocumentStore) Save(ctx context.Context, key string, data []byte) error {
	query := `INSERT INTO registry_documents (doc_key, document, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(doc_key) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query, key, string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlite save %s: %w", key, err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteDocumentStore) Close() error {
	return s.db.Close()
}
