// Package store provides the durable backends registries persist to.
//
// A registry is one JSON document under a fixed key. Every addition rewrites
// the whole document; there is no append log and no cross-process locking,
// so each backend must be treated as single-writer.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no document exists under the key.
var ErrNotFound = errors.New("store: document not found")

// DocumentStore loads and saves whole JSON documents by key.
type DocumentStore interface {
	// Load returns the stored document, or ErrNotFound.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save replaces the document stored under key.
	Save(ctx context.Context, key string, data []byte) error
}
