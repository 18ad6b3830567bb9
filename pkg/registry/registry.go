// Package registry holds the persistent, append-only catalogs of control
// objectives and control variants that generation runs consult and grow.
//
// Each registry is a single-writer store: reads go to an in-memory copy and
// every addition rewrites the whole document through a store.DocumentStore.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Masterminds/semver/v3"

	"github.com/Mindburn-Labs/controlgen/pkg/store"
)

// ErrStorage is returned when the backing document exists but cannot be
// read, parsed or written.
var ErrStorage = errors.New("registry storage error")

// SchemaVersion is written into every registry document.
const SchemaVersion = "1.0.0"

var supportedSchema = mustConstraint(">= 1.0.0, < 2.0.0")

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}

// Option configures a registry.
type Option func(*options)

type options struct {
	logger    *slog.Logger
	idScheme  VariantIDScheme
	prefixLen int
	listeners []func(id string)
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithVariantIDScheme selects how variant IDs are minted. Defaults to
// SequentialVariantIDs. Ignored by the objective registry.
func WithVariantIDScheme(s VariantIDScheme) Option {
	return func(o *options) { o.idScheme = s }
}

// WithDomainPrefixLimit truncates objective domain prefixes to n
// characters. Zero keeps the whole prefix. Ignored by the variant registry.
func WithDomainPrefixLimit(n int) Option {
	return func(o *options) { o.prefixLen = n }
}

// OnCreate registers a callback invoked with the ID of every entity created
// through Create. Callbacks run while the registry lock is held.
func OnCreate(fn func(id string)) Option {
	return func(o *options) { o.listeners = append(o.listeners, fn) }
}

func buildOptions(component string, opts []Option) options {
	o := options{idScheme: SequentialVariantIDs}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default().With("component", component)
	}
	return o
}

// catalog is the shared ordered, ID-indexed, persisted collection behind
// both registries. Callers hold mu.
type catalog[T any] struct {
	mu      sync.RWMutex
	store   store.DocumentStore
	key     string
	listKey string
	idOf    func(*T) string
	items   []T
	byID    map[string]int
	logger  *slog.Logger
}

func newCatalog[T any](st store.DocumentStore, key, listKey string, idOf func(*T) string, logger *slog.Logger) *catalog[T] {
	return &catalog[T]{
		store:   st,
		key:     key,
		listKey: listKey,
		idOf:    idOf,
		byID:    make(map[string]int),
		logger:  logger,
	}
}

// load reads the document once. An absent document is initialised empty
// and persisted; a malformed one is fatal.
func (c *catalog[T]) load(ctx context.Context) error {
	data, err := c.store.Load(ctx, c.key)
	if errors.Is(err, store.ErrNotFound) {
		c.logger.InfoContext(ctx, "initialising empty registry", "document", c.key)
		return c.persist(ctx)
	}
	if err != nil {
		return fmt.Errorf("%w: load %s: %v", ErrStorage, c.key, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrStorage, c.key, err)
	}

	if raw, ok := doc["schema_version"]; ok {
		var v string
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%w: %s schema_version: %v", ErrStorage, c.key, err)
		}
		ver, err := semver.NewVersion(v)
		if err != nil {
			return fmt.Errorf("%w: %s schema_version %q: %v", ErrStorage, c.key, v, err)
		}
		if !supportedSchema.Check(ver) {
			return fmt.Errorf("%w: %s schema_version %s is not supported", ErrStorage, c.key, ver)
		}
	}

	var items []T
	if raw, ok := doc[c.listKey]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("%w: parse %s.%s: %v", ErrStorage, c.key, c.listKey, err)
		}
	}

	for i := range items {
		id := c.idOf(&items[i])
		if _, dup := c.byID[id]; dup {
			c.logger.WarnContext(ctx, "duplicate registry entry ignored", "document", c.key, "id", id)
			continue
		}
		c.byID[id] = len(c.items)
		c.items = append(c.items, items[i])
	}

	c.logger.InfoContext(ctx, "registry loaded", "document", c.key, "entries", len(c.items))
	return nil
}

func (c *catalog[T]) persist(ctx context.Context) error {
	items := c.items
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(map[string]any{
		"schema_version": SchemaVersion,
		c.listKey:        items,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStorage, c.key, err)
	}
	if err := c.store.Save(ctx, c.key, data); err != nil {
		return fmt.Errorf("%w: save %s: %v", ErrStorage, c.key, err)
	}
	return nil
}

func (c *catalog[T]) get(id string) (T, bool) {
	idx, ok := c.byID[id]
	if !ok {
		var zero T
		return zero, false
	}
	return c.items[idx], true
}

func (c *catalog[T]) all() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

func (c *catalog[T]) filter(keep func(*T) bool) []T {
	var out []T
	for i := range c.items {
		if keep(&c.items[i]) {
			out = append(out, c.items[i])
		}
	}
	return out
}

// add appends and persists. The in-memory state is rolled back when the
// write fails so memory never runs ahead of the durable document.
func (c *catalog[T]) add(ctx context.Context, item T) (bool, error) {
	id := c.idOf(&item)
	if _, exists := c.byID[id]; exists {
		return false, nil
	}

	c.byID[id] = len(c.items)
	c.items = append(c.items, item)

	if err := c.persist(ctx); err != nil {
		c.items = c.items[:len(c.items)-1]
		delete(c.byID, id)
		return false, err
	}
	return true, nil
}

func (c *catalog[T]) ids() []string {
	out := make([]string, len(c.items))
	for i := range c.items {
		out[i] = c.idOf(&c.items[i])
	}
	return out
}
