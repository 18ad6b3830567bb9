package registry

import (
	"context"
	"fmt"
	"sort"

	"github.com/Mindburn-Labs/controlgen/pkg/contracts"
	"github.com/Mindburn-Labs/controlgen/pkg/store"
)

const (
	ObjectivesDocument = "objectives.json"
	objectivesKey      = "objectives"
)

// ObjectiveRegistry is the persistent catalog of control objectives.
type ObjectiveRegistry struct {
	c    *catalog[contracts.ControlObjective]
	opts options
}

// NewObjectiveRegistry loads the objective document from st.
func NewObjectiveRegistry(ctx context.Context, st store.DocumentStore, opts ...Option) (*ObjectiveRegistry, error) {
	o := buildOptions("objective_registry", opts)
	r := &ObjectiveRegistry{
		c: newCatalog(st, ObjectivesDocument, objectivesKey,
			func(obj *contracts.ControlObjective) string { return obj.ObjectiveID }, o.logger),
		opts: o,
	}
	if err := r.c.load(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// All returns every objective in insertion order.
func (r *ObjectiveRegistry) All() []contracts.ControlObjective {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	return r.c.all()
}

func (r *ObjectiveRegistry) Get(id string) (contracts.ControlObjective, bool) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	return r.c.get(id)
}

func (r *ObjectiveRegistry) ByDomain(domain string) []contracts.ControlObjective {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	return r.c.filter(func(o *contracts.ControlObjective) bool { return o.Domain == domain })
}

func (r *ObjectiveRegistry) Len() int {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	return len(r.c.items)
}

// Add registers obj and rewrites the document. A duplicate ID is a no-op
// and reports false.
func (r *ObjectiveRegistry) Add(ctx context.Context, obj contracts.ControlObjective) (bool, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return r.c.add(ctx, obj)
}

// NextID returns the ID the next objective in domain would receive.
func (r *ObjectiveRegistry) NextID(domain string) string {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	return nextObjectiveID(domain, r.opts.prefixLen, r.c.ids())
}

// Create mints the next ID for domain, builds the objective from it and
// registers it, all under the write lock.
func (r *ObjectiveRegistry) Create(ctx context.Context, domain string, build func(id string) (contracts.ControlObjective, error)) (contracts.ControlObjective, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	id := nextObjectiveID(domain, r.opts.prefixLen, r.c.ids())
	obj, err := build(id)
	if err != nil {
		return contracts.ControlObjective{}, err
	}
	if obj.ObjectiveID != id {
		return contracts.ControlObjective{}, fmt.Errorf("objective built with id %q, expected %q", obj.ObjectiveID, id)
	}
	if err := obj.Validate(); err != nil {
		return contracts.ControlObjective{}, err
	}
	if _, err := r.c.add(ctx, obj); err != nil {
		return contracts.ControlObjective{}, err
	}
	for _, fn := range r.opts.listeners {
		fn(id)
	}
	r.opts.logger.InfoContext(ctx, "objective created", "objective_id", id, "domain", obj.Domain)
	return obj, nil
}

// ObjectiveStats summarises the objective registry.
type ObjectiveStats struct {
	TotalObjectives int      `json:"total_objectives"`
	Domains         []string `json:"domains"`
	DomainCount     int      `json:"domain_count"`
	ObjectiveIDs    []string `json:"objective_ids"`
}

func (r *ObjectiveRegistry) Stats() ObjectiveStats {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	domains := distinct(r.c.items, func(o *contracts.ControlObjective) string { return o.Domain })
	return ObjectiveStats{
		TotalObjectives: len(r.c.items),
		Domains:         domains,
		DomainCount:     len(domains),
		ObjectiveIDs:    r.c.ids(),
	}
}

func distinct[T any](items []T, field func(*T) string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for i := range items {
		v := field(&items[i])
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
