package registry

import (
	"context"
	"fmt"

	"github.com/Mindburn-Labs/controlgen/pkg/contracts"
	"github.com/Mindburn-Labs/controlgen/pkg/store"
)

const (
	VariantsDocument = "control_variants.json"
	variantsKey      = "control_variants"
)

// VariantRegistry is the persistent catalog of control variants. It keeps
// a secondary objective -> variant IDs index.
type VariantRegistry struct {
	c           *catalog[contracts.ControlVariant]
	opts        options
	byObjective map[string][]string
}

// NewVariantRegistry loads the variant document from st.
func NewVariantRegistry(ctx context.Context, st store.DocumentStore, opts ...Option) (*VariantRegistry, error) {
	o := buildOptions("variant_registry", opts)
	r := &VariantRegistry{
		c: newCatalog(st, VariantsDocument, variantsKey,
			func(v *contracts.ControlVariant) string { return v.VariantID }, o.logger),
		opts:        o,
		byObjective: make(map[string][]string),
	}
	if err := r.c.load(ctx); err != nil {
		return nil, err
	}
	for i := range r.c.items {
		r.index(&r.c.items[i])
	}
	return r, nil
}

func (r *VariantRegistry) index(v *contracts.ControlVariant) {
	r.byObjective[v.ObjectiveID] = append(r.byObjective[v.ObjectiveID], v.VariantID)
}

// Scheme reports the configured variant ID scheme.
func (r *VariantRegistry) Scheme() VariantIDScheme { return r.opts.idScheme }

func (r *VariantRegistry) All() []contracts.ControlVariant {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	return r.c.all()
}

func (r *VariantRegistry) Get(id string) (contracts.ControlVariant, bool) {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	return r.c.get(id)
}

func (r *VariantRegistry) ByDomain(domain string) []contracts.ControlVariant {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	return r.c.filter(func(v *contracts.ControlVariant) bool { return v.Domain == domain })
}

// ByObjective returns the variants created for objectiveID, in insertion order.
func (r *VariantRegistry) ByObjective(objectiveID string) []contracts.ControlVariant {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	ids := r.byObjective[objectiveID]
	out := make([]contracts.ControlVariant, 0, len(ids))
	for _, id := range ids {
		if v, ok := r.c.get(id); ok {
			out = append(out, v)
		}
	}
	return out
}

func (r *VariantRegistry) Len() int {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	return len(r.c.items)
}

// Add registers v and rewrites the document. A duplicate ID is a no-op.
func (r *VariantRegistry) Add(ctx context.Context, v contracts.ControlVariant) (bool, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()
	return r.addLocked(ctx, v)
}

func (r *VariantRegistry) addLocked(ctx context.Context, v contracts.ControlVariant) (bool, error) {
	added, err := r.c.add(ctx, v)
	if added {
		r.index(&v)
	}
	return added, err
}

// NextID returns the ID the next variant of objectiveID would receive.
func (r *VariantRegistry) NextID(objectiveID string) string {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()
	return r.nextIDLocked(objectiveID)
}

func (r *VariantRegistry) nextIDLocked(objectiveID string) string {
	return nextVariantID(r.opts.idScheme, objectiveID, r.byObjective[objectiveID])
}

// Create mints the next variant ID for objectiveID, builds the variant and
// registers it under the write lock.
func (r *VariantRegistry) Create(ctx context.Context, objectiveID string, build func(id string) (contracts.ControlVariant, error)) (contracts.ControlVariant, error) {
	r.c.mu.Lock()
	defer r.c.mu.Unlock()

	id := r.nextIDLocked(objectiveID)
	v, err := build(id)
	if err != nil {
		return contracts.ControlVariant{}, err
	}
	if v.VariantID != id || v.ObjectiveID != objectiveID {
		return contracts.ControlVariant{}, fmt.Errorf("variant built as %s/%s, expected %s/%s", v.ObjectiveID, v.VariantID, objectiveID, id)
	}
	if err := v.Validate(); err != nil {
		return contracts.ControlVariant{}, err
	}
	if _, err := r.addLocked(ctx, v); err != nil {
		return contracts.ControlVariant{}, err
	}
	for _, fn := range r.opts.listeners {
		fn(id)
	}
	r.opts.logger.InfoContext(ctx, "variant created",
		"variant_id", id, "objective_id", objectiveID, "tiers", len(v.Variants))
	return v, nil
}

// VariantStats summarises the variant registry.
type VariantStats struct {
	TotalVariants  int      `json:"total_variants"`
	Domains        []string `json:"domains"`
	DomainCount    int      `json:"domain_count"`
	Objectives     []string `json:"objectives"`
	ObjectiveCount int      `json:"objective_count"`
	VariantIDs     []string `json:"variant_ids"`
}

func (r *VariantRegistry) Stats() VariantStats {
	r.c.mu.RLock()
	defer r.c.mu.RUnlock()

	domains := distinct(r.c.items, func(v *contracts.ControlVariant) string { return v.Domain })
	objectives := distinct(r.c.items, func(v *contracts.ControlVariant) string { return v.ObjectiveID })
	return VariantStats{
		TotalVariants:  len(r.c.items),
		Domains:        domains,
		DomainCount:    len(domains),
		Objectives:     objectives,
		ObjectiveCount: len(objectives),
		VariantIDs:     r.c.ids(),
	}
}
