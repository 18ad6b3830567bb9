package mapping

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Mindburn-Labs/controlgen/pkg/contracts"
	"github.com/Mindburn-Labs/controlgen/pkg/llm"
	"github.com/Mindburn-Labs/controlgen/pkg/observability"
	"github.com/Mindburn-Labs/controlgen/pkg/registry"
)

// ObligationMapping is the outcome of mapping one obligation.
type ObligationMapping struct {
	ObligationID string
	// Objectives holds matched objectives first, in model order, then the
	// ones created for this obligation.
	Objectives []contracts.ControlObjective
	Created    int
	// Dropped lists matched IDs the registry did not know.
	Dropped []string
	// Err is set when the completion failed. Objectives is then empty.
	Err error
}

// ObligationMapper maps obligations onto control objectives, registering
// new objectives when nothing in the registry fits.
type ObligationMapper struct {
	llm        llm.Completer
	objectives *registry.ObjectiveRegistry
	opts       options
}

func NewObligationMapper(completer llm.Completer, objectives *registry.ObjectiveRegistry, opts ...Option) *ObligationMapper {
	return &ObligationMapper{
		llm:        completer,
		objectives: objectives,
		opts:       buildOptions("obligation-mapper", opts),
	}
}

// Map returns the objectives ob maps to. An LLM failure yields nil.
func (m *ObligationMapper) Map(ctx context.Context, ob contracts.Obligation) []contracts.ControlObjective {
	return m.MapObligation(ctx, ob).Objectives
}

// MapObligation maps one obligation and reports what happened.
func (m *ObligationMapper) MapObligation(ctx context.Context, ob contracts.Obligation) ObligationMapping {
	out := ObligationMapping{ObligationID: ob.ObligationID}
	logger := m.opts.logger.With("obligation_id", ob.ObligationID)

	ctx, done := m.opts.telemetry.TrackOperation(ctx, "map_obligation",
		observability.AttrStage.String(observability.StageObligationMapping),
		observability.AttrObligationID.String(ob.ObligationID),
	)
	defer func() { done(out.Err) }()

	existing := m.objectives.All()
	prompt, err := renderObligationPrompt(ob, existing)
	if err != nil {
		out.Err = err
		logger.ErrorContext(ctx, "obligation prompt failed", "error", err)
		return out
	}

	var resp obligationMappingResponse
	if err := m.llm.Complete(ctx, prompt, obligationMappingSchema, &resp); err != nil {
		out.Err = err
		m.opts.telemetry.LLMFailure(ctx, observability.StageObligationMapping, err)
		logger.WarnContext(ctx, "obligation mapping failed", "error", err)
		return out
	}

	for _, id := range resp.MatchedObjectiveIDs {
		id = clean(id)
		obj, ok := m.objectives.Get(id)
		if !ok {
			out.Dropped = append(out.Dropped, id)
			continue
		}
		out.Objectives = append(out.Objectives, obj)
	}
	if n := len(out.Dropped); n > 0 {
		m.opts.telemetry.ReferencesDropped(ctx, "objectives", n)
		logger.WarnContext(ctx, "dropped unknown objective ids",
			"ids", out.Dropped,
			"error", ErrUnresolvedReference,
		)
	}

	for _, data := range resp.NewObjectives {
		obj, err := m.register(ctx, data, ob)
		if err != nil {
			logger.ErrorContext(ctx, "objective registration failed", "name", data.Name, "error", err)
			continue
		}
		out.Objectives = append(out.Objectives, obj)
		out.Created++
	}

	logger.InfoContext(ctx, "obligation mapped",
		"existing_objectives", len(existing),
		"matched", len(out.Objectives)-out.Created,
		"created", out.Created,
	)
	return out
}

func (m *ObligationMapper) register(ctx context.Context, data newObjective, source contracts.Obligation) (contracts.ControlObjective, error) {
	domain := clean(data.Domain)
	if domain == "" {
		domain = source.Domain
	}
	if domain == "" {
		domain = fallbackDomain
	}

	obj, err := m.objectives.Create(ctx, domain, func(id string) (contracts.ControlObjective, error) {
		return contracts.ControlObjective{
			ObjectiveID:         id,
			Name:                clean(data.Name),
			Description:         clean(data.Description),
			Domain:              domain,
			Intent:              clean(data.Intent),
			LinkedObligationIDs: []string{source.ObligationID},
			Rationale:           clean(data.Rationale),
		}, nil
	})
	if err != nil {
		return contracts.ControlObjective{}, fmt.Errorf("create objective in %q: %w", domain, err)
	}
	m.opts.telemetry.ObjectiveCreated(ctx, domain)
	return obj, nil
}

// MapAll maps every obligation, at most WithConcurrency at a time, and
// returns the outcomes in input order. Per-item failures are recorded on
// the outcome; the only error returned is context cancellation.
func (m *ObligationMapper) MapAll(ctx context.Context, obligations []contracts.Obligation) ([]ObligationMapping, error) {
	results := make([]ObligationMapping, len(obligations))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.concurrency)
	for i, ob := range obligations {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = m.MapObligation(gctx, ob)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// MapBatch maps every obligation and keys the objectives by obligation ID.
// A failed obligation maps to an empty list.
func (m *ObligationMapper) MapBatch(ctx context.Context, obligations []contracts.Obligation) (map[string][]contracts.ControlObjective, error) {
	results, err := m.MapAll(ctx, obligations)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]contracts.ControlObjective, len(results))
	for _, r := range results {
		out[r.ObligationID] = r.Objectives
	}
	return out, nil
}
