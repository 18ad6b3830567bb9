package mapping

import (
	"context"
	"fmt"

	"github.com/Mindburn-Labs/controlgen/pkg/contracts"
	"github.com/Mindburn-Labs/controlgen/pkg/llm"
	"github.com/Mindburn-Labs/controlgen/pkg/observability"
	"github.com/Mindburn-Labs/controlgen/pkg/registry"
)

// VariantMapping is the outcome of choosing a variant for one objective.
type VariantMapping struct {
	ObjectiveID string
	Variant     *contracts.ControlVariant
	Created     bool
	Dropped     []string
	Err         error
}

// VariantMapper picks or mints the control variant implementing an
// objective for a company context.
type VariantMapper struct {
	llm      llm.Completer
	variants *registry.VariantRegistry
	opts     options
}

func NewVariantMapper(completer llm.Completer, variants *registry.VariantRegistry, opts ...Option) *VariantMapper {
	return &VariantMapper{
		llm:      completer,
		variants: variants,
		opts:     buildOptions("variant-mapper", opts),
	}
}

// MapToVariant returns the variant for obj, or false when the model gave
// nothing usable or the call failed.
func (m *VariantMapper) MapToVariant(ctx context.Context, obj contracts.ControlObjective, company contracts.CompanyContext, linkedObligationIDs []string) (*contracts.ControlVariant, bool) {
	r := m.MapObjective(ctx, obj, company, linkedObligationIDs)
	return r.Variant, r.Variant != nil
}

// MapObjective maps one objective and reports what happened.
func (m *VariantMapper) MapObjective(ctx context.Context, obj contracts.ControlObjective, company contracts.CompanyContext, linkedObligationIDs []string) VariantMapping {
	out := VariantMapping{ObjectiveID: obj.ObjectiveID}
	logger := m.opts.logger.With("objective_id", obj.ObjectiveID)

	ctx, done := m.opts.telemetry.TrackOperation(ctx, "map_variant",
		observability.AttrStage.String(observability.StageVariantMapping),
		observability.AttrObjectiveID.String(obj.ObjectiveID),
		observability.AttrDomain.String(obj.Domain),
	)
	defer func() { done(out.Err) }()

	existing := m.variants.ByDomain(obj.Domain)
	prompt, err := renderVariantPrompt(obj, company, existing)
	if err != nil {
		out.Err = err
		logger.ErrorContext(ctx, "variant prompt failed", "error", err)
		return out
	}

	var resp variantMappingResponse
	if err := m.llm.Complete(ctx, prompt, variantMappingSchema, &resp); err != nil {
		out.Err = err
		m.opts.telemetry.LLMFailure(ctx, observability.StageVariantMapping, err)
		logger.WarnContext(ctx, "variant mapping failed", "error", err)
		return out
	}

	defer func() {
		if n := len(out.Dropped); n > 0 {
			m.opts.telemetry.ReferencesDropped(ctx, "variants", n)
			logger.WarnContext(ctx, "dropped unknown variant ids",
				"ids", out.Dropped,
				"error", ErrUnresolvedReference,
			)
		}
	}()

	// Only the first match is considered; an unknown one falls through to
	// the new variants.
	if len(resp.MatchedVariantIDs) > 0 {
		if extra := resp.MatchedVariantIDs[1:]; len(extra) > 0 {
			logger.DebugContext(ctx, "ignoring additional variant matches", "ids", extra)
		}
		id := clean(resp.MatchedVariantIDs[0])
		if v, ok := m.variants.Get(id); ok {
			out.Variant = &v
			logger.InfoContext(ctx, "variant matched",
				"variant_id", v.VariantID,
				"existing_variants", len(existing),
				"obligations", len(linkedObligationIDs),
			)
			return out
		}
		out.Dropped = append(out.Dropped, id)
	}

	if len(resp.NewVariants) == 0 {
		logger.WarnContext(ctx, "model returned no usable variant")
		return out
	}

	v, err := m.register(ctx, resp.NewVariants[0], obj)
	if err != nil {
		logger.ErrorContext(ctx, "variant registration failed", "error", err)
		return out
	}
	out.Variant = &v
	out.Created = true
	logger.InfoContext(ctx, "variant created",
		"variant_id", v.VariantID,
		"size_variants", len(v.Variants),
		"obligations", len(linkedObligationIDs),
	)
	return out
}

func (m *VariantMapper) register(ctx context.Context, data newVariant, obj contracts.ControlObjective) (contracts.ControlVariant, error) {
	tiers := make([]contracts.SizeVariant, 0, len(data.Variants))
	for _, sv := range data.Variants {
		tiers = append(tiers, contracts.SizeVariant{
			VariantType:          clean(sv.VariantType),
			AppliesIf:            clean(sv.AppliesIf),
			DescriptionAdditions: clean(sv.DescriptionAdditions),
			EvidenceRequirements: cleanAll(sv.EvidenceRequirements),
			ReviewInterval:       clean(sv.ReviewInterval),
		})
	}

	jurisdictions := make(map[string][]string, len(data.JurisdictionRequirements))
	for code, reqs := range data.JurisdictionRequirements {
		jurisdictions[clean(code)] = cleanAll(reqs)
	}

	v, err := m.variants.Create(ctx, obj.ObjectiveID, func(id string) (contracts.ControlVariant, error) {
		return contracts.ControlVariant{
			VariantID:                id,
			ObjectiveID:              obj.ObjectiveID,
			Name:                     clean(data.Name),
			BaseDescription:          clean(data.BaseDescription),
			Domain:                   obj.Domain,
			Variants:                 tiers,
			JurisdictionRequirements: jurisdictions,
		}, nil
	})
	if err != nil {
		return contracts.ControlVariant{}, fmt.Errorf("create variant for %s: %w", obj.ObjectiveID, err)
	}
	m.opts.telemetry.VariantCreated(ctx, obj.Domain)
	return v, nil
}
