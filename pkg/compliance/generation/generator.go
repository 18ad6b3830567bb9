// Package generation orchestrates a control generation run: obligations
// are mapped to control objectives, each distinct objective is mapped to
// a control variant for the company, and each variant is rendered into the
// company's control.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Mindburn-Labs/controlgen/pkg/compliance/controls"
	"github.com/Mindburn-Labs/controlgen/pkg/compliance/mapping"
	"github.com/Mindburn-Labs/controlgen/pkg/contracts"
	"github.com/Mindburn-Labs/controlgen/pkg/observability"
)

// GenerationMethod labels run outputs produced by this pipeline.
const GenerationMethod = "objectives_variants"

// Generator runs both stages. It is safe for concurrent use as long as the
// registries behind its mappers are.
type Generator struct {
	obligations *mapping.ObligationMapper
	variants    *mapping.VariantMapper
	builder     *controls.Builder

	logger      *slog.Logger
	telemetry   *observability.Provider
	concurrency int
	now         func() time.Time
	newID       func(time.Time) string
}

type Option func(*Generator)

func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

func WithTelemetry(p *observability.Provider) Option {
	return func(g *Generator) { g.telemetry = p }
}

// WithConcurrency bounds how many objectives stage 2 maps at once.
func WithConcurrency(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithGenerationIDs replaces the generation ID scheme.
func WithGenerationIDs(fn func(time.Time) string) Option {
	return func(g *Generator) { g.newID = fn }
}

func NewGenerator(obligations *mapping.ObligationMapper, variants *mapping.VariantMapper, builder *controls.Builder, opts ...Option) *Generator {
	g := &Generator{
		obligations: obligations,
		variants:    variants,
		builder:     builder,
		concurrency: 1,
		now:         time.Now,
		newID:       NewGenerationID,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = slog.Default().With("component", "generator")
	}
	if g.telemetry == nil {
		g.telemetry = observability.Noop()
	}
	if g.builder == nil {
		g.builder = controls.NewBuilder(g.logger)
	}
	return g
}

// NewGenerationID returns gen_YYYYMMDD_HHMMSS_<6 hex>.
func NewGenerationID(t time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("gen_%s_%s", t.Format("20060102_150405"), suffix)
}

// objectiveOutcome is the stage 2 result for one objective.
type objectiveOutcome struct {
	variant *contracts.ControlVariant
	created bool
	dropped int
	failed  bool
	control *contracts.Control
}

// Generate runs both stages for company. Per-item LLM failures are
// contained and reflected in the result counts; only an invalid company
// context or context cancellation fail the run.
func (g *Generator) Generate(ctx context.Context, obligations []contracts.Obligation, company contracts.CompanyContext) (result *Result, err error) {
	if err := company.Validate(); err != nil {
		return nil, err
	}

	startedAt := g.now()
	generationID := g.newID(startedAt)
	logger := g.logger.With("generation_id", generationID)

	ctx, done := g.telemetry.TrackOperation(ctx, "generate_controls",
		observability.AttrGenerationID.String(generationID),
	)
	defer func() { done(err) }()

	tags := TraceTags(obligations, company)
	logger.InfoContext(ctx, "generation started",
		"obligations", len(obligations),
		"company", company.CompanyName,
		"employee_count", company.Employees(),
		"jurisdictions", company.Jurisdictions,
		"tags", tags,
	)

	meta := RunMetadata{
		GenerationID:       generationID,
		GeneratedAt:        startedAt,
		CompanyName:        company.CompanyName,
		EmployeeCount:      company.EmployeeCount,
		Industry:           company.Industry,
		Jurisdictions:      append([]string{}, company.Jurisdictions...),
		RiskAppetite:       company.RiskAppetite,
		ComplianceMaturity: company.ComplianceMaturity,
		NumObligations:     len(obligations),
		GenerationMethod:   GenerationMethod,
		TraceTags:          tags,
	}

	// Stage 1.
	stage1Ctx, stage1Done := g.telemetry.TrackOperation(ctx, "stage_1_map_obligations",
		observability.AttrStage.String(observability.StageObligationMapping),
	)
	mappings, err := g.obligations.MapAll(stage1Ctx, obligations)
	stage1Done(err)
	if err != nil {
		return nil, fmt.Errorf("stage 1: %w", err)
	}

	obligationObjectives := make(map[string][]contracts.ControlObjective, len(mappings))
	objectiveObligations := make(map[string][]string)
	var unique []contracts.ControlObjective
	for _, m := range mappings {
		obligationObjectives[m.ObligationID] = m.Objectives
		meta.NumNewObjectives += m.Created
		meta.NumDroppedReferences += len(m.Dropped)
		if m.Err != nil {
			meta.NumLLMFailures++
		}
		for _, obj := range m.Objectives {
			if _, seen := objectiveObligations[obj.ObjectiveID]; !seen {
				unique = append(unique, obj)
			}
			objectiveObligations[obj.ObjectiveID] = appendUnique(objectiveObligations[obj.ObjectiveID], m.ObligationID)
		}
	}
	meta.NumObjectives = len(unique)
	logger.InfoContext(ctx, "stage 1 complete",
		"obligations", len(obligations),
		"unique_objectives", len(unique),
		"new_objectives", meta.NumNewObjectives,
	)

	// Stage 2.
	byID := make(map[string]contracts.Obligation, len(obligations))
	for _, ob := range obligations {
		byID[ob.ObligationID] = ob
	}

	outcomes := make([]objectiveOutcome, len(unique))
	stage2Ctx, stage2Done := g.telemetry.TrackOperation(ctx, "stage_2_map_objectives",
		observability.AttrStage.String(observability.StageVariantMapping),
	)
	eg, egCtx := errgroup.WithContext(stage2Ctx)
	eg.SetLimit(g.concurrency)
	for i, obj := range unique {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			outcomes[i] = g.implement(egCtx, logger, obj, company, objectiveObligations[obj.ObjectiveID], byID)
			return nil
		})
	}
	err = eg.Wait()
	stage2Done(err)
	if err != nil {
		return nil, fmt.Errorf("stage 2: %w", err)
	}

	graph := controls.NewProvenanceGraph()
	for _, ob := range obligations {
		if err := graph.AddObligation(ob); err != nil {
			return nil, fmt.Errorf("provenance: %w", err)
		}
	}
	out := make([]contracts.Control, 0, len(unique))
	for i, obj := range unique {
		o := outcomes[i]
		meta.NumDroppedReferences += o.dropped
		if o.created {
			meta.NumNewVariants++
		}
		if o.failed {
			meta.NumLLMFailures++
		}
		if err := g.record(graph, obj, objectiveObligations[obj.ObjectiveID], o); err != nil {
			return nil, fmt.Errorf("provenance: %w", err)
		}
		if o.control != nil {
			out = append(out, *o.control)
		}
	}
	meta.NumControls = len(out)

	logger.InfoContext(ctx, "generation complete",
		"obligations", meta.NumObligations,
		"objectives", meta.NumObjectives,
		"controls", meta.NumControls,
		"new_objectives", meta.NumNewObjectives,
		"new_variants", meta.NumNewVariants,
		"dropped_references", meta.NumDroppedReferences,
		"llm_failures", meta.NumLLMFailures,
	)

	return &Result{
		Metadata:             meta,
		Controls:             out,
		Objectives:           unique,
		ObligationObjectives: obligationObjectives,
		ObjectiveObligations: objectiveObligations,
		Provenance:           graph,
	}, nil
}

// implement maps one objective to a variant and renders its control.
func (g *Generator) implement(ctx context.Context, logger *slog.Logger, obj contracts.ControlObjective, company contracts.CompanyContext, linked []string, obligations map[string]contracts.Obligation) objectiveOutcome {
	vm := g.variants.MapObjective(ctx, obj, company, linked)
	o := objectiveOutcome{
		variant: vm.Variant,
		created: vm.Created,
		dropped: len(vm.Dropped),
		failed:  vm.Err != nil,
	}
	if vm.Variant == nil {
		logger.WarnContext(ctx, "no variant for objective", "objective_id", obj.ObjectiveID)
		return o
	}

	impact := controls.HighestImpact(linked, obligations)
	control, ok := g.builder.Build(*vm.Variant, company, linked, impact)
	if !ok {
		logger.WarnContext(ctx, "variant has no size tiers",
			"objective_id", obj.ObjectiveID,
			"variant_id", vm.Variant.VariantID,
		)
		return o
	}
	observability.AddSpanEvent(ctx, "control_built",
		observability.AttrObjectiveID.String(obj.ObjectiveID),
		observability.AttrVariantID.String(vm.Variant.VariantID),
	)
	logger.InfoContext(ctx, "control generated",
		"control_id", control.ControlID,
		"objective_id", obj.ObjectiveID,
	)
	o.control = control
	return o
}

func (g *Generator) record(graph *controls.ProvenanceGraph, obj contracts.ControlObjective, linked []string, o objectiveOutcome) error {
	if err := graph.AddObjective(obj); err != nil {
		return err
	}
	for _, id := range linked {
		if err := graph.Link(controls.EdgeMapsTo, id, obj.ObjectiveID); err != nil {
			return err
		}
	}
	if o.variant == nil {
		return nil
	}
	if err := graph.AddVariant(*o.variant); err != nil {
		return err
	}
	if err := graph.Link(controls.EdgeImplementedBy, obj.ObjectiveID, o.variant.VariantID); err != nil {
		return err
	}
	if o.control == nil {
		return nil
	}
	if err := graph.AddControl(*o.control); err != nil {
		return err
	}
	if err := graph.Link(controls.EdgeInstantiatedAs, o.variant.VariantID, o.control.ControlID); err != nil {
		return err
	}
	for _, id := range linked {
		if err := graph.Link(controls.EdgeSatisfies, o.control.ControlID, id); err != nil {
			return err
		}
	}
	return nil
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
