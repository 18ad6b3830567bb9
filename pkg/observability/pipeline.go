package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys attached to pipeline spans and counters.
var (
	AttrOperation    = attribute.Key("controlgen.operation")
	AttrGenerationID = attribute.Key("controlgen.generation_id")
	AttrStage        = attribute.Key("controlgen.stage")
	AttrObligationID = attribute.Key("controlgen.obligation_id")
	AttrObjectiveID  = attribute.Key("controlgen.objective_id")
	AttrVariantID    = attribute.Key("controlgen.variant_id")
	AttrDomain       = attribute.Key("controlgen.domain")
	AttrRegistry     = attribute.Key("controlgen.registry")
)

// Stage values for AttrStage.
const (
	StageObligationMapping = "obligation_mapping"
	StageVariantMapping    = "variant_mapping"
	StageControlBuild      = "control_build"
)

type pipelineCounters struct {
	objectivesCreated metric.Int64Counter
	variantsCreated   metric.Int64Counter
	droppedRefs       metric.Int64Counter
	llmFailures       metric.Int64Counter
}

func (p *Provider) initPipelineCounters() error {
	var err error
	c := &p.pipeline

	if c.objectivesCreated, err = p.meter.Int64Counter("controlgen.objectives.created",
		metric.WithDescription("Control objectives minted into the registry"),
		metric.WithUnit("{objective}"),
	); err != nil {
		return err
	}
	if c.variantsCreated, err = p.meter.Int64Counter("controlgen.variants.created",
		metric.WithDescription("Control variants minted into the registry"),
		metric.WithUnit("{variant}"),
	); err != nil {
		return err
	}
	if c.droppedRefs, err = p.meter.Int64Counter("controlgen.references.dropped",
		metric.WithDescription("Registry IDs returned by the model that did not resolve"),
		metric.WithUnit("{reference}"),
	); err != nil {
		return err
	}
	c.llmFailures, err = p.meter.Int64Counter("controlgen.llm.failures",
		metric.WithDescription("Structured completions that failed or returned invalid output"),
		metric.WithUnit("{call}"),
	)
	return err
}

func add(ctx context.Context, c metric.Int64Counter, n int64, attrs ...attribute.KeyValue) {
	if c != nil && n != 0 {
		c.Add(ctx, n, metric.WithAttributes(attrs...))
	}
}

func (p *Provider) ObjectiveCreated(ctx context.Context, domain string) {
	add(ctx, p.pipeline.objectivesCreated, 1, AttrDomain.String(domain))
}

func (p *Provider) VariantCreated(ctx context.Context, domain string) {
	add(ctx, p.pipeline.variantsCreated, 1, AttrDomain.String(domain))
}

// ReferencesDropped counts model-supplied IDs missing from registry.
func (p *Provider) ReferencesDropped(ctx context.Context, registry string, n int) {
	add(ctx, p.pipeline.droppedRefs, int64(n), AttrRegistry.String(registry))
}

func (p *Provider) LLMFailure(ctx context.Context, stage string, err error) {
	add(ctx, p.pipeline.llmFailures, 1, AttrStage.String(stage))
	if err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
	}
}

// AddSpanEvent adds an event to the current span.
func AddSpanEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// Noop returns a Provider with no instruments. Spans still go to the
// global tracer, which is a no-op until one is installed.
func Noop() *Provider {
	return &Provider{
		config: DefaultConfig(),
		logger: slog.Default().With("component", "observability"),
	}
}
