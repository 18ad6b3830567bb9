package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mindburn-Labs/controlgen/pkg/artifacts"
	"github.com/Mindburn-Labs/controlgen/pkg/compliance/controls"
	"github.com/Mindburn-Labs/controlgen/pkg/compliance/generation"
	"github.com/Mindburn-Labs/controlgen/pkg/compliance/mapping"
	"github.com/Mindburn-Labs/controlgen/pkg/compliance/obligations"
	"github.com/Mindburn-Labs/controlgen/pkg/config"
	"github.com/Mindburn-Labs/controlgen/pkg/contracts"
	"github.com/Mindburn-Labs/controlgen/pkg/llm"
	"github.com/Mindburn-Labs/controlgen/pkg/observability"
	"github.com/Mindburn-Labs/controlgen/pkg/registry"
	"github.com/Mindburn-Labs/controlgen/pkg/store"
)

// newLLMClient is a variable to allow mocking in tests.
var newLLMClient = func(cfg *config.Config) (llm.Client, error) {
	if cfg.OpenAIAPIKey == "" {
		return nil, errors.New("OPENAI_API_KEY is required")
	}
	var opts []llm.OpenAIOption
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, llm.WithBaseURL(cfg.OpenAIBaseURL))
	}
	return llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, opts...), nil
}

type generateSummary struct {
	Metadata   generation.RunMetadata `json:"metadata"`
	Artifact   string                 `json:"artifact"`
	Digest     string                 `json:"digest"`
	Canonical  string                 `json:"canonical_digest"`
	Controls   []string               `json:"control_ids"`
	Uncovered  []string               `json:"uncovered_obligation_ids"`
	DurationMS int64                  `json:"duration_ms"`
}

// runGenerateCmd implements `controlgen generate`.
//
// Exit codes:
//
//	0 = run published
//	1 = run failed
//	2 = usage or configuration error
func runGenerateCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("generate", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		obligationsPath string
		companyPath     string
		jsonOutput      bool
	)

	cmd.StringVar(&obligationsPath, "obligations", "", "Obligations register (.csv, .json, .yaml) (REQUIRED)")
	cmd.StringVar(&companyPath, "company", "", "Company profile YAML (default: built-in example company)")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the run summary as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if obligationsPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --obligations is required")
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: config: %v\n", err)
		return 2
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, stderr)
	slog.SetDefault(logger)

	obs, err := obligations.Load(obligationsPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	company := config.DefaultCompany()
	if companyPath != "" {
		if company, err = config.LoadCompanyProfile(companyPath); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}
	client, err := newLLMClient(cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := generate(ctx, cfg, logger, client, obs, company)
	if err != nil {
		logger.ErrorContext(ctx, "generation failed", "error", err)
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(summary, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
		return 0
	}

	m := summary.Metadata
	_, _ = fmt.Fprintf(stdout, "Generation %s complete in %dms\n", m.GenerationID, summary.DurationMS)
	_, _ = fmt.Fprintf(stdout, "Company:     %s (%s)\n", m.CompanyName, m.Industry)
	_, _ = fmt.Fprintf(stdout, "Obligations: %d\n", m.NumObligations)
	_, _ = fmt.Fprintf(stdout, "Objectives:  %d (%d new)\n", m.NumObjectives, m.NumNewObjectives)
	_, _ = fmt.Fprintf(stdout, "Controls:    %d (%d new variants)\n", m.NumControls, m.NumNewVariants)
	if m.NumDroppedReferences > 0 || m.NumLLMFailures > 0 {
		_, _ = fmt.Fprintf(stdout, "Dropped references: %d, LLM failures: %d\n", m.NumDroppedReferences, m.NumLLMFailures)
	}
	for _, id := range summary.Uncovered {
		_, _ = fmt.Fprintf(stdout, "  - uncovered: %s\n", id)
	}
	_, _ = fmt.Fprintf(stdout, "Output:      %s (%s)\n", summary.Artifact, summary.Digest)
	return 0
}

func generate(ctx context.Context, cfg *config.Config, logger *slog.Logger, client llm.Client, obs []contracts.Obligation, company contracts.CompanyContext) (*generateSummary, error) {
	start := time.Now()

	telemetry, err := observability.New(ctx, cfg.Observability(version))
	if err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	docs, closer, err := store.Open(ctx, cfg.Store())
	if err != nil {
		return nil, fmt.Errorf("open registry store: %w", err)
	}
	defer func() { _ = closer.Close() }()

	regOpts := append(cfg.RegistryOptions(), registry.WithLogger(logger.With("component", "registry")))
	objectives, err := registry.NewObjectiveRegistry(ctx, docs, regOpts...)
	if err != nil {
		return nil, err
	}
	variants, err := registry.NewVariantRegistry(ctx, docs, regOpts...)
	if err != nil {
		return nil, err
	}

	output, err := artifacts.NewStoreFromConfig(ctx, cfg.Artifacts())
	if err != nil {
		return nil, fmt.Errorf("open output store: %w", err)
	}
	if c, ok := output.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	limiter := llm.NewLimiter(cfg.LLMRateLimit)
	llmLogger := logger.With("component", "llm")
	stage1 := llm.NewStructuredCompleter(client,
		llm.WithTimeout(cfg.LLMTimeout),
		llm.WithMaxTokens(cfg.LLMMaxTokensStage1),
		llm.WithLimiter(limiter),
		llm.WithCompleterLogger(llmLogger),
	)
	stage2 := llm.NewStructuredCompleter(client,
		llm.WithTimeout(cfg.LLMTimeout),
		llm.WithMaxTokens(cfg.LLMMaxTokensStage2),
		llm.WithLimiter(limiter),
		llm.WithCompleterLogger(llmLogger),
	)

	gen := generation.NewGenerator(
		mapping.NewObligationMapper(stage1, objectives,
			mapping.WithLogger(logger.With("component", "obligation-mapper")),
			mapping.WithTelemetry(telemetry),
			mapping.WithConcurrency(cfg.GenerationWorkers),
		),
		mapping.NewVariantMapper(stage2, variants,
			mapping.WithLogger(logger.With("component", "variant-mapper")),
			mapping.WithTelemetry(telemetry),
		),
		controls.NewBuilder(logger.With("component", "control-builder")),
		generation.WithLogger(logger.With("component", "generator")),
		generation.WithTelemetry(telemetry),
		generation.WithConcurrency(cfg.GenerationWorkers),
	)

	res, err := gen.Generate(ctx, obs, company)
	if err != nil {
		return nil, err
	}

	out := res.Output()
	pub, err := generation.Publish(ctx, output, out)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "run output published",
		"generation_id", res.Metadata.GenerationID,
		"artifact", pub.Name,
		"digest", pub.Digest,
	)

	ids := make([]string, len(res.Controls))
	for i, c := range res.Controls {
		ids[i] = c.ControlID
	}
	return &generateSummary{
		Metadata:   res.Metadata,
		Artifact:   pub.Name,
		Digest:     pub.Digest,
		Canonical:  pub.CanonicalDigest,
		Controls:   ids,
		Uncovered:  out.Linkage.Graph.Uncovered,
		DurationMS: time.Since(start).Milliseconds(),
	}, nil
}
