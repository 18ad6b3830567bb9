package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/Mindburn-Labs/controlgen/pkg/config"
	"github.com/Mindburn-Labs/controlgen/pkg/contracts"
	"github.com/Mindburn-Labs/controlgen/pkg/registry"
	"github.com/Mindburn-Labs/controlgen/pkg/store"
)

type registryStats struct {
	Objectives registry.ObjectiveStats `json:"objectives"`
	Variants   registry.VariantStats   `json:"variants"`
}

// runRegistryCmd implements `controlgen registry <stats|objectives|variants>`.
func runRegistryCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stderr, "Usage: controlgen registry <stats|objectives|variants> [flags]")
		return 2
	}

	cmd := flag.NewFlagSet("registry "+args[0], flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		domain      string
		objectiveID string
		jsonOutput  bool
	)
	cmd.BoolVar(&jsonOutput, "json", false, "Output as JSON")
	switch args[0] {
	case "stats":
	case "objectives":
		cmd.StringVar(&domain, "domain", "", "Only objectives in this domain")
	case "variants":
		cmd.StringVar(&domain, "domain", "", "Only variants in this domain")
		cmd.StringVar(&objectiveID, "objective", "", "Only variants implementing this objective")
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown registry subcommand: %s\n", args[0])
		return 2
	}
	if err := cmd.Parse(args[1:]); err != nil {
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: config: %v\n", err)
		return 2
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, stderr)

	ctx := context.Background()
	docs, closer, err := store.Open(ctx, cfg.Store())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: open registry store: %v\n", err)
		return 1
	}
	defer func() { _ = closer.Close() }()

	opts := append(cfg.RegistryOptions(), registry.WithLogger(logger.With("component", "registry")))
	objectives, err := registry.NewObjectiveRegistry(ctx, docs, opts...)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	variants, err := registry.NewVariantRegistry(ctx, docs, opts...)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	switch args[0] {
	case "stats":
		stats := registryStats{Objectives: objectives.Stats(), Variants: variants.Stats()}
		if jsonOutput {
			return writeJSON(stdout, stats)
		}
		_, _ = fmt.Fprintf(stdout, "Objectives: %d across %d domains\n", stats.Objectives.TotalObjectives, stats.Objectives.DomainCount)
		_, _ = fmt.Fprintf(stdout, "Variants:   %d for %d objectives across %d domains\n",
			stats.Variants.TotalVariants, stats.Variants.ObjectiveCount, stats.Variants.DomainCount)
		if len(stats.Objectives.Domains) > 0 {
			_, _ = fmt.Fprintf(stdout, "Domains:    %s\n", strings.Join(stats.Objectives.Domains, ", "))
		}
	case "objectives":
		list := objectives.All()
		if domain != "" {
			list = objectives.ByDomain(domain)
		}
		if jsonOutput {
			return writeJSON(stdout, list)
		}
		for _, o := range list {
			_, _ = fmt.Fprintf(stdout, "%-28s %-24s %s\n", o.ObjectiveID, o.Domain, o.Name)
		}
	case "variants":
		list := selectVariants(variants, domain, objectiveID)
		if jsonOutput {
			return writeJSON(stdout, list)
		}
		for _, v := range list {
			tiers := make([]string, len(v.Variants))
			for i, t := range v.Variants {
				tiers[i] = t.VariantType
			}
			_, _ = fmt.Fprintf(stdout, "%-28s %-24s %s [%s]\n", v.VariantID, v.ObjectiveID, v.Name, strings.Join(tiers, ", "))
		}
	}
	return 0
}

func selectVariants(r *registry.VariantRegistry, domain, objectiveID string) []contracts.ControlVariant {
	var list []contracts.ControlVariant
	switch {
	case objectiveID != "":
		list = r.ByObjective(objectiveID)
	case domain != "":
		return r.ByDomain(domain)
	default:
		return r.All()
	}
	if domain == "" {
		return list
	}
	out := list[:0]
	for _, v := range list {
		if v.Domain == domain {
			out = append(out, v)
		}
	}
	return out
}

func writeJSON(w io.Writer, v any) int {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		_, _ = fmt.Fprintf(w, "Error: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(w, string(data))
	return 0
}
