// Package controls turns a control variant into the company-specific
// control for one generation run, and records the provenance linking
// obligations, objectives, variants and controls.
package controls

import (
	"log/slog"
	"strings"

	"github.com/Mindburn-Labs/controlgen/pkg/compliance/applicability"
	"github.com/Mindburn-Labs/controlgen/pkg/contracts"
)

// DefaultReviewInterval applies when the selected tier names none.
const DefaultReviewInterval = "12 months"

// Builder selects the size tier of a variant that applies to a company and
// renders the final control. It has no state besides its logger.
type Builder struct {
	logger *slog.Logger
}

func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default().With("component", "control-builder")
	}
	return &Builder{logger: logger}
}

// SelectTier returns the first tier whose applies_if holds for the
// company. A condition that fails to parse or evaluate counts as false.
// With no match the first tier is used; with no tiers, false is returned.
func (b *Builder) SelectTier(variant contracts.ControlVariant, company contracts.CompanyContext) (contracts.SizeVariant, bool) {
	if len(variant.Variants) == 0 {
		return contracts.SizeVariant{}, false
	}
	employees := company.Employees()
	for _, tier := range variant.Variants {
		ok, err := applicability.ForEmployees(tier.AppliesIf, employees)
		if err != nil {
			b.logger.Debug("applies_if rejected",
				"variant_id", variant.VariantID,
				"variant_type", tier.VariantType,
				"applies_if", tier.AppliesIf,
				"error", err,
			)
			continue
		}
		if ok {
			return tier, true
		}
	}
	b.logger.Debug("no tier matched, using first",
		"variant_id", variant.VariantID,
		"employee_count", employees,
	)
	return variant.Variants[0], true
}

// Build renders the control for company. It returns false when the variant
// has no tiers.
func (b *Builder) Build(variant contracts.ControlVariant, company contracts.CompanyContext, linkedObligationIDs []string, impact string) (*contracts.Control, bool) {
	tier, ok := b.SelectTier(variant, company)
	if !ok {
		return nil, false
	}

	var desc strings.Builder
	desc.WriteString(variant.BaseDescription)
	if tier.DescriptionAdditions != "" {
		desc.WriteString("\n\n")
		desc.WriteString(tier.DescriptionAdditions)
	}
	if reqs := JurisdictionRequirements(variant, company.Jurisdictions); len(reqs) > 0 {
		desc.WriteString("\n\nJurisdiction-specific requirements:\n")
		for _, r := range reqs {
			desc.WriteString("- ")
			desc.WriteString(r)
			desc.WriteString("\n")
		}
	}

	var evidence *string
	if len(tier.EvidenceRequirements) > 0 {
		joined := strings.Join(tier.EvidenceRequirements, "; ")
		evidence = &joined
	}

	review := tier.ReviewInterval
	if review == "" {
		review = DefaultReviewInterval
	}

	return &contracts.Control{
		ControlID:           variant.VariantID + "-" + strings.ToUpper(tier.VariantType),
		Name:                variant.Name,
		Description:         desc.String(),
		LinkedObligationIDs: strings.Join(linkedObligationIDs, "; "),
		Domain:              variant.Domain,
		ExpectedEvidence:    evidence,
		ReviewInterval:      review,
		Impact:              impact,
	}, true
}

// JurisdictionRequirements returns the variant's requirements for the given
// jurisdictions, in jurisdiction order then declaration order.
func JurisdictionRequirements(variant contracts.ControlVariant, jurisdictions []string) []string {
	var out []string
	for _, j := range jurisdictions {
		out = append(out, variant.JurisdictionRequirements[j]...)
	}
	return out
}
