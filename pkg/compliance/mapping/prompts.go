package mapping

import (
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/Mindburn-Labs/controlgen/pkg/contracts"
)

// Prompts embed JSON examples, so templates use << >> delimiters.
func mustTemplate(name, text string) *template.Template {
	return template.Must(template.New(name).Delims("<<", ">>").Parse(text))
}

const catalogDescriptionLimit = 150

var obligationPrompt = mustTemplate("obligation", `You are a compliance expert mapping legal obligations to control objectives.

CONTROL OBJECTIVES are context-less semantic abstractions that describe what operational capability needs to exist. They are reusable across different companies and contexts.

EXISTING OBJECTIVES REGISTRY:
<<.Catalog>>

OBLIGATION TO MAP:
ID: <<.Obligation.ObligationID>>
Text: <<.Obligation.Text>>
Framework: <<.Obligation.FrameworkSource>>
Domain: <<with .Obligation.Domain>><<.>><<else>>Not specified<<end>>

YOUR TASK:
1. Analyze what this obligation semantically requires (what capability must exist to satisfy it)
2. Check if any EXISTING objectives already cover this requirement
   - An obligation can map to MULTIPLE existing objectives (common for complex obligations)
   - Match if the semantic intent aligns, even if wording differs
   - Be generous with matching - better to reuse existing objectives than create duplicates
3. If NO existing objective covers a requirement, generate a NEW objective
   - Make it reusable (context-less, focused on capability not specific obligation)
   - Ensure it's distinct from existing objectives
   - Only create new if truly necessary

OUTPUT FORMAT (JSON):
{
  "analysis": "Brief analysis of what this obligation requires (2-3 sentences)",
  "matched_objective_ids": ["OBJ-XXX-1", "OBJ-YYY-2"],  // Array of IDs that match (empty if none)
  "new_objectives": [  // Array of new objectives to create (empty if none needed)
    {
      "objective_name": "Clear, reusable name",
      "description": "What systematic capability this establishes",
      "domain": "<<with .Obligation.Domain>><<.>><<else>>General<<end>>",
      "intent": "Why this objective matters from control perspective",
      "rationale": "Why this is needed as a separate objective (not covered by existing)"
    }
  ],
  "reasoning": "Explain your matching and generation decisions (2-3 sentences)"
}

Important Guidelines:
- Be conservative about creating new objectives. Only create when existing truly don't fit.
- Focus on the semantic INTENT of the obligation, not literal word matching
- If obligation touches multiple areas, map to multiple objectives
- Ensure new objectives are reusable for similar obligations from other frameworks
`)

var variantPrompt = mustTemplate("variant", `You are a compliance expert mapping control objectives to implementation variants.

CONTROL VARIANTS are context-specific implementations of control objectives. They contain:
- Multiple size-specific variants (startup/SME/enterprise) with different implementation approaches
- Jurisdiction-specific requirements that apply to certain regions

EXISTING VARIANTS REGISTRY:
<<.Catalog>>

CONTROL OBJECTIVE TO IMPLEMENT:
ID: <<.Objective.ObjectiveID>>
Name: <<.Objective.Name>>
Description: <<.Objective.Description>>
Intent: <<.Objective.Intent>>
Domain: <<.Objective.Domain>>

COMPANY CONTEXT:
- Employee Count: <<.EmployeeCount>>
- Industry: <<.Company.Industry>>
- Jurisdictions: <<.Jurisdictions>>
- Risk Appetite: <<.Company.RiskAppetite>>
- Compliance Maturity: <<.Company.ComplianceMaturity>>

YOUR TASK:
1. Analyze what implementation variant(s) would fulfill this objective for this company context
2. Check if any EXISTING variants already provide appropriate implementation
   - Match if the variant's approach and size variants fit the objective + context
   - Be generous with matching - better to reuse existing variants
3. If NO existing variant fits, generate a NEW control variant
   - Must include variants for different company sizes (startup <50, SME 50-1000, enterprise 1000+)
   - Must include jurisdiction-specific requirements for company's jurisdictions
   - Make it reusable for similar contexts

OUTPUT FORMAT (JSON):
{
  "analysis": "Brief analysis of what implementation is needed (2-3 sentences)",
  "matched_variant_ids": ["CV-XXX-1"],  // Array with ONE ID if match found, empty if no match
  "new_variants": [  // Array with ONE new variant if needed, empty if matched existing
    {
      "variant_name": "Descriptive implementation name",
      "base_description": "Core control description explaining what this control does",
      "variants": [
        {
          "variant_type": "startup",
          "applies_if": "employee_count < 50",
          "description_additions": "Lightweight approach suitable for startups...",
          "evidence_requirements": ["Policy document", "Training records", "..."],
          "review_interval": "12 months"
        },
        {
          "variant_type": "sme",
          "applies_if": "employee_count >= 50 and employee_count < 1000",
          "description_additions": "More structured approach for SMEs...",
          "evidence_requirements": ["Policy document", "Training records", "Process documentation", "..."],
          "review_interval": "6 months"
        },
        {
          "variant_type": "enterprise",
          "applies_if": "employee_count >= 1000",
          "description_additions": "Comprehensive approach for enterprises...",
          "evidence_requirements": ["Policy document", "Training records", "Process documentation", "Audit reports", "..."],
          "review_interval": "3 months"
        }
      ],
      "jurisdiction_requirements": {
<<.JurisdictionTemplate>>
      }
    }
  ],
  "reasoning": "Explain your matching or generation decision (2-3 sentences)"
}

Important Guidelines:
- Be conservative about creating new variants. Only create when existing truly don't fit.
- If you create a new variant, you MUST include all three size variants (startup/SME/enterprise)
- Jurisdiction requirements should be specific to that jurisdiction's unique requirements
- The base_description should explain what the control achieves (the "what")
- The variant description_additions explain how it's implemented for that company size
`)

func renderObligationPrompt(ob contracts.Obligation, existing []contracts.ControlObjective) (string, error) {
	var b strings.Builder
	err := obligationPrompt.Execute(&b, struct {
		Catalog    string
		Obligation contracts.Obligation
	}{
		Catalog:    objectiveCatalog(existing),
		Obligation: ob,
	})
	if err != nil {
		return "", fmt.Errorf("render obligation prompt: %w", err)
	}
	return b.String(), nil
}

func renderVariantPrompt(obj contracts.ControlObjective, company contracts.CompanyContext, existing []contracts.ControlVariant) (string, error) {
	employees := "Not specified"
	if company.EmployeeCount != nil {
		employees = strconv.Itoa(*company.EmployeeCount)
	}

	var b strings.Builder
	err := variantPrompt.Execute(&b, struct {
		Catalog              string
		Objective            contracts.ControlObjective
		Company              contracts.CompanyContext
		EmployeeCount        string
		Jurisdictions        string
		JurisdictionTemplate string
	}{
		Catalog:              variantCatalog(existing),
		Objective:            obj,
		Company:              company,
		EmployeeCount:        employees,
		Jurisdictions:        strings.Join(company.Jurisdictions, ", "),
		JurisdictionTemplate: jurisdictionTemplate(company.Jurisdictions),
	})
	if err != nil {
		return "", fmt.Errorf("render variant prompt: %w", err)
	}
	return b.String(), nil
}

func objectiveCatalog(objectives []contracts.ControlObjective) string {
	if len(objectives) == 0 {
		return "No existing objectives yet."
	}
	lines := make([]string, 0, len(objectives)*6)
	for _, o := range objectives {
		lines = append(lines,
			"ID: "+o.ObjectiveID,
			"Name: "+o.Name,
			"Description: "+o.Description,
			"Domain: "+o.Domain,
			"Intent: "+o.Intent,
			"",
		)
	}
	return strings.Join(lines, "\n")
}

func variantCatalog(variants []contracts.ControlVariant) string {
	if len(variants) == 0 {
		return "No existing variants in this domain yet."
	}
	lines := make([]string, 0, len(variants)*7)
	for _, v := range variants {
		lines = append(lines,
			"ID: "+v.VariantID,
			"Objective: "+v.ObjectiveID,
			"Name: "+v.Name,
			"Description: "+truncateRunes(v.BaseDescription, catalogDescriptionLimit)+"...",
			fmt.Sprintf("Size Variants: %d", len(v.Variants)),
			"Jurisdictions: "+strings.Join(v.JurisdictionCodes(), ", "),
			"",
		)
	}
	return strings.Join(lines, "\n")
}

func jurisdictionTemplate(jurisdictions []string) string {
	if len(jurisdictions) == 0 {
		return `        "EU": ["Example requirement"]`
	}
	lines := make([]string, len(jurisdictions))
	for i, j := range jurisdictions {
		lines[i] = fmt.Sprintf(`        %q: ["Jurisdiction-specific requirement 1", "Requirement 2", "..."]`, j)
	}
	return strings.Join(lines, ",\n")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
