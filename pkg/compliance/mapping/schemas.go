package mapping

import "github.com/Mindburn-Labs/controlgen/pkg/llm"

type newObjective struct {
	Name        string `json:"objective_name"`
	Description string `json:"description"`
	Domain      string `json:"domain"`
	Intent      string `json:"intent"`
	Rationale   string `json:"rationale"`
}

type obligationMappingResponse struct {
	Analysis            string         `json:"analysis"`
	MatchedObjectiveIDs []string       `json:"matched_objective_ids"`
	NewObjectives       []newObjective `json:"new_objectives"`
	Reasoning           string         `json:"reasoning"`
}

type newSizeVariant struct {
	VariantType          string   `json:"variant_type"`
	AppliesIf            string   `json:"applies_if"`
	DescriptionAdditions string   `json:"description_additions"`
	EvidenceRequirements []string `json:"evidence_requirements"`
	ReviewInterval       string   `json:"review_interval"`
}

type newVariant struct {
	Name                     string              `json:"variant_name"`
	BaseDescription          string              `json:"base_description"`
	Variants                 []newSizeVariant    `json:"variants"`
	JurisdictionRequirements map[string][]string `json:"jurisdiction_requirements"`
}

type variantMappingResponse struct {
	Analysis          string       `json:"analysis"`
	MatchedVariantIDs []string     `json:"matched_variant_ids"`
	NewVariants       []newVariant `json:"new_variants"`
	Reasoning         string       `json:"reasoning"`
}

var obligationMappingSchema = llm.MustCompileSchema("obligation_mapping", `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["matched_objective_ids", "new_objectives"],
  "properties": {
    "analysis": {"type": "string"},
    "matched_objective_ids": {"type": "array", "items": {"type": "string"}},
    "new_objectives": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["objective_name", "description"],
        "properties": {
          "objective_name": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "domain": {"type": "string"},
          "intent": {"type": "string"},
          "rationale": {"type": "string"}
        }
      }
    },
    "reasoning": {"type": "string"}
  }
}`)

var variantMappingSchema = llm.MustCompileSchema("variant_mapping", `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["matched_variant_ids", "new_variants"],
  "properties": {
    "analysis": {"type": "string"},
    "matched_variant_ids": {"type": "array", "items": {"type": "string"}},
    "new_variants": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["variant_name", "base_description", "variants"],
        "properties": {
          "variant_name": {"type": "string", "minLength": 1},
          "base_description": {"type": "string"},
          "variants": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["variant_type", "applies_if"],
              "properties": {
                "variant_type": {"type": "string", "minLength": 1},
                "applies_if": {"type": "string"},
                "description_additions": {"type": "string"},
                "evidence_requirements": {"type": "array", "items": {"type": "string"}},
                "review_interval": {"type": "string"}
              }
            }
          },
          "jurisdiction_requirements": {
            "type": "object",
            "additionalProperties": {"type": "array", "items": {"type": "string"}}
          }
        }
      }
    },
    "reasoning": {"type": "string"}
  }
}`)
