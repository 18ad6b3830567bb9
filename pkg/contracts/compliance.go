package contracts

import (
	"fmt"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Size tiers a ControlVariant is expected to carry, one SizeVariant each.
const (
	TierStartup    = "startup"
	TierSME        = "sme"
	TierEnterprise = "enterprise"
)

// Obligation is a single legal or regulatory requirement, as loaded from an
// obligations register. Obligations are never mutated after loading.
type Obligation struct {
	ObligationID    string `json:"obligation_id" yaml:"obligation_id" validate:"required"`
	Text            string `json:"obligation" yaml:"obligation" validate:"required"`
	FrameworkSource string `json:"framework_source" yaml:"framework_source" validate:"required"`
	ClauseSource    string `json:"clause_source" yaml:"clause_source" validate:"required"`
	Domain          string `json:"domain,omitempty" yaml:"domain,omitempty"`
	Impact          string `json:"impact,omitempty" yaml:"impact,omitempty"`
}

// ControlObjective is a context-less statement of the capability that must
// exist. Several obligations may map to the same objective.
type ControlObjective struct {
	ObjectiveID string `json:"objective_id" validate:"required"`
	Name        string `json:"objective_name" validate:"required"`
	Description string `json:"description"`
	Domain      string `json:"domain" validate:"required"`
	Intent      string `json:"intent,omitempty"`
	// LinkedObligationIDs is set when the objective is created and is not
	// extended when later obligations match it. The per-run reverse index is
	// the authoritative linkage.
	LinkedObligationIDs []string `json:"linked_obligation_ids"`
	Rationale           string   `json:"rationale,omitempty"`
}

// SizeVariant is the implementation of a control for one company-size tier.
type SizeVariant struct {
	VariantType          string   `json:"variant_type"`
	AppliesIf            string   `json:"applies_if"`
	DescriptionAdditions string   `json:"description_additions"`
	EvidenceRequirements []string `json:"evidence_requirements"`
	ReviewInterval       string   `json:"review_interval"`
}

// ControlVariant bundles the size tiers and jurisdiction addenda of one
// reusable control implementation. The order of Variants is significant:
// tier selection picks the first one whose condition holds.
type ControlVariant struct {
	VariantID                string              `json:"variant_id" validate:"required"`
	ObjectiveID              string              `json:"objective_id" validate:"required"`
	Name                     string              `json:"variant_name"`
	BaseDescription          string              `json:"base_description"`
	Domain                   string              `json:"domain"`
	Variants                 []SizeVariant       `json:"variants"`
	JurisdictionRequirements map[string][]string `json:"jurisdiction_requirements"`
}

// JurisdictionCodes returns the jurisdiction keys in sorted order.
func (v *ControlVariant) JurisdictionCodes() []string {
	return sortedKeys(v.JurisdictionRequirements)
}

// CompanyContext describes the company controls are tailored for.
type CompanyContext struct {
	CompanyName        string   `json:"company_name" yaml:"company_name" validate:"required"`
	EmployeeCount      *int     `json:"employee_count" yaml:"employee_count" validate:"omitempty,min=0"`
	Industry           string   `json:"industry" yaml:"industry" validate:"required"`
	Jurisdictions      []string `json:"jurisdictions" yaml:"jurisdictions" validate:"dive,required"`
	RiskAppetite       string   `json:"risk_appetite,omitempty" yaml:"risk_appetite,omitempty"`
	ComplianceMaturity string   `json:"compliance_maturity,omitempty" yaml:"compliance_maturity,omitempty"`
}

// Employees returns the employee count, treating an unknown count as zero.
func (c CompanyContext) Employees() int {
	if c.EmployeeCount == nil {
		return 0
	}
	return *c.EmployeeCount
}

// Control is a company-specific control produced by one generation run.
// Controls are written to the run output only, never back into a registry.
type Control struct {
	ControlID           string  `json:"control_id"`
	Name                string  `json:"control_name"`
	Description         string  `json:"control_description"`
	LinkedObligationIDs string  `json:"linked_obligation_ids"`
	Domain              string  `json:"domain,omitempty"`
	ExpectedEvidence    *string `json:"expected_evidence"`
	ReviewInterval      string  `json:"review_interval,omitempty"`
	Impact              string  `json:"impact,omitempty"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks the required obligation fields.
func (o Obligation) Validate() error {
	if err := structValidator().Struct(o); err != nil {
		return fmt.Errorf("obligation %q: %w", o.ObligationID, err)
	}
	return nil
}

// Validate checks the required company context fields.
func (c CompanyContext) Validate() error {
	if err := structValidator().Struct(c); err != nil {
		return fmt.Errorf("company context %q: %w", c.CompanyName, err)
	}
	return nil
}

// Validate checks the identity fields of an objective.
func (o ControlObjective) Validate() error {
	if err := structValidator().Struct(o); err != nil {
		return fmt.Errorf("objective %q: %w", o.ObjectiveID, err)
	}
	return nil
}

// Validate checks the identity fields of a variant.
func (v ControlVariant) Validate() error {
	if err := structValidator().Struct(v); err != nil {
		return fmt.Errorf("variant %q: %w", v.VariantID, err)
	}
	return nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
