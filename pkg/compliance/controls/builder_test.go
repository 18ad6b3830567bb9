package controls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mindburn-Labs/controlgen/pkg/contracts"
)

func canonicalVariant() contracts.ControlVariant {
	return contracts.ControlVariant{
		VariantID:       "CV-TRANS-1",
		ObjectiveID:     "OBJ-TRANS-1",
		Name:            "Privacy notice management system",
		BaseDescription: "Establish and maintain privacy notices",
		Domain:          "Data protection",
		Variants: []contracts.SizeVariant{
			{VariantType: "startup", AppliesIf: "employee_count < 50", DescriptionAdditions: "Use templates", EvidenceRequirements: []string{"Notice"}, ReviewInterval: "12 months"},
			{VariantType: "sme", AppliesIf: "employee_count >= 50 and employee_count < 1000", DescriptionAdditions: "Notice registry", EvidenceRequirements: []string{"DMS export", "Approval logs"}, ReviewInterval: "6 months"},
			{VariantType: "enterprise", AppliesIf: "employee_count >= 1000", EvidenceRequirements: nil, ReviewInterval: ""},
		},
		JurisdictionRequirements: map[string][]string{
			"SE": {"Plain Swedish language", "Comply with IMY guidance"},
			"EU": {"Article 13 content"},
			"FR": {"CNIL guidance"},
		},
	}
}

func companyOf(employees *int, jurisdictions ...string) contracts.CompanyContext {
	return contracts.CompanyContext{CompanyName: "Acme", EmployeeCount: employees, Industry: "Tech", Jurisdictions: jurisdictions}
}

func intPtr(n int) *int { return &n }

func TestBuilder_SelectsTierByEmployees(t *testing.T) {
	b := NewBuilder(nil)
	cases := []struct {
		employees *int
		want      string
	}{
		{intPtr(10), "CV-TRANS-1-STARTUP"},
		{intPtr(49), "CV-TRANS-1-STARTUP"},
		{intPtr(50), "CV-TRANS-1-SME"},
		{intPtr(250), "CV-TRANS-1-SME"},
		{intPtr(999), "CV-TRANS-1-SME"},
		{intPtr(1000), "CV-TRANS-1-ENTERPRISE"},
		{nil, "CV-TRANS-1-STARTUP"},
	}
	for _, tc := range cases {
		c, ok := b.Build(canonicalVariant(), companyOf(tc.employees), []string{"OBL-1"}, "High")
		require.True(t, ok)
		assert.Equal(t, tc.want, c.ControlID)
	}
}

func TestBuilder_RendersControl(t *testing.T) {
	b := NewBuilder(nil)
	c, ok := b.Build(canonicalVariant(), companyOf(intPtr(250), "SE", "DE", "EU"), []string{"OBL-GDPR-2", "OBL-GDPR-5"}, "Elevated")
	require.True(t, ok)

	assert.Equal(t, "CV-TRANS-1-SME", c.ControlID)
	assert.Equal(t, "Privacy notice management system", c.Name)
	assert.Equal(t, "Establish and maintain privacy notices\n\nNotice registry"+
		"\n\nJurisdiction-specific requirements:\n"+
		"- Plain Swedish language\n- Comply with IMY guidance\n- Article 13 content\n", c.Description)
	require.NotNil(t, c.ExpectedEvidence)
	assert.Equal(t, "DMS export; Approval logs", *c.ExpectedEvidence)
	assert.Equal(t, "6 months", c.ReviewInterval)
	assert.Equal(t, "OBL-GDPR-2; OBL-GDPR-5", c.LinkedObligationIDs)
	assert.Equal(t, "Data protection", c.Domain)
	assert.Equal(t, "Elevated", c.Impact)
}

func TestBuilder_EmptyTierFields(t *testing.T) {
	b := NewBuilder(nil)
	c, ok := b.Build(canonicalVariant(), companyOf(intPtr(5000)), nil, DefaultImpact)
	require.True(t, ok)

	assert.Equal(t, "Establish and maintain privacy notices", c.Description)
	assert.Nil(t, c.ExpectedEvidence)
	assert.Equal(t, DefaultReviewInterval, c.ReviewInterval)
	assert.Empty(t, c.LinkedObligationIDs)
}

func TestBuilder_FallsBackToFirstTier(t *testing.T) {
	v := canonicalVariant()
	v.Variants = []contracts.SizeVariant{
		{VariantType: "custom", AppliesIf: "__import__('os').system('x')"},
		{VariantType: "never", AppliesIf: "employee_count < 0"},
		{VariantType: "broken", AppliesIf: ""},
	}
	tier, ok := NewBuilder(nil).SelectTier(v, companyOf(intPtr(10)))
	require.True(t, ok)
	assert.Equal(t, "custom", tier.VariantType)
}

func TestBuilder_SkipsInvalidConditions(t *testing.T) {
	v := canonicalVariant()
	v.Variants = append([]contracts.SizeVariant{{VariantType: "bad", AppliesIf: "revenue > 5"}}, v.Variants...)

	tier, ok := NewBuilder(nil).SelectTier(v, companyOf(intPtr(10)))
	require.True(t, ok)
	assert.Equal(t, "startup", tier.VariantType)
}

func TestBuilder_NoTiers(t *testing.T) {
	v := canonicalVariant()
	v.Variants = nil

	c, ok := NewBuilder(nil).Build(v, companyOf(intPtr(10)), nil, "")
	assert.False(t, ok)
	assert.Nil(t, c)
}

func TestJurisdictionRequirements_Order(t *testing.T) {
	got := JurisdictionRequirements(canonicalVariant(), []string{"FR", "SE", "US"})
	assert.Equal(t, []string{"CNIL guidance", "Plain Swedish language", "Comply with IMY guidance"}, got)
	assert.Empty(t, JurisdictionRequirements(canonicalVariant(), nil))
}

func TestHighestImpact(t *testing.T) {
	obligations := map[string]contracts.Obligation{
		"A": {ObligationID: "A", Impact: "Low"},
		"B": {ObligationID: "B", Impact: "elevated"},
		"C": {ObligationID: "C", Impact: "Critical"},
		"D": {ObligationID: "D"},
		"E": {ObligationID: "E", Impact: "Severe-ish"},
	}
	assert.Equal(t, "elevated", HighestImpact([]string{"A", "B"}, obligations))
	assert.Equal(t, "Critical", HighestImpact([]string{"A", "C", "B"}, obligations))
	assert.Equal(t, "Low", HighestImpact([]string{"E", "A"}, obligations))
	assert.Equal(t, "Severe-ish", HighestImpact([]string{"E", "D"}, obligations))
	assert.Equal(t, DefaultImpact, HighestImpact([]string{"D", "missing"}, obligations))
	assert.Equal(t, DefaultImpact, HighestImpact(nil, obligations))
}
