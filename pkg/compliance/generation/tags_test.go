package generation

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Mindburn-Labs/controlgen/pkg/contracts"
)

func TestTraceTags(t *testing.T) {
	obligations := []contracts.Obligation{
		{FrameworkSource: "GDPR (EU) 2016/679", Domain: "Data protection"},
		{FrameworkSource: "DORA Regulation", Domain: "ICT Risk Management"},
		{FrameworkSource: "GDPR art 30", Domain: "Data protection"},
		{FrameworkSource: "  ", Domain: ""},
	}
	cases := []struct {
		employees *int
		want      string
	}{
		{intPtr(10), "startup"},
		{intPtr(50), "sme"},
		{intPtr(999), "sme"},
		{intPtr(1000), "enterprise"},
	}
	for _, tc := range cases {
		c := contracts.CompanyContext{EmployeeCount: tc.employees, Industry: "FinTech"}
		assert.Equal(t, []string{
			"control-generation", "llm-driven", "gdpr", "dora",
			"data-protection", "ict-risk-management", tc.want, "fintech",
		}, TraceTags(obligations, c))
	}

	none := TraceTags(nil, contracts.CompanyContext{EmployeeCount: intPtr(0)})
	assert.Equal(t, []string{"control-generation", "llm-driven"}, none)
}

func TestNewGenerationID(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	a, b := NewGenerationID(ts), NewGenerationID(ts)
	re := regexp.MustCompile(`^gen_20250102_030405_[0-9a-f]{6}$`)
	assert.Regexp(t, re, a)
	assert.Regexp(t, re, b)
	assert.NotEqual(t, a, b)
}

func intPtr(n int) *int { return &n }
