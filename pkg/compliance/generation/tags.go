package generation

import (
	"strings"

	"github.com/Mindburn-Labs/controlgen/pkg/contracts"
)

// TraceTags labels a run for filtering: fixed pipeline tags, the first word
// of each framework, each domain, the company size tier and industry.
// Duplicates are dropped, first occurrence wins.
func TraceTags(obligations []contracts.Obligation, company contracts.CompanyContext) []string {
	tags := []string{"control-generation", "llm-driven"}
	seen := map[string]bool{"control-generation": true, "llm-driven": true}
	add := func(tag string) {
		if tag != "" && !seen[tag] {
			seen[tag] = true
			tags = append(tags, tag)
		}
	}

	for _, ob := range obligations {
		if fields := strings.Fields(ob.FrameworkSource); len(fields) > 0 {
			add(strings.ToLower(fields[0]))
		}
	}
	for _, ob := range obligations {
		add(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(ob.Domain)), " ", "-"))
	}

	switch n := company.Employees(); {
	case n <= 0:
	case n < 50:
		add(contracts.TierStartup)
	case n < 1000:
		add(contracts.TierSME)
	default:
		add(contracts.TierEnterprise)
	}
	add(strings.ToLower(company.Industry))
	return tags
}
