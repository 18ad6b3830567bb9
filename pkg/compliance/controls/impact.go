package controls

import (
	"strings"

	"github.com/Mindburn-Labs/controlgen/pkg/contracts"
)

// DefaultImpact is used when no linked obligation carries an impact.
const DefaultImpact = "Critical"

var impactRank = map[string]int{
	"critical": 6,
	"high":     5,
	"elevated": 4,
	"medium":   3,
	"moderate": 2,
	"low":      1,
}

// HighestImpact returns the most severe impact among the obligations with
// the given IDs. Known levels outrank unrecognised ones; an unrecognised
// level is kept only if nothing better is found.
func HighestImpact(ids []string, obligations map[string]contracts.Obligation) string {
	best, bestRank := "", -1
	for _, id := range ids {
		impact := strings.TrimSpace(obligations[id].Impact)
		if impact == "" {
			continue
		}
		rank := impactRank[strings.ToLower(impact)]
		if rank > bestRank {
			best, bestRank = impact, rank
		}
	}
	if best == "" {
		return DefaultImpact
	}
	return best
}
