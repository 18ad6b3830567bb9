package registry

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	objectivePrefix = "OBJ-"
	variantPrefix   = "CV-"

	// LegacyDomainPrefixLimit is the prefix length older registries were
	// minted with.
	LegacyDomainPrefixLimit = 12
)

// VariantIDScheme selects the shape of minted variant IDs.
type VariantIDScheme string

const (
	// LegacyVariantIDs mints CV-{suffix} for the first variant of an
	// objective and CV-{suffix}-{n} for later ones, starting at 2.
	LegacyVariantIDs VariantIDScheme = "legacy"
	// SequentialVariantIDs always carries a number: CV-{suffix}-1, -2, ...
	// A legacy CV-{suffix} entry counts as number 1.
	SequentialVariantIDs VariantIDScheme = "sequential"
)

// ParseVariantIDScheme maps a configuration value to a scheme. An empty
// value selects SequentialVariantIDs.
func ParseVariantIDScheme(s string) (VariantIDScheme, error) {
	switch VariantIDScheme(strings.ToLower(strings.TrimSpace(s))) {
	case "", SequentialVariantIDs:
		return SequentialVariantIDs, nil
	case LegacyVariantIDs:
		return LegacyVariantIDs, nil
	default:
		return "", fmt.Errorf("unknown variant id scheme %q", s)
	}
}

var upper = cases.Upper(language.Und)

// DomainPrefix derives the objective ID prefix for a domain: uppercased,
// spaces and hyphens removed, truncated to limit characters when limit > 0.
func DomainPrefix(domain string, limit int) string {
	p := upper.String(domain)
	p = strings.ReplaceAll(p, " ", "")
	p = strings.ReplaceAll(p, "-", "")
	if r := []rune(p); limit > 0 && len(r) > limit {
		p = string(r[:limit])
	}
	return p
}

func nextObjectiveID(domain string, limit int, existing []string) string {
	prefix := DomainPrefix(domain, limit)
	stem := objectivePrefix + prefix

	highest := 0
	for _, id := range existing {
		if !strings.HasPrefix(id, stem) {
			continue
		}
		n, ok := trailingNumber(id)
		if !ok {
			continue
		}
		highest = max(highest, n)
	}
	return fmt.Sprintf("%s-%d", stem, highest+1)
}

// ObjectiveSuffix strips the OBJ- prefix from an objective ID.
func ObjectiveSuffix(objectiveID string) string {
	return strings.TrimPrefix(objectiveID, objectivePrefix)
}

func nextVariantID(scheme VariantIDScheme, objectiveID string, existing []string) string {
	stem := variantPrefix + ObjectiveSuffix(objectiveID)

	if scheme == SequentialVariantIDs {
		highest := 0
		for _, id := range existing {
			switch {
			case id == stem:
				highest = max(highest, 1)
			case strings.HasPrefix(id, stem+"-"):
				if n, err := strconv.Atoi(id[len(stem)+1:]); err == nil {
					highest = max(highest, n)
				}
			}
		}
		return fmt.Sprintf("%s-%d", stem, highest+1)
	}

	if len(existing) == 0 {
		return stem
	}
	highest := 0
	for _, id := range existing {
		if len(strings.Split(id, "-")) < 4 {
			highest = max(highest, 1)
			continue
		}
		if n, ok := trailingNumber(id); ok {
			highest = max(highest, n)
		}
	}
	return fmt.Sprintf("%s-%d", stem, highest+1)
}

func trailingNumber(id string) (int, bool) {
	i := strings.LastIndexByte(id, '-')
	n, err := strconv.Atoi(strings.TrimSpace(id[i+1:]))
	if err != nil {
		return 0, false
	}
	return n, true
}
