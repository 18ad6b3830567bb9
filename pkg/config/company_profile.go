package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Mindburn-Labs/controlgen/pkg/contracts"
)

// DefaultCompany is used when no company profile is given.
func DefaultCompany() contracts.CompanyContext {
	employees := 250
	return contracts.CompanyContext{
		CompanyName:        "Acme Corporation",
		EmployeeCount:      &employees,
		Industry:           "SaaS",
		Jurisdictions:      []string{"SE", "EU"},
		RiskAppetite:       "Low",
		ComplianceMaturity: "Developing",
	}
}

// LoadCompanyProfile reads a CompanyContext from a YAML file.
func LoadCompanyProfile(path string) (contracts.CompanyContext, error) {
	//nolint:gosec // G304: path is an operator-supplied profile
	data, err := os.ReadFile(path)
	if err != nil {
		return contracts.CompanyContext{}, fmt.Errorf("read company profile %s: %w", path, err)
	}

	var company contracts.CompanyContext
	if err := yaml.Unmarshal(data, &company); err != nil {
		return contracts.CompanyContext{}, fmt.Errorf("parse company profile %s: %w", path, err)
	}
	if err := company.Validate(); err != nil {
		return contracts.CompanyContext{}, err
	}
	return company, nil
}
