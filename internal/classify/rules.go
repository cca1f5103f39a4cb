package classify

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nealali/agentic-triage-copilot/internal/models"
)

// DomainRule refines classification for one issue domain. Patterns are
// evaluated in declaration order; llm_required patterns take priority.
type DomainRule struct {
	Domain        models.IssueDomain `yaml:"domain"`
	LLMRequired   []string           `yaml:"llm_required"`
	Deterministic []string           `yaml:"deterministic"`
}

type rulePackFile struct {
	Domains []DomainRule `yaml:"domains"`
}

// LoadDomainRules loads a domain rule pack from a YAML file. An empty path or
// a missing file yields the built-in defaults.
func LoadDomainRules(path string) ([]DomainRule, error) {
	if path == "" {
		return defaultDomainRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return defaultDomainRules(), nil
		}
		return nil, err
	}
	var pack rulePackFile
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return nil, err
	}
	if len(pack.Domains) == 0 {
		return defaultDomainRules(), nil
	}
	return pack.Domains, nil
}

func defaultDomainRules() []DomainRule {
	return []DomainRule{
		{
			Domain: models.DomainAE,
			LLMRequired: []string{
				"multiple related",
				"single or multiple",
				"related conditions",
				"clinical significance",
				"timeline conflicts",
				"date reconciliation",
			},
			Deterministic: []string{
				"end before start",
				"end date is before start",
			},
		},
		{
			Domain: models.DomainLB,
			LLMRequired: []string{
				"discrepancy vs",
				"differs from",
				"clinical significance",
				"significance unclear",
			},
		},
		{
			Domain: models.DomainDM,
			LLMRequired: []string{
				"impact on",
				"affects",
				"calculations",
				"bmi",
			},
		},
		{
			Domain: models.DomainCommercial,
			LLMRequired: []string{
				"not in standard",
				"not standard",
				"uncommon",
				"manual review",
				"requires manual",
				"requires review",
				"combination product",
				"not in dictionary",
				"coding issue",
			},
		},
	}
}
