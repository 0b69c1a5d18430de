package report

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/BetterCallFirewall/Pentrack/internal/models"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog is the static content of every report: methodology boilerplate,
// remediation tiers, glossary and the like.
type Catalog struct {
	DefaultMethodology      string            `yaml:"default_methodology"`
	Phases                  []Phase           `yaml:"phases"`
	Tools                   []string          `yaml:"tools"`
	Standards               []string          `yaml:"standards"`
	StandingRecommendations []string          `yaml:"standing_recommendations"`
	Tiers                   []TierSpec        `yaml:"tiers"`
	CategoryRemediation     map[string]string `yaml:"category_remediation"`
	GenericRemediation      string            `yaml:"generic_remediation"`
	BestPractices           []string          `yaml:"best_practices"`
	Glossary                []GlossaryEntry   `yaml:"glossary"`
	References              []string          `yaml:"references"`
	ToolVersions            []ToolVersion     `yaml:"tool_versions"`
	Disclaimer              string            `yaml:"disclaimer"`
}

// TierSpec describes one remediation tier and the severities it covers.
type TierSpec struct {
	Name        string            `yaml:"name"`
	Priority    int               `yaml:"priority"`
	Timeframe   string            `yaml:"timeframe"`
	Description string            `yaml:"description"`
	Severities  []models.Severity `yaml:"severities"`
}

var loadCatalog = sync.OnceValues(func() (*Catalog, error) {
	return ParseCatalog(catalogYAML)
})

// DefaultCatalog returns the embedded catalog.
func DefaultCatalog() (*Catalog, error) {
	return loadCatalog()
}

// ParseCatalog decodes and validates a catalog. Every severity must land in
// exactly one tier.
func ParseCatalog(raw []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("decoding report catalog: %w", err)
	}

	seen := make(map[models.Severity]string)
	for _, tier := range c.Tiers {
		for _, sev := range tier.Severities {
			if prev, dup := seen[sev]; dup {
				return nil, fmt.Errorf("severity %s is in tiers %s and %s", sev, prev, tier.Name)
			}
			seen[sev] = tier.Name
		}
	}
	for _, sev := range models.Severities {
		if _, ok := seen[sev]; !ok {
			return nil, fmt.Errorf("severity %s has no remediation tier", sev)
		}
	}

	lowered := make(map[string]string, len(c.CategoryRemediation))
	for k, v := range c.CategoryRemediation {
		lowered[strings.ToLower(k)] = v
	}
	c.CategoryRemediation = lowered

	return &c, nil
}

// RemediationFor looks up the suggestion for a free-text category.
func (c *Catalog) RemediationFor(category string) string {
	if s, ok := c.CategoryRemediation[strings.ToLower(strings.TrimSpace(category))]; ok {
		return s
	}
	return c.GenericRemediation
}

func (c *Catalog) tierOf(sev models.Severity) int {
	for i, tier := range c.Tiers {
		for _, s := range tier.Severities {
			if s == sev {
				return i
			}
		}
	}
	return len(c.Tiers) - 1
}
