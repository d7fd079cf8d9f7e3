package research

import (
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// CredibilityConfig holds domain credibility scoring rules. Scores only
// annotate report metadata; they never alter rendering or ordering.
type CredibilityConfig struct {
	CredibilityRules struct {
		TLDPatterns []struct {
			Suffix string  `yaml:"suffix"`
			Score  float64 `yaml:"score"`
		} `yaml:"tld_patterns"`
		DomainGroups []struct {
			Category string   `yaml:"category"`
			Score    float64  `yaml:"score"`
			Domains  []string `yaml:"domains"`
		} `yaml:"domain_groups"`
		DefaultScore float64 `yaml:"default_score"`
	} `yaml:"credibility_rules"`
}

// DefaultCredibilityConfig is used when no rules file is configured.
func DefaultCredibilityConfig() *CredibilityConfig {
	cfg := &CredibilityConfig{}
	cfg.CredibilityRules.TLDPatterns = []struct {
		Suffix string  `yaml:"suffix"`
		Score  float64 `yaml:"score"`
	}{
		{Suffix: ".edu", Score: 0.85},
		{Suffix: ".gov", Score: 0.80},
		{Suffix: ".org", Score: 0.70},
	}
	cfg.CredibilityRules.DefaultScore = 0.60
	return cfg
}

// LoadCredibilityConfig reads scoring rules from a YAML file, falling back
// to defaults when the path is empty or unreadable.
func LoadCredibilityConfig(path string) *CredibilityConfig {
	if path == "" {
		return DefaultCredibilityConfig()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultCredibilityConfig()
	}
	var cfg CredibilityConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultCredibilityConfig()
	}
	if cfg.CredibilityRules.DefaultScore == 0 {
		cfg.CredibilityRules.DefaultScore = 0.60
	}
	return &cfg
}

// Score returns the credibility score for a source URL.
func (c *CredibilityConfig) Score(rawURL string) float64 {
	domain := extractDomain(rawURL)
	if domain == "" {
		return c.CredibilityRules.DefaultScore
	}
	for _, g := range c.CredibilityRules.DomainGroups {
		for _, d := range g.Domains {
			if domain == d || strings.HasSuffix(domain, "."+d) {
				return g.Score
			}
		}
	}
	for _, p := range c.CredibilityRules.TLDPatterns {
		if strings.HasSuffix(domain, p.Suffix) {
			return p.Score
		}
	}
	return c.CredibilityRules.DefaultScore
}

// CitationStats summarizes the sources behind a report.
type CitationStats struct {
	TotalSources   int     `json:"total_sources"`
	UniqueDomains  int     `json:"unique_domains"`
	AvgCredibility float64 `json:"avg_credibility"`
}

// Stats computes aggregate source metrics for an answer under the given
// credibility rules.
func Stats(a AnswerWithCitations, cfg *CredibilityConfig) CitationStats {
	if cfg == nil {
		cfg = DefaultCredibilityConfig()
	}
	citations := a.Citations()
	stats := CitationStats{TotalSources: len(citations)}
	if len(citations) == 0 {
		return stats
	}
	domains := make(map[string]struct{})
	sum := 0.0
	for _, c := range citations {
		if d := extractDomain(c.URL); d != "" {
			domains[d] = struct{}{}
		}
		sum += cfg.Score(c.URL)
	}
	stats.UniqueDomains = len(domains)
	stats.AvgCredibility = sum / float64(len(citations))
	return stats
}

// extractDomain returns the lowercase host without port or www prefix.
func extractDomain(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(parsed.Hostname())
	return strings.TrimPrefix(host, "www.")
}
