// internal/config/policy.go
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy is the optional licensing policy file.
//
//	default_limit: 2
//	allowed_domains: [maplebear.com.br, seb.com.br]
//	domain_overrides:
//	  escolaparceira.com.br: "12"
//	ranking_weights: {created: 1, published: 1, shared: 1, viewed: 0.1}
type Policy struct {
	DefaultLimit    *int               `yaml:"default_limit"`
	AllowedDomains  []string           `yaml:"allowed_domains"`
	DomainOverrides map[string]string  `yaml:"domain_overrides"`
	RankingWeights  map[string]float64 `yaml:"ranking_weights"`
}

// LoadPolicy reads path. A missing file yields nil and no error.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return nil, nil
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var p Policy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to parse policy file %s: %w", path, err)
	}

	if p.DefaultLimit != nil && *p.DefaultLimit < 0 {
		return nil, fmt.Errorf("policy default_limit must not be negative, got %d", *p.DefaultLimit)
	}
	for key, w := range p.RankingWeights {
		switch key {
		case "created", "published", "shared", "viewed":
		default:
			return nil, fmt.Errorf("unknown ranking weight %q", key)
		}
		if w < 0 {
			return nil, fmt.Errorf("ranking weight %q must not be negative", key)
		}
	}

	return &p, nil
}

// Apply overlays the policy onto the env licensing config.
func (p *Policy) Apply(lc *LicensingConfig) {
	if p == nil {
		return
	}
	if p.DefaultLimit != nil {
		lc.DefaultLimit = *p.DefaultLimit
	}
	if len(p.AllowedDomains) > 0 {
		lc.AllowedDomains = p.AllowedDomains
	}
}
