// Package config also loads the per-zone jurisdiction/policy bundle from
// YAML: which domains apply to each jurisdiction, each jurisdiction's
// sovereignty posture, and the policy-engine rules that react to
// triggers. Environment variables in the form ${VAR_NAME} or
// ${VAR_NAME:-default} are substituted before parsing, the same way the
// anchor configuration loader this file is descended from did for its
// own YAML bundle.
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/zonetrust/compliance-core/pkg/policyengine"
	"github.com/zonetrust/compliance-core/pkg/sovereignty"
	"github.com/zonetrust/compliance-core/pkg/tensor"
)

// ZoneConfig is the full jurisdiction/policy bundle for one zone node.
type ZoneConfig struct {
	Jurisdictions []JurisdictionConfig `yaml:"jurisdictions"`
	Policies      []PolicyConfig       `yaml:"policies"`
}

// JurisdictionConfig describes one jurisdiction's compliance-domain
// applicability and sovereignty posture.
type JurisdictionConfig struct {
	ID                 string                       `yaml:"id"`
	ApplicableDomains   []string                     `yaml:"applicable_domains"`
	AllowedTargets      map[string][]string          `yaml:"allowed_targets"`      // category -> target jurisdictions, "*" for any
	ConfinedCategories  []string                     `yaml:"confined_categories"`
}

// PolicyConfig is one policy-engine rule.
type PolicyConfig struct {
	PolicyID                string   `yaml:"policy_id"`
	TriggerType             string   `yaml:"trigger_type"`
	Action                  string   `yaml:"action"`
	Priority                int      `yaml:"priority"`
	JurisdictionScope       []string `yaml:"jurisdiction_scope"`
	Enabled                 bool     `yaml:"enabled"`
	AuthorizationRequirement string  `yaml:"authorization_requirement"`
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}
		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}
		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}

// LoadZoneConfig loads the jurisdiction/policy bundle from a YAML file.
func LoadZoneConfig(path string) (*ZoneConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read zone config file %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	var cfg ZoneConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse zone config file %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyTo installs every jurisdiction's sovereignty policy into enforcer
// and returns a tensor.Jurisdiction profile per jurisdiction id, keyed
// the same way, for the caller to build tensor.New instances from.
func (z *ZoneConfig) ApplyTo(enforcer *sovereignty.Enforcer) (map[string]tensor.Jurisdiction, error) {
	profiles := make(map[string]tensor.Jurisdiction, len(z.Jurisdictions))

	for _, j := range z.Jurisdictions {
		applicable := make(map[tensor.Domain]bool, len(j.ApplicableDomains))
		for _, d := range j.ApplicableDomains {
			applicable[tensor.Domain(d)] = true
		}
		profiles[j.ID] = tensor.Jurisdiction{ID: j.ID, ApplicableDomains: applicable}

		allowed := make(map[sovereignty.Category]map[string]bool, len(j.AllowedTargets))
		for category, targets := range j.AllowedTargets {
			set := make(map[string]bool, len(targets))
			for _, t := range targets {
				set[t] = true
			}
			allowed[sovereignty.Category(category)] = set
		}

		confined := make(map[sovereignty.Category]bool, len(j.ConfinedCategories))
		for _, c := range j.ConfinedCategories {
			confined[sovereignty.Category(c)] = true
		}

		enforcer.SetPolicy(j.ID, sovereignty.Policy{
			AllowedTargets:     allowed,
			ConfinedCategories: confined,
		})
	}

	return profiles, nil
}

// Policies converts the YAML policy bundle into policyengine.Policy
// values ready for Engine.LoadPolicies.
func (z *ZoneConfig) Policies() []policyengine.Policy {
	out := make([]policyengine.Policy, 0, len(z.Policies))
	for _, p := range z.Policies {
		var scope map[string]bool
		if len(p.JurisdictionScope) > 0 {
			scope = make(map[string]bool, len(p.JurisdictionScope))
			for _, j := range p.JurisdictionScope {
				scope[j] = true
			}
		}
		out = append(out, policyengine.Policy{
			PolicyID:                 p.PolicyID,
			TriggerType:              policyengine.TriggerType(p.TriggerType),
			Action:                   p.Action,
			Priority:                 int32(p.Priority),
			JurisdictionScope:        scope,
			Enabled:                  p.Enabled,
			AuthorizationRequirement: p.AuthorizationRequirement,
		})
	}
	return out
}
