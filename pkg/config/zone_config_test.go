package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zonetrust/compliance-core/pkg/sovereignty"
)

const testZoneYAML = `
jurisdictions:
  - id: pk
    applicable_domains: [AML, KYC, Tax]
    allowed_targets:
      PII: ["pk", "ae"]
    confined_categories: [KeyMaterial]
policies:
  - policy_id: pol-1
    trigger_type: SanctionsListUpdate
    action: freeze_corridor
    priority: 10
    jurisdiction_scope: [pk]
    enabled: true
    authorization_requirement: dual-control
`

func writeTempZoneConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "zone.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoadZoneConfigParsesJurisdictionsAndPolicies(t *testing.T) {
	path := writeTempZoneConfig(t, testZoneYAML)

	cfg, err := LoadZoneConfig(path)
	if err != nil {
		t.Fatalf("LoadZoneConfig: %v", err)
	}
	if len(cfg.Jurisdictions) != 1 || cfg.Jurisdictions[0].ID != "pk" {
		t.Fatalf("unexpected jurisdictions: %+v", cfg.Jurisdictions)
	}
	if len(cfg.Policies) != 1 || cfg.Policies[0].PolicyID != "pol-1" {
		t.Fatalf("unexpected policies: %+v", cfg.Policies)
	}
}

func TestApplyToInstallsSovereigntyPolicyAndTensorProfile(t *testing.T) {
	path := writeTempZoneConfig(t, testZoneYAML)
	cfg, err := LoadZoneConfig(path)
	if err != nil {
		t.Fatalf("LoadZoneConfig: %v", err)
	}

	enforcer := sovereignty.NewEnforcer()
	profiles, err := cfg.ApplyTo(enforcer)
	if err != nil {
		t.Fatalf("ApplyTo: %v", err)
	}

	if _, ok := profiles["pk"]; !ok {
		t.Fatal("expected a tensor profile for jurisdiction pk")
	}

	if v := enforcer.Check("pk", sovereignty.KeyMaterial, "ae"); v.Allowed {
		t.Fatal("confined KeyMaterial should be denied for cross-jurisdiction target")
	}
	if v := enforcer.Check("pk", sovereignty.PII, "ae"); !v.Allowed {
		t.Fatal("PII allowed to ae per config, should be permitted")
	}
}

func TestPoliciesConvertsToPolicyEngineShape(t *testing.T) {
	path := writeTempZoneConfig(t, testZoneYAML)
	cfg, err := LoadZoneConfig(path)
	if err != nil {
		t.Fatalf("LoadZoneConfig: %v", err)
	}

	policies := cfg.Policies()
	if len(policies) != 1 {
		t.Fatalf("expected 1 policy, got %d", len(policies))
	}
	p := policies[0]
	if p.Priority != 10 {
		t.Fatalf("Priority = %d, want 10", p.Priority)
	}
	if !p.JurisdictionScope["pk"] {
		t.Fatal("expected jurisdiction scope to include pk")
	}
}

func TestLoadZoneConfigSubstitutesEnvVars(t *testing.T) {
	t.Setenv("TEST_JURISDICTION_ID", "ae")
	path := writeTempZoneConfig(t, `
jurisdictions:
  - id: ${TEST_JURISDICTION_ID}
    applicable_domains: [AML]
`)

	cfg, err := LoadZoneConfig(path)
	if err != nil {
		t.Fatalf("LoadZoneConfig: %v", err)
	}
	if cfg.Jurisdictions[0].ID != "ae" {
		t.Fatalf("ID = %q, want ae (env substitution)", cfg.Jurisdictions[0].ID)
	}
}
