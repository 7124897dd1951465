package app

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write rules file: %v", err)
	}
	return path
}

func TestLoadGuildConfig(t *testing.T) {
	path := writeRules(t, `
log_channel_id: "100"
mod_role_id: "200"
default_role_id: "300"
auto_promotion:
  rules:
    - name: tier1
      source_role_id: "400"
      target_role_id: "500"
      min_messages: 100
      min_voice_minutes: 60
      logic: AND
    - name: tier2
      source_role_id: "500"
      target_role_id: "600"
      min_messages: 1000
      logic: OR
toggled_roles:
  - a: "700"
    b: "701"
self_assign_roles:
  channel_id: "800"
  message_title: Pick your roles
  roles:
    - role_id: "900"
      label: Events
      style: primary
`)

	cfg, err := LoadGuildConfig(path)
	if err != nil {
		t.Fatalf("LoadGuildConfig: %v", err)
	}

	if cfg.LogChannelID != "100" || cfg.ModRoleID != "200" || cfg.DefaultRoleID != "300" {
		t.Fatalf("ids = %q %q %q", cfg.LogChannelID, cfg.ModRoleID, cfg.DefaultRoleID)
	}

	rules, err := cfg.PromotionRules()
	if err != nil {
		t.Fatalf("PromotionRules: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("rules = %d, want 2", len(rules))
	}
	// Configured order is evaluation order.
	if rules[0].Name != "tier1" || rules[1].Name != "tier2" {
		t.Fatalf("rule order = %s, %s", rules[0].Name, rules[1].Name)
	}
	if rules[0].MinMessages != 100 || rules[0].MinVoiceMinutes != 60 {
		t.Fatalf("tier1 thresholds = %d/%d", rules[0].MinMessages, rules[0].MinVoiceMinutes)
	}

	pairs, err := cfg.TogglePairs()
	if err != nil {
		t.Fatalf("TogglePairs: %v", err)
	}
	if len(pairs) != 1 || pairs[0].A != "700" || pairs[0].B != "701" {
		t.Fatalf("pairs = %+v", pairs)
	}

	if cfg.SelfAssign.ChannelID != "800" || len(cfg.SelfAssign.Roles) != 1 {
		t.Fatalf("self assign = %+v", cfg.SelfAssign)
	}
}

func TestLoadGuildConfigMissingFile(t *testing.T) {
	if _, err := LoadGuildConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadGuildConfigRejectsInvalidYAML(t *testing.T) {
	path := writeRules(t, "auto_promotion: [not: a: mapping")
	if _, err := LoadGuildConfig(path); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}

func TestLoadGuildConfigRejectsBadRule(t *testing.T) {
	path := writeRules(t, `
auto_promotion:
  rules:
    - name: broken
      source_role_id: "1"
      target_role_id: "2"
      logic: MAYBE
`)
	if _, err := LoadGuildConfig(path); err == nil {
		t.Fatal("expected error for invalid rule logic")
	}
}

func TestLoadGuildConfigRejectsSelfTogglePair(t *testing.T) {
	path := writeRules(t, `
toggled_roles:
  - a: "1"
    b: "1"
`)
	if _, err := LoadGuildConfig(path); err == nil {
		t.Fatal("expected error for self-conflicting pair")
	}
}

func TestLoadGuildConfigEmptyFileIsValid(t *testing.T) {
	path := writeRules(t, "")
	cfg, err := LoadGuildConfig(path)
	if err != nil {
		t.Fatalf("LoadGuildConfig: %v", err)
	}
	rules, err := cfg.PromotionRules()
	if err != nil || len(rules) != 0 {
		t.Fatalf("rules = %v, %v", rules, err)
	}
}
