package app

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	rwerrors "rolewarden/internal/errors"
	"rolewarden/internal/promotion"
	"rolewarden/internal/roles"
)

// GuildConfig is the per-guild rules file. It owns everything the engine
// consumes but does not persist: promotion rules, toggle pairs, the default
// role, self-assign buttons and the audit log channel.
type GuildConfig struct {
	// LogChannelID receives consolidated audit embeds. Empty falls back to
	// the process log.
	LogChannelID string `yaml:"log_channel_id"`
	// ModRoleID marks members allowed to run manual role commands.
	ModRoleID string `yaml:"mod_role_id"`
	// DefaultRoleID is granted to first-time joiners. Empty disables it.
	DefaultRoleID string `yaml:"default_role_id"`

	AutoPromotion struct {
		Rules []PromotionRuleConfig `yaml:"rules"`
	} `yaml:"auto_promotion"`

	// ToggledRoles lists mutually exclusive role pairs.
	ToggledRoles []TogglePairConfig `yaml:"toggled_roles"`

	SelfAssign SelfAssignConfig `yaml:"self_assign_roles"`
}

// PromotionRuleConfig is one promotion rule as written in the rules file.
type PromotionRuleConfig struct {
	Name            string `yaml:"name"`
	SourceRoleID    string `yaml:"source_role_id"`
	TargetRoleID    string `yaml:"target_role_id"`
	MinMessages     int    `yaml:"min_messages"`
	MinVoiceMinutes int    `yaml:"min_voice_minutes"`
	Logic           string `yaml:"logic"`
}

// TogglePairConfig is one mutually exclusive role pair.
type TogglePairConfig struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

// SelfAssignConfig configures the self-service role buttons.
type SelfAssignConfig struct {
	ChannelID   string `yaml:"channel_id"`
	Title       string `yaml:"message_title"`
	Description string `yaml:"message_description"`
	Roles       []struct {
		RoleID string `yaml:"role_id"`
		Label  string `yaml:"label"`
		Style  string `yaml:"style"`
	} `yaml:"roles"`
}

// LoadGuildConfig reads and validates the YAML rules file.
func LoadGuildConfig(path string) (GuildConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return GuildConfig{}, rwerrors.Wrap(rwerrors.CodeConfigurationMissing, fmt.Sprintf("read rules file %s", path), err)
	}

	var cfg GuildConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return GuildConfig{}, rwerrors.Wrap(rwerrors.CodeConfigurationInvalid, "parse rules file", err)
	}

	if _, err := cfg.PromotionRules(); err != nil {
		return GuildConfig{}, err
	}
	if _, err := cfg.TogglePairs(); err != nil {
		return GuildConfig{}, err
	}
	return cfg, nil
}

// PromotionRules converts the configured rules into domain rules, preserving
// their configured order.
func (c GuildConfig) PromotionRules() ([]promotion.Rule, error) {
	rules := make([]promotion.Rule, 0, len(c.AutoPromotion.Rules))
	for _, rc := range c.AutoPromotion.Rules {
		rule := promotion.Rule{
			Name:            rc.Name,
			SourceRole:      rc.SourceRoleID,
			TargetRole:      rc.TargetRoleID,
			MinMessages:     rc.MinMessages,
			MinVoiceMinutes: rc.MinVoiceMinutes,
			Logic:           promotion.Logic(rc.Logic),
		}
		if err := rule.Validate(); err != nil {
			return nil, rwerrors.Wrap(rwerrors.CodeConfigurationInvalid, "promotion rule", err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// TogglePairs converts the configured pairs into domain pairs.
func (c GuildConfig) TogglePairs() ([]roles.TogglePair, error) {
	pairs := make([]roles.TogglePair, 0, len(c.ToggledRoles))
	for _, pc := range c.ToggledRoles {
		pairs = append(pairs, roles.TogglePair{A: pc.A, B: pc.B})
	}
	// Build once to surface duplicate or self-conflicting pairs at load.
	if _, err := roles.NewToggleGroups(pairs); err != nil {
		return nil, rwerrors.Wrap(rwerrors.CodeConfigurationInvalid, "toggle pairs", err)
	}
	return pairs, nil
}
