// Package promotion evaluates threshold-based role promotion rules.
package promotion

import (
	"fmt"
	"strings"

	"rolewarden/internal/activity"
)

// Logic selects how a rule combines its two thresholds.
type Logic string

const (
	// LogicAnd requires both thresholds to be met.
	LogicAnd Logic = "AND"
	// LogicOr requires either threshold to be met.
	LogicOr Logic = "OR"
)

// Rule maps a source role plus activity thresholds to a target role. Rules
// are configuration, supplied externally and evaluated in configured order.
type Rule struct {
	// Name labels the rule for audit provenance.
	Name string
	// SourceRole must be held for the rule to be eligible.
	SourceRole string
	// TargetRole is granted when the rule fires.
	TargetRole string
	// MinMessages is the message-count threshold.
	MinMessages int
	// MinVoiceMinutes is the voice-minutes threshold.
	MinVoiceMinutes int
	// Logic combines the two thresholds.
	Logic Logic
}

// Validate reports configuration problems with the rule.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name is required")
	}
	if strings.TrimSpace(r.SourceRole) == "" {
		return fmt.Errorf("rule %s: source role is required", r.Name)
	}
	if strings.TrimSpace(r.TargetRole) == "" {
		return fmt.Errorf("rule %s: target role is required", r.Name)
	}
	if r.Logic != LogicAnd && r.Logic != LogicOr {
		return fmt.Errorf("rule %s: logic %q is not valid", r.Name, r.Logic)
	}
	return nil
}

// satisfied reports whether the stats meet the rule's thresholds.
func (r Rule) satisfied(stats activity.Stats) bool {
	metMessages := stats.Messages >= r.MinMessages
	metVoice := stats.VoiceMinutes >= r.MinVoiceMinutes
	if r.Logic == LogicAnd {
		return metMessages && metVoice
	}
	return metMessages || metVoice
}

// Evaluate scans rules in configured order and returns the first rule whose
// source role is held, whose target role is not, and whose thresholds are
// satisfied. At most one rule fires per call: a single activity burst never
// cascades a user through multiple tiers. Returns nil when no rule fires.
func Evaluate(stats activity.Stats, heldRoles []string, rules []Rule) *Rule {
	held := make(map[string]bool, len(heldRoles))
	for _, id := range heldRoles {
		held[id] = true
	}

	for i := range rules {
		rule := rules[i]
		if !held[rule.SourceRole] || held[rule.TargetRole] {
			continue
		}
		if rule.satisfied(stats) {
			return &rule
		}
	}
	return nil
}
