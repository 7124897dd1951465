package roles

import (
	"fmt"
	"strings"
)

// TogglePair configures two mutually exclusive roles. Granting either member
// of the pair revokes the other.
type TogglePair struct {
	A string
	B string
}

// ToggleGroups resolves toggle conflicts symmetrically: the configured pair
// may name its members in either order. Built once at configuration load.
type ToggleGroups struct {
	conflicts map[string]string
}

// NewToggleGroups builds the symmetric lookup table from configured pairs.
func NewToggleGroups(pairs []TogglePair) (*ToggleGroups, error) {
	conflicts := make(map[string]string, len(pairs)*2)
	for _, pair := range pairs {
		a := strings.TrimSpace(pair.A)
		b := strings.TrimSpace(pair.B)
		if a == "" || b == "" {
			return nil, fmt.Errorf("toggle pair members are required")
		}
		if a == b {
			return nil, fmt.Errorf("toggle pair %s conflicts with itself", a)
		}
		if existing, ok := conflicts[a]; ok && existing != b {
			return nil, fmt.Errorf("role %s appears in more than one toggle pair", a)
		}
		if existing, ok := conflicts[b]; ok && existing != a {
			return nil, fmt.Errorf("role %s appears in more than one toggle pair", b)
		}
		conflicts[a] = b
		conflicts[b] = a
	}
	return &ToggleGroups{conflicts: conflicts}, nil
}

// Conflict returns the role id that forms a toggle pair with roleID, if any.
func (g *ToggleGroups) Conflict(roleID string) (string, bool) {
	if g == nil {
		return "", false
	}
	conflict, ok := g.conflicts[roleID]
	return conflict, ok
}
