// Package roles coordinates role mutations, toggle conflicts and the
// persisted role mirror.
package roles

import (
	"fmt"
	"strings"
)

// ProvenanceKind tags who or what caused a role change.
type ProvenanceKind string

const (
	// ProvenanceSystem marks changes made by a promotion policy.
	ProvenanceSystem ProvenanceKind = "system"
	// ProvenanceModerator marks changes made by a moderator command.
	ProvenanceModerator ProvenanceKind = "moderator"
	// ProvenanceSelfService marks self-assigned role changes.
	ProvenanceSelfService ProvenanceKind = "self-service"
	// ProvenanceRestoration marks roles re-applied on rejoin.
	ProvenanceRestoration ProvenanceKind = "restoration"
	// ProvenanceUnknown marks changes whose origin could not be determined.
	ProvenanceUnknown ProvenanceKind = "unknown"
)

// Provenance is the tagged origin of a role change. Downstream filtering
// works on the kind; Detail carries the policy name or actor id.
type Provenance struct {
	Kind ProvenanceKind
	// Detail is the policy name for system changes and the actor id for
	// moderator changes. Empty otherwise.
	Detail string
	// Reason is free text supplied alongside the change (a moderator's
	// justification). Carried into the platform audit log and the
	// consolidated audit entry.
	Reason string
}

// System returns provenance for a promotion policy.
func System(policyName string) Provenance {
	return Provenance{Kind: ProvenanceSystem, Detail: policyName}
}

// Moderator returns provenance for a moderator-initiated change.
func Moderator(actorID string) Provenance {
	return Provenance{Kind: ProvenanceModerator, Detail: actorID}
}

// SelfService returns provenance for a self-assigned change.
func SelfService() Provenance {
	return Provenance{Kind: ProvenanceSelfService}
}

// Restoration returns provenance for a rejoin restoration.
func Restoration() Provenance {
	return Provenance{Kind: ProvenanceRestoration}
}

// Unknown returns provenance for an undetermined origin.
func Unknown() Provenance {
	return Provenance{Kind: ProvenanceUnknown}
}

// WithReason attaches a free-text justification.
func (p Provenance) WithReason(reason string) Provenance {
	p.Reason = strings.TrimSpace(reason)
	return p
}

// String renders the provenance for history rows and audit text.
func (p Provenance) String() string {
	switch p.Kind {
	case ProvenanceSystem:
		return fmt.Sprintf("system:%s", p.Detail)
	case ProvenanceModerator:
		return fmt.Sprintf("moderator:%s", p.Detail)
	case ProvenanceSelfService:
		return "self-service"
	case ProvenanceRestoration:
		return "restore"
	default:
		return "unknown"
	}
}

// AuditReason renders the provenance for the platform audit log, with the
// free-text reason appended when present.
func (p Provenance) AuditReason() string {
	if p.Reason == "" {
		return p.String()
	}
	return p.String() + ": " + p.Reason
}

// Responsible renders the provenance for the audit "responsible party" field.
func (p Provenance) Responsible() string {
	switch p.Kind {
	case ProvenanceSystem:
		return fmt.Sprintf("System (%s)", p.Detail)
	case ProvenanceModerator:
		return fmt.Sprintf("Moderator (%s)", p.Detail)
	case ProvenanceSelfService:
		return "Self-service"
	case ProvenanceRestoration:
		return "System (Restoration)"
	default:
		return "Unknown"
	}
}
