package roles

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"rolewarden/internal/audit"
	"rolewarden/internal/storage"
)

// MutationResult reports what a grant actually changed.
type MutationResult struct {
	// Added is false when the user already held the role (no-op).
	Added bool
	// RemovedConflict is the toggle-pair role revoked alongside the grant,
	// empty when none applied.
	RemovedConflict string
	// Removed is false when a revoke found the role absent (no-op).
	Removed bool
}

// Coordinator is the single choke point for role grants. It deduplicates
// no-op grants, resolves toggle-group conflicts, persists the snapshot and
// history rows, and emits one consolidated audit entry per logical action.
type Coordinator struct {
	platform Platform
	store    storage.RoleStore
	toggles  *ToggleGroups
	sink     audit.Sink
	clock    func() time.Time
}

// NewCoordinator creates a coordinator. sink may be nil, in which case audit
// entries go to the process log.
func NewCoordinator(platform Platform, store storage.RoleStore, toggles *ToggleGroups, sink audit.Sink) (*Coordinator, error) {
	if platform == nil {
		return nil, fmt.Errorf("platform is required")
	}
	if store == nil {
		return nil, fmt.Errorf("role store is required")
	}
	if sink == nil {
		sink = audit.LogSink{}
	}
	return &Coordinator{
		platform: platform,
		store:    store,
		toggles:  toggles,
		sink:     sink,
		clock:    time.Now,
	}, nil
}

// Grant adds a role to a user.
//
// The sequence is: no-op guard, platform addition, toggle lookup and
// conflicting-role removal, then one consolidated audit entry. A failure
// after the addition keeps the partial state (role added, conflict still
// present) and reports the error; the platform boundary cannot roll back
// across two remote mutations.
//
// Grant is idempotent: a repeat call for a held role returns Added=false and
// emits no audit entry.
func (c *Coordinator) Grant(ctx context.Context, userID, roleID string, prov Provenance, auditTitle string) (MutationResult, error) {
	if err := c.validateIDs(userID, roleID); err != nil {
		return MutationResult{}, err
	}

	held, err := c.platform.MemberRoles(ctx, userID)
	if err != nil {
		return MutationResult{}, fmt.Errorf("read member roles: %w", err)
	}
	if containsRole(held, roleID) {
		return MutationResult{Added: false}, nil
	}

	if err := c.platform.AddRole(ctx, userID, roleID, prov.AuditReason()); err != nil {
		return MutationResult{}, fmt.Errorf("add role %s: %w", roleID, err)
	}

	result := MutationResult{Added: true}
	newRoles := append(append([]string(nil), held...), roleID)

	now := c.clock().UTC()
	c.recordHistory(ctx, storage.RoleHistoryEntry{
		UserID:    userID,
		RoleID:    roleID,
		Action:    storage.HistoryAdded,
		Source:    prov.String(),
		Timestamp: now,
	})

	var toggleErr error
	if conflict, ok := c.toggles.Conflict(roleID); ok && containsRole(held, conflict) {
		if err := c.platform.RemoveRole(ctx, userID, conflict, fmt.Sprintf("toggled by adding %s", roleID)); err != nil {
			// Partial state is kept: the role was added and the conflict
			// remains. Reported, never rolled back.
			toggleErr = fmt.Errorf("remove conflicting role %s: %w", conflict, err)
		} else {
			result.RemovedConflict = conflict
			newRoles = removeRole(newRoles, conflict)
			c.recordHistory(ctx, storage.RoleHistoryEntry{
				UserID:    userID,
				RoleID:    conflict,
				Action:    storage.HistoryRemoved,
				Source:    prov.String(),
				Timestamp: now,
			})
		}
	}

	if err := c.store.SetRoleSnapshot(ctx, userID, newRoles); err != nil {
		log.Printf("grant: persist snapshot for %s: %v", userID, err)
	}

	details := fmt.Sprintf("Added role %s", roleID)
	if result.RemovedConflict != "" {
		details += fmt.Sprintf("; removed conflicting role %s (toggle group)", result.RemovedConflict)
	}
	if prov.Reason != "" {
		details += fmt.Sprintf("; reason: %s", prov.Reason)
	}
	c.recordAudit(ctx, audit.Entry{
		Title:            auditTitle,
		TargetUserID:     userID,
		ResponsibleParty: prov.Responsible(),
		Details:          details,
		Timestamp:        now,
	})

	if toggleErr != nil {
		return result, toggleErr
	}
	return result, nil
}

// Revoke removes a role from a user. A repeat call for an absent role is a
// no-op and emits no audit entry.
func (c *Coordinator) Revoke(ctx context.Context, userID, roleID string, prov Provenance, auditTitle string) (MutationResult, error) {
	if err := c.validateIDs(userID, roleID); err != nil {
		return MutationResult{}, err
	}

	held, err := c.platform.MemberRoles(ctx, userID)
	if err != nil {
		return MutationResult{}, fmt.Errorf("read member roles: %w", err)
	}
	if !containsRole(held, roleID) {
		return MutationResult{Removed: false}, nil
	}

	if err := c.platform.RemoveRole(ctx, userID, roleID, prov.AuditReason()); err != nil {
		return MutationResult{}, fmt.Errorf("remove role %s: %w", roleID, err)
	}

	now := c.clock().UTC()
	c.recordHistory(ctx, storage.RoleHistoryEntry{
		UserID:    userID,
		RoleID:    roleID,
		Action:    storage.HistoryRemoved,
		Source:    prov.String(),
		Timestamp: now,
	})
	if err := c.store.SetRoleSnapshot(ctx, userID, removeRole(held, roleID)); err != nil {
		log.Printf("revoke: persist snapshot for %s: %v", userID, err)
	}

	details := fmt.Sprintf("Removed role %s", roleID)
	if prov.Reason != "" {
		details += fmt.Sprintf("; reason: %s", prov.Reason)
	}
	c.recordAudit(ctx, audit.Entry{
		Title:            auditTitle,
		TargetUserID:     userID,
		ResponsibleParty: prov.Responsible(),
		Details:          details,
		Timestamp:        now,
	})
	return MutationResult{Removed: true}, nil
}

func (c *Coordinator) validateIDs(userID, roleID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(roleID) == "" {
		return fmt.Errorf("role id is required")
	}
	return nil
}

// recordHistory is best-effort: a history write failure must not undo a role
// mutation that already happened at the platform.
func (c *Coordinator) recordHistory(ctx context.Context, entry storage.RoleHistoryEntry) {
	if err := c.store.AppendRoleHistory(ctx, entry); err != nil {
		log.Printf("role history for %s: %v", entry.UserID, err)
	}
}

func (c *Coordinator) recordAudit(ctx context.Context, entry audit.Entry) {
	if err := c.sink.Record(ctx, entry); err != nil {
		log.Printf("audit entry %q for %s: %v", entry.Title, entry.TargetUserID, err)
	}
}

func containsRole(roleIDs []string, roleID string) bool {
	for _, id := range roleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

func removeRole(roleIDs []string, roleID string) []string {
	filtered := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		if id != roleID {
			filtered = append(filtered, id)
		}
	}
	return filtered
}
