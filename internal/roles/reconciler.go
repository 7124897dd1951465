package roles

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"rolewarden/internal/audit"
	"rolewarden/internal/storage"
)

// Member is one guild member as reported by the platform, used for wholesale
// snapshot rebuilds.
type Member struct {
	UserID  string
	RoleIDs []string
	Bot     bool
}

// Reconciler keeps the persisted role mirror consistent with the platform and
// restores roles when members rejoin.
type Reconciler struct {
	platform    Platform
	store       storage.RoleStore
	coordinator *Coordinator
	sink        audit.Sink
	// defaultRole is granted on cold start (first join with no saved
	// snapshot). Empty disables the default-assignment rule.
	defaultRole string
	clock       func() time.Time
}

// NewReconciler creates a reconciler. defaultRole may be empty.
func NewReconciler(platform Platform, store storage.RoleStore, coordinator *Coordinator, sink audit.Sink, defaultRole string) (*Reconciler, error) {
	if platform == nil {
		return nil, fmt.Errorf("platform is required")
	}
	if store == nil {
		return nil, fmt.Errorf("role store is required")
	}
	if coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	if sink == nil {
		sink = audit.LogSink{}
	}
	return &Reconciler{
		platform:    platform,
		store:       store,
		coordinator: coordinator,
		sink:        sink,
		defaultRole: strings.TrimSpace(defaultRole),
		clock:       time.Now,
	}, nil
}

// HandleRoleSetChanged reconciles a platform "role set changed" notification.
// The new snapshot is persisted unconditionally, and one history entry is
// appended per individual role delta. Provenance is best-effort; callers pass
// Unknown() when the platform audit trail yields nothing.
func (r *Reconciler) HandleRoleSetChanged(ctx context.Context, userID string, before, after []string, prov Provenance) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}

	if err := r.store.SetRoleSnapshot(ctx, userID, after); err != nil {
		return fmt.Errorf("persist role snapshot: %w", err)
	}

	added, removed := diffRoles(before, after)
	now := r.clock().UTC()
	for _, roleID := range added {
		r.appendHistory(ctx, userID, roleID, storage.HistoryAdded, prov, now)
	}
	for _, roleID := range removed {
		r.appendHistory(ctx, userID, roleID, storage.HistoryRemoved, prov, now)
	}
	return nil
}

// HandleMemberJoined restores a rejoining member's saved roles, or applies
// the cold-start default when no snapshot exists.
//
// Restoration filters the saved set to roles that still exist, are not
// platform-managed, and sit below the bot's hierarchy ceiling, then applies
// them in one batched call. The batch path deliberately bypasses toggle
// resolution: restoring reproduces what the member previously held, and
// silently dropping one of two saved roles would make restoration lossy.
// Returns the role ids that were applied.
func (r *Reconciler) HandleMemberJoined(ctx context.Context, userID string) ([]string, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	saved, err := r.store.RoleSnapshot(ctx, userID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("read role snapshot: %w", err)
	}

	if len(saved) == 0 {
		return r.coldStart(ctx, userID)
	}

	restorable := make([]string, 0, len(saved))
	for _, roleID := range saved {
		if !r.platform.RoleExists(roleID) {
			continue
		}
		if r.platform.RoleManaged(roleID) {
			continue
		}
		if !r.platform.RoleAssignable(roleID) {
			continue
		}
		restorable = append(restorable, roleID)
	}
	if len(restorable) == 0 {
		return nil, nil
	}

	if err := r.platform.ApplyRoles(ctx, userID, restorable, "role restoration for returning member"); err != nil {
		return nil, fmt.Errorf("apply restored roles: %w", err)
	}

	r.recordAudit(ctx, audit.Entry{
		Title:            "Roles Restored",
		TargetUserID:     userID,
		ResponsibleParty: Restoration().Responsible(),
		Details:          fmt.Sprintf("Restored %d role(s): %s", len(restorable), strings.Join(restorable, ", ")),
		Timestamp:        r.clock().UTC(),
	})
	return restorable, nil
}

// coldStart applies the configured default-assignment rule through the
// coordinator, so toggle conflicts and auditing behave like any other grant.
func (r *Reconciler) coldStart(ctx context.Context, userID string) ([]string, error) {
	if r.defaultRole == "" {
		return nil, nil
	}
	result, err := r.coordinator.Grant(ctx, userID, r.defaultRole, System("default-assignment"), "Default Role Assigned")
	if err != nil {
		return nil, fmt.Errorf("grant default role: %w", err)
	}
	if !result.Added {
		return nil, nil
	}
	return []string{r.defaultRole}, nil
}

// RebuildSnapshots refreshes the persisted snapshot for every member and
// returns how many were saved. Bots and members with no roles are skipped.
func (r *Reconciler) RebuildSnapshots(ctx context.Context, members []Member) (int, error) {
	var count int
	for _, member := range members {
		if member.Bot || len(member.RoleIDs) == 0 {
			continue
		}
		if err := r.store.SetRoleSnapshot(ctx, member.UserID, member.RoleIDs); err != nil {
			return count, fmt.Errorf("snapshot for %s: %w", member.UserID, err)
		}
		count++
	}
	return count, nil
}

func (r *Reconciler) appendHistory(ctx context.Context, userID, roleID string, action storage.HistoryAction, prov Provenance, now time.Time) {
	err := r.store.AppendRoleHistory(ctx, storage.RoleHistoryEntry{
		UserID:    userID,
		RoleID:    roleID,
		Action:    action,
		Source:    prov.String(),
		Timestamp: now,
	})
	if err != nil {
		log.Printf("role history for %s: %v", userID, err)
	}
}

func (r *Reconciler) recordAudit(ctx context.Context, entry audit.Entry) {
	if err := r.sink.Record(ctx, entry); err != nil {
		log.Printf("audit entry %q for %s: %v", entry.Title, entry.TargetUserID, err)
	}
}

// diffRoles computes the set differences between two role lists.
func diffRoles(before, after []string) (added, removed []string) {
	beforeSet := make(map[string]bool, len(before))
	for _, id := range before {
		beforeSet[id] = true
	}
	afterSet := make(map[string]bool, len(after))
	for _, id := range after {
		afterSet[id] = true
	}
	for _, id := range after {
		if !beforeSet[id] {
			added = append(added, id)
		}
	}
	for _, id := range before {
		if !afterSet[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}
