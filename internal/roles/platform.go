package roles

import "context"

// Platform is the chat-platform boundary for role mutations. Implementations
// map platform refusals onto the domain error codes: permission failures to
// CodePermissionDenied and unmanageable roles to CodeRoleHierarchy.
//
// The boundary offers no transaction across calls; a grant and its toggle
// removal are two independent remote mutations.
type Platform interface {
	// MemberRoles returns the roles the member currently holds.
	MemberRoles(ctx context.Context, userID string) ([]string, error)
	// AddRole grants one role.
	AddRole(ctx context.Context, userID, roleID, reason string) error
	// RemoveRole revokes one role.
	RemoveRole(ctx context.Context, userID, roleID, reason string) error
	// ApplyRoles grants several roles in one batched call. Used by
	// restoration, which bypasses toggle resolution.
	ApplyRoles(ctx context.Context, userID string, roleIDs []string, reason string) error
	// RoleExists reports whether the role still exists on the platform.
	RoleExists(roleID string) bool
	// RoleManaged reports whether the role is platform-managed (boost or
	// integration roles), which the engine must never assign.
	RoleManaged(roleID string) bool
	// RoleAssignable reports whether the role sits below the bot's own
	// highest manageable role.
	RoleAssignable(roleID string) bool
}
