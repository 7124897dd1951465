package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"

	rwerrors "rolewarden/internal/errors"
	"rolewarden/internal/roles"
)

// Platform implements roles.Platform over a discordgo session. It maps
// Discord REST refusals onto the domain error taxonomy.
type Platform struct {
	session *discordgo.Session
	guildID string
}

// NewPlatform creates the platform boundary for one guild.
func NewPlatform(session *discordgo.Session, guildID string) *Platform {
	return &Platform{session: session, guildID: guildID}
}

// MemberRoles implements roles.Platform.
func (p *Platform) MemberRoles(_ context.Context, userID string) ([]string, error) {
	member, err := p.member(userID)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), member.Roles...), nil
}

// AddRole implements roles.Platform.
func (p *Platform) AddRole(_ context.Context, userID, roleID, reason string) error {
	if !p.RoleAssignable(roleID) {
		return rwerrors.New(rwerrors.CodeRoleHierarchy,
			fmt.Sprintf("role %s is at or above the bot's highest role", roleID))
	}
	err := p.session.GuildMemberRoleAdd(p.guildID, userID, roleID, discordgo.WithAuditLogReason(reason))
	return mapRESTError(err, "add role")
}

// RemoveRole implements roles.Platform.
func (p *Platform) RemoveRole(_ context.Context, userID, roleID, reason string) error {
	if !p.RoleAssignable(roleID) {
		return rwerrors.New(rwerrors.CodeRoleHierarchy,
			fmt.Sprintf("role %s is at or above the bot's highest role", roleID))
	}
	err := p.session.GuildMemberRoleRemove(p.guildID, userID, roleID, discordgo.WithAuditLogReason(reason))
	return mapRESTError(err, "remove role")
}

// ApplyRoles implements roles.Platform. The member edit replaces the role
// set, so the batch is the union of what the member already holds and the
// roles to apply.
func (p *Platform) ApplyRoles(_ context.Context, userID string, roleIDs []string, reason string) error {
	member, err := p.member(userID)
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(member.Roles)+len(roleIDs))
	merged := make([]string, 0, len(member.Roles)+len(roleIDs))
	for _, id := range member.Roles {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}
	for _, id := range roleIDs {
		if !seen[id] {
			seen[id] = true
			merged = append(merged, id)
		}
	}

	_, err = p.session.GuildMemberEdit(p.guildID, userID, &discordgo.GuildMemberParams{
		Roles: &merged,
	}, discordgo.WithAuditLogReason(reason))
	return mapRESTError(err, "apply roles")
}

// RoleExists implements roles.Platform.
func (p *Platform) RoleExists(roleID string) bool {
	return p.role(roleID) != nil
}

// RoleManaged implements roles.Platform. Managed roles belong to
// integrations or boosts and must never be assigned by the bot.
func (p *Platform) RoleManaged(roleID string) bool {
	role := p.role(roleID)
	return role != nil && role.Managed
}

// RoleAssignable implements roles.Platform: the role must sit strictly below
// the bot's own highest role.
func (p *Platform) RoleAssignable(roleID string) bool {
	role := p.role(roleID)
	if role == nil {
		return false
	}
	return role.Position < p.botTopPosition()
}

func (p *Platform) member(userID string) (*discordgo.Member, error) {
	if member, err := p.session.State.Member(p.guildID, userID); err == nil && member != nil {
		return member, nil
	}
	member, err := p.session.GuildMember(p.guildID, userID)
	if err != nil {
		return nil, mapRESTError(err, "fetch member")
	}
	return member, nil
}

func (p *Platform) role(roleID string) *discordgo.Role {
	guild, err := p.session.State.Guild(p.guildID)
	if err == nil && guild != nil {
		for _, role := range guild.Roles {
			if role.ID == roleID {
				return role
			}
		}
		return nil
	}
	guildRoles, err := p.session.GuildRoles(p.guildID)
	if err != nil {
		return nil
	}
	for _, role := range guildRoles {
		if role.ID == roleID {
			return role
		}
	}
	return nil
}

func (p *Platform) botTopPosition() int {
	if p.session.State == nil || p.session.State.User == nil {
		return 0
	}
	member, err := p.member(p.session.State.User.ID)
	if err != nil {
		return 0
	}
	top := 0
	for _, roleID := range member.Roles {
		if role := p.role(roleID); role != nil && role.Position > top {
			top = role.Position
		}
	}
	return top
}

// mapRESTError converts discordgo REST failures into the domain taxonomy.
func mapRESTError(err error, op string) error {
	if err == nil {
		return nil
	}
	if restErr, ok := err.(*discordgo.RESTError); ok && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusForbidden:
			return rwerrors.Wrap(rwerrors.CodePermissionDenied, op, err)
		case http.StatusNotFound:
			return rwerrors.Wrap(rwerrors.CodeNotFound, op, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

var _ roles.Platform = (*Platform)(nil)
