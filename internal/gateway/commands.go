package gateway

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/bwmarrin/discordgo"

	rwerrors "rolewarden/internal/errors"
	"rolewarden/internal/roles"
)

const roleButtonPrefix = "role_button_"

func (g *Gateway) registerCommands() error {
	adminOnly := int64(discordgo.PermissionAdministrator)
	manageRoles := int64(discordgo.PermissionManageRoles)

	commands := []*discordgo.ApplicationCommand{
		{
			Name:                     "role",
			Description:              "Manual role management for moderators.",
			DefaultMemberPermissions: &manageRoles,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Add a role to a user.",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "The user to add the role to.", Required: true},
						{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "The role to add.", Required: true},
						{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for the change."},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Remove a role from a user.",
					Options: []*discordgo.ApplicationCommandOption{
						{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "The user to remove the role from.", Required: true},
						{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "The role to remove.", Required: true},
						{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for the change."},
					},
				},
			},
		},
		{
			Name:        "stats",
			Description: "Show a user's activity stats.",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "The user to look up.", Required: true},
			},
		},
		{
			Name:                     "rebuild-roles-db",
			Description:              "Scans all members and populates the role database.",
			DefaultMemberPermissions: &adminOnly,
		},
		{
			Name:                     "backup-db",
			Description:              "Manually triggers a database backup.",
			DefaultMemberPermissions: &adminOnly,
		},
		{
			Name:                     "post-roles",
			Description:              "Posts the self-assignable role message.",
			DefaultMemberPermissions: &manageRoles,
		},
	}

	appID := g.session.State.User.ID
	for _, command := range commands {
		if _, err := g.session.ApplicationCommandCreate(appID, g.guildID, command); err != nil {
			return fmt.Errorf("create command %s: %w", command.Name, err)
		}
	}
	return nil
}

func (g *Gateway) onInteractionCreate(_ *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		g.handleCommand(i)
	case discordgo.InteractionMessageComponent:
		g.handleRoleButton(i)
	}
}

func (g *Gateway) handleCommand(i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	switch data.Name {
	case "role":
		g.handleRoleCommand(i, data)
	case "stats":
		g.handleStatsCommand(i, data)
	case "rebuild-roles-db":
		g.handleRebuildCommand(i)
	case "backup-db":
		g.handleBackupCommand(i)
	case "post-roles":
		g.handlePostRolesCommand(i)
	}
}

func (g *Gateway) handleRoleCommand(i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !g.isModerator(i.Member) {
		g.respond(i, "You don't have permission to use this command.")
		return
	}
	if len(data.Options) == 0 {
		return
	}

	sub := data.Options[0]
	var userID, roleID, reason string
	for _, option := range sub.Options {
		switch option.Name {
		case "user":
			userID = option.Value.(string)
		case "role":
			roleID = option.Value.(string)
		case "reason":
			reason = option.StringValue()
		}
	}
	actorID := ""
	if i.Member != nil && i.Member.User != nil {
		actorID = i.Member.User.ID
	}
	prov := roles.Moderator(actorID).WithReason(reason)

	ctx := context.Background()
	switch sub.Name {
	case "add":
		result, err := g.coordinator.Grant(ctx, userID, roleID, prov, "Manual Role Added")
		if err != nil {
			g.respond(i, commandFailureMessage(err, roleID))
			return
		}
		if !result.Added {
			g.respond(i, "The user already has that role.")
			return
		}
		message := fmt.Sprintf("Successfully added <@&%s> to <@%s>.", roleID, userID)
		if result.RemovedConflict != "" {
			message += fmt.Sprintf(" Removed conflicting role <@&%s>.", result.RemovedConflict)
		}
		g.respond(i, message)
	case "remove":
		result, err := g.coordinator.Revoke(ctx, userID, roleID, prov, "Manual Role Removed")
		if err != nil {
			g.respond(i, commandFailureMessage(err, roleID))
			return
		}
		if !result.Removed {
			g.respond(i, "The user does not have that role.")
			return
		}
		g.respond(i, fmt.Sprintf("Successfully removed <@&%s> from <@%s>.", roleID, userID))
	}
}

func (g *Gateway) handleStatsCommand(i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	var userID string
	for _, option := range data.Options {
		if option.Name == "user" {
			userID = option.Value.(string)
		}
	}
	stats, err := g.engine.UserStats(context.Background(), userID)
	if err != nil {
		g.respond(i, "Could not compute stats for that user.")
		log.Printf("stats command for %s: %v", userID, err)
		return
	}
	g.respond(i, fmt.Sprintf("<@%s>: %d messages, %d voice minutes.", userID, stats.Messages, stats.VoiceMinutes))
}

func (g *Gateway) handleRebuildCommand(i *discordgo.InteractionCreate) {
	ctx := context.Background()
	members, err := g.ListMembers(ctx)
	if err != nil {
		g.respond(i, "Failed to enumerate guild members.")
		log.Printf("rebuild command: %v", err)
		return
	}
	count, err := g.reconciler.RebuildSnapshots(ctx, members)
	if err != nil {
		g.respond(i, "Failed while saving role snapshots.")
		log.Printf("rebuild command: %v", err)
		return
	}
	g.respond(i, fmt.Sprintf("Successfully scanned and saved roles for %d members.", count))
}

func (g *Gateway) handleBackupCommand(i *discordgo.InteractionCreate) {
	if g.backups == nil {
		g.respond(i, "Backups are not configured.")
		return
	}
	name, err := g.backups.Snapshot()
	if err != nil {
		g.respond(i, fmt.Sprintf("Backup failed: %v", err))
		return
	}
	g.respond(i, fmt.Sprintf("Backup successful: `%s`", name))
}

func (g *Gateway) handlePostRolesCommand(i *discordgo.InteractionCreate) {
	cfg := g.cfg.SelfAssign
	if cfg.ChannelID == "" || len(cfg.Roles) == 0 {
		g.respond(i, "The self_assign_roles configuration is missing from the rules file.")
		return
	}

	var buttons []discordgo.MessageComponent
	for _, role := range cfg.Roles {
		buttons = append(buttons, discordgo.Button{
			Label:    role.Label,
			Style:    buttonStyle(role.Style),
			CustomID: roleButtonPrefix + role.RoleID,
		})
	}

	title := cfg.Title
	if title == "" {
		title = "Role Selection"
	}
	description := cfg.Description
	if description == "" {
		description = "Click the buttons to get your roles."
	}

	_, err := g.session.ChannelMessageSendComplex(cfg.ChannelID, &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       title,
			Description: description,
		}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: buttons},
		},
	})
	if err != nil {
		g.respond(i, "I don't have permission to post in the configured channel.")
		return
	}
	g.respond(i, fmt.Sprintf("Role message posted in <#%s>.", cfg.ChannelID))
}

// handleRoleButton toggles a self-assigned role: held roles are removed,
// absent ones granted (with toggle-group resolution).
func (g *Gateway) handleRoleButton(i *discordgo.InteractionCreate) {
	customID := i.MessageComponentData().CustomID
	if !strings.HasPrefix(customID, roleButtonPrefix) {
		return
	}
	roleID := strings.TrimPrefix(customID, roleButtonPrefix)
	if i.Member == nil || i.Member.User == nil {
		return
	}
	userID := i.Member.User.ID

	ctx := context.Background()
	held := false
	for _, id := range i.Member.Roles {
		if id == roleID {
			held = true
			break
		}
	}

	if held {
		if _, err := g.coordinator.Revoke(ctx, userID, roleID, roles.SelfService(), "Self-Assigned Role Removed"); err != nil {
			g.respond(i, "I couldn't remove that role.")
			return
		}
		g.respond(i, fmt.Sprintf("The <@&%s> role has been removed.", roleID))
		return
	}

	result, err := g.coordinator.Grant(ctx, userID, roleID, roles.SelfService(), "Self-Assigned Role")
	if err != nil {
		g.respond(i, "I couldn't assign that role.")
		return
	}
	message := fmt.Sprintf("You've been given the <@&%s> role!", roleID)
	if result.RemovedConflict != "" {
		message += fmt.Sprintf(" The conflicting <@&%s> role was removed.", result.RemovedConflict)
	}
	g.respond(i, message)
}

// isModerator allows administrators and holders of the configured mod role.
func (g *Gateway) isModerator(member *discordgo.Member) bool {
	if member == nil {
		return false
	}
	if member.Permissions&discordgo.PermissionAdministrator != 0 {
		return true
	}
	if g.cfg.ModRoleID == "" {
		return false
	}
	for _, roleID := range member.Roles {
		if roleID == g.cfg.ModRoleID {
			return true
		}
	}
	return false
}

func (g *Gateway) respond(i *discordgo.InteractionCreate, content string) {
	err := g.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("interaction response: %v", err)
	}
}

// commandFailureMessage renders a specific message for the failed
// precondition, per error code.
func commandFailureMessage(err error, roleID string) string {
	switch rwerrors.GetCode(err) {
	case rwerrors.CodeRoleHierarchy:
		return fmt.Sprintf("I can't manage <@&%s> because it is higher than or equal to my highest role.", roleID)
	case rwerrors.CodePermissionDenied:
		return "I don't have the necessary permissions to manage that role."
	case rwerrors.CodeNotFound:
		return "That user or role no longer exists."
	case rwerrors.CodePersistenceFailed:
		return "The role change was applied but could not be recorded; check the logs."
	default:
		return fmt.Sprintf("An unexpected error occurred: %v", err)
	}
}

func buttonStyle(style string) discordgo.ButtonStyle {
	switch strings.ToLower(style) {
	case "primary":
		return discordgo.PrimaryButton
	case "secondary":
		return discordgo.SecondaryButton
	case "danger":
		return discordgo.DangerButton
	default:
		return discordgo.SuccessButton
	}
}
