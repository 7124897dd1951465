// Package gateway adapts the Discord gateway to the role engine. It owns no
// business logic: handlers translate typed gateway events into journal
// appends and reconciler calls, and the Platform implementation maps role
// mutations onto the Discord REST API.
package gateway

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"rolewarden/internal/app"
	"rolewarden/internal/roles"
)

// Gateway wires a discordgo session to the engine and reconciler.
type Gateway struct {
	session     *discordgo.Session
	guildID     string
	engine      *app.Engine
	coordinator *roles.Coordinator
	reconciler  *roles.Reconciler
	cfg         app.GuildConfig
	backups     Backups
}

// Backups triggers a manual database snapshot from the /backup-db command.
type Backups interface {
	Snapshot() (string, error)
}

// New creates the gateway around an open discordgo session.
func New(session *discordgo.Session, guildID string, engine *app.Engine, coordinator *roles.Coordinator, reconciler *roles.Reconciler, cfg app.GuildConfig, backups Backups) (*Gateway, error) {
	if session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if strings.TrimSpace(guildID) == "" {
		return nil, fmt.Errorf("guild id is required")
	}
	if engine == nil || coordinator == nil || reconciler == nil {
		return nil, fmt.Errorf("engine, coordinator and reconciler are required")
	}
	return &Gateway{
		session:     session,
		guildID:     guildID,
		engine:      engine,
		coordinator: coordinator,
		reconciler:  reconciler,
		cfg:         cfg,
		backups:     backups,
	}, nil
}

// Start registers handlers, opens the gateway connection and registers the
// guild's slash commands.
func (g *Gateway) Start(ctx context.Context) error {
	g.session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentMessageContent

	g.session.AddHandler(g.onMessageCreate)
	g.session.AddHandler(g.onMessageUpdate)
	g.session.AddHandler(g.onMessageDelete)
	g.session.AddHandler(g.onReactionAdd)
	g.session.AddHandler(g.onReactionRemove)
	g.session.AddHandler(g.onVoiceStateUpdate)
	g.session.AddHandler(g.onGuildMemberUpdate)
	g.session.AddHandler(g.onGuildMemberAdd)
	g.session.AddHandler(g.onInteractionCreate)

	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}

	if err := g.registerCommands(); err != nil {
		_ = g.session.Close()
		return fmt.Errorf("register commands: %w", err)
	}
	return nil
}

// Close shuts the gateway connection.
func (g *Gateway) Close() error {
	return g.session.Close()
}

// ListMembers enumerates the guild's members for snapshot rebuilds.
func (g *Gateway) ListMembers(ctx context.Context) ([]roles.Member, error) {
	var members []roles.Member
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := g.session.GuildMembers(g.guildID, after, 1000)
		if err != nil {
			return nil, fmt.Errorf("list guild members: %w", err)
		}
		if len(page) == 0 {
			return members, nil
		}
		for _, member := range page {
			if member.User == nil {
				continue
			}
			members = append(members, roles.Member{
				UserID:  member.User.ID,
				RoleIDs: append([]string(nil), member.Roles...),
				Bot:     member.User.Bot,
			})
			after = member.User.ID
		}
	}
}
