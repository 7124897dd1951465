package gateway

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"rolewarden/internal/activity"
	"rolewarden/internal/roles"
)

// auditLookupDelay gives Discord time to write the audit log entry before the
// provenance lookup runs.
const auditLookupDelay = 2 * time.Second

func (g *Gateway) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	if strings.HasPrefix(m.Content, "/") {
		return
	}
	if err := g.engine.RecordMessageSent(context.Background(), m.Author.ID, m.ChannelID, m.ID); err != nil {
		log.Printf("message event for %s: %v", m.Author.ID, err)
	}
}

func (g *Gateway) onMessageUpdate(_ *discordgo.Session, m *discordgo.MessageUpdate) {
	if m.Author == nil || m.Author.Bot || m.GuildID == "" {
		return
	}
	oldContent := ""
	if m.BeforeUpdate != nil {
		oldContent = m.BeforeUpdate.Content
	}
	if err := g.engine.RecordMessageEdited(context.Background(), m.Author.ID, m.ChannelID, m.ID, oldContent); err != nil {
		log.Printf("message edit event for %s: %v", m.Author.ID, err)
	}
}

func (g *Gateway) onMessageDelete(_ *discordgo.Session, m *discordgo.MessageDelete) {
	// Attribution needs the cached message; an uncached deletion cannot be
	// tied to an author and is skipped.
	if m.BeforeDelete == nil || m.BeforeDelete.Author == nil || m.BeforeDelete.Author.Bot {
		return
	}
	if err := g.engine.RecordMessageDeleted(context.Background(), m.BeforeDelete.Author.ID, m.ChannelID, m.ID); err != nil {
		log.Printf("message delete event: %v", err)
	}
}

func (g *Gateway) onReactionAdd(_ *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.GuildID == "" {
		return
	}
	if err := g.engine.RecordReaction(context.Background(), r.UserID, r.ChannelID, r.MessageID, r.Emoji.Name, true); err != nil {
		log.Printf("reaction event for %s: %v", r.UserID, err)
	}
}

func (g *Gateway) onReactionRemove(_ *discordgo.Session, r *discordgo.MessageReactionRemove) {
	if r.GuildID == "" {
		return
	}
	if err := g.engine.RecordReaction(context.Background(), r.UserID, r.ChannelID, r.MessageID, r.Emoji.Name, false); err != nil {
		log.Printf("reaction event for %s: %v", r.UserID, err)
	}
}

func (g *Gateway) onVoiceStateUpdate(_ *discordgo.Session, v *discordgo.VoiceStateUpdate) {
	if v.GuildID != g.guildID {
		return
	}
	ctx := context.Background()

	beforeChannel := ""
	var before *discordgo.VoiceState
	if v.BeforeUpdate != nil {
		before = v.BeforeUpdate
		beforeChannel = v.BeforeUpdate.ChannelID
	}

	switch {
	case beforeChannel == "" && v.ChannelID != "":
		if err := g.engine.RecordVoiceJoin(ctx, v.UserID, v.ChannelID); err != nil {
			log.Printf("voice join for %s: %v", v.UserID, err)
		}
	case beforeChannel != "" && v.ChannelID == "":
		if err := g.engine.RecordVoiceLeave(ctx, v.UserID, beforeChannel); err != nil {
			log.Printf("voice leave for %s: %v", v.UserID, err)
		}
	}

	if before == nil || v.ChannelID == "" {
		return
	}
	for _, state := range voiceStateDeltas(before, v.VoiceState) {
		if err := g.engine.RecordVoiceState(ctx, v.UserID, v.ChannelID, state); err != nil {
			log.Printf("voice state for %s: %v", v.UserID, err)
		}
	}
}

// voiceStateDeltas translates the before/after flags into state-change
// events.
func voiceStateDeltas(before, after *discordgo.VoiceState) []activity.VoiceState {
	var deltas []activity.VoiceState
	if !before.SelfMute && after.SelfMute {
		deltas = append(deltas, activity.VoiceStateMuted)
	}
	if before.SelfMute && !after.SelfMute {
		deltas = append(deltas, activity.VoiceStateUnmuted)
	}
	if !before.SelfDeaf && after.SelfDeaf {
		deltas = append(deltas, activity.VoiceStateDeafened)
	}
	if before.SelfDeaf && !after.SelfDeaf {
		deltas = append(deltas, activity.VoiceStateUndeafened)
	}
	if !before.SelfStream && after.SelfStream {
		deltas = append(deltas, activity.VoiceStateStreamStarted)
	}
	if before.SelfStream && !after.SelfStream {
		deltas = append(deltas, activity.VoiceStateStreamStopped)
	}
	return deltas
}

func (g *Gateway) onGuildMemberUpdate(_ *discordgo.Session, m *discordgo.GuildMemberUpdate) {
	if m.GuildID != g.guildID || m.Member == nil || m.Member.User == nil {
		return
	}
	if m.BeforeUpdate == nil {
		// Without the cached member there is no before set to diff. The
		// snapshot is still refreshed, but passing the current set as both
		// sides keeps the history free of fabricated deltas.
		if err := g.reconciler.HandleRoleSetChanged(context.Background(), m.Member.User.ID,
			m.Member.Roles, m.Member.Roles, roles.Unknown()); err != nil {
			log.Printf("role set change for %s: %v", m.Member.User.ID, err)
		}
		return
	}
	if rolesEqual(m.BeforeUpdate.Roles, m.Member.Roles) {
		return
	}

	userID := m.Member.User.ID
	prov := g.lookupRoleChangeProvenance(userID)
	if err := g.reconciler.HandleRoleSetChanged(context.Background(), userID,
		m.BeforeUpdate.Roles, m.Member.Roles, prov); err != nil {
		log.Printf("role set change for %s: %v", userID, err)
	}
}

func (g *Gateway) onGuildMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.GuildID != g.guildID || m.User == nil || m.User.Bot {
		return
	}
	restored, err := g.reconciler.HandleMemberJoined(context.Background(), m.User.ID)
	if err != nil {
		log.Printf("member join for %s: %v", m.User.ID, err)
		return
	}
	if len(restored) > 0 {
		log.Printf("restored %d role(s) for returning member %s", len(restored), m.User.ID)
	}
}

// lookupRoleChangeProvenance asks the Discord audit log who changed the
// member's roles. Best effort: a short delay tolerates the audit log's write
// lag, and any failure degrades to Unknown.
func (g *Gateway) lookupRoleChangeProvenance(userID string) roles.Provenance {
	time.Sleep(auditLookupDelay)

	auditLog, err := g.session.GuildAuditLog(g.guildID, "", "",
		int(discordgo.AuditLogActionMemberRoleUpdate), 5)
	if err != nil {
		return roles.Unknown()
	}

	botID := ""
	if g.session.State != nil && g.session.State.User != nil {
		botID = g.session.State.User.ID
	}

	for _, entry := range auditLog.AuditLogEntries {
		if entry.TargetID != userID {
			continue
		}
		if entry.UserID == botID {
			policy := entry.Reason
			if policy == "" {
				policy = "automatic"
			}
			return roles.System(policy)
		}
		return roles.Moderator(entry.UserID)
	}
	return roles.Unknown()
}

func rolesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if !set[id] {
			return false
		}
	}
	return true
}
