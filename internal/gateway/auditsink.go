package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"rolewarden/internal/audit"
)

// ChannelSink posts consolidated audit entries as embeds to the configured
// log channel.
type ChannelSink struct {
	session   *discordgo.Session
	channelID string
}

// NewChannelSink creates a sink for the given channel.
func NewChannelSink(session *discordgo.Session, channelID string) *ChannelSink {
	return &ChannelSink{session: session, channelID: channelID}
}

// Record implements audit.Sink.
func (s *ChannelSink) Record(_ context.Context, entry audit.Entry) error {
	embed := &discordgo.MessageEmbed{
		Title: entry.Title,
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Target User", Value: fmt.Sprintf("<@%s>", entry.TargetUserID), Inline: true},
			{Name: "Responsible Party", Value: entry.ResponsibleParty, Inline: true},
			{Name: "Details", Value: entry.Details},
		},
		Timestamp: entry.Timestamp.Format(time.RFC3339),
	}
	if _, err := s.session.ChannelMessageSendEmbed(s.channelID, embed); err != nil {
		return fmt.Errorf("post audit embed: %w", err)
	}
	return nil
}

var _ audit.Sink = (*ChannelSink)(nil)
