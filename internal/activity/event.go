package activity

import (
	"strings"
	"time"
)

// Kind identifies the kind of an activity event.
type Kind string

// Message events.
const (
	// KindMessageSent records a user sending a message.
	KindMessageSent Kind = "message.sent"
	// KindMessageEdited records an edit to an existing message.
	KindMessageEdited Kind = "message.edited"
	// KindMessageDeleted records the deletion of a message.
	KindMessageDeleted Kind = "message.deleted"
)

// Voice events.
const (
	// KindVoiceJoined records a user connecting to a voice channel.
	KindVoiceJoined Kind = "voice.joined"
	// KindVoiceLeft records a user disconnecting from a voice channel.
	KindVoiceLeft Kind = "voice.left"
	// KindVoiceState records an in-channel state change (mute, deafen, stream).
	KindVoiceState Kind = "voice.state_changed"
)

// Reaction events.
const (
	// KindReactionAdded records a reaction added to a message.
	KindReactionAdded Kind = "reaction.added"
	// KindReactionRemoved records a reaction removed from a message.
	KindReactionRemoved Kind = "reaction.removed"
)

// VoiceState describes the in-channel state transition carried by a
// voice.state_changed event.
type VoiceState string

const (
	VoiceStateMuted         VoiceState = "muted"
	VoiceStateUnmuted       VoiceState = "unmuted"
	VoiceStateDeafened      VoiceState = "deafened"
	VoiceStateUndeafened    VoiceState = "undeafened"
	VoiceStateStreamStarted VoiceState = "stream_started"
	VoiceStateStreamStopped VoiceState = "stream_stopped"
)

// Event represents an immutable record in the activity journal.
//
// Events are append-only and never updated or deleted by the engine;
// retention is a backup concern.
type Event struct {
	// ID is the journal row id. Assigned by storage on append.
	ID int64
	// UserID is the member this event belongs to.
	UserID string
	// ChannelID is the channel the event occurred in.
	ChannelID string
	// Kind identifies the kind of event.
	Kind Kind
	// Timestamp is when the event was ingested (UTC). Delivery order is not
	// guaranteed to match timestamp order across the network.
	Timestamp time.Time
	// MessageID is set for message and reaction events.
	MessageID string
	// Content holds the original content for edit/delete events (audit only).
	Content string
	// Emoji is set for reaction events.
	Emoji string
	// VoiceState is set for voice.state_changed events.
	VoiceState VoiceState
}

// IsValid reports whether the event kind is usable.
func (k Kind) IsValid() bool {
	return strings.TrimSpace(string(k)) != ""
}

// Domain returns the domain prefix of the event kind (e.g. "message", "voice").
func (k Kind) Domain() string {
	for i, c := range k {
		if c == '.' {
			return string(k[:i])
		}
	}
	return string(k)
}
