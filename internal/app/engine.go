// Package app wires event ingestion, stats derivation, promotion evaluation
// and role mutation into one engine.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"rolewarden/internal/activity"
	"rolewarden/internal/promotion"
	"rolewarden/internal/roles"
	"rolewarden/internal/storage"
)

// Engine processes one platform event at a time: append to the journal,
// then, for message and voice-leave events, recompute stats and evaluate the
// promotion rules. All accounting state lives in the store; nothing is cached
// in memory, so a restart loses nothing.
type Engine struct {
	store       storage.Store
	platform    roles.Platform
	coordinator *roles.Coordinator
	rules       []promotion.Rule
	tracer      trace.Tracer
}

// NewEngine creates the engine. rules may be empty, which disables
// promotions.
func NewEngine(store storage.Store, platform roles.Platform, coordinator *roles.Coordinator, rules []promotion.Rule) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if platform == nil {
		return nil, fmt.Errorf("platform is required")
	}
	if coordinator == nil {
		return nil, fmt.Errorf("coordinator is required")
	}
	return &Engine{
		store:       store,
		platform:    platform,
		coordinator: coordinator,
		rules:       rules,
		tracer:      otel.Tracer("rolewarden/engine"),
	}, nil
}

// RecordMessageSent journals a sent message and re-evaluates promotions for
// the author.
func (e *Engine) RecordMessageSent(ctx context.Context, userID, channelID, messageID string) error {
	ctx, span := e.tracer.Start(ctx, "engine.RecordMessageSent",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if _, err := e.store.AppendEvent(ctx, activity.Event{
		UserID:    userID,
		ChannelID: channelID,
		Kind:      activity.KindMessageSent,
		MessageID: messageID,
	}); err != nil {
		return err
	}
	e.checkPromotion(ctx, userID)
	return nil
}

// RecordMessageEdited journals an edit with the original content for audit.
// Edits do not change message counts.
func (e *Engine) RecordMessageEdited(ctx context.Context, userID, channelID, messageID, oldContent string) error {
	_, err := e.store.AppendEvent(ctx, activity.Event{
		UserID:    userID,
		ChannelID: channelID,
		Kind:      activity.KindMessageEdited,
		MessageID: messageID,
		Content:   oldContent,
	})
	return err
}

// RecordMessageDeleted journals a deletion. Deletions do not change message
// counts.
func (e *Engine) RecordMessageDeleted(ctx context.Context, userID, channelID, messageID string) error {
	_, err := e.store.AppendEvent(ctx, activity.Event{
		UserID:    userID,
		ChannelID: channelID,
		Kind:      activity.KindMessageDeleted,
		MessageID: messageID,
	})
	return err
}

// RecordReaction journals a reaction add or remove.
func (e *Engine) RecordReaction(ctx context.Context, userID, channelID, messageID, emoji string, added bool) error {
	kind := activity.KindReactionAdded
	if !added {
		kind = activity.KindReactionRemoved
	}
	_, err := e.store.AppendEvent(ctx, activity.Event{
		UserID:    userID,
		ChannelID: channelID,
		Kind:      kind,
		MessageID: messageID,
		Emoji:     emoji,
	})
	return err
}

// RecordVoiceJoin journals a voice-channel connection.
func (e *Engine) RecordVoiceJoin(ctx context.Context, userID, channelID string) error {
	_, err := e.store.AppendEvent(ctx, activity.Event{
		UserID:    userID,
		ChannelID: channelID,
		Kind:      activity.KindVoiceJoined,
	})
	return err
}

// RecordVoiceLeave journals a voice-channel disconnect and re-evaluates
// promotions, since the closed session may have pushed the user over a
// voice-minutes threshold.
func (e *Engine) RecordVoiceLeave(ctx context.Context, userID, channelID string) error {
	ctx, span := e.tracer.Start(ctx, "engine.RecordVoiceLeave",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if _, err := e.store.AppendEvent(ctx, activity.Event{
		UserID:    userID,
		ChannelID: channelID,
		Kind:      activity.KindVoiceLeft,
	}); err != nil {
		return err
	}
	e.checkPromotion(ctx, userID)
	return nil
}

// RecordVoiceState journals an in-channel state change (mute, deafen,
// stream).
func (e *Engine) RecordVoiceState(ctx context.Context, userID, channelID string, state activity.VoiceState) error {
	_, err := e.store.AppendEvent(ctx, activity.Event{
		UserID:     userID,
		ChannelID:  channelID,
		Kind:       activity.KindVoiceState,
		VoiceState: state,
	})
	return err
}

// UserStats recomputes a user's engagement stats from the journal.
func (e *Engine) UserStats(ctx context.Context, userID string) (activity.Stats, error) {
	return activity.ComputeStats(ctx, e.store, userID)
}

// checkPromotion evaluates the configured rules and applies at most one
// promotion through the coordinator. The event path has no interactive
// caller, so failures degrade to a log entry.
func (e *Engine) checkPromotion(ctx context.Context, userID string) {
	if len(e.rules) == 0 {
		return
	}

	stats, err := activity.ComputeStats(ctx, e.store, userID)
	if err != nil {
		log.Printf("promotion check for %s: compute stats: %v", userID, err)
		return
	}

	held, err := e.platform.MemberRoles(ctx, userID)
	if err != nil {
		log.Printf("promotion check for %s: member roles: %v", userID, err)
		return
	}

	rule := promotion.Evaluate(stats, held, e.rules)
	if rule == nil {
		return
	}

	start := time.Now()
	result, err := e.coordinator.Grant(ctx, userID, rule.TargetRole, roles.System(rule.Name), "Automatic Promotion")
	if err != nil {
		log.Printf("promotion %s for %s: %v", rule.Name, userID, err)
		return
	}
	if result.Added {
		log.Printf("promoted %s via rule %s (%d msgs, %d voice min) in %s",
			userID, rule.Name, stats.Messages, stats.VoiceMinutes, time.Since(start).Round(time.Millisecond))
	}
}
