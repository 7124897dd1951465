package activity

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

const replayPageSize = 200

// Stats holds the engagement totals derived from a user's event stream.
type Stats struct {
	// Messages is the count of message.sent events. Edits and deletes are
	// recorded for audit only and do not change this count.
	Messages int
	// VoiceMinutes is the total whole minutes spent connected to voice
	// channels across closed join/leave sessions.
	VoiceMinutes int
}

// Source reads a user's event sub-stream in ascending (timestamp, id) order.
// Implementations must be restartable; ComputeStats may re-query.
type Source interface {
	ListEventsForUser(ctx context.Context, userID string, kind Kind, afterID int64, limit int) ([]Event, error)
}

// ComputeStats derives engagement stats for a user by replaying the relevant
// event sub-streams. The computation is stateless and idempotent: two calls
// over an unchanged journal yield identical results.
func ComputeStats(ctx context.Context, source Source, userID string) (Stats, error) {
	if source == nil {
		return Stats{}, fmt.Errorf("event source is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return Stats{}, fmt.Errorf("user id is required")
	}

	messages, err := countEvents(ctx, source, userID, KindMessageSent)
	if err != nil {
		return Stats{}, err
	}

	joins, err := collectEvents(ctx, source, userID, KindVoiceJoined)
	if err != nil {
		return Stats{}, err
	}
	leaves, err := collectEvents(ctx, source, userID, KindVoiceLeft)
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		Messages:     messages,
		VoiceMinutes: pairVoiceMinutes(append(joins, leaves...)),
	}, nil
}

// pairVoiceMinutes runs the single-slot session state machine over the merged
// join/leave stream. Events are sorted by timestamp before pairing so that
// late-arriving events do not corrupt session boundaries.
//
// Policy: a duplicate join while connected is ignored (the timer is not
// reset), a leave while idle is ignored, and a dangling join at the end of
// the stream contributes zero minutes until its leave is observed.
func pairVoiceMinutes(events []Event) int {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].ID < events[j].ID
		}
		return events[i].Timestamp.Before(events[j].Timestamp)
	})

	var minutes int
	var connected bool
	var sessionStart int64
	for _, evt := range events {
		switch evt.Kind {
		case KindVoiceJoined:
			if !connected {
				connected = true
				sessionStart = evt.Timestamp.UnixMilli()
			}
		case KindVoiceLeft:
			if !connected {
				continue
			}
			seconds := (evt.Timestamp.UnixMilli() - sessionStart) / 1000
			if seconds > 0 {
				minutes += int(seconds / 60)
			}
			connected = false
		}
	}
	return minutes
}

func countEvents(ctx context.Context, source Source, userID string, kind Kind) (int, error) {
	var count int
	var afterID int64
	for {
		events, err := source.ListEventsForUser(ctx, userID, kind, afterID, replayPageSize)
		if err != nil {
			return 0, err
		}
		if len(events) == 0 {
			return count, nil
		}
		count += len(events)
		afterID = events[len(events)-1].ID
	}
}

func collectEvents(ctx context.Context, source Source, userID string, kind Kind) ([]Event, error) {
	var collected []Event
	var afterID int64
	for {
		events, err := source.ListEventsForUser(ctx, userID, kind, afterID, replayPageSize)
		if err != nil {
			return nil, err
		}
		if len(events) == 0 {
			return collected, nil
		}
		collected = append(collected, events...)
		afterID = events[len(events)-1].ID
	}
}
