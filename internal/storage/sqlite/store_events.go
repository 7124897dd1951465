package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rolewarden/internal/activity"
	rwerrors "rolewarden/internal/errors"
)

// AppendEvent atomically appends an activity event and returns it with the
// journal row id set.
func (s *Store) AppendEvent(ctx context.Context, evt activity.Event) (activity.Event, error) {
	if err := ctx.Err(); err != nil {
		return activity.Event{}, err
	}
	if s == nil || s.sqlDB == nil {
		return activity.Event{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(evt.UserID) == "" {
		return activity.Event{}, fmt.Errorf("user id is required")
	}
	if !evt.Kind.IsValid() {
		return activity.Event{}, fmt.Errorf("event kind is required")
	}

	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	evt.Timestamp = evt.Timestamp.UTC().Truncate(time.Millisecond)

	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO activity_events (
	user_id,
	channel_id,
	kind,
	timestamp,
	message_id,
	content,
	emoji,
	voice_state
) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`,
		evt.UserID,
		evt.ChannelID,
		string(evt.Kind),
		toMillis(evt.Timestamp),
		evt.MessageID,
		evt.Content,
		evt.Emoji,
		string(evt.VoiceState),
	)
	if err != nil {
		return activity.Event{}, rwerrors.Wrap(rwerrors.CodePersistenceFailed, "append event", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return activity.Event{}, rwerrors.Wrap(rwerrors.CodePersistenceFailed, "event row id", err)
	}
	evt.ID = id
	return evt, nil
}

// ListEventsForUser returns one page of a user's events of the given kind,
// starting after afterID. Rows come back in append order; ingestion assigns
// timestamps, so append order tracks timestamp order except under delivery
// jitter, which replay tolerates by re-sorting before pairing. Callers page
// by passing the last id seen; the query is restartable.
func (s *Store) ListEventsForUser(ctx context.Context, userID string, kind activity.Kind, afterID int64, limit int) ([]activity.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, user_id, channel_id, kind, timestamp, message_id, content, emoji, voice_state
FROM activity_events
WHERE user_id = ? AND kind = ? AND id > ?
ORDER BY id ASC
LIMIT ?
`, userID, string(kind), afterID, limit)
	if err != nil {
		return nil, rwerrors.Wrap(rwerrors.CodePersistenceFailed, "list events", err)
	}
	defer rows.Close()

	var events []activity.Event
	for rows.Next() {
		var evt activity.Event
		var kindValue, voiceState string
		var timestamp int64
		if err := rows.Scan(
			&evt.ID,
			&evt.UserID,
			&evt.ChannelID,
			&kindValue,
			&timestamp,
			&evt.MessageID,
			&evt.Content,
			&evt.Emoji,
			&voiceState,
		); err != nil {
			return nil, rwerrors.Wrap(rwerrors.CodePersistenceFailed, "scan event", err)
		}
		evt.Kind = activity.Kind(kindValue)
		evt.VoiceState = activity.VoiceState(voiceState)
		evt.Timestamp = fromMillis(timestamp)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, rwerrors.Wrap(rwerrors.CodePersistenceFailed, "iterate events", err)
	}
	return events, nil
}
