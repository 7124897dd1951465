package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	rwerrors "rolewarden/internal/errors"
	"rolewarden/internal/storage"
)

// RoleSnapshot returns the current role set for a user. The stored list is a
// materialized view with last-write-wins semantics, not an event log.
func (s *Store) RoleSnapshot(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("user id is required")
	}

	var serialized string
	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT role_ids FROM role_snapshots WHERE user_id = ?", userID)
	if err := row.Scan(&serialized); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, rwerrors.Wrap(rwerrors.CodePersistenceFailed, "read role snapshot", err)
	}

	var roleIDs []string
	if err := json.Unmarshal([]byte(serialized), &roleIDs); err != nil {
		return nil, rwerrors.Wrap(rwerrors.CodePersistenceFailed, "decode role snapshot", err)
	}
	return roleIDs, nil
}

// SetRoleSnapshot overwrites the role set for a user wholesale. Role ids are
// stored as a sorted list; the set has no meaningful order.
func (s *Store) SetRoleSnapshot(ctx context.Context, userID string, roleIDs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}

	normalized := make([]string, 0, len(roleIDs))
	for _, id := range roleIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	sort.Strings(normalized)

	serialized, err := json.Marshal(normalized)
	if err != nil {
		return rwerrors.Wrap(rwerrors.CodePersistenceFailed, "encode role snapshot", err)
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO role_snapshots (user_id, role_ids, updated_at)
VALUES (?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET
	role_ids = excluded.role_ids,
	updated_at = excluded.updated_at
`, userID, string(serialized), toMillis(time.Now()))
	if err != nil {
		return rwerrors.Wrap(rwerrors.CodePersistenceFailed, "write role snapshot", err)
	}
	return nil
}

// AppendRoleHistory appends one immutable role-change entry.
func (s *Store) AppendRoleHistory(ctx context.Context, entry storage.RoleHistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(entry.UserID) == "" {
		return fmt.Errorf("user id is required")
	}
	if strings.TrimSpace(entry.RoleID) == "" {
		return fmt.Errorf("role id is required")
	}
	if entry.Action != storage.HistoryAdded && entry.Action != storage.HistoryRemoved {
		return fmt.Errorf("history action %q is not valid", entry.Action)
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO role_history (user_id, role_id, action, source, timestamp)
VALUES (?, ?, ?, ?, ?)
`, entry.UserID, entry.RoleID, string(entry.Action), entry.Source, toMillis(entry.Timestamp))
	if err != nil {
		return rwerrors.Wrap(rwerrors.CodePersistenceFailed, "append role history", err)
	}
	return nil
}

// ListRoleHistory returns the most recent history entries for a user, newest
// first.
func (s *Store) ListRoleHistory(ctx context.Context, userID string, limit int) ([]storage.RoleHistoryEntry, error) {
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
		limit = 50
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, user_id, role_id, action, source, timestamp
FROM role_history
WHERE user_id = ?
ORDER BY timestamp DESC, id DESC
LIMIT ?
`, userID, limit)
	if err != nil {
		return nil, rwerrors.Wrap(rwerrors.CodePersistenceFailed, "list role history", err)
	}
	defer rows.Close()

	var entries []storage.RoleHistoryEntry
	for rows.Next() {
		var entry storage.RoleHistoryEntry
		var action string
		var timestamp int64
		if err := rows.Scan(&entry.ID, &entry.UserID, &entry.RoleID, &action, &entry.Source, &timestamp); err != nil {
			return nil, rwerrors.Wrap(rwerrors.CodePersistenceFailed, "scan role history", err)
		}
		entry.Action = storage.HistoryAction(action)
		entry.Timestamp = fromMillis(timestamp)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, rwerrors.Wrap(rwerrors.CodePersistenceFailed, "iterate role history", err)
	}
	return entries, nil
}
