// Package storage defines the persistence contracts for the role engine.
package storage

import (
	"context"
	"errors"
	"time"

	"rolewarden/internal/activity"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// HistoryAction describes a single role delta.
type HistoryAction string

const (
	// HistoryAdded records a role granted to a user.
	HistoryAdded HistoryAction = "added"
	// HistoryRemoved records a role removed from a user.
	HistoryRemoved HistoryAction = "removed"
)

// RoleHistoryEntry is one immutable row in the role-change history. One entry
// is written per individual role delta, even when several roles change in a
// single logical operation.
type RoleHistoryEntry struct {
	// ID is the history row id. Assigned by storage on append.
	ID int64
	// UserID is the member whose role changed.
	UserID string
	// RoleID is the role that was added or removed.
	RoleID string
	// Action is the delta direction.
	Action HistoryAction
	// Source is the rendered provenance of the change.
	Source string
	// Timestamp is when the change was recorded (UTC).
	Timestamp time.Time
}

// EventStore persists the append-only activity journal.
type EventStore interface {
	// AppendEvent atomically appends an event and returns it with its id set.
	// It fails only on unrecoverable storage I/O; callers validate business
	// data before appending.
	AppendEvent(ctx context.Context, evt activity.Event) (activity.Event, error)
	// ListEventsForUser returns one page of a user's events of the given
	// kind in append order, starting after afterID. Ingestion assigns
	// timestamps, so append order tracks timestamp order except under
	// delivery jitter; replay re-sorts by timestamp before pairing.
	ListEventsForUser(ctx context.Context, userID string, kind activity.Kind, afterID int64, limit int) ([]activity.Event, error)
}

// RoleStore persists the materialized role snapshot and the role history log.
type RoleStore interface {
	// RoleSnapshot returns the current role set for a user, or ErrNotFound
	// when no snapshot has been recorded.
	RoleSnapshot(ctx context.Context, userID string) ([]string, error)
	// SetRoleSnapshot overwrites the role set for a user wholesale.
	SetRoleSnapshot(ctx context.Context, userID string, roleIDs []string) error
	// AppendRoleHistory appends one immutable history entry.
	AppendRoleHistory(ctx context.Context, entry RoleHistoryEntry) error
	// ListRoleHistory returns the most recent history entries for a user,
	// newest first.
	ListRoleHistory(ctx context.Context, userID string, limit int) ([]RoleHistoryEntry, error)
}

// Store combines the persistence surfaces backed by a single durable store.
type Store interface {
	EventStore
	RoleStore
}
