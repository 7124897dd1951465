// Package audit records consolidated audit entries for role mutations.
package audit

import (
	"context"
	"log"
	"time"
)

// Entry is one structured audit record. A logical action that changes two
// roles (a grant plus its toggle removal) produces exactly one entry; the
// consolidation keeps the trail readable.
type Entry struct {
	// Title names the action (e.g. "Manual Role Added").
	Title string
	// TargetUserID is the member affected.
	TargetUserID string
	// ResponsibleParty names who performed the action.
	ResponsibleParty string
	// Details describes the deltas.
	Details string
	// Timestamp is when the action completed (UTC).
	Timestamp time.Time
}

// Sink receives consolidated audit entries.
type Sink interface {
	Record(ctx context.Context, entry Entry) error
}

// LogSink writes audit entries to the process log. It is the fallback when no
// platform log channel is configured.
type LogSink struct{}

// Record implements Sink.
func (LogSink) Record(_ context.Context, entry Entry) error {
	log.Printf("audit: %s user=%s by=%s details=%q", entry.Title, entry.TargetUserID, entry.ResponsibleParty, entry.Details)
	return nil
}

// Multi fans one entry out to several sinks. Errors are collected but do not
// stop the remaining sinks.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(ctx context.Context, entry Entry) error {
	var firstErr error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Record(ctx, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Sink = LogSink{}
var _ Sink = Multi{}
