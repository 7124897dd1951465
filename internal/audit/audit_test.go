package audit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type captureSink struct {
	entries []Entry
	err     error
}

func (s *captureSink) Record(_ context.Context, entry Entry) error {
	s.entries = append(s.entries, entry)
	return s.err
}

func TestMultiFansOutToAllSinks(t *testing.T) {
	first := &captureSink{}
	second := &captureSink{}
	sinks := Multi{first, second}

	entry := Entry{Title: "Manual Role Added", TargetUserID: "u1", Timestamp: time.Now()}
	if err := sinks.Record(context.Background(), entry); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(first.entries) != 1 || len(second.entries) != 1 {
		t.Fatalf("fan-out incomplete: %d, %d", len(first.entries), len(second.entries))
	}
}

func TestMultiContinuesPastFailures(t *testing.T) {
	failing := &captureSink{err: errors.New("channel gone")}
	healthy := &captureSink{}
	sinks := Multi{failing, healthy}

	err := sinks.Record(context.Background(), Entry{Title: "t"})
	if err == nil {
		t.Fatal("expected the first sink's error")
	}
	if len(healthy.entries) != 1 {
		t.Fatal("later sink was skipped after a failure")
	}
}

func TestMultiSkipsNilSinks(t *testing.T) {
	healthy := &captureSink{}
	sinks := Multi{nil, healthy}

	if err := sinks.Record(context.Background(), Entry{Title: "t"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(healthy.entries) != 1 {
		t.Fatal("entry did not reach the non-nil sink")
	}
}
