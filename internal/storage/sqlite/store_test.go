package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/tjfontaine/interview-gateway/internal/domain"
)

func newJournal(t *testing.T, path string) *EventJournal {
	t.Helper()
	j, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return j
}

func TestEventJournal_RecordAndList(t *testing.T) {
	j := newJournal(t, filepath.Join(t.TempDir(), "events.db"))
	defer j.Close()

	ctx := context.Background()
	at := time.Date(2025, 5, 6, 7, 8, 9, 0, time.UTC)
	events := []domain.AnticheatEvent{
		{CandidateID: "c1", EventType: "window_blur", OccurredAt: at, ReceivedAt: at},
		{CandidateID: "c2", EventType: "copy_attempt", OccurredAt: at, ReceivedAt: at},
		{CandidateID: "c1", EventType: "paste_attempt", Details: json.RawMessage(`{"length":42}`), OccurredAt: at.Add(time.Second), ReceivedAt: at.Add(time.Second)},
	}
	for _, ev := range events {
		if err := j.Record(ctx, ev); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	got, err := j.ListEvents(ctx, "c1", 0)
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].EventType != "window_blur" || got[1].EventType != "paste_attempt" {
		t.Errorf("order = %s, %s", got[0].EventType, got[1].EventType)
	}
	if got[0].Details != nil {
		t.Errorf("Details = %s, want nil", got[0].Details)
	}
	if string(got[1].Details) != `{"length":42}` {
		t.Errorf("Details = %s", got[1].Details)
	}
	if !got[1].OccurredAt.Equal(at.Add(time.Second)) {
		t.Errorf("OccurredAt = %v", got[1].OccurredAt)
	}

	limited, err := j.ListEvents(ctx, "c1", 1)
	if err != nil {
		t.Fatalf("ListEvents(limit) error = %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited len = %d, want 1", len(limited))
	}

	none, err := j.ListEvents(ctx, "nobody", 0)
	if err != nil {
		t.Fatalf("ListEvents(nobody) error = %v", err)
	}
	if len(none) != 0 {
		t.Errorf("nobody has %d events", len(none))
	}
}

func TestEventJournal_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.db")
	ctx := context.Background()

	j := newJournal(t, path)
	if err := j.Record(ctx, domain.AnticheatEvent{CandidateID: "c1", EventType: "devtools_attempt", OccurredAt: time.Now(), ReceivedAt: time.Now()}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	j.Close()

	reopened := newJournal(t, path)
	defer reopened.Close()

	got, err := reopened.ListEvents(ctx, "c1", 0)
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(got) != 1 || got[0].EventType != "devtools_attempt" {
		t.Errorf("events after reopen = %+v", got)
	}
}
