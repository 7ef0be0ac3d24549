package auditlog

import (
	"testing"
	"time"
)

func TestAppendAndAll(t *testing.T) {
	trail := New(0)
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	trail.Append(Entry{EntryType: "TriggerReceived", At: now})
	trail.Append(Entry{EntryType: "PolicyEvaluated", At: now})

	entries := trail.All()
	if len(entries) != 2 {
		t.Fatalf("len = %d, want 2", len(entries))
	}
	if entries[0].EntryType != "TriggerReceived" {
		t.Fatalf("first entry = %q, want TriggerReceived", entries[0].EntryType)
	}
}

func TestDropOldestEviction(t *testing.T) {
	trail := New(3)
	for i := 0; i < 5; i++ {
		trail.Append(Entry{EntryType: "e", Data: map[string]any{"i": i}})
	}
	entries := trail.All()
	if len(entries) != 3 {
		t.Fatalf("len = %d, want 3", len(entries))
	}
	if entries[0].Data["i"] != 2 {
		t.Fatalf("oldest retained entry = %v, want i=2", entries[0].Data["i"])
	}
}
