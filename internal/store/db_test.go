package store

import (
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.CreateSchema(); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	return s
}

func sampleEvent(id string, ts time.Time) *ErrorEvent {
	return &ErrorEvent{
		ErrorID:   id,
		Timestamp: ts,
		Origin:    "setup.sh:42",
		Command:   "pkg install nginx",
		ExitCode:  100,
		Severity:  "normal",
		Recovery:  "recovered",
		TracePath: "/data/diagnostics/" + id + "-trace.txt",
		StatePath: "/data/diagnostics/" + id + "-state.txt",
		Notified:  false,
	}
}

func TestInsertAndGetErrorEvent(t *testing.T) {
	s := newTestStore(t)
	ts := time.Date(2024, 6, 1, 10, 0, 0, 500_000_000, time.UTC)

	if err := s.InsertErrorEvent(sampleEvent("aaaa1111", ts)); err != nil {
		t.Fatalf("InsertErrorEvent: %v", err)
	}

	got, err := s.GetErrorEvent("aaaa1111")
	if err != nil {
		t.Fatalf("GetErrorEvent: %v", err)
	}
	if got.Command != "pkg install nginx" || got.ExitCode != 100 {
		t.Errorf("round-tripped event mismatch: %+v", got)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("timestamp = %v, want %v (sub-second precision kept)", got.Timestamp, ts)
	}
	if got.Recovery != "recovered" {
		t.Errorf("recovery = %q, want recovered", got.Recovery)
	}
}

func TestGetErrorEventNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetErrorEvent("missing"); err == nil {
		t.Error("expected error for unknown event ID")
	}
}

func TestListErrorEventsNewestFirst(t *testing.T) {
	s := newTestStore(t)
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"e1", "e2", "e3"} {
		if err := s.InsertErrorEvent(sampleEvent(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("InsertErrorEvent %s: %v", id, err)
		}
	}

	events, err := s.ListErrorEvents(2)
	if err != nil {
		t.Fatalf("ListErrorEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].ErrorID != "e3" || events[1].ErrorID != "e2" {
		t.Errorf("order = %s, %s; want e3, e2", events[0].ErrorID, events[1].ErrorID)
	}

	n, err := s.CountErrorEvents()
	if err != nil {
		t.Fatalf("CountErrorEvents: %v", err)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestRotationHistory(t *testing.T) {
	s := newTestStore(t)

	if r, err := s.LastRotation("/data/logs/activity.log"); err != nil || r != nil {
		t.Fatalf("LastRotation on empty store = %v, %v; want nil, nil", r, err)
	}

	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	first := &Rotation{
		Timestamp:   base,
		File:        "/data/logs/activity.log",
		RotatedTo:   "/data/logs/activity-20240601-100000.log",
		PrunedCount: 0,
	}
	second := &Rotation{
		Timestamp:   base.Add(time.Hour),
		File:        "/data/logs/activity.log",
		RotatedTo:   "/data/logs/activity-20240601-110000.log",
		PrunedCount: 2,
	}
	if err := s.InsertRotation(first); err != nil {
		t.Fatalf("InsertRotation: %v", err)
	}
	if err := s.InsertRotation(second); err != nil {
		t.Fatalf("InsertRotation: %v", err)
	}
	if first.ID == 0 || second.ID == 0 {
		t.Error("InsertRotation should backfill row IDs")
	}

	last, err := s.LastRotation("/data/logs/activity.log")
	if err != nil {
		t.Fatalf("LastRotation: %v", err)
	}
	if last == nil || last.RotatedTo != second.RotatedTo || last.PrunedCount != 2 {
		t.Errorf("LastRotation = %+v, want the second pass", last)
	}

	all, err := s.ListRotations(10)
	if err != nil {
		t.Fatalf("ListRotations: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d rotations, want 2", len(all))
	}
	if all[0].RotatedTo != second.RotatedTo {
		t.Errorf("ListRotations order = %s first, want newest first", all[0].RotatedTo)
	}
}
