package audit

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLog(t *testing.T) *SQLiteLog {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	l, err := Open(filepath.Join(t.TempDir(), "nested", "audit.db"), logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRecord_Recent(t *testing.T) {
	l := testLog(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	entries := []Entry{
		{Kind: "send", Recipient: "+1555", Result: ResultOK, CreatedAt: base},
		{Kind: "react", Recipient: "group:G1", TargetTimestamp: 1000, Result: ResultOK, CreatedAt: base.Add(time.Second)},
		{Kind: "mark_read", Recipient: "+1555", TargetTimestamp: 1000, Result: ResultFailed, Error: "transport unavailable", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := l.Record(ctx, e); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	got, err := l.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if got[0].Kind != "mark_read" || got[1].Kind != "react" {
		t.Errorf("expected newest first, got %s, %s", got[0].Kind, got[1].Kind)
	}
	if got[0].Result != ResultFailed || got[0].Error != "transport unavailable" {
		t.Errorf("unexpected failed entry: %+v", got[0])
	}
	if got[1].TargetTimestamp != 1000 || got[1].Recipient != "group:G1" {
		t.Errorf("unexpected react entry: %+v", got[1])
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Errorf("expected distinct generated ids, got %q and %q", got[0].ID, got[1].ID)
	}
}

func TestPrune(t *testing.T) {
	l := testLog(t)
	ctx := context.Background()

	old := Entry{Kind: "send", Recipient: "+1555", Result: ResultOK, CreatedAt: time.Now().UTC().Add(-48 * time.Hour)}
	fresh := Entry{Kind: "send", Recipient: "+1555", Result: ResultOK}
	if err := l.Record(ctx, old); err != nil {
		t.Fatal(err)
	}
	if err := l.Record(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	n, err := l.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned entry, got %d", n)
	}

	got, err := l.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Errorf("expected 1 remaining entry, got %d", len(got))
	}
}
