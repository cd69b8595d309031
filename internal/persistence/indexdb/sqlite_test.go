package indexdb

import (
	"path/filepath"
	"testing"

	"proxiverse.dev/internal/sim/world"
)

func openTestIndex(t *testing.T) *SQLiteIndex {
	t.Helper()
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndex_TickRows(t *testing.T) {
	idx := openTestIndex(t)

	for i := uint64(1); i <= 3; i++ {
		entry := world.TickLogEntry{Tick: i, Digest: "d"}
		if i == 2 {
			entry.Joins = []world.RecordedJoin{{AgentID: "A000001", Name: "RemoteAgent_1"}}
			entry.Leaves = []world.EntityID{"A000009"}
		}
		if err := idx.WriteTick(entry); err != nil {
			t.Fatalf("write tick %d: %v", i, err)
		}
	}
	idx.Drain()

	rows, err := idx.RecentTicks(10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("want 3 rows, got %d", len(rows))
	}
	// Most recent tick first.
	if rows[0].Tick != 3 || rows[2].Tick != 1 {
		t.Fatalf("unexpected order: %+v", rows)
	}
	if rows[1].Joins != 1 || rows[1].Leaves != 1 {
		t.Fatalf("counts not recorded: %+v", rows[1])
	}
	if rows[0].Recorded == "" {
		t.Fatalf("recorded_at missing")
	}

	// Re-writing a tick replaces its row rather than duplicating it.
	if err := idx.WriteTick(world.TickLogEntry{Tick: 3, Digest: "d2"}); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	idx.Drain()
	rows, err = idx.RecentTicks(10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 3 || rows[0].Digest != "d2" {
		t.Fatalf("tick rewrite not applied: %+v", rows)
	}
}

func TestIndex_AuditRows(t *testing.T) {
	idx := openTestIndex(t)

	events := []world.AuditEntry{
		{Tick: 1, Actor: "A000001", Event: "JOIN", Pos: [2]int{2, 2}},
		{Tick: 5, Actor: "A000001", Event: "LEAVE", Pos: [2]int{3, 2}},
		{Tick: 6, Event: "INVARIANT", Detail: "cell index disagrees with registry"},
	}
	for _, e := range events {
		if err := idx.WriteAudit(e); err != nil {
			t.Fatalf("write audit: %v", err)
		}
	}
	idx.Drain()

	rows, err := idx.RecentAudits(2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("limit not honored, got %d rows", len(rows))
	}
	if rows[0].Event != "INVARIANT" || rows[1].Event != "LEAVE" {
		t.Fatalf("unexpected order: %+v", rows)
	}
	if rows[0].Detail == "" {
		t.Fatalf("detail payload missing")
	}
}

func TestIndex_WriteAfterClose(t *testing.T) {
	idx, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := idx.WriteTick(world.TickLogEntry{Tick: 1}); err == nil {
		t.Fatalf("write after close must fail")
	}
	// Second close is a no-op.
	if err := idx.Close(); err != nil {
		t.Fatalf("double close: %v", err)
	}
}

func TestIndex_ReopenSeesExistingRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	idx, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := idx.WriteTick(world.TickLogEntry{Tick: 7, Digest: "d"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	idx2, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer idx2.Close()
	rows, err := idx2.RecentTicks(10)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0].Tick != 7 {
		t.Fatalf("rows lost across reopen: %+v", rows)
	}
}
