package log

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"proxiverse.dev/internal/protocol"
	"proxiverse.dev/internal/sim/world"
)

func TestTickJournalRoundtrip(t *testing.T) {
	dir := t.TempDir()
	tl := NewTickLogger(dir)

	entries := []world.TickLogEntry{
		{
			Tick:   1,
			Joins:  []world.RecordedJoin{{AgentID: "A000001", Name: "RemoteAgent_1"}},
			Digest: "d1",
		},
		{
			Tick: 2,
			Actions: []world.RecordedAction{{
				AgentID: "A000001",
				Cmd:     protocol.CommandMsg{Action: protocol.ActionMove, Params: protocol.CommandParams{DX: 1, DY: 0}},
			}},
			Digest: "d2",
		},
		{
			Tick:   3,
			Leaves: []world.EntityID{"A000001"},
			Digest: "d3",
		},
	}
	for _, e := range entries {
		if err := tl.WriteTick(e); err != nil {
			t.Fatalf("write tick %d: %v", e.Tick, err)
		}
	}
	// The zstd frame is only complete once the writer is closed.
	if err := tl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got, err := ReadTickEntries(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("want %d entries, got %d", len(entries), len(got))
	}
	for i, e := range entries {
		g := got[i]
		if g.Tick != e.Tick || g.Digest != e.Digest {
			t.Fatalf("entry %d: %+v != %+v", i, g, e)
		}
	}
	if got[0].Joins[0].AgentID != "A000001" {
		t.Fatalf("join not preserved: %+v", got[0])
	}
	if got[1].Actions[0].Cmd.Action != protocol.ActionMove || got[1].Actions[0].Cmd.Params.DX != 1 {
		t.Fatalf("action not preserved: %+v", got[1])
	}
	if len(got[2].Leaves) != 1 || got[2].Leaves[0] != "A000001" {
		t.Fatalf("leave not preserved: %+v", got[2])
	}
}

func TestJournalFileLayout(t *testing.T) {
	dir := t.TempDir()
	tl := NewTickLogger(dir)
	if err := tl.WriteTick(world.TickLogEntry{Tick: 1, Digest: "d"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	files, err := os.ReadDir(filepath.Join(dir, "ticks"))
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("want one rotation file, got %d", len(files))
	}
	name := files[0].Name()
	if !strings.HasPrefix(name, "ticks-") || !strings.HasSuffix(name, ".jsonl.zst") {
		t.Fatalf("unexpected journal file name %q", name)
	}
}

func TestAuditLoggerWrites(t *testing.T) {
	dir := t.TempDir()
	al := NewAuditLogger(dir)
	err := al.WriteAudit(world.AuditEntry{Tick: 4, Actor: "A000002", Event: "JOIN", Pos: [2]int{2, 2}})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := al.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	files, err := os.ReadDir(filepath.Join(dir, "audit"))
	if err != nil || len(files) != 1 {
		t.Fatalf("audit journal missing: %v (%d files)", err, len(files))
	}
}

func TestReadTickEntriesMissingDir(t *testing.T) {
	if _, err := ReadTickEntries(t.TempDir()); err == nil {
		t.Fatalf("missing ticks dir should error")
	}
}
