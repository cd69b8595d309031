package indexdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"proxiverse.dev/internal/sim/world"
)

// SQLiteIndex is a read-model over the tick and audit streams. Writes are
// funneled through a single background goroutine so journal calls from the
// world loop never block on the database.
type SQLiteIndex struct {
	db *sql.DB

	ch     chan req
	wg     sync.WaitGroup
	once   sync.Once
	closed atomic.Bool
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqAudit
	reqBarrier
)

type req struct {
	kind    reqKind
	tick    world.TickLogEntry
	audit   world.AuditEntry
	barrier chan struct{}
}

func Open(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	idx := &SQLiteIndex{
		db: db,
		ch: make(chan req, 256),
	}
	idx.wg.Add(1)
	go idx.writer()
	return idx, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA synchronous=NORMAL`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			joins INTEGER NOT NULL,
			leaves INTEGER NOT NULL,
			actions INTEGER NOT NULL,
			digest TEXT NOT NULL,
			detail TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audits (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			tick INTEGER NOT NULL,
			actor TEXT NOT NULL,
			event TEXT NOT NULL,
			detail TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS audits_tick ON audits(tick)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (idx *SQLiteIndex) writer() {
	defer idx.wg.Done()
	for r := range idx.ch {
		switch r.kind {
		case reqTick:
			idx.insertTick(r.tick)
		case reqAudit:
			idx.insertAudit(r.audit)
		case reqBarrier:
			close(r.barrier)
		}
	}
}

func (idx *SQLiteIndex) enqueue(r req) error {
	if idx.closed.Load() {
		return fmt.Errorf("index closed")
	}
	select {
	case idx.ch <- r:
		return nil
	default:
		// Index is best-effort; drop rather than stall the caller.
		return fmt.Errorf("index queue full")
	}
}

// WriteTick implements world.TickLogger.
func (idx *SQLiteIndex) WriteTick(entry world.TickLogEntry) error {
	return idx.enqueue(req{kind: reqTick, tick: entry})
}

// WriteAudit implements world.AuditLogger.
func (idx *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	return idx.enqueue(req{kind: reqAudit, audit: entry})
}

func (idx *SQLiteIndex) insertTick(entry world.TickLogEntry) {
	detail, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = idx.db.Exec(
		`INSERT OR REPLACE INTO ticks (tick, joins, leaves, actions, digest, detail, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Tick, len(entry.Joins), len(entry.Leaves), len(entry.Actions),
		entry.Digest, string(detail), time.Now().UTC().Format(time.RFC3339Nano),
	)
}

func (idx *SQLiteIndex) insertAudit(entry world.AuditEntry) {
	detail, err := json.Marshal(entry)
	if err != nil {
		return
	}
	_, _ = idx.db.Exec(
		`INSERT INTO audits (tick, actor, event, detail, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		entry.Tick, entry.Actor, entry.Event, string(detail),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
}

// Close drains queued writes and closes the database.
func (idx *SQLiteIndex) Close() error {
	var err error
	idx.once.Do(func() {
		idx.closed.Store(true)
		close(idx.ch)
		idx.wg.Wait()
		err = idx.db.Close()
	})
	return err
}

// Drain blocks until previously enqueued writes reach the database. Tests
// use it to avoid sleeping.
func (idx *SQLiteIndex) Drain() {
	if idx.closed.Load() {
		return
	}
	barrier := make(chan struct{})
	idx.ch <- req{kind: reqBarrier, barrier: barrier}
	<-barrier
}

type TickRow struct {
	Tick     uint64
	Joins    int
	Leaves   int
	Actions  int
	Digest   string
	Recorded string
}

func (idx *SQLiteIndex) RecentTicks(limit int) ([]TickRow, error) {
	rows, err := idx.db.Query(
		`SELECT tick, joins, leaves, actions, digest, recorded_at FROM ticks ORDER BY tick DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TickRow
	for rows.Next() {
		var r TickRow
		if err := rows.Scan(&r.Tick, &r.Joins, &r.Leaves, &r.Actions, &r.Digest, &r.Recorded); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type AuditRow struct {
	Seq      int64
	Tick     uint64
	Actor    string
	Event    string
	Detail   string
	Recorded string
}

func (idx *SQLiteIndex) RecentAudits(limit int) ([]AuditRow, error) {
	rows, err := idx.db.Query(
		`SELECT seq, tick, actor, event, detail, recorded_at FROM audits ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditRow
	for rows.Next() {
		var r AuditRow
		if err := rows.Scan(&r.Seq, &r.Tick, &r.Actor, &r.Event, &r.Detail, &r.Recorded); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
