package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{`
CREATE TABLE IF NOT EXISTS slots (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	revision   INTEGER NOT NULL DEFAULT 1,
	source     TEXT NOT NULL DEFAULT '',
	updated_at INTEGER NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS slot_clock (
	id  INTEGER PRIMARY KEY CHECK (id = 1),
	seq INTEGER NOT NULL
)`,
	`INSERT OR IGNORE INTO slot_clock (id, seq) SELECT 1, COALESCE(MAX(revision), 0) FROM slots`,
}

// SQLiteBackend stores slots in a SQLite table. Every write stamps its row
// with the next value of a database-wide clock, so revisions are never reused
// even when a slot is removed and written again. A poll loop compares
// revisions to report writes made by other processes.
type SQLiteBackend struct {
	db     *sql.DB
	logger *zap.Logger

	mu     sync.Mutex
	known  map[string]int64 // last revision seen or written, per key
	closed bool

	stopCh  chan struct{}
	doneCh  chan struct{}
	changes fanout
}

// OpenSQLite opens the database at path and starts polling every interval.
// A non-positive interval disables cross-process polling.
func OpenSQLite(path string, interval time.Duration, logger *zap.Logger) (*SQLiteBackend, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create slots schema: %w", err)
		}
	}

	b := &SQLiteBackend{
		db:     db,
		logger: logger,
		known:  make(map[string]int64),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if err := b.snapshotRevisions(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if interval > 0 {
		go b.pollLoop(interval)
	} else {
		close(b.doneCh)
	}
	return b, nil
}

func (b *SQLiteBackend) snapshotRevisions() error {
	revs, err := b.revisions(context.Background())
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, r := range revs {
		b.known[k] = r
	}
	return nil
}

func (b *SQLiteBackend) revisions(ctx context.Context) (map[string]int64, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT key, revision FROM slots`)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var key string
		var rev int64
		if err := rows.Scan(&key, &rev); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		out[key] = rev
	}
	return out, rows.Err()
}

// Get implements Backend.
func (b *SQLiteBackend) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := b.db.QueryRowContext(ctx, `SELECT value FROM slots WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get slot %q: %w", key, err)
	}
	return value, true, nil
}

// Set implements Backend.
func (b *SQLiteBackend) Set(ctx context.Context, key, value, source string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrUnavailable
	}
	old, _, _ := b.Get(ctx, key)
	rev, err := b.write(ctx, key, value, source)
	if err != nil {
		b.mu.Unlock()
		return fmt.Errorf("set slot %q: %w", key, err)
	}
	b.known[key] = rev
	b.mu.Unlock()

	b.changes.publish(ChangeEvent{Key: key, OldValue: old, NewValue: value, Source: source})
	return nil
}

func (b *SQLiteBackend) write(ctx context.Context, key, value, source string) (int64, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	var rev int64
	if err := tx.QueryRowContext(ctx,
		`UPDATE slot_clock SET seq = seq + 1 WHERE id = 1 RETURNING seq`).Scan(&rev); err != nil {
		return 0, fmt.Errorf("advance clock: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO slots (key, value, revision, source, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			revision = excluded.revision,
			source = excluded.source,
			updated_at = excluded.updated_at`,
		key, value, rev, source, time.Now().UTC().UnixMilli(),
	); err != nil {
		return 0, err
	}
	return rev, tx.Commit()
}

// Remove implements Backend.
func (b *SQLiteBackend) Remove(ctx context.Context, key, source string) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrUnavailable
	}
	old, existed, _ := b.Get(ctx, key)
	if _, err := b.db.ExecContext(ctx, `DELETE FROM slots WHERE key = ?`, key); err != nil {
		b.mu.Unlock()
		return fmt.Errorf("remove slot %q: %w", key, err)
	}
	delete(b.known, key)
	b.mu.Unlock()

	if existed {
		b.changes.publish(ChangeEvent{Key: key, OldValue: old, Removed: true, Source: source})
	}
	return nil
}

// Subscribe implements Backend.
func (b *SQLiteBackend) Subscribe(fn func(ChangeEvent)) func() {
	return b.changes.subscribe(fn)
}

// Close stops polling and closes the database.
func (b *SQLiteBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	select {
	case <-b.doneCh:
	default:
		close(b.stopCh)
		<-b.doneCh
	}
	return b.db.Close()
}

func (b *SQLiteBackend) pollLoop(interval time.Duration) {
	defer close(b.doneCh)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.Poll(context.Background()); err != nil {
				b.logger.Warn("SQLite storage poll failed", zap.Error(err))
			}
		case <-b.stopCh:
			return
		}
	}
}

// Poll compares stored revisions with the last known ones and reports every
// slot changed or removed by another process.
func (b *SQLiteBackend) Poll(ctx context.Context) error {
	revs, err := b.revisions(ctx)
	if err != nil {
		return err
	}

	var events []ChangeEvent
	b.mu.Lock()
	for key, rev := range revs {
		if b.known[key] == rev {
			continue
		}
		b.known[key] = rev
		events = append(events, ChangeEvent{Key: key})
	}
	for key := range b.known {
		if _, ok := revs[key]; !ok {
			delete(b.known, key)
			events = append(events, ChangeEvent{Key: key, Removed: true})
		}
	}
	b.mu.Unlock()

	for _, ev := range events {
		if !ev.Removed {
			ev.NewValue, _, _ = b.Get(ctx, ev.Key)
		}
		b.changes.publish(ev)
	}
	return nil
}
