// Package audit keeps a SQLite log of delivery attempts. Only metadata is
// stored; message bodies never leave the payload.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

// Entry is one delivery attempt.
type Entry struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	Recipient       string    `json:"recipient"`
	TargetTimestamp int64     `json:"target_timestamp,omitempty"`
	Result          string    `json:"result"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// SQLiteLog implements the delivery log on top of SQLite.
type SQLiteLog struct {
	db     *sql.DB
	logger *slog.Logger
}

func Open(dbPath string, logger *slog.Logger) (*SQLiteLog, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &SQLiteLog{db: db, logger: logger}
	if err := l.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit migration failed: %w", err)
	}
	return l, nil
}

func (l *SQLiteLog) migrate() error {
	_, err := l.db.Exec(`
	CREATE TABLE IF NOT EXISTS deliveries (
		id          TEXT PRIMARY KEY,
		kind        TEXT NOT NULL,
		recipient   TEXT NOT NULL,
		target_ts   INTEGER NOT NULL DEFAULT 0,
		result      TEXT NOT NULL,
		error       TEXT,
		created_at  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_deliveries_time ON deliveries(created_at);
	`)
	return err
}

// Record stores entry, filling in ID and CreatedAt when unset.
func (l *SQLiteLog) Record(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO deliveries (id, kind, recipient, target_ts, result, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Kind, entry.Recipient, entry.TargetTimestamp, entry.Result, entry.Error, entry.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *SQLiteLog) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, kind, recipient, target_ts, result, COALESCE(error, ''), created_at
		 FROM deliveries ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.Recipient, &e.TargetTimestamp, &e.Result, &e.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes entries older than olderThan and reports how many were removed.
func (l *SQLiteLog) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := l.db.ExecContext(ctx, `DELETE FROM deliveries WHERE created_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune deliveries: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		l.logger.Info("pruned audit log", "removed", n, "cutoff", cutoff)
	}
	return n, nil
}

func (l *SQLiteLog) Close() error {
	return l.db.Close()
}
