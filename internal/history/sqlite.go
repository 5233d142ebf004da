package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"tgfetch/internal/model"
	"tgfetch/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Store backed by a SQLite database. It exists for
// channels whose histories outgrow the JSON file backend.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite ledger at dsn and runs pending migrations.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Contains reports whether a message ID is already in the ledger.
func (s *SQLite) Contains(ctx context.Context, messageID int64) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM downloads WHERE message_id = ?`, messageID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check download: %w", err)
	}
	return count > 0, nil
}

// Record inserts or overwrites the ledger entry for a message.
// SQLite commits synchronously, so the entry is durable on return.
func (s *SQLite) Record(ctx context.Context, e model.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO downloads (message_id, filename, size_bytes, downloaded_at)
		 VALUES (?, ?, ?, ?)`,
		e.MessageID, e.Filename, e.Size, e.DownloadedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record download: %w", err)
	}
	return nil
}

// Len returns the number of tracked entries.
func (s *SQLite) Len(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM downloads`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count downloads: %w", err)
	}
	return count, nil
}

// Entry returns the ledger entry for a message ID.
func (s *SQLite) Entry(ctx context.Context, messageID int64) (*model.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT message_id, filename, size_bytes, downloaded_at FROM downloads WHERE message_id = ?`,
		messageID,
	)
	var e model.Entry
	var downloadedAt string
	if err := row.Scan(&e.MessageID, &e.Filename, &e.Size, &downloadedAt); err != nil {
		return nil, fmt.Errorf("scan download: %w", err)
	}
	t, err := time.Parse(timeLayout, downloadedAt)
	if err != nil {
		return nil, fmt.Errorf("parse downloaded_at: %w", err)
	}
	e.DownloadedAt = t
	return &e, nil
}
