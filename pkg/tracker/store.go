package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Subscription asks for periodic follower tracking of one profile in one chat
type Subscription struct {
	Username  string
	ChatID    int64
	CreatedAt time.Time
}

// Key identifies the subscription's scheduled job
func (s Subscription) Key() string {
	return fmt.Sprintf("tracking_%s_%d", s.Username, s.ChatID)
}

// Store persists subscriptions in SQLite so they survive restarts
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the subscription database at path
func OpenStore(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer; also keeps :memory: databases on a single connection
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS subscriptions (
			username TEXT NOT NULL,
			chat_id INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (username, chat_id)
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &Store{db: db}, nil
}

// Add inserts a subscription. It reports false when it already exists.
func (s *Store) Add(ctx context.Context, sub Subscription) (bool, error) {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO subscriptions (username, chat_id, created_at) VALUES (?, ?, ?)`,
		sub.Username, sub.ChatID, sub.CreatedAt.UTC())
	if err != nil {
		return false, fmt.Errorf("insert subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert subscription: %w", err)
	}
	return n > 0, nil
}

// Remove deletes a subscription. It reports false when none existed.
func (s *Store) Remove(ctx context.Context, username string, chatID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM subscriptions WHERE username = ? AND chat_id = ?`, username, chatID)
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete subscription: %w", err)
	}
	return n > 0, nil
}

// List returns every subscription, oldest first
func (s *Store) List(ctx context.Context) ([]Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username, chat_id, created_at FROM subscriptions ORDER BY created_at, username, chat_id`)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.Username, &sub.ChatID, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
