// Package storage provides the sqlite-backed persistence layer.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dealhound/dealhound/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteSeenStore implements service.SeenStore: an append-only record
// of already-processed listings for idempotent re-scrape protection.
type SQLiteSeenStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteSeenStore opens (creating if necessary) the seen-listing
// store at dbPath and brings its schema up to date.
func NewSQLiteSeenStore(dbPath string) (*SQLiteSeenStore, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &SQLiteSeenStore{db: db, dbPath: dbPath}
	if err := store.migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteSeenStore) Close() error {
	return s.db.Close()
}

// Has reports whether the listing id has been recorded before.
func (s *SQLiteSeenStore) Has(ctx context.Context, listingID string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(listingID, "listingID"); err != nil {
		return false, err
	}

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM seen_listings WHERE id = ?`, listingID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query seen listing: %w", err)
	}
	return true, nil
}

// Record stores a listing as seen. Recording the same id again is a
// no-op, keeping the store append-only and idempotent.
func (s *SQLiteSeenStore) Record(ctx context.Context, listing model.Listing) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(listing.ID, "listing.ID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_listings (id, title, raw_price, link, posted_at)
		 VALUES (?, ?, ?, ?, ?)`,
		listing.ID, listing.Title, listing.RawPrice, listing.Link, listing.PostedAt)
	if err != nil {
		return fmt.Errorf("failed to record listing: %w", err)
	}
	return nil
}

// Purge deletes entries first seen longer than olderThan ago and
// returns how many were removed.
func (s *SQLiteSeenStore) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-olderThan)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM seen_listings WHERE first_seen < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge seen listings: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of recorded listings.
func (s *SQLiteSeenStore) Count(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seen_listings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count seen listings: %w", err)
	}
	return n, nil
}
