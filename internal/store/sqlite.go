package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/cropper/internal/crop"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial kv_items table
// 1 - Added index on kv_items.seq
const currentSchemaVersion = 1

// SQLiteBackend stores items in a kv_items table.
type SQLiteBackend struct {
	db    *sql.DB
	clock *crop.Clock
}

// OpenSQLite creates or opens a SQLite database at path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// Safe to call repeatedly on the same path.
func OpenSQLite(path string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	var maxSeq int64
	if err := db.QueryRow("SELECT COALESCE(MAX(seq), 0) FROM kv_items").Scan(&maxSeq); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read max seq: %w", err)
	}

	return &SQLiteBackend{db: db, clock: crop.NewClockAt(maxSeq)}, nil
}

// Close closes the database connection.
func (b *SQLiteBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// GetItem implements Backend.
func (b *SQLiteBackend) GetItem(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := b.db.QueryRowContext(ctx,
		"SELECT value FROM kv_items WHERE key = ?", key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get item %s: %w", key, err)
	}
	return value, true, nil
}

// SetItem implements Backend. Existing keys are overwritten.
func (b *SQLiteBackend) SetItem(ctx context.Context, key, value string) error {
	_, err := b.db.ExecContext(ctx, `
		INSERT INTO kv_items (key, value, seq) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, seq = excluded.seq
	`, key, value, b.clock.Next())
	if err != nil {
		return fmt.Errorf("set item %s: %w", key, err)
	}
	return nil
}

// RemoveItem implements Backend.
func (b *SQLiteBackend) RemoveItem(ctx context.Context, key string) error {
	if _, err := b.db.ExecContext(ctx, "DELETE FROM kv_items WHERE key = ?", key); err != nil {
		return fmt.Errorf("remove item %s: %w", key, err)
	}
	return nil
}

// Keys returns all stored keys in write order.
func (b *SQLiteBackend) Keys(ctx context.Context) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, "SELECT key FROM kv_items ORDER BY seq ASC, key COLLATE BINARY ASC")
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 indexes kv_items by write order.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_kv_items_seq ON kv_items(seq)`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (b *SQLiteBackend) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := b.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
