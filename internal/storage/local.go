package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// LocalBackend stores values as JSON text in a local SQLite database.
type LocalBackend struct {
	db *sqlx.DB
}

type kvRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// OpenLocal opens (or creates) the SQLite database at dbPath, enables
// WAL mode and applies any pending schema migrations.
func OpenLocal(dbPath string) (*LocalBackend, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("local storage path is empty")
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating storage directory %s: %w", dir, err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// A single connection keeps ":memory:" databases coherent and
	// serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	b := &LocalBackend{db: db}
	if err := b.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return b, nil
}

// Close closes the underlying database connection.
func (b *LocalBackend) Close() error {
	return b.db.Close()
}

// Name implements Backend.
func (b *LocalBackend) Name() string {
	return BackendLocal
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (b *LocalBackend) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := b.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = b.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := b.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Get implements Backend.
func (b *LocalBackend) Get(ctx context.Context, keys []string) (map[string]any, error) {
	result := make(map[string]any, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In("SELECT key, value FROM kv WHERE key IN (?)", keys)
	if err != nil {
		return nil, fmt.Errorf("building kv query: %w", err)
	}

	var rows []kvRow
	if err := b.db.SelectContext(ctx, &rows, b.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying kv: %w", err)
	}

	for _, row := range rows {
		result[row.Key] = decodeValue(row.Value)
	}

	return result, nil
}

// Set implements Backend.
func (b *LocalBackend) Set(ctx context.Context, items map[string]any) error {
	if len(items) == 0 {
		return nil
	}

	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("preparing kv upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for key, value := range items {
		encoded, err := encodeValue(key, value)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, key, encoded, now); err != nil {
			return fmt.Errorf("upserting %q: %w", key, err)
		}
	}

	return tx.Commit()
}

// Clear implements Backend.
func (b *LocalBackend) Clear(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, "DELETE FROM kv"); err != nil {
		return fmt.Errorf("clearing kv: %w", err)
	}
	return nil
}
