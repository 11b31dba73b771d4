package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// All is the ordered history schema. Append only; a migration's index
// plus one is the version it produces.
var All = []string{
	`CREATE TABLE runs (
		id          INTEGER PRIMARY KEY,
		started_at  INTEGER NOT NULL,
		template    TEXT NOT NULL,
		definitions INTEGER NOT NULL DEFAULT 0,
		files       INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0,
		warnings    INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE run_files (
		id           INTEGER PRIMARY KEY,
		run_id       INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		feature_path TEXT NOT NULL,
		output_path  TEXT NOT NULL,
		checksum     TEXT NOT NULL DEFAULT '',
		steps        INTEGER NOT NULL DEFAULT 0,
		error        TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE stubs (
		id          INTEGER PRIMARY KEY,
		run_file_id INTEGER NOT NULL REFERENCES run_files(id) ON DELETE CASCADE,
		keyword     TEXT NOT NULL,
		text        TEXT NOT NULL,
		method      TEXT NOT NULL
	)`,
	`CREATE INDEX run_files_run_id ON run_files(run_id)`,
}

// Migrate brings the schema up to len(All) and returns how many
// migrations it applied. Each migration commits with its version bump.
func Migrate(ctx context.Context, sqlDB *sql.DB) (int, error) {
	if _, err := sqlDB.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("creating schema_version table: %w", err)
	}

	current, err := schemaVersion(ctx, sqlDB)
	if err != nil {
		return 0, err
	}
	if current > len(All) {
		return 0, fmt.Errorf("history schema version %d is newer than this ftgen (%d)", current, len(All))
	}

	applied := 0
	for version := current + 1; version <= len(All); version++ {
		if err := apply(ctx, sqlDB, version, All[version-1]); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

// schemaVersion reads the single version row, inserting 0 when absent.
func schemaVersion(ctx context.Context, sqlDB *sql.DB) (int, error) {
	var version int
	err := sqlDB.QueryRowContext(ctx, `SELECT version FROM schema_version`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := sqlDB.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return 0, fmt.Errorf("initializing schema version: %w", err)
		}
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

func apply(ctx context.Context, sqlDB *sql.DB, version int, stmt string) error {
	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning migration %d: %w", version, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("migration %d failed: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE schema_version SET version = ?`, version); err != nil {
		return fmt.Errorf("updating schema version to %d: %w", version, err)
	}
	return tx.Commit()
}
