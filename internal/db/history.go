package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Run struct {
	ID          int64
	StartedAt   time.Time
	Template    string
	Definitions int
	Files       int
	Failed      int
	Warnings    int
}

type RunFile struct {
	Feature  string
	Output   string
	Checksum string
	Steps    int
	// Err is the failure message; empty when the file was generated.
	Err   string
	Stubs []Stub
}

// Stub is an unimplemented step recorded against a generated file.
type Stub struct {
	Feature string `csv:"feature"`
	Keyword string `csv:"keyword"`
	Text    string `csv:"text"`
	Method  string `csv:"method"`
}

// RecordRun stores a run and its files in one transaction and returns the
// new run id. Files and Failed are derived from files.
func RecordRun(ctx context.Context, sqlDB *sql.DB, run Run, files []RunFile) (int64, error) {
	run.Files = len(files)
	run.Failed = 0
	for _, f := range files {
		if f.Err != "" {
			run.Failed++
		}
	}

	tx, err := sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning run: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, template, definitions, files, failed, warnings) VALUES (?, ?, ?, ?, ?, ?)`,
		run.StartedAt.Unix(), run.Template, run.Definitions, run.Files, run.Failed, run.Warnings)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, f := range files {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO run_files (run_id, feature_path, output_path, checksum, steps, error) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, f.Feature, f.Output, f.Checksum, f.Steps, f.Err)
		if err != nil {
			return 0, fmt.Errorf("inserting %s: %w", f.Feature, err)
		}
		fileID, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}
		for _, s := range f.Stubs {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO stubs (run_file_id, keyword, text, method) VALUES (?, ?, ?, ?)`,
				fileID, s.Keyword, s.Text, s.Method)
			if err != nil {
				return 0, fmt.Errorf("inserting stub %s: %w", s.Method, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// Runs returns the most recent runs first. A limit of zero returns all.
func Runs(ctx context.Context, sqlDB *sql.DB, limit int) ([]Run, error) {
	query := `SELECT id, started_at, template, definitions, files, failed, warnings FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started int64
		if err := rows.Scan(&r.ID, &started, &r.Template, &r.Definitions, &r.Files, &r.Failed, &r.Warnings); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.StartedAt = time.Unix(started, 0)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}

// LatestStubs returns the unimplemented steps of the most recent run,
// ordered by feature file.
func LatestStubs(ctx context.Context, sqlDB *sql.DB) ([]Stub, error) {
	rows, err := sqlDB.QueryContext(ctx, `
		SELECT f.feature_path, s.keyword, s.text, s.method
		FROM stubs s
		JOIN run_files f ON s.run_file_id = f.id
		WHERE f.run_id = (SELECT MAX(id) FROM runs)
		ORDER BY f.feature_path, s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying stubs: %w", err)
	}
	defer rows.Close()

	var stubs []Stub
	for rows.Next() {
		var s Stub
		if err := rows.Scan(&s.Feature, &s.Keyword, &s.Text, &s.Method); err != nil {
			return nil, fmt.Errorf("scanning stub: %w", err)
		}
		stubs = append(stubs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating stubs: %w", err)
	}
	return stubs, nil
}
