// Package stats keeps a history of export runs in a local sqlite database.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Run is one finished export attempt.
type Run struct {
	ID        string
	ProjectID string
	Output    string
	Format    string
	Width     int
	Height    int
	FPS       int
	Frames    int // frames written
	Total     int // frames planned
	Degraded  int
	Held      int
	Status    string // completed, cancelled, failed
	Error     string
	StartedAt time.Time
	Render    time.Duration
	Encode    time.Duration
	Finalize  time.Duration
	Elapsed   time.Duration
	Build     string
}

// EffectiveFPS is frames written per wall-clock second.
func (r Run) EffectiveFPS() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Frames) / r.Elapsed.Seconds()
}

// Report formats a run the way it is printed after an export.
func (r Run) Report() string {
	return fmt.Sprintf(
		"--- [EXPORT REPORT] ---\n"+
			"Build: %s\n"+
			"Status: %s\n"+
			"Frames: %d/%d (degraded %d, held %d)\n"+
			"Total Time: %.2fs\n"+
			"Rendering: %.2fs\n"+
			"Encoding: %.2fs\n"+
			"Finalizing: %.2fs\n"+
			"Effective FPS: %.2f\n"+
			"-----------------------\n",
		r.Build, r.Status, r.Frames, r.Total, r.Degraded, r.Held,
		r.Elapsed.Seconds(), r.Render.Seconds(), r.Encode.Seconds(), r.Finalize.Seconds(), r.EffectiveFPS(),
	)
}

type Store struct {
	db *sql.DB
}

// Open creates the database file and schema if needed. ":memory:" works
// for tests.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps :memory: databases alive across calls
	db.SetMaxOpenConns(1)

	createTableSQL := `
	CREATE TABLE IF NOT EXISTS export_runs (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		output TEXT NOT NULL,
		format TEXT NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		fps INTEGER NOT NULL,
		frames INTEGER NOT NULL,
		total INTEGER NOT NULL,
		degraded INTEGER NOT NULL,
		held INTEGER NOT NULL,
		status TEXT NOT NULL,
		error TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		render_ms INTEGER NOT NULL,
		encode_ms INTEGER NOT NULL,
		finalize_ms INTEGER NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		build TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_started_at ON export_runs(started_at);
	`
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts or replaces a run.
func (s *Store) Record(ctx context.Context, r Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO export_runs (
			id, project_id, output, format, width, height, fps, frames, total, degraded, held,
			status, error, started_at, render_ms, encode_ms, finalize_ms, elapsed_ms, build)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ProjectID, r.Output, r.Format, r.Width, r.Height, r.FPS, r.Frames, r.Total, r.Degraded, r.Held,
		r.Status, r.Error, r.StartedAt.UnixMilli(),
		r.Render.Milliseconds(), r.Encode.Milliseconds(), r.Finalize.Milliseconds(), r.Elapsed.Milliseconds(), r.Build)
	if err != nil {
		return fmt.Errorf("record run %s: %w", r.ID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first. An empty projectID lists
// every project.
func (s *Store) Recent(ctx context.Context, projectID string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT id, project_id, output, format, width, height, fps, frames, total, degraded, held,
		status, error, started_at, render_ms, encode_ms, finalize_ms, elapsed_ms, build
		FROM export_runs`
	args := []any{}
	if projectID != "" {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY started_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, render, encode, finalize, elapsed int64
		if err := rows.Scan(&r.ID, &r.ProjectID, &r.Output, &r.Format, &r.Width, &r.Height, &r.FPS,
			&r.Frames, &r.Total, &r.Degraded, &r.Held, &r.Status, &r.Error,
			&started, &render, &encode, &finalize, &elapsed, &r.Build); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.StartedAt = time.UnixMilli(started)
		r.Render = time.Duration(render) * time.Millisecond
		r.Encode = time.Duration(encode) * time.Millisecond
		r.Finalize = time.Duration(finalize) * time.Millisecond
		r.Elapsed = time.Duration(elapsed) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
