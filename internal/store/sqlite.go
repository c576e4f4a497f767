package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteRunStore implements RunStore on a SQLite database file.
type SQLiteRunStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteRunStore opens or creates the run database at path.
func NewSQLiteRunStore(path string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with single writer
	db.SetMaxOpenConns(1)

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteRunStore{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *SQLiteRunStore) Path() string { return s.path }

// RecordRun implements RunStore.
func (s *SQLiteRunStore) RecordRun(ctx context.Context, r Run) (string, error) {
	r = prepare(r)
	var errText sql.NullString
	if r.Error != "" {
		errText = sql.NullString{String: r.Error, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, detector, file, records, mean_score, max_score,
			anomalies_flagged, duration_ms, started_at, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Detector, r.File, r.Records, r.MeanScore, r.MaxScore,
		r.AnomaliesFlagged, r.Duration.Milliseconds(), r.StartedAt.UnixNano(), string(r.Status), errText)
	if err != nil {
		return "", fmt.Errorf("failed to insert run %s: %w", r.ID, err)
	}
	return r.ID, nil
}

// ListRuns implements RunStore.
func (s *SQLiteRunStore) ListRuns(ctx context.Context, f Filter) ([]Run, error) {
	var where []string
	var args []any
	if f.Detector != "" {
		where = append(where, "detector = ?")
		args = append(args, f.Detector)
	}
	if f.File != "" {
		where = append(where, "file = ?")
		args = append(args, f.File)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	query := `SELECT id, detector, file, records, mean_score, max_score,
		anomalies_flagged, duration_ms, started_at, status, error FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC, id ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			durationMS int64
			startedAt  int64
			status     string
			errText    sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Detector, &r.File, &r.Records, &r.MeanScore, &r.MaxScore,
			&r.AnomaliesFlagged, &durationMS, &startedAt, &status, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		r.StartedAt = time.Unix(0, startedAt).UTC()
		r.Status = Status(status)
		r.Error = errText.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// Close implements RunStore.
func (s *SQLiteRunStore) Close() error {
	return s.db.Close()
}
