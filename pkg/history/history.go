// Package history keeps a ledger of finished swap jobs in SQLite.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"genre-swap/pkg/models"

	_ "modernc.org/sqlite"
)

const DefaultLimit = 50

// Entry is one finished job.
type Entry struct {
	JobID            string        `json:"job_id"`
	TrackID          string        `json:"track_id"`
	GenreID          string        `json:"genre_id"`
	CacheKey         string        `json:"cache_key"`
	Status           string        `json:"status"`
	FailedStage      string        `json:"failed_stage,omitempty"`
	Error            string        `json:"error,omitempty"`
	CacheHit         bool          `json:"cache_hit"`
	ResultID         string        `json:"result_id,omitempty"`
	Confidence       float64       `json:"confidence"`
	CulturalAccuracy float64       `json:"cultural_accuracy"`
	Duration         time.Duration `json:"duration"`
	FinishedAt       time.Time     `json:"finished_at"`
}

type Ledger struct {
	db     *sql.DB
	logger *slog.Logger
}

const schema = `
CREATE TABLE IF NOT EXISTS swap_history (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL UNIQUE,
	track_id TEXT NOT NULL,
	genre_id TEXT NOT NULL,
	cache_key TEXT NOT NULL,
	status TEXT NOT NULL,
	failed_stage TEXT,
	error TEXT,
	cache_hit BOOLEAN DEFAULT 0,
	result_id TEXT,
	confidence REAL,
	cultural_accuracy REAL,
	duration_ms INTEGER NOT NULL,
	finished_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_track ON swap_history(track_id);
CREATE INDEX IF NOT EXISTS idx_history_finished ON swap_history(finished_at);
`

// Open creates the database at path (and its directory) if needed.
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create history table: %w", err)
	}
	return &Ledger{db: db, logger: logger.With("component", "history")}, nil
}

// Record stores a finished job. Its signature matches the coordinator's
// completion hook; failures are logged, not returned.
func (l *Ledger) Record(job models.SwapJob, result *models.SwapResult, err error) {
	e := Entry{
		JobID:       job.ID,
		TrackID:     job.SourceTrackID,
		GenreID:     job.Options.TargetGenreID,
		CacheKey:    job.CacheKey,
		Status:      string(job.Status),
		FailedStage: job.FailedStage,
		Error:       job.Error,
		CacheHit:    job.CacheHit,
		Duration:    job.UpdatedAt.Sub(job.CreatedAt),
		FinishedAt:  job.UpdatedAt,
	}
	if e.Error == "" && err != nil {
		e.Error = err.Error()
	}
	if result != nil {
		e.ResultID = result.ID
		e.Confidence = result.Confidence
		e.CulturalAccuracy = result.CulturalAccuracy
	}
	if err := l.Insert(context.Background(), e); err != nil {
		l.logger.Error("History: failed to record job", "job_id", job.ID, "error", err)
	}
}

func (l *Ledger) Insert(ctx context.Context, e Entry) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO swap_history
			(job_id, track_id, genre_id, cache_key, status, failed_stage, error,
			 cache_hit, result_id, confidence, cultural_accuracy, duration_ms, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.JobID, e.TrackID, e.GenreID, e.CacheKey, e.Status, e.FailedStage, e.Error,
		e.CacheHit, e.ResultID, e.Confidence, e.CulturalAccuracy,
		e.Duration.Milliseconds(), e.FinishedAt.UnixNano())
	return err
}

// Recent returns up to limit entries, newest first. A trackID narrows the
// result to one source track.
func (l *Ledger) Recent(ctx context.Context, trackID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query := `SELECT job_id, track_id, genre_id, cache_key, status, failed_stage, error,
			cache_hit, result_id, confidence, cultural_accuracy, duration_ms, finished_at
		FROM swap_history`
	args := []any{}
	if trackID != "" {
		query += ` WHERE track_id = ?`
		args = append(args, trackID)
	}
	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                    Entry
			failedStage, errText sql.NullString
			resultID             sql.NullString
			durationMS, finished int64
		)
		if err := rows.Scan(&e.JobID, &e.TrackID, &e.GenreID, &e.CacheKey, &e.Status,
			&failedStage, &errText, &e.CacheHit, &resultID, &e.Confidence, &e.CulturalAccuracy,
			&durationMS, &finished); err != nil {
			return nil, err
		}
		e.FailedStage = failedStage.String
		e.Error = errText.String
		e.ResultID = resultID.String
		e.Duration = time.Duration(durationMS) * time.Millisecond
		e.FinishedAt = time.Unix(0, finished)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *Ledger) Close() error {
	return l.db.Close()
}
