package joblog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/loqalabs/loqa-tts/internal/config"
)

// Record captures the metadata of one synthesis job. Transcript text is never
// stored; only its length is.
type Record struct {
	ID         int64
	JobID      string
	Engine     string
	Voice      string
	TextChars  int
	Chunks     int
	Bytes      int64
	DurationMS int64
	Status     string
	Error      string
	CreatedAt  time.Time
}

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Store persists job records in SQLite. A disabled store is a no-op.
type Store struct {
	db    *sql.DB
	cfg   config.JobLogConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the job log according to config.
func Open(ctx context.Context, cfg config.JobLogConfig, log *slog.Logger) (*Store, error) {
	if !cfg.Enabled {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("job log prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	ddl := `
CREATE TABLE IF NOT EXISTS jobs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id TEXT NOT NULL,
    engine TEXT,
    voice TEXT,
    text_chars INTEGER,
    chunks INTEGER,
    bytes INTEGER,
    duration_ms INTEGER,
    status TEXT,
    error TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs(created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append writes a job record.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if s.db == nil {
		return nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs(job_id, engine, voice, text_chars, chunks, bytes, duration_ms, status, error, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.JobID, rec.Engine, rec.Voice, rec.TextChars, rec.Chunks, rec.Bytes,
		rec.DurationMS, rec.Status, rec.Error, rec.CreatedAt.Format(time.RFC3339Nano))
	return err
}

// ListRecent retrieves up to limit records ordered newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, engine, voice, text_chars, chunks, bytes, duration_ms, status, error, created_at
		 FROM jobs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var created string
		if err := rows.Scan(&r.ID, &r.JobID, &r.Engine, &r.Voice, &r.TextChars, &r.Chunks,
			&r.Bytes, &r.DurationMS, &r.Status, &r.Error, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			r.CreatedAt = ts
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Prune trims the log to the configured maximum, dropping the oldest rows.
func (s *Store) Prune(ctx context.Context) error {
	if s.db == nil || s.cfg.MaxJobs <= 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id IN (
		SELECT id FROM jobs ORDER BY id DESC LIMIT -1 OFFSET ?
	)`, s.cfg.MaxJobs)
	return err
}
