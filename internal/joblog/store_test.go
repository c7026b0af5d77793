package joblog

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/loqalabs/loqa-tts/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenDisabled(t *testing.T) {
	s, err := Open(context.Background(), config.JobLogConfig{Enabled: false}, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Append(context.Background(), Record{JobID: "job-1"}); err != nil {
		t.Fatalf("append on disabled store must be a no-op: %v", err)
	}
	records, err := s.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}

func TestAppendAndListRecent(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.JobLogConfig{Enabled: true, Path: filepath.Join(tmp, "jobs.db"), MaxJobs: 100}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open job log: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Append(context.Background(), Record{
		JobID: "job-1", Engine: "mock", Voice: "even",
		TextChars: 11, Chunks: 3, Bytes: 4096, DurationMS: 120,
		Status: StatusCompleted,
	}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(context.Background(), Record{
		JobID: "job-2", Engine: "mock", Status: StatusFailed, Error: "engine exploded",
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	records, err := s.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].JobID != "job-2" {
		t.Fatalf("expected newest first, got %q", records[0].JobID)
	}
	if records[1].Bytes != 4096 || records[1].Chunks != 3 {
		t.Fatalf("unexpected record: %+v", records[1])
	}
	if records[0].Error != "engine exploded" {
		t.Fatalf("unexpected error field: %q", records[0].Error)
	}
	if records[1].CreatedAt.IsZero() {
		t.Fatal("created_at must round-trip")
	}
}

func TestPruneKeepsNewestJobs(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.JobLogConfig{Enabled: true, Path: filepath.Join(tmp, "jobs.db"), MaxJobs: 2}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open job log: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	for _, id := range []string{"job-1", "job-2", "job-3"} {
		if err := s.Append(context.Background(), Record{JobID: id, Status: StatusCompleted}); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
	}
	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	records, err := s.ListRecent(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records after prune, got %d", len(records))
	}
	if records[0].JobID != "job-3" || records[1].JobID != "job-2" {
		t.Fatalf("pruned the wrong rows: %q, %q", records[0].JobID, records[1].JobID)
	}
}
