package stream

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/loqa-tts/internal/engine"
)

// Stats summarizes a finished synthesis job.
type Stats struct {
	Chunks   int
	Bytes    int64
	Duration time.Duration
	Err      error
}

// Observer receives job lifecycle notifications.
type Observer interface {
	JobStarted(job *Job)
	JobFinished(job *Job, stats Stats)
}

// Job orchestrates one text-to-audio request: it owns the queue, drives the
// engine adapter, and tracks its speaking state.
type Job struct {
	ID    string
	Text  string
	Synth engine.Synthesizer

	queue    *Queue
	log      *slog.Logger
	observer Observer
	speaking atomic.Bool
}

func NewJob(text string, synth engine.Synthesizer, queue *Queue, log *slog.Logger, observer Observer) *Job {
	return &Job{
		ID:       uuid.NewString(),
		Text:     text,
		Synth:    synth,
		queue:    queue,
		log:      log.With(slog.String("component", "synthesis-job")),
		observer: observer,
	}
}

// Speaking reports whether the job is currently producing audio.
func (j *Job) Speaking() bool {
	return j.speaking.Load()
}

func (j *Job) Queue() *Queue {
	return j.queue
}

// Run drives the engine until it completes or fails, forwarding every chunk
// into the queue in emission order. The queue is closed on every exit path so
// the consumer is never left blocked on a stream that will not end.
func (j *Job) Run(ctx context.Context) {
	j.speaking.Store(true)
	start := time.Now()
	var stats Stats

	defer func() {
		j.queue.Close()
		j.speaking.Store(false)
		stats.Duration = time.Since(start)
		if j.observer != nil {
			j.observer.JobFinished(j, stats)
		}
	}()

	if j.observer != nil {
		j.observer.JobStarted(j)
	}

	chunks, errs := j.Synth.Synthesize(ctx, engine.SynthRequest{JobID: j.ID, Text: j.Text})
	for chunks != nil || errs != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if err := j.queue.Push(ctx, chunk); err != nil {
				stats.Err = err
				j.log.Warn("synthesis cancelled mid-stream",
					slog.String("job_id", j.ID), slog.String("error", err.Error()))
				return
			}
			stats.Chunks++
			stats.Bytes += int64(len(chunk))
		case err, ok := <-errs:
			if ok && err != nil {
				stats.Err = err
				j.log.Warn("synthesis error",
					slog.String("job_id", j.ID),
					slog.String("engine", j.Synth.Name()),
					slog.String("error", err.Error()))
			}
			errs = nil
		case <-ctx.Done():
			stats.Err = ctx.Err()
			return
		}
	}
}
