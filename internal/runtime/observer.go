package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/loqalabs/loqa-tts/internal/bus"
	"github.com/loqalabs/loqa-tts/internal/engine"
	"github.com/loqalabs/loqa-tts/internal/joblog"
	"github.com/loqalabs/loqa-tts/internal/protocol"
	"github.com/loqalabs/loqa-tts/internal/stream"
)

const joblogWriteTimeout = 5 * time.Second

// jobObserver fans job lifecycle events out to the bus and the job log. Both
// sinks are optional; failures are logged and never surface to the stream.
type jobObserver struct {
	bus      *bus.Client
	store    *joblog.Store
	registry *engine.Registry
	log      *slog.Logger
}

func newJobObserver(busClient *bus.Client, store *joblog.Store, registry *engine.Registry, log *slog.Logger) *jobObserver {
	return &jobObserver{
		bus:      busClient,
		store:    store,
		registry: registry,
		log:      log.With(slog.String("component", "job-observer")),
	}
}

func (o *jobObserver) JobStarted(job *stream.Job) {
	if o.bus == nil {
		return
	}
	evt := protocol.JobStarted{
		JobID:     job.ID,
		Engine:    job.Synth.Name(),
		Voice:     o.registry.CurrentVoice(),
		TextChars: len(job.Text),
		Timestamp: time.Now().UTC(),
	}
	if err := o.bus.Publish(protocol.SubjectJobStarted, evt); err != nil {
		o.log.Warn("failed to publish job started event",
			slog.String("job_id", job.ID), slog.String("error", err.Error()))
	}
}

func (o *jobObserver) JobFinished(job *stream.Job, stats stream.Stats) {
	status := joblog.StatusCompleted
	errText := ""
	if stats.Err != nil {
		status = joblog.StatusFailed
		errText = stats.Err.Error()
	}

	if o.bus != nil {
		evt := protocol.JobCompleted{
			JobID:      job.ID,
			Engine:     job.Synth.Name(),
			Chunks:     stats.Chunks,
			Bytes:      stats.Bytes,
			DurationMS: stats.Duration.Milliseconds(),
			Error:      errText,
			Timestamp:  time.Now().UTC(),
		}
		if err := o.bus.Publish(protocol.SubjectJobCompleted, evt); err != nil {
			o.log.Warn("failed to publish job completed event",
				slog.String("job_id", job.ID), slog.String("error", err.Error()))
		}
	}

	if o.store != nil {
		// The job's context may already be gone; give the write its own.
		ctx, cancel := context.WithTimeout(context.Background(), joblogWriteTimeout)
		defer cancel()
		rec := joblog.Record{
			JobID:      job.ID,
			Engine:     job.Synth.Name(),
			Voice:      o.registry.CurrentVoice(),
			TextChars:  len(job.Text),
			Chunks:     stats.Chunks,
			Bytes:      stats.Bytes,
			DurationMS: stats.Duration.Milliseconds(),
			Status:     status,
			Error:      errText,
		}
		if err := o.store.Append(ctx, rec); err != nil {
			o.log.Warn("failed to record job",
				slog.String("job_id", job.ID), slog.String("error", err.Error()))
		}
	}
}
