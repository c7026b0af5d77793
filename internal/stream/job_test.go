package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/loqalabs/loqa-tts/internal/engine"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type recordingObserver struct {
	mu       sync.Mutex
	started  int
	finished int
	stats    Stats
}

func (o *recordingObserver) JobStarted(_ *Job) {
	o.mu.Lock()
	o.started++
	o.mu.Unlock()
}

func (o *recordingObserver) JobFinished(_ *Job, stats Stats) {
	o.mu.Lock()
	o.finished++
	o.stats = stats
	o.mu.Unlock()
}

func TestJobForwardsChunksInOrder(t *testing.T) {
	synth := engine.NewMockSynth(22050, 1)
	synth.Script = [][]byte{[]byte("AAAA"), []byte("BB"), []byte("CCCCCC")}

	q := NewQueue(2)
	obs := &recordingObserver{}
	job := NewJob("hello world", synth, q, testLogger(), obs)

	go job.Run(context.Background())

	var got [][]byte
	for chunk := range q.Chunks() {
		got = append(got, chunk)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	for i, want := range synth.Script {
		if !bytes.Equal(got[i], want) {
			t.Fatalf("chunk %d: got %q want %q", i, got[i], want)
		}
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.started != 1 || obs.finished != 1 {
		t.Fatalf("expected one start and one finish, got %d/%d", obs.started, obs.finished)
	}
	if obs.stats.Chunks != 3 || obs.stats.Bytes != 12 {
		t.Fatalf("unexpected stats: %+v", obs.stats)
	}
	if obs.stats.Err != nil {
		t.Fatalf("unexpected error: %v", obs.stats.Err)
	}
}

func TestJobClosesQueueOnEngineError(t *testing.T) {
	synth := engine.NewMockSynth(22050, 1)
	synth.Script = [][]byte{[]byte("AA")}
	synth.Err = errors.New("engine exploded")

	q := NewQueue(2)
	obs := &recordingObserver{}
	job := NewJob("boom", synth, q, testLogger(), obs)

	done := make(chan struct{})
	go func() {
		job.Run(context.Background())
		close(done)
	}()

	var got int
	for range q.Chunks() {
		got++
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not terminate")
	}

	if got != 1 {
		t.Fatalf("expected the chunk before the failure, got %d", got)
	}
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.stats.Err == nil {
		t.Fatal("expected error recorded in stats")
	}
}

func TestJobSpeakingFlag(t *testing.T) {
	synth := engine.NewMockSynth(22050, 1)
	synth.Script = [][]byte{[]byte("AA"), []byte("BB")}
	synth.ChunkDelay = 10 * time.Millisecond

	q := NewQueue(1)
	job := NewJob("flag", synth, q, testLogger(), nil)
	if job.Speaking() {
		t.Fatal("job must start idle")
	}

	done := make(chan struct{})
	go func() {
		job.Run(context.Background())
		close(done)
	}()

	// First chunk proves the job is live.
	if _, ok := <-q.Chunks(); !ok {
		t.Fatal("expected a chunk")
	}
	if !job.Speaking() {
		t.Fatal("job should be speaking mid-stream")
	}
	for range q.Chunks() {
	}
	<-done
	if job.Speaking() {
		t.Fatal("job should be idle after completion")
	}
}

// errsFirstSynth closes its error channel before any audio is produced, so
// the job always drains errs to nil ahead of chunks.
type errsFirstSynth struct {
	*engine.MockSynth
}

func (s *errsFirstSynth) Synthesize(ctx context.Context, _ engine.SynthRequest) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte)
	errs := make(chan error)
	go func() {
		close(errs)
		time.Sleep(20 * time.Millisecond)
		select {
		case chunks <- []byte("AA"):
		case <-ctx.Done():
		}
		close(chunks)
	}()
	return chunks, errs
}

func TestJobTerminatesWhenErrorChannelClosesFirst(t *testing.T) {
	synth := &errsFirstSynth{MockSynth: engine.NewMockSynth(22050, 1)}
	q := NewQueue(2)
	job := NewJob("early close", synth, q, testLogger(), nil)

	done := make(chan struct{})
	go func() {
		job.Run(context.Background())
		close(done)
	}()

	drained := make(chan int, 1)
	go func() {
		n := 0
		for range q.Chunks() {
			n++
		}
		drained <- n
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never closed the queue after both channels closed")
	}
	if got := <-drained; got != 1 {
		t.Fatalf("expected 1 chunk, got %d", got)
	}
}

func TestJobSurvivesAbandonedConsumer(t *testing.T) {
	synth := engine.NewMockSynth(22050, 1)
	synth.Script = [][]byte{[]byte("AA"), []byte("BB"), []byte("CC"), []byte("DD")}

	q := NewQueue(1)
	job := NewJob("walkaway", synth, q, testLogger(), nil)

	// Consumer reads one chunk and disconnects.
	done := make(chan struct{})
	go func() {
		job.Run(context.Background())
		close(done)
	}()
	<-q.Chunks()
	q.Abandon()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("producer blocked after consumer abandoned the stream")
	}
}
