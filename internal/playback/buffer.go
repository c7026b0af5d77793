package playback

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultMinBufferBytes = 1024 * 6
	defaultIntakeDepth    = 64
)

// Config tunes the playback buffer.
type Config struct {
	// MinBufferBytes is how much audio must accumulate before playback
	// starts. A larger value trades latency for resilience to network jitter.
	MinBufferBytes int
	// FrameBytes is the size of one audio frame; every write to the sink is a
	// whole number of frames. Zero disables alignment.
	FrameBytes int
	// IntakeDepth bounds the feed channel.
	IntakeDepth int
}

// Buffer smooths a chunked network stream into frame-aligned writes to an
// audio sink. It primes until MinBufferBytes have arrived, then forwards the
// largest whole-frame prefix of whatever is buffered. A trailing partial frame
// at end of stream is dropped rather than written.
type Buffer struct {
	cfg  Config
	sink io.Writer
	log  *slog.Logger

	intake     chan []byte
	finishOnce sync.Once

	start     time.Time
	firstByte time.Time
	firstOnce sync.Once
}

func New(cfg Config, sink io.Writer, log *slog.Logger) *Buffer {
	if cfg.MinBufferBytes <= 0 {
		cfg.MinBufferBytes = defaultMinBufferBytes
	}
	if cfg.IntakeDepth <= 0 {
		cfg.IntakeDepth = defaultIntakeDepth
	}
	return &Buffer{
		cfg:    cfg,
		sink:   sink,
		log:    log.With(slog.String("component", "playback-buffer")),
		intake: make(chan []byte, cfg.IntakeDepth),
		start:  time.Now(),
	}
}

// Feed hands a received chunk to the buffer. It blocks while the intake is
// full, which propagates backpressure to the network reader.
func (b *Buffer) Feed(ctx context.Context, chunk []byte) error {
	if len(chunk) > 0 {
		b.firstOnce.Do(func() { b.firstByte = time.Now() })
	}
	select {
	case b.intake <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish signals end of stream. Safe to call more than once.
func (b *Buffer) Finish() {
	b.finishOnce.Do(func() { close(b.intake) })
}

// TimeToFirstByte reports the delay between buffer creation and the first
// received audio byte, or zero if nothing arrived yet.
func (b *Buffer) TimeToFirstByte() time.Duration {
	if b.firstByte.IsZero() {
		return 0
	}
	return b.firstByte.Sub(b.start)
}

// Run consumes the intake until Finish, writing primed, frame-aligned audio
// to the sink. It returns the first sink error encountered.
func (b *Buffer) Run() error {
	var pending []byte
	primed := false

	flush := func() error {
		n := len(pending)
		if b.cfg.FrameBytes > 0 {
			n -= n % b.cfg.FrameBytes
		}
		if n == 0 {
			return nil
		}
		if _, err := b.sink.Write(pending[:n]); err != nil {
			return err
		}
		pending = pending[n:]
		return nil
	}

	for chunk := range b.intake {
		pending = append(pending, chunk...)
		if !primed {
			if len(pending) < b.cfg.MinBufferBytes {
				continue
			}
			primed = true
			b.log.Debug("playback primed", slog.Int("buffered_bytes", len(pending)))
		}
		if err := flush(); err != nil {
			return err
		}
	}

	// Drain whatever is left; a sub-frame tail is dropped.
	if err := flush(); err != nil {
		return err
	}
	if rem := len(pending); rem > 0 {
		b.log.Debug("dropping partial frame at end of stream", slog.Int("bytes", rem))
	}
	return nil
}
