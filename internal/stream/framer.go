package stream

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/loqalabs/loqa-tts/internal/engine"
)

// unboundedSize is written into the RIFF and data chunk size fields: the body
// length is unknown when the header is emitted, and container parsers accept
// the max value as "read until the stream ends".
const unboundedSize = 0xFFFFFFFF

// ShouldEmitHeader reports whether a WAV header must precede the first audio
// chunk. Self-framing streams (MP3 and friends) never get one; raw PCM gets
// one for browsers, while programmatic clients consume raw PCM directly.
func ShouldEmitHeader(browser bool, format engine.Format) bool {
	return browser && !format.SelfFraming()
}

// Header builds a minimal streaming WAV header declaring exactly the engine's
// reported channel count, sample width and sample rate, sized for an unbounded
// body.
func Header(format engine.Format) ([]byte, error) {
	if format.SelfFraming() {
		return nil, errors.New("self-framing stream needs no header")
	}
	var buf seekBuffer
	enc := wav.NewEncoder(&buf, format.SampleRate, 8*format.SampleWidth, format.Channels, 1)
	empty := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
		SourceBitDepth: 8 * format.SampleWidth,
	}
	if err := enc.Write(empty); err != nil {
		return nil, fmt.Errorf("write wav header: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav header: %w", err)
	}

	hdr := buf.Bytes()
	if len(hdr) < 12 {
		return nil, errors.New("wav encoder produced short header")
	}
	binary.LittleEndian.PutUint32(hdr[4:8], unboundedSize)
	binary.LittleEndian.PutUint32(hdr[len(hdr)-4:], unboundedSize)
	return hdr, nil
}

// seekBuffer is an in-memory io.WriteSeeker for the wav encoder, which patches
// size fields after writing and therefore cannot target a plain bytes.Buffer.
type seekBuffer struct {
	data []byte
	pos  int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(b.pos) + offset
	case io.SeekEnd:
		pos = int64(len(b.data)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if pos < 0 {
		return 0, errors.New("negative seek position")
	}
	b.pos = int(pos)
	return pos, nil
}

func (b *seekBuffer) Bytes() []byte {
	return b.data
}
