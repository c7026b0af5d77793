package playback

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVSink writes little-endian 16-bit PCM bytes into a seekable WAV file,
// fixing up the header sizes on Close.
type WAVSink struct {
	enc    *wav.Encoder
	format *audio.Format
}

func NewWAVSink(ws io.WriteSeeker, sampleRate, channels int) *WAVSink {
	return &WAVSink{
		enc:    wav.NewEncoder(ws, sampleRate, 16, channels, 1),
		format: &audio.Format{SampleRate: sampleRate, NumChannels: channels},
	}
}

// Write converts raw s16le bytes into samples and appends them. The byte
// count must be even; the playback buffer guarantees frame alignment.
func (s *WAVSink) Write(p []byte) (int, error) {
	if len(p)%2 != 0 {
		return 0, fmt.Errorf("pcm write of %d bytes is not sample aligned", len(p))
	}
	samples := make([]int, len(p)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(p[i*2:])))
	}
	buf := &audio.IntBuffer{Format: s.format, Data: samples, SourceBitDepth: 16}
	if err := s.enc.Write(buf); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close finalizes the WAV header. The file is not valid until Close returns.
func (s *WAVSink) Close() error {
	return s.enc.Close()
}
