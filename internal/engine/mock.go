package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockSynth produces a scripted sequence of chunks. It backs the default
// configuration and most tests.
type MockSynth struct {
	format Format

	mu    sync.Mutex
	voice string

	// Script overrides the default output when non-nil.
	Script [][]byte
	// ChunkDelay spaces out chunk emission to mimic a real engine.
	ChunkDelay time.Duration
	// Err is reported after the scripted chunks have been emitted.
	Err error
}

var mockVoices = []Voice{
	{Name: "even", ID: "mock-even"},
	{Name: "bright", ID: "mock-bright"},
}

func NewMockSynth(sampleRate, channels int) *MockSynth {
	return &MockSynth{
		format: Format{
			SampleRate:  sampleRate,
			Channels:    channels,
			SampleWidth: 2,
			Encoding:    EncodingPCM,
		},
		voice: mockVoices[0].Name,
	}
}

func (m *MockSynth) Name() string { return "mock" }

func (m *MockSynth) StreamInfo() Format { return m.format }

func (m *MockSynth) Voices(_ context.Context) ([]Voice, error) {
	return append([]Voice(nil), mockVoices...), nil
}

func (m *MockSynth) SetVoice(name string) error {
	for _, v := range mockVoices {
		if v.Name == name {
			m.mu.Lock()
			m.voice = name
			m.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("unknown mock voice %q", name)
}

func (m *MockSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan []byte, <-chan error) {
	chunks := make(chan []byte)
	errs := make(chan error, 1)
	script := m.Script
	if script == nil {
		// 100ms of silence.
		script = [][]byte{make([]byte, m.format.SampleRate/10*m.format.FrameSize())}
	}
	go func() {
		defer close(chunks)
		defer close(errs)
		for _, chunk := range script {
			if m.ChunkDelay > 0 {
				select {
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				case <-time.After(m.ChunkDelay):
				}
			}
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
		if m.Err != nil {
			errs <- m.Err
		}
	}()
	return chunks, errs
}
