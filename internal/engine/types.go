package engine

import "context"

// EncodingPCM marks raw little-endian signed PCM output.
const EncodingPCM = "pcm"

// Format describes the byte stream a synthesizer produces. It is immutable for
// the lifetime of a synthesis job.
type Format struct {
	SampleRate  int
	Channels    int
	SampleWidth int    // bytes per sample
	Encoding    string // EncodingPCM or a codec name such as "mp3"
}

// SelfFraming reports whether the output already carries its own container
// framing. Self-framing streams must not be wrapped in a WAV header.
func (f Format) SelfFraming() bool {
	return f.Encoding != EncodingPCM
}

// FrameSize returns the smallest unit of audio that may be written to a
// playback device without splitting a sample across writes.
func (f Format) FrameSize() int {
	return f.Channels * f.SampleWidth
}

// MIME returns the HTTP content type for a stream of this format. PCM streams
// are served as audio/wav because consumers either receive a WAV header or
// know the raw layout out of band.
func (f Format) MIME() string {
	switch f.Encoding {
	case EncodingPCM:
		return "audio/wav"
	case "mp3":
		return "audio/mpeg"
	default:
		return "application/octet-stream"
	}
}

// Voice identifies a selectable voice on a synthesizer.
type Voice struct {
	Name string
	ID   string
}

// SynthRequest contains parameters to synthesize speech.
type SynthRequest struct {
	JobID string
	Text  string
}

// Synthesizer is the contract for producing audio. Implementations push chunks
// in generation order and close both channels when the stream ends, whether it
// ended in success or failure.
type Synthesizer interface {
	Name() string
	StreamInfo() Format
	Synthesize(ctx context.Context, req SynthRequest) (<-chan []byte, <-chan error)
	Voices(ctx context.Context) ([]Voice, error)
	SetVoice(name string) error
}
