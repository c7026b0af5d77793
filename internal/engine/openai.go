package engine

import (
	"context"
	"fmt"
	"io"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// openaiSynth streams speech from the OpenAI audio API. PCM response format is
// requested so the output can be framed like any other raw engine: 24 kHz,
// mono, 16-bit little-endian.
type openaiSynth struct {
	client *openai.Client
	model  string

	mu    sync.Mutex
	voice string
}

const openaiChunkSize = 4096

var openaiVoices = []Voice{
	{Name: "alloy"},
	{Name: "echo"},
	{Name: "fable"},
	{Name: "onyx"},
	{Name: "nova"},
	{Name: "shimmer"},
}

func NewOpenAISynth(apiKey, model, voice string) Synthesizer {
	if model == "" {
		model = string(openai.TTSModel1)
	}
	if voice == "" {
		voice = string(openai.VoiceAlloy)
	}
	return &openaiSynth{
		client: openai.NewClient(apiKey),
		model:  model,
		voice:  voice,
	}
}

func (o *openaiSynth) Name() string { return "openai" }

func (o *openaiSynth) StreamInfo() Format {
	return Format{
		SampleRate:  24000,
		Channels:    1,
		SampleWidth: 2,
		Encoding:    EncodingPCM,
	}
}

func (o *openaiSynth) Voices(_ context.Context) ([]Voice, error) {
	return append([]Voice(nil), openaiVoices...), nil
}

func (o *openaiSynth) SetVoice(name string) error {
	for _, v := range openaiVoices {
		if v.Name == name {
			o.mu.Lock()
			o.voice = name
			o.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("unknown openai voice %q", name)
}

func (o *openaiSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan []byte, <-chan error) {
	o.mu.Lock()
	voice := o.voice
	o.mu.Unlock()

	chunks := make(chan []byte)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)

		resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
			Model:          openai.SpeechModel(o.model),
			Input:          req.Text,
			Voice:          openai.SpeechVoice(voice),
			ResponseFormat: openai.SpeechResponseFormatPcm,
		})
		if err != nil {
			errs <- fmt.Errorf("openai speech request: %w", err)
			return
		}
		defer resp.Close()

		for {
			buf := make([]byte, openaiChunkSize)
			n, err := resp.Read(buf)
			if n > 0 {
				select {
				case chunks <- buf[:n]:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				errs <- fmt.Errorf("read openai speech stream: %w", err)
				return
			}
		}
	}()
	return chunks, errs
}
