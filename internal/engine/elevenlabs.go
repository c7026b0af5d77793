package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// elevenlabsSynth streams speech from the ElevenLabs REST API. The output is
// MP3, which frames itself, so no WAV header is ever emitted for this engine.
type elevenlabsSynth struct {
	apiKey  string
	modelID string
	client  *http.Client

	mu      sync.Mutex
	voiceID string
	voices  []Voice
}

const (
	elevenlabsBaseURL      = "https://api.elevenlabs.io"
	elevenlabsOutputFormat = "mp3_44100_128"
	elevenlabsChunkSize    = 4096
)

type elevenlabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

type elevenlabsVoicesResponse struct {
	Voices []struct {
		VoiceID string `json:"voice_id"`
		Name    string `json:"name"`
	} `json:"voices"`
}

func NewElevenLabsSynth(apiKey, modelID, voiceID string) Synthesizer {
	if modelID == "" {
		modelID = "eleven_flash_v2_5"
	}
	return &elevenlabsSynth{
		apiKey:  apiKey,
		modelID: modelID,
		voiceID: voiceID,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

func (e *elevenlabsSynth) Name() string { return "elevenlabs" }

func (e *elevenlabsSynth) StreamInfo() Format {
	return Format{
		SampleRate:  44100,
		Channels:    1,
		SampleWidth: 2,
		Encoding:    "mp3",
	}
}

func (e *elevenlabsSynth) Voices(ctx context.Context) ([]Voice, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, elevenlabsBaseURL+"/v1/voices", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list elevenlabs voices: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("elevenlabs voices returned status %s", resp.Status)
	}

	var payload elevenlabsVoicesResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode elevenlabs voices: %w", err)
	}

	voices := make([]Voice, 0, len(payload.Voices))
	for _, v := range payload.Voices {
		voices = append(voices, Voice{Name: v.Name, ID: v.VoiceID})
	}

	e.mu.Lock()
	e.voices = voices
	if e.voiceID == "" && len(voices) > 0 {
		e.voiceID = voices[0].ID
	}
	e.mu.Unlock()
	return voices, nil
}

// SetVoice accepts either a voice name from the fetched list or a raw voice ID.
func (e *elevenlabsSynth) SetVoice(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, v := range e.voices {
		if v.Name == name || v.ID == name {
			e.voiceID = v.ID
			return nil
		}
	}
	if len(e.voices) == 0 && name != "" {
		e.voiceID = name
		return nil
	}
	return fmt.Errorf("unknown elevenlabs voice %q", name)
}

func (e *elevenlabsSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan []byte, <-chan error) {
	e.mu.Lock()
	voiceID := e.voiceID
	e.mu.Unlock()

	chunks := make(chan []byte)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)

		if voiceID == "" {
			errs <- fmt.Errorf("no elevenlabs voice selected")
			return
		}

		body, err := json.Marshal(elevenlabsRequest{Text: req.Text, ModelID: e.modelID})
		if err != nil {
			errs <- err
			return
		}

		url := fmt.Sprintf("%s/v1/text-to-speech/%s/stream?output_format=%s",
			elevenlabsBaseURL, voiceID, elevenlabsOutputFormat)
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			errs <- err
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("xi-api-key", e.apiKey)

		resp, err := e.client.Do(httpReq)
		if err != nil {
			errs <- fmt.Errorf("elevenlabs stream request: %w", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			errs <- fmt.Errorf("elevenlabs returned status %s", resp.Status)
			return
		}

		for {
			buf := make([]byte, elevenlabsChunkSize)
			n, err := resp.Body.Read(buf)
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
				errs <- fmt.Errorf("read elevenlabs stream: %w", err)
				return
			}
		}
	}()
	return chunks, errs
}
