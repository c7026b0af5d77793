package engine

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"github.com/mattn/go-shellwords"
)

// execSynth shells out to an external synthesis command. The command receives
// a JSON request on stdin and emits one JSON object per line on stdout, each
// carrying a base64 PCM chunk. A single subprocess runs at a time.
type execSynth struct {
	cmd        []string
	sampleRate int
	channels   int

	mu    sync.Mutex
	voice string
}

type execRequest struct {
	Text       string `json:"text"`
	Voice      string `json:"voice,omitempty"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type execResponse struct {
	PCMBase64 string `json:"pcm_base64"`
	Final     bool   `json:"final"`
}

func NewExecSynth(command string, sampleRate, channels int) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse engine command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("engine command empty")
	}
	return &execSynth{cmd: args, sampleRate: sampleRate, channels: channels}, nil
}

func (e *execSynth) Name() string { return "exec" }

func (e *execSynth) StreamInfo() Format {
	return Format{
		SampleRate:  e.sampleRate,
		Channels:    e.channels,
		SampleWidth: 2,
		Encoding:    EncodingPCM,
	}
}

// Voices returns the configured voice only; external commands advertise no
// voice list of their own.
func (e *execSynth) Voices(_ context.Context) ([]Voice, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.voice == "" {
		return nil, nil
	}
	return []Voice{{Name: e.voice}}, nil
}

func (e *execSynth) SetVoice(name string) error {
	e.mu.Lock()
	e.voice = name
	e.mu.Unlock()
	return nil
}

func (e *execSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan []byte, <-chan error) {
	e.mu.Lock()
	voice := e.voice
	chunks := make(chan []byte)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		defer e.mu.Unlock()

		payload, err := json.Marshal(execRequest{
			Text:       req.Text,
			Voice:      voice,
			SampleRate: e.sampleRate,
			Channels:   e.channels,
		})
		if err != nil {
			errs <- err
			return
		}

		base := e.cmd[0]
		args := append([]string{}, e.cmd[1:]...)
		cmd := exec.CommandContext(ctx, base, args...)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			errs <- err
			return
		}
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			errs <- err
			return
		}
		if err := cmd.Start(); err != nil {
			errs <- err
			return
		}

		if _, err := stdin.Write(payload); err != nil {
			errs <- err
			cmd.Wait()
			return
		}
		stdin.Close()

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			var resp execResponse
			if err := json.Unmarshal(line, &resp); err != nil {
				errs <- err
				cmd.Wait()
				return
			}
			pcm, err := base64.StdEncoding.DecodeString(resp.PCMBase64)
			if err != nil {
				errs <- err
				cmd.Wait()
				return
			}
			if len(pcm) > 0 {
				select {
				case chunks <- pcm:
				case <-ctx.Done():
					errs <- ctx.Err()
					cmd.Wait()
					return
				}
			}
			if resp.Final {
				break
			}
		}
		// Drain trailing output so Wait cannot block on a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
		if err := cmd.Wait(); err != nil {
			errs <- err
			return
		}
		if scanErr := scanner.Err(); scanErr != nil {
			errs <- scanErr
		}
	}()
	return chunks, errs
}
