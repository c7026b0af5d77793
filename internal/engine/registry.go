package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	// ErrEngineNotSupported is returned when a named engine was never registered.
	ErrEngineNotSupported = errors.New("engine not supported")
	// ErrNoEngineSelected is returned when no engine has been activated yet.
	ErrNoEngineSelected = errors.New("no engine selected")
)

const voicesFetchTimeout = 15 * time.Second

// Registry holds the initialized synthesizers and their voice lists, populated
// once at startup, plus the currently selected engine. All request handlers
// share one registry; mutation is serialized by the mutex. A switch that races
// an in-flight job is last-writer-wins: the job keeps the adapter reference it
// captured at admission.
type Registry struct {
	log *slog.Logger

	mu           sync.RWMutex
	engines      map[string]Synthesizer
	order        []string
	voices       map[string][]Voice
	current      string
	currentVoice string
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		log:     log.With(slog.String("component", "engine-registry")),
		engines: make(map[string]Synthesizer),
		voices:  make(map[string][]Voice),
	}
}

// Register initializes an engine entry and fetches its voice list. A voices
// fetch failure is tolerated: the engine stays usable with an empty list, as
// some providers only fail on the listing call.
func (r *Registry) Register(ctx context.Context, synth Synthesizer) {
	fetchCtx, cancel := context.WithTimeout(ctx, voicesFetchTimeout)
	defer cancel()

	voices, err := synth.Voices(fetchCtx)
	if err != nil {
		r.log.Warn("failed to retrieve voices",
			slog.String("engine", synth.Name()),
			slog.String("error", err.Error()))
		voices = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.engines[synth.Name()]; !ok {
		r.order = append(r.order, synth.Name())
	}
	r.engines[synth.Name()] = synth
	r.voices[synth.Name()] = voices
}

// SetEngine activates a registered engine and selects its first voice as the
// default, matching the behavior clients expect after a switch.
func (r *Registry) SetEngine(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	synth, ok := r.engines[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrEngineNotSupported, name)
	}
	if voices := r.voices[name]; len(voices) > 0 {
		if err := synth.SetVoice(voices[0].Name); err != nil {
			return fmt.Errorf("switch to engine %q: %w", name, err)
		}
		r.currentVoice = voices[0].Name
	} else {
		r.currentVoice = ""
	}
	r.current = name
	return nil
}

func (r *Registry) SetVoice(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current == "" {
		return ErrNoEngineSelected
	}
	if err := r.engines[r.current].SetVoice(name); err != nil {
		return fmt.Errorf("set voice on engine %q: %w", r.current, err)
	}
	r.currentVoice = name
	return nil
}

// Current returns the active synthesizer.
func (r *Registry) Current() (Synthesizer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == "" {
		return nil, ErrNoEngineSelected
	}
	return r.engines[r.current], nil
}

func (r *Registry) CurrentName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

func (r *Registry) CurrentVoice() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentVoice
}

// Engines lists registered engine names in registration order.
func (r *Registry) Engines() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Voices lists the cached voice names of the active engine.
func (r *Registry) Voices() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.current == "" {
		return nil, ErrNoEngineSelected
	}
	voices := r.voices[r.current]
	names := make([]string, 0, len(voices))
	for _, v := range voices {
		names = append(names, v.Name)
	}
	return names, nil
}
