package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/loqalabs/loqa-tts/internal/config"
	"github.com/loqalabs/loqa-tts/internal/engine"
	"github.com/loqalabs/loqa-tts/internal/stream"
)

// Error kinds surfaced to API callers.
const (
	kindEngineNotSupported = "engine_not_supported"
	kindEngineSwitchFailed = "engine_switch_failed"
	kindVoiceSetFailed     = "voice_set_failed"
	kindNoEngineSelected   = "no_engine_selected"
	kindSynthesisBusy      = "synthesis_busy"
	kindMissingParameter   = "missing_parameter"
)

var browserIdentifiers = []string{
	"mozilla", "chrome", "safari", "firefox", "edge", "opera", "msie", "trident",
}

// Server bridges synthesis jobs to chunked HTTP responses and exposes the
// engine lifecycle endpoints.
type Server struct {
	cfg      config.StreamConfig
	log      *slog.Logger
	registry *engine.Registry
	gate     *stream.Gate
	observer stream.Observer
	mux      *http.ServeMux
	ready    atomic.Bool

	// baseCtx bounds producer lifecycles; jobs intentionally outlive their
	// request contexts so a disconnect cannot corrupt a running engine.
	baseCtx context.Context

	jobsActive     metric.Int64UpDownCounter
	jobsRejected   metric.Int64Counter
	chunksStreamed metric.Int64Counter
}

func NewServer(ctx context.Context, cfg config.StreamConfig, registry *engine.Registry, observer stream.Observer, metricsHandler http.Handler, log *slog.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log.With(slog.String("component", "http-api")),
		registry: registry,
		gate:     stream.NewGate(),
		observer: observer,
		baseCtx:  ctx,
	}
	s.initMetrics()

	mux := http.NewServeMux()
	mux.HandleFunc("/tts", s.handleTTS)
	mux.HandleFunc("/engines", s.handleEngines)
	mux.HandleFunc("/voices", s.handleVoices)
	mux.HandleFunc("/set_engine", s.handleSetEngine)
	mux.HandleFunc("/setvoice", s.handleSetVoice)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	s.mux = mux
	return s
}

func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) SetReady(ready bool) { s.ready.Store(ready) }

func (s *Server) initMetrics() {
	meter := otel.Meter("github.com/loqalabs/loqa-tts/api")
	var err error
	if s.jobsActive, err = meter.Int64UpDownCounter("tts.jobs.active",
		metric.WithDescription("Synthesis jobs currently producing audio")); err != nil {
		s.log.Warn("failed to create jobs gauge", slogError(err))
	}
	if s.jobsRejected, err = meter.Int64Counter("tts.jobs.rejected",
		metric.WithDescription("Requests rejected by the admission gate")); err != nil {
		s.log.Warn("failed to create rejection counter", slogError(err))
	}
	if s.chunksStreamed, err = meter.Int64Counter("tts.chunks.streamed",
		metric.WithDescription("Audio chunks written to HTTP responses")); err != nil {
		s.log.Warn("failed to create chunk counter", slogError(err))
	}
}

func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if strings.TrimSpace(text) == "" {
		writeError(w, http.StatusBadRequest, kindMissingParameter, "text parameter is required")
		return
	}

	synth, err := s.registry.Current()
	if err != nil {
		writeError(w, http.StatusConflict, kindNoEngineSelected, "no engine is currently selected")
		return
	}
	format := synth.StreamInfo()
	browser := isBrowserRequest(r)

	if !s.gate.TryAcquire() {
		if s.cfg.Policy == config.PolicyBestEffort {
			// Legacy mode: accept the request but start no producer. The
			// stream terminates immediately instead of hanging the caller.
			s.log.Warn("gate busy, serving empty stream", slog.String("policy", s.cfg.Policy))
			q := stream.NewQueue(1)
			q.Close()
			s.streamAudio(w, r, q, format, browser)
			return
		}
		if s.jobsRejected != nil {
			s.jobsRejected.Add(r.Context(), 1)
		}
		w.Header().Set("Retry-After", strconv.Itoa(s.cfg.RetryAfter))
		writeError(w, http.StatusServiceUnavailable, kindSynthesisBusy,
			"another synthesis is in flight, retry shortly")
		return
	}

	q := stream.NewQueue(s.cfg.QueueDepth)
	job := stream.NewJob(text, synth, q, s.log, s.observer)
	s.log.Info("synthesis job admitted",
		slog.String("job_id", job.ID),
		slog.String("engine", synth.Name()),
		slog.Int("text_chars", len(text)))

	go func() {
		defer s.gate.Release()
		if s.jobsActive != nil {
			s.jobsActive.Add(s.baseCtx, 1)
			defer s.jobsActive.Add(s.baseCtx, -1)
		}
		job.Run(s.baseCtx)
	}()

	s.streamAudio(w, r, q, format, browser)
}

// streamAudio pulls chunks from the queue and writes them to the response,
// flushing after each block. Consumer-side failures abandon the queue and are
// logged; they never reach the producer.
func (s *Server) streamAudio(w http.ResponseWriter, r *http.Request, q *stream.Queue, format engine.Format, browser bool) {
	defer q.Abandon()

	w.Header().Set("Content-Type", format.MIME())
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)

	if stream.ShouldEmitHeader(browser, format) {
		hdr, err := stream.Header(format)
		if err != nil {
			s.log.Error("failed to build stream header", slogError(err))
			return
		}
		if _, err := w.Write(hdr); err != nil {
			s.log.Debug("client disconnected before first chunk", slogError(err))
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	for {
		select {
		case chunk, ok := <-q.Chunks():
			if !ok {
				return
			}
			if _, err := w.Write(chunk); err != nil {
				s.log.Debug("client disconnected during stream", slogError(err))
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
			if s.chunksStreamed != nil {
				s.chunksStreamed.Add(s.baseCtx, 1)
			}
		case <-r.Context().Done():
			s.log.Debug("request cancelled during stream")
			return
		}
	}
}

func (s *Server) handleEngines(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Engines())
}

func (s *Server) handleVoices(w http.ResponseWriter, _ *http.Request) {
	voices, err := s.registry.Voices()
	if err != nil {
		writeError(w, http.StatusConflict, kindNoEngineSelected, "no engine is currently selected")
		return
	}
	if voices == nil {
		voices = []string{}
	}
	writeJSON(w, http.StatusOK, voices)
}

func (s *Server) handleSetEngine(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("engine_name")
	if strings.TrimSpace(name) == "" {
		writeError(w, http.StatusBadRequest, kindMissingParameter, "engine_name parameter is required")
		return
	}
	if err := s.registry.SetEngine(name); err != nil {
		if errors.Is(err, engine.ErrEngineNotSupported) {
			writeError(w, http.StatusBadRequest, kindEngineNotSupported, "engine not supported")
			return
		}
		s.log.Error("engine switch failed", slog.String("engine", name), slogError(err))
		writeError(w, http.StatusInternalServerError, kindEngineSwitchFailed, "failed to switch engine")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "switched to " + name + " engine"})
}

func (s *Server) handleSetVoice(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("voice_name")
	if strings.TrimSpace(name) == "" {
		writeError(w, http.StatusBadRequest, kindMissingParameter, "voice_name parameter is required")
		return
	}
	if err := s.registry.SetVoice(name); err != nil {
		if errors.Is(err, engine.ErrNoEngineSelected) {
			writeError(w, http.StatusConflict, kindNoEngineSelected, "no engine is currently selected")
			return
		}
		s.log.Error("voice set failed", slog.String("voice", name), slogError(err))
		writeError(w, http.StatusUnprocessableEntity, kindVoiceSetFailed, "failed to set voice")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "voice set to " + name})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

// isBrowserRequest checks the user agent for common browser identifiers.
// Browsers always need container framing; programmatic clients read raw PCM.
func isBrowserRequest(r *http.Request) bool {
	ua := strings.ToLower(r.Header.Get("User-Agent"))
	for _, id := range browserIdentifiers {
		if strings.Contains(ua, id) {
			return true
		}
	}
	return false
}

type errorPayload struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorPayload{Error: message, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
