package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/loqalabs/loqa-tts/internal/api"
	"github.com/loqalabs/loqa-tts/internal/bus"
	"github.com/loqalabs/loqa-tts/internal/config"
	"github.com/loqalabs/loqa-tts/internal/engine"
	"github.com/loqalabs/loqa-tts/internal/joblog"
	"github.com/loqalabs/loqa-tts/internal/natsserver"
)

// Runtime wires the engines, the job event bus, the job log, and the HTTP
// surface together and owns their lifecycles.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	var embedded *natsserver.EmbeddedServer
	var busClient *bus.Client
	if r.cfg.Bus.Enabled {
		embedded, err = natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("failed to start embedded NATS: %w", err)
		}
		defer embedded.Shutdown()

		busClient, err = bus.Connect(busClientConfig(r.cfg.Bus), r.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer busClient.Close()
	}

	store, err := joblog.Open(ctx, r.cfg.JobLog, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open job log: %w", err)
	}
	defer store.Close()

	registry, err := r.buildRegistry(ctx)
	if err != nil {
		return fmt.Errorf("failed to build engine registry: %w", err)
	}

	observer := newJobObserver(busClient, store, registry, r.logger)
	server := api.NewServer(ctx, r.cfg.Stream, registry, observer, metricsHandler, r.logger)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	server.SetReady(true)
	r.logger.Info("server started",
		slog.String("addr", addr),
		slog.String("engine", registry.CurrentName()),
		slog.String("policy", r.cfg.Stream.Policy))

	<-ctx.Done()
	r.logger.Info("server stopping")
	server.SetReady(false)
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

// busClientConfig returns the bus config the client should dial. With an
// embedded broker the connect URL is derived from the embedded port so the
// two cannot drift apart.
func busClientConfig(cfg config.BusConfig) config.BusConfig {
	if cfg.Embedded {
		cfg.Servers = []string{fmt.Sprintf("nats://127.0.0.1:%d", cfg.Port)}
	}
	return cfg
}

// buildRegistry registers every enabled engine and activates the configured
// default, falling back to the first registered engine if the default is not
// available.
func (r *Runtime) buildRegistry(ctx context.Context) (*engine.Registry, error) {
	registry := engine.NewRegistry(r.logger)
	engCfg := r.cfg.Engines

	if engCfg.Mock.Enabled {
		registry.Register(ctx, engine.NewMockSynth(engCfg.Mock.SampleRate, engCfg.Mock.Channels))
	}
	if engCfg.Exec.Enabled {
		synth, err := engine.NewExecSynth(engCfg.Exec.Command, engCfg.Exec.SampleRate, engCfg.Exec.Channels)
		if err != nil {
			return nil, fmt.Errorf("exec engine: %w", err)
		}
		registry.Register(ctx, synth)
	}
	if engCfg.OpenAI.Enabled {
		registry.Register(ctx, engine.NewOpenAISynth(engCfg.OpenAI.APIKey, engCfg.OpenAI.Model, engCfg.OpenAI.Voice))
	}
	if engCfg.ElevenLabs.Enabled {
		registry.Register(ctx, engine.NewElevenLabsSynth(engCfg.ElevenLabs.APIKey, engCfg.ElevenLabs.ModelID, engCfg.ElevenLabs.VoiceID))
	}

	names := registry.Engines()
	if len(names) == 0 {
		return nil, fmt.Errorf("no engines enabled")
	}
	if err := registry.SetEngine(engCfg.Default); err != nil {
		r.logger.Warn("default engine unavailable, falling back",
			slog.String("default", engCfg.Default),
			slog.String("fallback", names[0]),
			slog.String("error", err.Error()))
		if err := registry.SetEngine(names[0]); err != nil {
			return nil, fmt.Errorf("activate fallback engine %q: %w", names[0], err)
		}
	}
	return registry, nil
}
