package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Stream.Policy != PolicyReject {
		t.Fatalf("expected reject policy by default, got %q", cfg.Stream.Policy)
	}
	if cfg.Stream.QueueDepth != 64 {
		t.Fatalf("expected default queue depth 64, got %d", cfg.Stream.QueueDepth)
	}
	if cfg.Engines.Default != "mock" {
		t.Fatalf("expected default engine mock, got %q", cfg.Engines.Default)
	}
	if !cfg.Engines.Mock.Enabled {
		t.Fatal("expected mock engine enabled by default")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LOQATTS_HTTP_PORT", "9000")
	t.Setenv("LOQATTS_STREAM_POLICY", "besteffort")
	t.Setenv("LOQATTS_STREAM_QUEUE_DEPTH", "8")
	t.Setenv("LOQATTS_ENGINES_DEFAULT", "elevenlabs")
	t.Setenv("ELEVENLABS_API_KEY", "key-123")
	t.Setenv("LOQATTS_ENGINE_ELEVENLABS_ENABLED", "true")
	t.Setenv("LOQATTS_BUS_ENABLED", "true")
	t.Setenv("LOQATTS_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("LOQATTS_JOB_LOG_PATH", "./tmp-jobs.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.HTTP.Port != 9000 {
		t.Fatalf("expected port override, got %d", cfg.HTTP.Port)
	}
	if cfg.Stream.Policy != PolicyBestEffort {
		t.Fatalf("expected besteffort policy override, got %q", cfg.Stream.Policy)
	}
	if cfg.Stream.QueueDepth != 8 {
		t.Fatalf("expected queue depth override, got %d", cfg.Stream.QueueDepth)
	}
	if cfg.Engines.Default != "elevenlabs" {
		t.Fatalf("expected default engine override, got %q", cfg.Engines.Default)
	}
	if !cfg.Engines.ElevenLabs.Enabled || cfg.Engines.ElevenLabs.APIKey != "key-123" {
		t.Fatal("expected elevenlabs engine enabled with key override")
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 bus servers, got %v", cfg.Bus.Servers)
	}
	if cfg.JobLog.Path != "./tmp-jobs.db" {
		t.Fatalf("expected job log path override, got %q", cfg.JobLog.Path)
	}
}

func TestValidateRejectsBadPolicy(t *testing.T) {
	t.Setenv("LOQATTS_STREAM_POLICY", "queue")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for unknown stream policy")
	}
}

func TestValidateRequiresExecCommand(t *testing.T) {
	t.Setenv("LOQATTS_ENGINE_EXEC_ENABLED", "true")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for exec engine without command")
	}
}
