package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

// StreamConfig governs admission control and the producer/consumer handoff.
type StreamConfig struct {
	Policy     string `yaml:"policy"` // reject, besteffort
	QueueDepth int    `yaml:"queue_depth"`
	RetryAfter int    `yaml:"retry_after_seconds"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

type JobLogConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	MaxJobs int    `yaml:"max_jobs"`
}

type MockEngineConfig struct {
	Enabled    bool `yaml:"enabled"`
	SampleRate int  `yaml:"sample_rate"`
	Channels   int  `yaml:"channels"`
}

type ExecEngineConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Command    string `yaml:"command"`
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
}

type OpenAIEngineConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Voice   string `yaml:"voice"`
}

type ElevenLabsEngineConfig struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key"`
	ModelID string `yaml:"model_id"`
	VoiceID string `yaml:"voice_id"`
}

type EnginesConfig struct {
	Default    string                 `yaml:"default"`
	Mock       MockEngineConfig       `yaml:"mock"`
	Exec       ExecEngineConfig       `yaml:"exec"`
	OpenAI     OpenAIEngineConfig     `yaml:"openai"`
	ElevenLabs ElevenLabsEngineConfig `yaml:"elevenlabs"`
}

type Config struct {
	ServerName  string          `yaml:"server_name"`
	Environment string          `yaml:"environment"`
	HTTP        HTTPConfig      `yaml:"http"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
	Stream      StreamConfig    `yaml:"stream"`
	Engines     EnginesConfig   `yaml:"engines"`
	Bus         BusConfig       `yaml:"bus"`
	JobLog      JobLogConfig    `yaml:"job_log"`
}

const (
	PolicyReject     = "reject"
	PolicyBestEffort = "besteffort"
)

func Default() Config {
	return Config{
		ServerName:  "loqa-tts",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "0.0.0.0",
			Port: 8000,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			OTLPEndpoint: "",
			OTLPInsecure: true,
		},
		Stream: StreamConfig{
			Policy:     PolicyReject,
			QueueDepth: 64,
			RetryAfter: 10,
		},
		Engines: EnginesConfig{
			Default: "mock",
			Mock: MockEngineConfig{
				Enabled:    true,
				SampleRate: 22050,
				Channels:   1,
			},
			Exec: ExecEngineConfig{
				SampleRate: 22050,
				Channels:   1,
			},
			OpenAI: OpenAIEngineConfig{
				Model: "tts-1",
				Voice: "alloy",
			},
			ElevenLabs: ElevenLabsEngineConfig{
				ModelID: "eleven_flash_v2_5",
			},
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		JobLog: JobLogConfig{
			Enabled: true,
			Path:    "./data/loqa-tts-jobs.db",
			MaxJobs: 10000,
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.ServerName, "LOQATTS_SERVER_NAME")
	overrideString(&cfg.Environment, "LOQATTS_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "LOQATTS_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "LOQATTS_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "LOQATTS_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "LOQATTS_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "LOQATTS_TELEMETRY_OTLP_INSECURE")
	overrideString(&cfg.Stream.Policy, "LOQATTS_STREAM_POLICY")
	overrideInt(&cfg.Stream.QueueDepth, "LOQATTS_STREAM_QUEUE_DEPTH")
	overrideInt(&cfg.Stream.RetryAfter, "LOQATTS_STREAM_RETRY_AFTER_SECONDS")
	overrideString(&cfg.Engines.Default, "LOQATTS_ENGINES_DEFAULT")
	overrideBool(&cfg.Engines.Mock.Enabled, "LOQATTS_ENGINE_MOCK_ENABLED")
	overrideInt(&cfg.Engines.Mock.SampleRate, "LOQATTS_ENGINE_MOCK_SAMPLE_RATE")
	overrideInt(&cfg.Engines.Mock.Channels, "LOQATTS_ENGINE_MOCK_CHANNELS")
	overrideBool(&cfg.Engines.Exec.Enabled, "LOQATTS_ENGINE_EXEC_ENABLED")
	overrideString(&cfg.Engines.Exec.Command, "LOQATTS_ENGINE_EXEC_COMMAND")
	overrideInt(&cfg.Engines.Exec.SampleRate, "LOQATTS_ENGINE_EXEC_SAMPLE_RATE")
	overrideInt(&cfg.Engines.Exec.Channels, "LOQATTS_ENGINE_EXEC_CHANNELS")
	overrideBool(&cfg.Engines.OpenAI.Enabled, "LOQATTS_ENGINE_OPENAI_ENABLED")
	overrideString(&cfg.Engines.OpenAI.APIKey, "OPENAI_API_KEY")
	overrideString(&cfg.Engines.OpenAI.Model, "LOQATTS_ENGINE_OPENAI_MODEL")
	overrideString(&cfg.Engines.OpenAI.Voice, "LOQATTS_ENGINE_OPENAI_VOICE")
	overrideBool(&cfg.Engines.ElevenLabs.Enabled, "LOQATTS_ENGINE_ELEVENLABS_ENABLED")
	overrideString(&cfg.Engines.ElevenLabs.APIKey, "ELEVENLABS_API_KEY")
	overrideString(&cfg.Engines.ElevenLabs.ModelID, "LOQATTS_ENGINE_ELEVENLABS_MODEL_ID")
	overrideString(&cfg.Engines.ElevenLabs.VoiceID, "LOQATTS_ENGINE_ELEVENLABS_VOICE_ID")
	overrideBool(&cfg.Bus.Enabled, "LOQATTS_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "LOQATTS_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "LOQATTS_BUS_PORT")
	overrideStringSlice(&cfg.Bus.Servers, "LOQATTS_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "LOQATTS_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "LOQATTS_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "LOQATTS_BUS_TOKEN")
	overrideInt(&cfg.Bus.ConnectTimeout, "LOQATTS_BUS_CONNECT_TIMEOUT_MS")
	overrideBool(&cfg.JobLog.Enabled, "LOQATTS_JOB_LOG_ENABLED")
	overrideString(&cfg.JobLog.Path, "LOQATTS_JOB_LOG_PATH")
	overrideInt(&cfg.JobLog.MaxJobs, "LOQATTS_JOB_LOG_MAX_JOBS")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func validate(cfg Config) error {
	if cfg.ServerName == "" {
		return errors.New("server_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	switch cfg.Stream.Policy {
	case PolicyReject, PolicyBestEffort:
	default:
		return errors.New("stream.policy must be one of reject|besteffort")
	}
	if cfg.Stream.QueueDepth <= 0 {
		return errors.New("stream.queue_depth must be >= 1")
	}
	if cfg.Stream.RetryAfter <= 0 {
		return errors.New("stream.retry_after_seconds must be >= 1")
	}
	if cfg.Engines.Default == "" {
		return errors.New("engines.default must not be empty")
	}
	if cfg.Engines.Mock.Enabled {
		if cfg.Engines.Mock.SampleRate <= 0 {
			return errors.New("engines.mock.sample_rate must be positive")
		}
		if cfg.Engines.Mock.Channels <= 0 {
			return errors.New("engines.mock.channels must be positive")
		}
	}
	if cfg.Engines.Exec.Enabled {
		if cfg.Engines.Exec.Command == "" {
			return errors.New("engines.exec.command must be set when the exec engine is enabled")
		}
		if cfg.Engines.Exec.SampleRate <= 0 {
			return errors.New("engines.exec.sample_rate must be positive")
		}
		if cfg.Engines.Exec.Channels <= 0 {
			return errors.New("engines.exec.channels must be positive")
		}
	}
	if cfg.Engines.OpenAI.Enabled && cfg.Engines.OpenAI.APIKey == "" {
		return errors.New("engines.openai.api_key must be set when the openai engine is enabled")
	}
	if cfg.Engines.ElevenLabs.Enabled && cfg.Engines.ElevenLabs.APIKey == "" {
		return errors.New("engines.elevenlabs.api_key must be set when the elevenlabs engine is enabled")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if cfg.JobLog.Enabled {
		if cfg.JobLog.Path == "" {
			return errors.New("job_log.path must not be empty when the job log is enabled")
		}
		if cfg.JobLog.MaxJobs < 0 {
			return errors.New("job_log.max_jobs must be >= 0")
		}
	}
	return nil
}
