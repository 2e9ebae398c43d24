package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`

	BrokerURL      string `env:"BROKER_URL,required"`
	BrokerClientID string `env:"BROKER_CLIENT_ID" envDefault:"meeting-engine"`
	BrokerUsername string `env:"BROKER_USERNAME"`
	BrokerPassword string `env:"BROKER_PASSWORD"`

	// AudioDir is the shared path holding one directory per request_id.
	AudioDir string `env:"SHARED_AUDIO_PATH" envDefault:"./shared_audio"`

	HTTPAddr     string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`

	// ASR endpoint (OpenAI-compatible /v1/audio/transcriptions).
	AsrURL      string        `env:"ASR_URL"`
	AsrModel    string        `env:"ASR_MODEL"`
	AsrTimeout  time.Duration `env:"ASR_TIMEOUT" envDefault:"30m"`
	AsrBeamSize int           `env:"ASR_BEAM_SIZE" envDefault:"5"`

	// LLM service.
	LLMBaseURL string        `env:"LLM_BASE_URL"`
	LLMAPIKey  string        `env:"LLM_API_KEY"`
	LLMModel   string        `env:"LLM_MODEL_NAME"`
	LLMTimeout time.Duration `env:"LLM_TIMEOUT" envDefault:"5m"`

	// Diarization service endpoint and algorithm parameters.
	DiarizerURL      string        `env:"DIARIZER_URL"`
	DiarizerTimeout  time.Duration `env:"DIARIZER_TIMEOUT" envDefault:"30m"`
	SegmentDuration  float64       `env:"DIAR_SEG_DURATION" envDefault:"3.0"`
	SegmentOverlap   float64       `env:"DIAR_SEG_OVERLAP" envDefault:"1.0"`
	KnownThreshold   float64       `env:"DIAR_KNOWN_THRESH" envDefault:"0.5"`
	ClusterThreshold float64       `env:"DIAR_HAC_THRESH" envDefault:"0.45"`
	MergeMaxPause    float64       `env:"DIAR_MERGE_PAUSE" envDefault:"0.7"`
	VADThreshold     float64       `env:"DIAR_VAD_THRESH" envDefault:"0.3"`
	EnableVAD        bool          `env:"ENABLE_VAD" envDefault:"false"`

	// Chat and document export.
	ChatHistoryLimit int    `env:"CHAT_HISTORY_LIMIT" envDefault:"6"`
	LocalTimezone    string `env:"LOCAL_TIMEZONE" envDefault:"Asia/Ho_Chi_Minh"`

	// Stale-job reaper.
	ReaperInterval time.Duration `env:"REAPER_INTERVAL" envDefault:"6h"`
	StaleAfter     time.Duration `env:"STALE_AFTER" envDefault:"48h"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Overrides holds CLI flag values that take priority over env vars.
type Overrides struct {
	EnvFile     string
	HTTPAddr    string
	LogLevel    string
	DatabaseURL string
	BrokerURL   string
	AudioDir    string
}

// Load reads configuration from .env file, environment variables, and CLI overrides.
// Priority: CLI flags > environment variables > .env file > struct defaults.
func Load(overrides Overrides) (*Config, error) {
	// Load .env file (silent if missing)
	envFile := overrides.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		_ = godotenv.Load(envFile)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if overrides.HTTPAddr != "" {
		cfg.HTTPAddr = overrides.HTTPAddr
	}
	if overrides.LogLevel != "" {
		cfg.LogLevel = overrides.LogLevel
	}
	if overrides.DatabaseURL != "" {
		cfg.DatabaseURL = overrides.DatabaseURL
	}
	if overrides.BrokerURL != "" {
		cfg.BrokerURL = overrides.BrokerURL
	}
	if overrides.AudioDir != "" {
		cfg.AudioDir = overrides.AudioDir
	}

	return cfg, nil
}
