// Package config loads the assistant's configuration from a JSON file,
// .env, and QRAPHAEL_* environment variables, in that order of
// precedence (later wins). Validation failures are fatal: a broken
// config returns an error instead of a silently-degraded runtime.
package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"github.com/ncacord/qraphael/internal/engine"
)

type Config struct {
	Server     ServerConfig
	Ollama     OllamaConfig
	Storage    StorageConfig
	Generation GenerationConfig
	Log        LogConfig

	// DefaultUser is the user acted as when no explicit user id is given.
	DefaultUser string
	// APIToken guards the HTTP API in serve mode. Secret: env-only.
	APIToken string
}

type ServerConfig struct {
	Port    int
	MCPPort int
}

type OllamaConfig struct {
	BaseURL string
	Model   string
}

type StorageConfig struct {
	DataDir string
}

// GenerationConfig mirrors the sampling block handed to the backend on
// every generated turn.
type GenerationConfig struct {
	MaxNewTokens      int
	DoSample          bool
	Temperature       float64
	TopK              int
	TopP              float64
	RepetitionPenalty float64
	MaxTime           string // generation wall-clock budget, e.g. "30s"
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    4600,
			MCPPort: 4601,
		},
		Ollama: OllamaConfig{
			BaseURL: "http://localhost:11434",
			Model:   "phi3.5",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Generation: GenerationConfig{
			MaxNewTokens:      250,
			DoSample:          false,
			Temperature:       0.7,
			TopK:              50,
			TopP:              0.95,
			RepetitionPenalty: 2.0,
			MaxTime:           "60s",
		},
		Log: LogConfig{
			Level: "info",
		},
		DefaultUser: "default",
	}
}

// Load reads configuration from the JSON file backend
// ($XDG_CONFIG_HOME/qraphael/config.json), a .env file in the working
// directory if present, and QRAPHAEL_* environment variables.
func Load() (Config, error) {
	// Best effort; a missing .env is the normal case.
	_ = godotenv.Load()
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Server.MCPPort <= 0 || c.Server.MCPPort > 65535 {
		return fmt.Errorf("server.mcp_port %d out of range", c.Server.MCPPort)
	}
	if c.Ollama.BaseURL == "" {
		return fmt.Errorf("ollama.base_url must not be empty")
	}
	if c.Ollama.Model == "" {
		return fmt.Errorf("ollama.model must not be empty")
	}
	if c.Generation.MaxNewTokens <= 0 {
		return fmt.Errorf("generation.max_new_tokens must be positive, got %d", c.Generation.MaxNewTokens)
	}
	if c.Generation.Temperature < 0 {
		return fmt.Errorf("generation.temperature must not be negative, got %v", c.Generation.Temperature)
	}
	if c.Generation.TopP <= 0 || c.Generation.TopP > 1 {
		return fmt.Errorf("generation.top_p must be in (0, 1], got %v", c.Generation.TopP)
	}
	if c.Generation.RepetitionPenalty <= 0 {
		return fmt.Errorf("generation.repetition_penalty must be positive, got %v", c.Generation.RepetitionPenalty)
	}
	if _, err := time.ParseDuration(c.Generation.MaxTime); err != nil {
		return fmt.Errorf("generation.max_time: %w", err)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug/info/warn/error, got %q", c.Log.Level)
	}
	if c.DefaultUser == "" {
		return fmt.Errorf("default_user must not be empty")
	}
	return nil
}

// GenOptions translates the sampling block into backend options.
// DoSample=false means greedy decoding, expressed as temperature 0.
func (c Config) GenOptions() engine.GenerateOptions {
	opts := engine.GenerateOptions{
		MaxNewTokens:  c.Generation.MaxNewTokens,
		Temperature:   c.Generation.Temperature,
		TopK:          c.Generation.TopK,
		TopP:          c.Generation.TopP,
		RepeatPenalty: c.Generation.RepetitionPenalty,
	}
	if !c.Generation.DoSample {
		opts.Temperature = 0
	}
	return opts
}

// GenTimeout returns the wall-clock budget for one generation call.
// Validation guarantees MaxTime parses.
func (c Config) GenTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Generation.MaxTime)
	return d
}
