package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kFloat
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "QRAPHAEL_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_port", typ: kInt, env: "QRAPHAEL_SERVER_MCP_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MCPPort },
	},
	{
		key: "ollama.base_url", typ: kString, env: "QRAPHAEL_OLLAMA_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.BaseURL },
	},
	{
		key: "ollama.model", typ: kString, env: "QRAPHAEL_OLLAMA_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Ollama.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Ollama.Model },
	},
	{
		key: "storage.data_dir", typ: kString, env: "QRAPHAEL_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "generation.max_new_tokens", typ: kInt, env: "QRAPHAEL_GENERATION_MAX_NEW_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Generation.MaxNewTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.MaxNewTokens },
	},
	{
		key: "generation.do_sample", typ: kBool, env: "QRAPHAEL_GENERATION_DO_SAMPLE",
		apply:   func(cfg *Config, v any) { cfg.Generation.DoSample = v.(bool) },
		extract: func(cfg Config) any { return cfg.Generation.DoSample },
	},
	{
		key: "generation.temperature", typ: kFloat, env: "QRAPHAEL_GENERATION_TEMPERATURE",
		apply:   func(cfg *Config, v any) { cfg.Generation.Temperature = v.(float64) },
		extract: func(cfg Config) any { return cfg.Generation.Temperature },
	},
	{
		key: "generation.top_k", typ: kInt, env: "QRAPHAEL_GENERATION_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Generation.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Generation.TopK },
	},
	{
		key: "generation.top_p", typ: kFloat, env: "QRAPHAEL_GENERATION_TOP_P",
		apply:   func(cfg *Config, v any) { cfg.Generation.TopP = v.(float64) },
		extract: func(cfg Config) any { return cfg.Generation.TopP },
	},
	{
		key: "generation.repetition_penalty", typ: kFloat, env: "QRAPHAEL_GENERATION_REPETITION_PENALTY",
		apply:   func(cfg *Config, v any) { cfg.Generation.RepetitionPenalty = v.(float64) },
		extract: func(cfg Config) any { return cfg.Generation.RepetitionPenalty },
	},
	{
		key: "generation.max_time", typ: kString, env: "QRAPHAEL_GENERATION_MAX_TIME",
		apply:   func(cfg *Config, v any) { cfg.Generation.MaxTime = v.(string) },
		extract: func(cfg Config) any { return cfg.Generation.MaxTime },
	},
	{
		key: "log.level", typ: kString, env: "QRAPHAEL_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "default_user", typ: kString, env: "QRAPHAEL_DEFAULT_USER",
		apply:   func(cfg *Config, v any) { cfg.DefaultUser = v.(string) },
		extract: func(cfg Config) any { return cfg.DefaultUser },
	},
	{
		key: "api.token", typ: kString, env: "QRAPHAEL_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.APIToken },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				bv, err := strconv.ParseBool(v)
				if err != nil {
					return fmt.Errorf("parsing %s=%q: %w", s.key, v, err)
				}
				s.apply(cfg, bv)
			}
		case kFloat:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				f, err := strconv.ParseFloat(v, 64)
				if err != nil {
					return fmt.Errorf("parsing %s=%q: %w", s.key, v, err)
				}
				s.apply(cfg, f)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kFloat:
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				s.apply(cfg, f)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse float from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
