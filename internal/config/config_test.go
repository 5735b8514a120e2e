package config

import (
	"strings"
	"testing"
)

// mapBackend is an in-memory Backend for tests.
type mapBackend struct {
	data map[string]any
}

func (m *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := m.data[key]
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (m *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := m.data[key]
	if !ok {
		return 0, false, nil
	}
	return v.(int), true, nil
}

func (m *mapBackend) SetString(key, val string) error  { m.data[key] = val; return nil }
func (m *mapBackend) SetInt(key string, val int) error { m.data[key] = val; return nil }
func (m *mapBackend) Delete(key string) error          { delete(m.data, key); return nil }

func emptyBackend() *mapBackend { return &mapBackend{data: make(map[string]any)} }

func TestDefaults(t *testing.T) {
	cfg, err := loadWith(emptyBackend())
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}

	if cfg.Server.Port != 4600 {
		t.Errorf("Server.Port = %d, want 4600", cfg.Server.Port)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.Model != "phi3.5" {
		t.Errorf("Ollama.Model = %q", cfg.Ollama.Model)
	}
	if cfg.Generation.MaxNewTokens != 250 {
		t.Errorf("Generation.MaxNewTokens = %d", cfg.Generation.MaxNewTokens)
	}
	if cfg.Generation.DoSample {
		t.Error("Generation.DoSample = true, want false by default")
	}
	if cfg.DefaultUser != "default" {
		t.Errorf("DefaultUser = %q", cfg.DefaultUser)
	}
}

func TestBackendValuesApply(t *testing.T) {
	b := emptyBackend()
	b.data["server.port"] = 9000
	b.data["ollama.model"] = "mistral-nemo"
	b.data["generation.temperature"] = "0.3"
	b.data["generation.do_sample"] = "true"

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Ollama.Model != "mistral-nemo" {
		t.Errorf("Ollama.Model = %q", cfg.Ollama.Model)
	}
	if cfg.Generation.Temperature != 0.3 {
		t.Errorf("Generation.Temperature = %v", cfg.Generation.Temperature)
	}
	if !cfg.Generation.DoSample {
		t.Error("Generation.DoSample = false, want true")
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	b := emptyBackend()
	b.data["ollama.model"] = "from-file"
	t.Setenv("QRAPHAEL_OLLAMA_MODEL", "from-env")
	t.Setenv("QRAPHAEL_API_TOKEN", "secret-token")

	cfg, err := loadWith(b)
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Ollama.Model != "from-env" {
		t.Errorf("Ollama.Model = %q, want the env value", cfg.Ollama.Model)
	}
	if cfg.APIToken != "secret-token" {
		t.Errorf("APIToken = %q", cfg.APIToken)
	}
}

func TestValidationRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]any{
		"port out of range":   {"server.port": 99999},
		"empty model":         {"ollama.model": ""},
		"zero max tokens":     {"generation.max_new_tokens": 0},
		"top_p above one":     {"generation.top_p": "1.5"},
		"bad max_time":        {"generation.max_time": "soonish"},
		"unknown log level":   {"log.level": "loud"},
	}
	for name, data := range cases {
		if _, err := loadWith(&mapBackend{data: data}); err == nil {
			t.Errorf("%s: expected a validation error", name)
		}
	}
}

func TestMalformedSamplingValuesFatal(t *testing.T) {
	// Unparseable sampling values abort the load instead of silently
	// falling back to defaults.
	cases := map[string]map[string]any{
		"bad temperature": {"generation.temperature": "abc"},
		"bad do_sample":   {"generation.do_sample": "maybe"},
		"bad top_p":       {"generation.top_p": "high"},
	}
	for name, data := range cases {
		if _, err := loadWith(&mapBackend{data: data}); err == nil {
			t.Errorf("%s: expected a load error", name)
		}
	}
}

func TestGenOptionsGreedyWhenSamplingOff(t *testing.T) {
	cfg := defaults()
	cfg.Generation.DoSample = false
	cfg.Generation.Temperature = 0.7

	opts := cfg.GenOptions()
	if opts.Temperature != 0 {
		t.Errorf("Temperature = %v, want 0 for greedy decoding", opts.Temperature)
	}
	if opts.MaxNewTokens != cfg.Generation.MaxNewTokens {
		t.Errorf("MaxNewTokens = %d", opts.MaxNewTokens)
	}

	cfg.Generation.DoSample = true
	if got := cfg.GenOptions().Temperature; got != 0.7 {
		t.Errorf("Temperature = %v, want 0.7 with sampling on", got)
	}
}

func TestSetKeyRejectsSecrets(t *testing.T) {
	err := SetKey("api.token", "x")
	if err == nil {
		t.Fatal("expected an error for a secret key")
	}
	if !strings.Contains(err.Error(), "QRAPHAEL_API_TOKEN") {
		t.Errorf("error should point at the env var: %v", err)
	}
}

func TestGetKey(t *testing.T) {
	cfg := defaults()
	got, err := GetKey(cfg, "ollama.model")
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if got != "phi3.5" {
		t.Errorf("value = %q", got)
	}

	if _, err := GetKey(cfg, "api.token"); err == nil {
		t.Error("secrets must not be readable via GetKey")
	}
	if _, err := GetKey(cfg, "nope"); err == nil {
		t.Error("unknown keys must error")
	}
}
