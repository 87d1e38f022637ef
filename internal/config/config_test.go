package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	lookup := mapLookup(map[string]string{})
	cfg, err := Load("sqlpilot-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Auth.Required {
		t.Fatal("Auth.Required should default to false in dev")
	}
	if cfg.LLM.Backend != BackendOllama {
		t.Fatalf("LLM.Backend = %q", cfg.LLM.Backend)
	}
	if cfg.LLM.Model != "qwen2.5-coder:1.5b" {
		t.Fatalf("LLM.Model = %q", cfg.LLM.Model)
	}
	if cfg.Agent.MaxRetries != 3 {
		t.Fatalf("Agent.MaxRetries = %d", cfg.Agent.MaxRetries)
	}
	if cfg.Export.Enabled {
		t.Fatal("Export.Enabled should default to false")
	}
}

func TestLoadProdProfileHardening(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"SQLPILOT_PROFILE": "prod",
	})
	cfg, err := Load("sqlpilot-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.Auth.Required {
		t.Fatal("Auth.Required should default to true in prod")
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Export.UseSSL {
		t.Fatal("Export.UseSSL should default to true in prod")
	}
}

func TestLoadAppliesOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"SQLPILOT_HTTP_ADDR":          ":9090",
		"SQLPILOT_DATABASE_URL":       "postgres://app:secret@db:5432/app",
		"SQLPILOT_LLM_BACKEND":        "openai",
		"SQLPILOT_LLM_BASE_URL":       "https://api.openai.com",
		"SQLPILOT_LLM_MODEL":          "gpt-5",
		"SQLPILOT_LLM_TIMEOUT":        "30s",
		"SQLPILOT_AGENT_MAX_RETRIES":  "5",
		"SQLPILOT_SCHEMA_FILE":        "/etc/sqlpilot/schema.txt",
		"SQLPILOT_EXPORT_ENABLED":     "true",
		"SQLPILOT_AUTH_STATIC_KEYS":   "ops:key1",
		"SQLPILOT_LOG_LEVEL":          "warn",
	})
	cfg, err := Load("sqlpilot-api", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.HTTP.Address != ":9090" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Database.URL != "postgres://app:secret@db:5432/app" {
		t.Fatalf("Database.URL = %q", cfg.Database.URL)
	}
	if cfg.LLM.Backend != BackendOpenAI {
		t.Fatalf("LLM.Backend = %q", cfg.LLM.Backend)
	}
	if cfg.LLM.Timeout != 30*time.Second {
		t.Fatalf("LLM.Timeout = %v", cfg.LLM.Timeout)
	}
	if cfg.Agent.MaxRetries != 5 {
		t.Fatalf("Agent.MaxRetries = %d", cfg.Agent.MaxRetries)
	}
	if cfg.Schema.File != "/etc/sqlpilot/schema.txt" {
		t.Fatalf("Schema.File = %q", cfg.Schema.File)
	}
	if !cfg.Export.Enabled {
		t.Fatal("Export.Enabled should be true")
	}
	if cfg.Observability.LogLevel != slog.LevelWarn {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"invalid profile", map[string]string{"SQLPILOT_PROFILE": "staging"}},
		{"invalid backend", map[string]string{"SQLPILOT_LLM_BACKEND": "bedrock"}},
		{"invalid retries", map[string]string{"SQLPILOT_AGENT_MAX_RETRIES": "0"}},
		{"non-numeric retries", map[string]string{"SQLPILOT_AGENT_MAX_RETRIES": "three"}},
		{"invalid duration", map[string]string{"SQLPILOT_LLM_TIMEOUT": "soon"}},
		{"invalid log level", map[string]string{"SQLPILOT_LOG_LEVEL": "verbose"}},
		{"empty model", map[string]string{"SQLPILOT_LLM_MODEL": ""}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load("sqlpilot-api", mapLookup(tc.env)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadRequiresLookup(t *testing.T) {
	if _, err := Load("sqlpilot-api", nil); err == nil {
		t.Fatal("expected error for nil lookup")
	}
}

func mapLookup(env map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := env[key]
		return value, ok
	}
}
