package config

import (
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "API_KEY", "ASTRA_MODEL", "ASTRA_STORAGE_BACKEND", "ASTRA_FIRESTORE_PROJECT", "ASTRA_SQLITE_PATH", "ASTRA_DATA_DIR"} {
		t.Setenv(k, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LLM.Model != "gemini-3-flash-preview" {
		t.Errorf("expected flash model, got %s", cfg.LLM.Model)
	}
	if cfg.Storage.Backend != "sqlite" {
		t.Errorf("expected sqlite backend, got %s", cfg.Storage.Backend)
	}
	if cfg.GetSaveDelay() != 2*time.Second {
		t.Errorf("expected 2s save delay, got %v", cfg.GetSaveDelay())
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := DefaultConfig()
	cfg.LLM.APIKey = "test-key"
	cfg.Storage.Backend = "none"
	cfg.Session.SaveDelay = "500ms"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.LLM.APIKey != "test-key" {
		t.Errorf("expected APIKey=test-key, got %s", loaded.LLM.APIKey)
	}
	if loaded.Storage.Backend != "none" {
		t.Errorf("expected backend none, got %s", loaded.Storage.Backend)
	}
	if loaded.GetSaveDelay() != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", loaded.GetSaveDelay())
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LLM.Agent != "General" {
		t.Errorf("expected default agent, got %s", cfg.LLM.Agent)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("ASTRA_FIRESTORE_PROJECT", "proj-1")
	t.Setenv("ASTRA_DATA_DIR", "/tmp/astra-test")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	if cfg.LLM.APIKey != "env-key" {
		t.Errorf("expected env-key, got %s", cfg.LLM.APIKey)
	}
	if cfg.Storage.Backend != "firestore" {
		t.Errorf("firestore project should select the firestore backend, got %s", cfg.Storage.Backend)
	}
	if cfg.LocalPath() != filepath.Join("/tmp/astra-test", "local.bolt") {
		t.Errorf("unexpected local path %s", cfg.LocalPath())
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}

	cfg.Storage.Backend = "postgres"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown backend")
	}

	cfg.Storage.Backend = "firestore"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for firestore without project")
	}

	if err := cfg.ValidateLLM(); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestConfig_DurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "soon"
	cfg.Session.MemoryDelay = "-3s"

	if cfg.GetLLMTimeout() != 120*time.Second {
		t.Errorf("bad timeout should fall back, got %v", cfg.GetLLMTimeout())
	}
	if cfg.GetMemoryDelay() != time.Second {
		t.Errorf("negative delay should fall back, got %v", cfg.GetMemoryDelay())
	}
}
