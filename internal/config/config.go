package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all astra configuration.
type Config struct {
	// LLM configuration
	LLM LLMConfig `yaml:"llm"`

	// Session persistence backends
	Storage StorageConfig `yaml:"storage"`

	// Write-behind and memory extraction timing
	Session SessionConfig `yaml:"session"`

	// Out-of-band event inbox
	Events EventsConfig `yaml:"events"`

	// Terminal UI
	UI UIConfig `yaml:"ui"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the model service.
type LLMConfig struct {
	APIKey          string `yaml:"api_key"`
	Model           string `yaml:"model"`
	ImageModel      string `yaml:"image_model"`
	MemoryModel     string `yaml:"memory_model"`
	Agent           string `yaml:"agent"`
	Timeout         string `yaml:"timeout"`
	MaxOutputTokens int    `yaml:"max_output_tokens"`
}

// StorageConfig selects the remote datastore and the local fallback location.
type StorageConfig struct {
	// Backend is "sqlite", "firestore" or "none" (local fallback only).
	Backend          string `yaml:"backend"`
	DataDir          string `yaml:"data_dir"`
	SQLitePath       string `yaml:"sqlite_path"`
	FirestoreProject string `yaml:"firestore_project"`
	LocalPath        string `yaml:"local_path"`
}

// SessionConfig tunes the persistence adapter.
type SessionConfig struct {
	SaveDelay   string `yaml:"save_delay"`
	MemoryDelay string `yaml:"memory_delay"`
}

// EventsConfig configures the inbox watched for external events.
type EventsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	InboxDir string `yaml:"inbox_dir"`
}

// UIConfig configures the terminal UI.
type UIConfig struct {
	Theme    string `yaml:"theme"` // auto, dark, light
	WordWrap int    `yaml:"word_wrap"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultDataDir returns ~/.astra, or .astra when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".astra"
	}
	return filepath.Join(home, ".astra")
}

// DefaultConfigPath returns the config file location inside the data dir.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Model:           "gemini-3-flash-preview",
			ImageModel:      "gemini-2.5-flash-image",
			MemoryModel:     "gemini-2.5-flash-lite-latest",
			Agent:           "General",
			Timeout:         "120s",
			MaxOutputTokens: 8192,
		},

		Storage: StorageConfig{
			Backend: "sqlite",
			DataDir: DefaultDataDir(),
		},

		Session: SessionConfig{
			SaveDelay:   "2s",
			MemoryDelay: "1s",
		},

		Events: EventsConfig{
			Enabled: true,
		},

		UI: UIConfig{
			Theme:    "auto",
			WordWrap: 80,
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults if config file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	} else if key := os.Getenv("API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("ASTRA_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if backend := os.Getenv("ASTRA_STORAGE_BACKEND"); backend != "" {
		c.Storage.Backend = backend
	}
	if project := os.Getenv("ASTRA_FIRESTORE_PROJECT"); project != "" {
		c.Storage.FirestoreProject = project
		if os.Getenv("ASTRA_STORAGE_BACKEND") == "" {
			c.Storage.Backend = "firestore"
		}
	}
	if path := os.Getenv("ASTRA_SQLITE_PATH"); path != "" {
		c.Storage.SQLitePath = path
	}
	if dir := os.Getenv("ASTRA_DATA_DIR"); dir != "" {
		c.Storage.DataDir = dir
	}
}

// ValidBackends lists the supported remote storage backends.
var ValidBackends = []string{"sqlite", "firestore", "none"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	valid := false
	for _, b := range ValidBackends {
		if c.Storage.Backend == b {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid storage backend: %s (valid: %v)", c.Storage.Backend, ValidBackends)
	}
	if c.Storage.Backend == "firestore" && c.Storage.FirestoreProject == "" {
		return fmt.Errorf("firestore backend requires storage.firestore_project (or ASTRA_FIRESTORE_PROJECT)")
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir must be set")
	}
	return nil
}

// ValidateLLM reports whether the model service can be reached.
func (c *Config) ValidateLLM() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set GEMINI_API_KEY or llm.api_key)")
	}
	return nil
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	return parseDuration(c.LLM.Timeout, 120*time.Second)
}

// GetSaveDelay returns the debounce delay of the persistence adapter.
func (c *Config) GetSaveDelay() time.Duration {
	return parseDuration(c.Session.SaveDelay, 2*time.Second)
}

// GetMemoryDelay returns the wait before the memory extraction pass.
func (c *Config) GetMemoryDelay() time.Duration {
	return parseDuration(c.Session.MemoryDelay, time.Second)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}

// SQLitePath returns the session database path.
func (c *Config) SQLitePath() string {
	if c.Storage.SQLitePath != "" {
		return c.Storage.SQLitePath
	}
	return filepath.Join(c.Storage.DataDir, "sessions.db")
}

// LocalPath returns the local fallback key-value file.
func (c *Config) LocalPath() string {
	if c.Storage.LocalPath != "" {
		return c.Storage.LocalPath
	}
	return filepath.Join(c.Storage.DataDir, "local.bolt")
}

// InboxDir returns the directory watched for external events.
func (c *Config) InboxDir() string {
	if c.Events.InboxDir != "" {
		return c.Events.InboxDir
	}
	return filepath.Join(c.Storage.DataDir, "inbox")
}
