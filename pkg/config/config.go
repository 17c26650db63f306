package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Request  RequestConfig  `yaml:"request"`
	Study    StudyConfig    `yaml:"study"`
	Autoplay AutoplayConfig `yaml:"autoplay"`
	Audio    AudioConfig    `yaml:"audio"`
	Log      LogConfig      `yaml:"log"`
	DB       DBConfig       `yaml:"db"`
	Server   ServerConfig   `yaml:"server"`
}

// RequestConfig holds HTTP request settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// StudyConfig holds settings for the remote study server.
type StudyConfig struct {
	BaseURL   string `yaml:"base_url"`
	Token     string `yaml:"token"`      // Session bearer token
	BatchSize int    `yaml:"batch_size"` // Advisory; server decides the page size
}

// AutoplayConfig holds settings for automatic card narration.
type AutoplayConfig struct {
	Enabled bool     `yaml:"enabled"`
	Delay   Duration `yaml:"delay"` // Gap after each narration; 0 means no delay
}

// AudioConfig holds playback settings.
type AudioConfig struct {
	Volume   float64 `yaml:"volume"`
	MediaDir string  `yaml:"media_dir"` // Where downloaded recordings are kept
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings `yaml:"server"`
	Requests LogSettings `yaml:"requests"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig holds local HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(60 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
		Study: StudyConfig{
			BaseURL:   "http://localhost:8000",
			BatchSize: 10,
		},
		Autoplay: AutoplayConfig{
			Enabled: true,
			Delay:   Duration(2 * time.Second),
		},
		Audio: AudioConfig{
			Volume:   1.0,
			MediaDir: "./data/media",
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/recall.db",
		},
		Server: ServerConfig{
			Address: "localhost:1971",
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT
// save back to disk (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		// Load from Env if empty (as a fallback, but do NOT save back to disk)
		if cfg.Study.BaseURL == "" {
			if u := os.Getenv("STUDY_SERVER_URL"); u != "" {
				cfg.Study.BaseURL = u
			}
		}
		if cfg.Study.Token == "" {
			if tok := os.Getenv("STUDY_SESSION_TOKEN"); tok != "" {
				cfg.Study.Token = tok
			}
		}

		if err := validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	// If file does not exist, save defaults
	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Autoplay.Delay < 0 {
		return fmt.Errorf("autoplay delay must be >= 0, got %s", time.Duration(cfg.Autoplay.Delay))
	}
	if cfg.Audio.Volume < 0 || cfg.Audio.Volume > 1 {
		return fmt.Errorf("audio volume must be within [0, 1], got %f", cfg.Audio.Volume)
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# RecallGo Configuration
# ---------------------
# Supported Duration units: ns, us (or µs), ms, s, m, h, d (day), w (week)

`)
	data = append(header, data...)

	// Inject comments for fields whose semantics are not obvious from the key.
	reDelay := regexp.MustCompile(`(?m)^(\s+)delay:`)
	data = reDelay.ReplaceAll(data, []byte("${1}# Gap after each narration. 0 disables the wait entirely.\n${1}delay:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil // File exists, do nothing
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
