package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file was not created: %v", err)
	}

	if cfg.Study.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %q", cfg.Study.BaseURL)
	}
	if time.Duration(cfg.Autoplay.Delay) != 2*time.Second {
		t.Errorf("Autoplay.Delay = %v, want 2s", time.Duration(cfg.Autoplay.Delay))
	}
	if cfg.Audio.Volume != 1.0 {
		t.Errorf("Volume = %f, want 1.0", cfg.Audio.Volume)
	}
}

func TestLoad_MergesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := `
study:
  base_url: "https://study.example.com"
autoplay:
  delay: 500ms
`
	if err := os.WriteFile(path, []byte(partial), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Study.BaseURL != "https://study.example.com" {
		t.Errorf("BaseURL = %q, want override", cfg.Study.BaseURL)
	}
	if time.Duration(cfg.Autoplay.Delay) != 500*time.Millisecond {
		t.Errorf("Delay = %v, want 500ms", time.Duration(cfg.Autoplay.Delay))
	}
	// Defaults preserved for unset fields
	if cfg.Request.Retries != 3 {
		t.Errorf("Retries = %d, want default 3", cfg.Request.Retries)
	}
	if cfg.Server.Address != "localhost:1971" {
		t.Errorf("Server.Address = %q, want default", cfg.Server.Address)
	}
}

func TestLoad_EnvFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	partial := `
study:
  base_url: ""
`
	if err := os.WriteFile(path, []byte(partial), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("STUDY_SERVER_URL", "https://env.example.com")
	t.Setenv("STUDY_SESSION_TOKEN", "tok-123")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Study.BaseURL != "https://env.example.com" {
		t.Errorf("BaseURL = %q, want env fallback", cfg.Study.BaseURL)
	}
	if cfg.Study.Token != "tok-123" {
		t.Errorf("Token = %q, want env fallback", cfg.Study.Token)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative delay", "autoplay:\n  delay: -1s\n"},
		{"volume above one", "audio:\n  volume: 1.5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestSave_InjectsComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	if err := Save(path, DefaultConfig()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "# Gap after each narration") {
		t.Error("expected delay comment in saved config")
	}
	if !strings.HasPrefix(string(data), "# RecallGo Configuration") {
		t.Error("expected header comment in saved config")
	}
}

func TestGenerateDefault_NoOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	original := []byte("study:\n  base_url: keep-me\n")
	if err := os.WriteFile(path, original, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := GenerateDefault(path); err != nil {
		t.Fatalf("GenerateDefault failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(original) {
		t.Error("GenerateDefault overwrote an existing config file")
	}
}
