package logging

import (
	"os"
	"path/filepath"
	"testing"

	"recallgo/pkg/config"
)

func TestInit(t *testing.T) {
	tempDir := t.TempDir()
	serverLog := filepath.Join(tempDir, "server.log")
	requestLog := filepath.Join(tempDir, "requests.log")

	cfg := &config.LogConfig{
		Server: config.LogSettings{
			Path:  serverLog,
			Level: "DEBUG",
		},
		Requests: config.LogSettings{
			Path:  requestLog,
			Level: "INFO",
		},
	}

	cleanup, err := Init(cfg)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer cleanup()

	// Verify Files Created
	if _, err := os.Stat(serverLog); os.IsNotExist(err) {
		t.Error("Server log file not created")
	}
	if _, err := os.Stat(requestLog); os.IsNotExist(err) {
		t.Error("Request log file not created")
	}

	// Verify RequestLogger is set
	if RequestLogger == nil {
		t.Error("RequestLogger was not initialized")
	}
}

func TestStatusLine(t *testing.T) {
	w := &StatusLine{}
	if w.Last() != "" {
		t.Error("expected empty status line")
	}
	if _, err := w.Write([]byte("msg=hello\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if w.Last() != "msg=hello" {
		t.Errorf("Last = %q", w.Last())
	}
	if _, err := w.Write([]byte("msg=newer\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if w.Last() != "msg=newer" {
		t.Errorf("Last = %q, want only the newest line", w.Last())
	}
}
