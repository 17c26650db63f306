package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"recallgo/pkg/version"
)

// NewServer creates and configures the HTTP server.
// It accepts handlers for all API endpoints and a shutdownFunc for graceful shutdown.
func NewServer(addr string, sess *SessionHandler, audioH *AudioHandler, cfg *ConfigHandler, stats *StatsHandler, events *EventsHandler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health Endpoint
	mux.HandleFunc("GET /health", handleHealth)

	// 2. Version Endpoint
	mux.HandleFunc("GET /api/version", handleVersion)

	// 3. Session Intents
	mux.HandleFunc("POST /api/intent/flip", sess.HandleFlip)
	mux.HandleFunc("POST /api/intent/answer", sess.HandleAnswer)
	mux.HandleFunc("POST /api/intent/end", sess.HandleEnd)
	mux.HandleFunc("POST /api/intent/next", sess.HandleNext)

	// 4. Session State
	mux.HandleFunc("GET /api/session/status", sess.HandleStatus)
	mux.HandleFunc("GET /api/session/card", sess.HandleCard)

	// 5. Audio Endpoints
	if audioH != nil {
		mux.HandleFunc("POST /api/audio/control", audioH.HandleControl)
		mux.HandleFunc("POST /api/audio/volume", audioH.HandleVolume)
		mux.HandleFunc("GET /api/audio/status", audioH.HandleStatus)
	}

	// 6. Config Endpoints
	mux.HandleFunc("/api/config", cfg.HandleConfig)

	// 7. Stats Endpoint
	mux.Handle("GET /api/stats", stats)

	// 8. Logs Endpoint
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)

	// 9. Event Stream (websocket)
	if events != nil {
		mux.HandleFunc("GET /api/events", events.HandleEvents)
	}

	// 10. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
