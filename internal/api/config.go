package api

import (
	"encoding/json"
	"net/http"
	"time"

	"recallgo/pkg/config"
)

// ConfigHandler handles configuration API requests.
type ConfigHandler struct {
	provider config.Provider
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(p config.Provider) *ConfigHandler {
	return &ConfigHandler{provider: p}
}

// ConfigResponse represents the config API response.
type ConfigResponse struct {
	AutoplayEnabled      bool    `json:"autoplay_enabled"`
	AutoplayDelaySeconds float64 `json:"autoplay_delay_seconds"`
	Volume               float64 `json:"volume"`
	StudyServerURL       string  `json:"study_server_url"`
}

// ConfigRequest represents the config API request for updates.
// Pointers distinguish "set to zero value" from "not present".
type ConfigRequest struct {
	AutoplayEnabled      *bool    `json:"autoplay_enabled,omitempty"`
	AutoplayDelaySeconds *float64 `json:"autoplay_delay_seconds,omitempty"`
	Volume               *float64 `json:"volume,omitempty"`
}

// HandleConfig is a unified handler for all config-related methods, facilitating CORS/OPTIONS.
func (h *ConfigHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.HandleGetConfig(w, r)
	case http.MethodPut, http.MethodPost:
		h.HandleSetConfig(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleGetConfig returns the current configuration.
func (h *ConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := ConfigResponse{
		AutoplayEnabled:      h.provider.AutoPlayAudio(ctx),
		AutoplayDelaySeconds: h.provider.AutoplayDelay(ctx).Seconds(),
		Volume:               h.provider.Volume(ctx),
	}
	if cfg := h.provider.AppConfig(); cfg != nil {
		resp.StudyServerURL = cfg.Study.BaseURL
	}
	writeJSON(w, resp)
}

// HandleSetConfig updates the persisted autoplay preferences. A delay
// change takes effect on the next sequence start, not mid-sequence.
func (h *ConfigHandler) HandleSetConfig(w http.ResponseWriter, r *http.Request) {
	var req ConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	if req.AutoplayEnabled != nil {
		if err := h.provider.SetAutoPlayAudio(ctx, *req.AutoplayEnabled); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	if req.AutoplayDelaySeconds != nil {
		if *req.AutoplayDelaySeconds < 0 {
			http.Error(w, "delay must be >= 0", http.StatusBadRequest)
			return
		}
		delay := time.Duration(*req.AutoplayDelaySeconds * float64(time.Second))
		if err := h.provider.SetAutoplayDelay(ctx, delay); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	if req.Volume != nil {
		if *req.Volume < 0 || *req.Volume > 1 {
			http.Error(w, "volume must be within [0, 1]", http.StatusBadRequest)
			return
		}
		if err := h.provider.SetVolume(ctx, *req.Volume); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}

	h.HandleGetConfig(w, r)
}
