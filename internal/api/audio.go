package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"recallgo/pkg/audio"
	"recallgo/pkg/config"
	"recallgo/pkg/model"
)

// AudioHandler handles audio control endpoints.
type AudioHandler struct {
	audio    *audio.Controller
	provider config.Provider
}

// NewAudioHandler creates a new AudioHandler.
func NewAudioHandler(ctrl *audio.Controller, provider config.Provider) *AudioHandler {
	return &AudioHandler{
		audio:    ctrl,
		provider: provider,
	}
}

// AudioControlRequest represents an audio control command.
type AudioControlRequest struct {
	Action string `json:"action"` // "pause", "resume", "stop"
}

// AudioVolumeRequest represents a volume change request.
type AudioVolumeRequest struct {
	Volume float64 `json:"volume"`
}

// AudioStatusResponse represents the audio status.
type AudioStatusResponse struct {
	FrontPlaying  bool    `json:"front_playing"`
	BackPlaying   bool    `json:"back_playing"`
	FrontPosition float64 `json:"front_position_seconds"`
	BackPosition  float64 `json:"back_position_seconds"`
	Volume        float64 `json:"volume"`
}

// HandleControl handles POST /api/audio/control
func (h *AudioHandler) HandleControl(w http.ResponseWriter, r *http.Request) {
	var req AudioControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var state string
	switch req.Action {
	case "pause":
		h.audio.Pause(model.SideFront)
		h.audio.Pause(model.SideBack)
		state = "paused"
	case "resume":
		h.audio.Resume(model.SideFront)
		h.audio.Resume(model.SideBack)
		state = "playing"
	case "stop":
		h.audio.StopAll()
		state = "stopped"
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	slog.Debug("Audio control", "action", req.Action, "state", state)
	writeJSON(w, map[string]string{
		"status": "ok",
		"state":  state,
	})
}

// HandleVolume handles POST /api/audio/volume
func (h *AudioHandler) HandleVolume(w http.ResponseWriter, r *http.Request) {
	var req AudioVolumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	h.audio.SetVolume(req.Volume)

	if h.provider != nil {
		if err := h.provider.SetVolume(r.Context(), h.audio.Volume()); err != nil {
			slog.Error("Failed to persist volume", "error", err)
		}
	}

	writeJSON(w, map[string]any{
		"status": "ok",
		"volume": h.audio.Volume(),
	})
}

// HandleStatus handles GET /api/audio/status
func (h *AudioHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, AudioStatusResponse{
		FrontPlaying:  h.audio.IsPlaying(model.SideFront),
		BackPlaying:   h.audio.IsPlaying(model.SideBack),
		FrontPosition: h.audio.Position(model.SideFront).Seconds(),
		BackPosition:  h.audio.Position(model.SideBack).Seconds(),
		Volume:        h.audio.Volume(),
	})
}
