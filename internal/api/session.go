package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"recallgo/pkg/session"
)

// SessionHandler exposes the session's typed intents over HTTP.
type SessionHandler struct {
	session *session.Manager
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(s *session.Manager) *SessionHandler {
	return &SessionHandler{session: s}
}

// AnswerRequest is the body for the answer intent.
type AnswerRequest struct {
	Answer string `json:"answer"`
}

// HandleFlip handles POST /api/intent/flip
func (h *SessionHandler) HandleFlip(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Flip(r.Context()); err != nil {
		writeIntentError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"status":  "ok",
		"flipped": h.session.Flipped(),
	})
}

// HandleAnswer handles POST /api/intent/answer
func (h *SessionHandler) HandleAnswer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Answer == "" {
		http.Error(w, "answer is required", http.StatusBadRequest)
		return
	}

	result, err := h.session.Answer(r.Context(), req.Answer)
	if err != nil {
		writeIntentError(w, err)
		return
	}
	writeJSON(w, result)
}

// HandleEnd handles POST /api/intent/end
func (h *SessionHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	h.session.End()
	writeJSON(w, map[string]string{"status": "ok"})
}

// HandleNext handles POST /api/intent/next
func (h *SessionHandler) HandleNext(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Next(r.Context()); err != nil {
		writeIntentError(w, err)
		return
	}
	writeJSON(w, h.session.Status())
}

// HandleStatus handles GET /api/session/status
func (h *SessionHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.session.Status())
}

// CardResponse is the displayed card as the rendering layer sees it.
type CardResponse struct {
	ItemID    string `json:"item_id"`
	FrontHTML string `json:"front_html"`
	BackHTML  string `json:"back_html,omitempty"`
	Flipped   bool   `json:"flipped"`
}

// HandleCard handles GET /api/session/card
func (h *SessionHandler) HandleCard(w http.ResponseWriter, r *http.Request) {
	card := h.session.Card()
	if card == nil {
		http.Error(w, "no card displayed", http.StatusNotFound)
		return
	}

	resp := CardResponse{
		ItemID:    card.ItemID,
		FrontHTML: card.FrontHTML,
		Flipped:   h.session.Flipped(),
	}
	// The back stays server-side until the card is flipped.
	if resp.Flipped {
		resp.BackHTML = card.BackHTML
	}
	writeJSON(w, resp)
}

func writeIntentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNoCard):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, session.ErrEnded):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("Intent failed", "error", err)
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
