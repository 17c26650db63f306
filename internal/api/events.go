package api

import (
	"log/slog"
	"net/http"
	"sync"

	"recallgo/pkg/model"

	"github.com/gorilla/websocket"
)

// EventsHandler pushes study events (card_flipped, stats_updated,
// session_complete) to websocket subscribers. Delivery is fire-and-forget;
// a slow client drops events rather than blocking the session.
type EventsHandler struct {
	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]chan model.StudyEvent
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler() *EventsHandler {
	return &EventsHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The local GUI connects from its own origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]chan model.StudyEvent),
	}
}

// HandleEvents handles GET /api/events
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Events: Websocket upgrade failed", "error", err)
		return
	}

	ch := make(chan model.StudyEvent, 16)
	h.mu.Lock()
	h.clients[conn] = ch
	count := len(h.clients)
	h.mu.Unlock()
	slog.Debug("Events: Client connected", "clients", count)

	go h.writeLoop(conn, ch)

	// Read loop only detects disconnect; clients send nothing meaningful.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.remove(conn)
}

func (h *EventsHandler) writeLoop(conn *websocket.Conn, ch <-chan model.StudyEvent) {
	for ev := range ch {
		if err := conn.WriteJSON(ev); err != nil {
			slog.Debug("Events: Write failed, dropping client", "error", err)
			h.remove(conn)
			return
		}
	}
}

// Broadcast implements session.Listener: fan the event out without blocking.
func (h *EventsHandler) Broadcast(ev model.StudyEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		select {
		case ch <- ev:
		default:
			slog.Debug("Events: Client buffer full, dropping event", "type", ev.Type)
			_ = conn
		}
	}
}

// Close disconnects all subscribers.
func (h *EventsHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.clients {
		close(ch)
		conn.Close()
		delete(h.clients, conn)
	}
}

func (h *EventsHandler) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.clients[conn]; ok {
		close(ch)
		delete(h.clients, conn)
	}
	conn.Close()
}
