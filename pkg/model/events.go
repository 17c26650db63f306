package model

import "time"

// StudyEventType classifies the fire-and-forget notifications emitted for
// the rendering layer.
type StudyEventType string

const (
	EventCardFlipped     StudyEventType = "card_flipped"
	EventStatsUpdated    StudyEventType = "stats_updated"
	EventSessionComplete StudyEventType = "session_complete"
)

// StudyEvent is a notification pushed to the rendering layer. The runtime
// does not depend on any response to it.
type StudyEvent struct {
	Type       StudyEventType `json:"type"`
	Side       Side           `json:"side,omitempty"`
	ItemID     string         `json:"item_id,omitempty"`
	Score      int            `json:"score,omitempty"`
	Statistics map[string]any `json:"statistics,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}
