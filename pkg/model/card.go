// Package model defines the shared data types for the study session runtime.
package model

import (
	"time"
)

// Side identifies a face of a flashcard.
type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
)

// Valid reports whether s is a known card side.
func (s Side) Valid() bool {
	return s == SideFront || s == SideBack
}

// Opposite returns the other face of the card.
func (s Side) Opposite() Side {
	if s == SideFront {
		return SideBack
	}
	return SideFront
}

// Card represents one flashcard as delivered by the study server.
type Card struct {
	ItemID    string `json:"item_id"`
	FrontHTML string `json:"front_html"`
	BackHTML  string `json:"back_html"`

	Front *AudioAsset `json:"front_audio,omitempty"`
	Back  *AudioAsset `json:"back_audio,omitempty"`

	// Opaque scheduling statistics computed server-side.
	Statistics map[string]any `json:"statistics,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
}

// Asset returns the audio asset for the given side, which may be nil.
func (c *Card) Asset(side Side) *AudioAsset {
	if c == nil {
		return nil
	}
	if side == SideFront {
		return c.Front
	}
	return c.Back
}

// Batch is one page of cards returned by the study server.
type Batch struct {
	Items []*Card `json:"items"`
}

// AnswerResult is the server's response to a submitted answer.
type AnswerResult struct {
	ScoreChange       int            `json:"score_change"`
	UpdatedTotalScore int            `json:"updated_total_score"`
	Statistics        map[string]any `json:"statistics"`
}
