// Package srs talks to the remote spaced-repetition study server.
package srs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"recallgo/pkg/model"
	"recallgo/pkg/request"
)

// ErrSessionComplete is returned by NextBatch when the server has no cards
// left in the current session.
var ErrSessionComplete = errors.New("study session complete")

// SynthesisError indicates the server accepted a regeneration request but
// could not produce a recording.
type SynthesisError struct {
	ItemID string
	Side   model.Side
	Reason string
}

func (e *SynthesisError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("synthesis failed for %s/%s", e.ItemID, e.Side)
	}
	return fmt.Sprintf("synthesis failed for %s/%s: %s", e.ItemID, e.Side, e.Reason)
}

// Client handles study server API interactions.
type Client struct {
	request   *request.Client
	baseURL   string
	token     string
	batchSize int
}

// NewClient creates a new study server client.
func NewClient(r *request.Client, baseURL, token string, batchSize int) *Client {
	return &Client{
		request:   r,
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		batchSize: batchSize,
	}
}

func (c *Client) headers() map[string]string {
	h := map[string]string{
		// The server only serves card JSON to AJAX-style requests.
		"X-Requested-With": "XMLHttpRequest",
		"Accept":           "application/json",
	}
	if c.token != "" {
		h["Authorization"] = "Bearer " + c.token
	}
	return h
}

// assetPayload is the wire form of one side's narration audio.
type assetPayload struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// cardPayload is the wire form of a card as the server sends it.
type cardPayload struct {
	ItemID     string         `json:"item_id"`
	FrontHTML  string         `json:"front_html"`
	BackHTML   string         `json:"back_html"`
	FrontAudio *assetPayload  `json:"front_audio"`
	BackAudio  *assetPayload  `json:"back_audio"`
	Statistics map[string]any `json:"statistics"`
}

func (p *cardPayload) toModel() *model.Card {
	card := &model.Card{
		ItemID:     p.ItemID,
		FrontHTML:  p.FrontHTML,
		BackHTML:   p.BackHTML,
		Statistics: p.Statistics,
	}
	if p.FrontAudio != nil {
		card.Front = model.NewAudioAsset(p.FrontAudio.Text, p.FrontAudio.URL)
	}
	if p.BackAudio != nil {
		card.Back = model.NewAudioAsset(p.BackAudio.Text, p.BackAudio.URL)
	}
	return card
}

// NextBatch fetches the next page of due cards.
// Returns ErrSessionComplete when the server reports no cards left.
func (c *Client) NextBatch(ctx context.Context) (*model.Batch, error) {
	u, err := url.Parse(c.baseURL + "/api/study/next")
	if err != nil {
		return nil, fmt.Errorf("invalid study url: %w", err)
	}
	if c.batchSize > 0 {
		q := u.Query()
		q.Add("limit", strconv.Itoa(c.batchSize))
		u.RawQuery = q.Encode()
	}

	body, err := c.request.GetWithHeaders(ctx, u.String(), c.headers(), "")
	if err != nil {
		var httpErr *request.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == 404 {
			var msg struct {
				Message string `json:"message"`
			}
			if jsonErr := json.Unmarshal(httpErr.Body, &msg); jsonErr == nil && msg.Message != "" {
				slog.Info("SRS: Session complete", "message", msg.Message)
			}
			return nil, ErrSessionComplete
		}
		return nil, err
	}

	var resp struct {
		Items []*cardPayload `json:"items"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode batch: %w", err)
	}

	// An empty page means the session is done even without a 404.
	if len(resp.Items) == 0 {
		return nil, ErrSessionComplete
	}

	batch := &model.Batch{Items: make([]*model.Card, 0, len(resp.Items))}
	for _, p := range resp.Items {
		batch.Items = append(batch.Items, p.toModel())
	}
	return batch, nil
}

// RegenerateAudio asks the server to re-synthesize a recording for one card
// side and returns the fresh recording URL.
func (c *Client) RegenerateAudio(ctx context.Context, itemID string, side model.Side, text string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"item_id":         itemID,
		"side":            string(side),
		"content_to_read": text,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode regeneration request: %w", err)
	}

	headers := c.headers()
	headers["Content-Type"] = "application/json"

	body, err := c.request.PostWithHeaders(ctx, c.baseURL+"/api/study/regenerate-audio", payload, headers)
	if err != nil {
		return "", err
	}

	var resp struct {
		Success  bool   `json:"success"`
		AudioURL string `json:"audio_url"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode regeneration response: %w", err)
	}

	if !resp.Success || resp.AudioURL == "" {
		return "", &SynthesisError{ItemID: itemID, Side: side, Reason: resp.Message}
	}
	return resp.AudioURL, nil
}

// SubmitAnswer grades the current card and returns the updated score.
func (c *Client) SubmitAnswer(ctx context.Context, itemID, answer string) (*model.AnswerResult, error) {
	payload, err := json.Marshal(map[string]string{
		"item_id":     itemID,
		"user_answer": answer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode answer: %w", err)
	}

	headers := c.headers()
	headers["Content-Type"] = "application/json"

	body, err := c.request.PostWithHeaders(ctx, c.baseURL+"/api/study/answer", payload, headers)
	if err != nil {
		return nil, err
	}

	var result model.AnswerResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode answer result: %w", err)
	}
	return &result, nil
}

// ResolveMediaURL turns a server-relative recording path into an absolute URL.
func (c *Client) ResolveMediaURL(raw string) string {
	if raw == "" || strings.Contains(raw, "://") {
		return raw
	}
	return c.baseURL + "/" + strings.TrimLeft(raw, "/")
}
