package srs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"recallgo/pkg/db"
	"recallgo/pkg/model"
	"recallgo/pkg/request"
	"recallgo/pkg/store"
	"recallgo/pkg/tracker"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	d, err := db.Init(filepath.Join(t.TempDir(), "srs_test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { d.Close() })

	r := request.New(request.Options{StudyBaseURL: baseURL}, store.NewSQLiteStore(d), tracker.New())
	return NewClient(r, baseURL, "test-token", 10)
}

func TestNextBatch(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Requested-With") != "XMLHttpRequest" {
			t.Errorf("missing X-Requested-With header")
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if r.URL.Query().Get("limit") != "10" {
			t.Errorf("limit = %q, want 10", r.URL.Query().Get("limit"))
		}

		resp := map[string]any{
			"items": []map[string]any{
				{
					"item_id":     "card-1",
					"front_html":  "<p>Bonjour</p>",
					"back_html":   "<p>Hello</p>",
					"front_audio": map[string]string{"text": "Bonjour", "url": "/media/card-1-front.mp3"},
					"back_audio":  map[string]string{"text": "Hello", "url": ""},
					"statistics":  map[string]any{"interval": 4},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer svr.Close()

	client := newTestClient(t, svr.URL)

	batch, err := client.NextBatch(context.Background())
	if err != nil {
		t.Fatalf("NextBatch failed: %v", err)
	}
	if len(batch.Items) != 1 {
		t.Fatalf("got %d items, want 1", len(batch.Items))
	}

	card := batch.Items[0]
	if card.ItemID != "card-1" {
		t.Errorf("ItemID = %q", card.ItemID)
	}
	if card.Front == nil || !card.Front.HasSource() {
		t.Error("front asset should have a recording URL")
	}
	if card.Back == nil || card.Back.HasSource() {
		t.Error("back asset should exist but have no recording URL")
	}
	if card.Back.Text() != "Hello" {
		t.Errorf("back text = %q", card.Back.Text())
	}
}

func TestNextBatch_SessionComplete(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			"404 with message",
			func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"message":"No cards are due for review."}`, http.StatusNotFound)
			},
		},
		{
			"empty page",
			func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"items":[]}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svr := httptest.NewServer(tt.handler)
			defer svr.Close()

			client := newTestClient(t, svr.URL)
			_, err := client.NextBatch(context.Background())
			if !errors.Is(err, ErrSessionComplete) {
				t.Errorf("err = %v, want ErrSessionComplete", err)
			}
		})
	}
}

func TestRegenerateAudio(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req["item_id"] != "card-1" || req["side"] != "back" {
			t.Errorf("unexpected request body: %v", req)
		}
		if req["content_to_read"] != "Hello" {
			t.Errorf("content_to_read = %v", req["content_to_read"])
		}
		_, _ = w.Write([]byte(`{"success":true,"audio_url":"/media/card-1-back.mp3"}`))
	}))
	defer svr.Close()

	client := newTestClient(t, svr.URL)

	u, err := client.RegenerateAudio(context.Background(), "card-1", model.SideBack, "Hello")
	if err != nil {
		t.Fatalf("RegenerateAudio failed: %v", err)
	}
	if u != "/media/card-1-back.mp3" {
		t.Errorf("audio_url = %q", u)
	}
}

func TestRegenerateAudio_SynthesisFailure(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"voice unavailable"}`))
	}))
	defer svr.Close()

	client := newTestClient(t, svr.URL)

	_, err := client.RegenerateAudio(context.Background(), "card-1", model.SideFront, "Bonjour")
	var synthErr *SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("expected *SynthesisError, got %T: %v", err, err)
	}
	if synthErr.Reason != "voice unavailable" {
		t.Errorf("Reason = %q", synthErr.Reason)
	}
}

func TestSubmitAnswer(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req["item_id"] != "card-1" || req["user_answer"] != "good" {
			t.Errorf("unexpected request body: %v", req)
		}
		_, _ = w.Write([]byte(`{"score_change":5,"updated_total_score":120,"statistics":{"streak":3}}`))
	}))
	defer svr.Close()

	client := newTestClient(t, svr.URL)

	result, err := client.SubmitAnswer(context.Background(), "card-1", "good")
	if err != nil {
		t.Fatalf("SubmitAnswer failed: %v", err)
	}
	if result.ScoreChange != 5 || result.UpdatedTotalScore != 120 {
		t.Errorf("result = %+v", result)
	}
}

func TestResolveMediaURL(t *testing.T) {
	client := NewClient(nil, "http://study.local:8000", "", 0)

	tests := []struct {
		in       string
		expected string
	}{
		{"/media/a.mp3", "http://study.local:8000/media/a.mp3"},
		{"media/a.mp3", "http://study.local:8000/media/a.mp3"},
		{"https://cdn.example.com/a.mp3", "https://cdn.example.com/a.mp3"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := client.ResolveMediaURL(tt.in); got != tt.expected {
			t.Errorf("ResolveMediaURL(%q) = %q, want %q", tt.in, got, tt.expected)
		}
	}
}
