package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"recallgo/pkg/store"
	"recallgo/pkg/tracker"
)

type fakeReviewStore struct {
	mu      sync.Mutex
	records []*store.ReviewRecord
	since   time.Time
}

func (f *fakeReviewStore) LogReview(_ context.Context, rec *store.ReviewRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeReviewStore) GetReviews(_ context.Context, since time.Time) ([]*store.ReviewRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.since = since
	var out []*store.ReviewRecord
	for _, r := range f.records {
		if !r.AnsweredAt.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReviewStore) ReviewCount(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records), nil
}

func (f *fakeReviewStore) lastSince() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.since
}

func TestStats_TodayStartsAtLocalMidnight(t *testing.T) {
	now := time.Now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	reviews := &fakeReviewStore{records: []*store.ReviewRecord{
		{ItemID: "a", AnsweredAt: midnight.Add(time.Minute)},
		{ItemID: "b", AnsweredAt: midnight.Add(-time.Hour)},
	}}
	h := NewStatsHandler(tracker.New(), reviews)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	var resp StatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reviews.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Reviews.Total)
	}
	if resp.Reviews.Today != 1 {
		t.Errorf("today = %d, want 1 (only the post-midnight review)", resp.Reviews.Today)
	}

	// The cutoff must read 00:00:00 on the wall clock, whatever the
	// machine's zone offset is.
	hh, mm, ss := reviews.lastSince().Clock()
	if hh != 0 || mm != 0 || ss != 0 {
		t.Errorf("cutoff = %v, want local midnight", reviews.lastSince())
	}
}

func TestStats_NoReviewStore(t *testing.T) {
	h := NewStatsHandler(tracker.New(), nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	var resp StatsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Reviews.Total != 0 || resp.Reviews.Today != 0 {
		t.Errorf("reviews = %+v, want zeroes without a store", resp.Reviews)
	}
}
