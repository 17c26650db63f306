package api

import (
	"net/http"
	"time"

	"recallgo/pkg/store"
	"recallgo/pkg/tracker"
)

// StatsHandler serves usage counters and review totals.
type StatsHandler struct {
	tracker *tracker.Tracker
	reviews store.ReviewLogStore
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(t *tracker.Tracker, reviews store.ReviewLogStore) *StatsHandler {
	return &StatsHandler{
		tracker: t,
		reviews: reviews,
	}
}

// ProviderStatsDTO mirrors one provider's counters.
type ProviderStatsDTO struct {
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
	APISuccess  int64 `json:"api_success"`
	APIFailures int64 `json:"api_errors"`
	HitRate     int64 `json:"hit_rate"`
}

// ReviewStats summarizes locally logged answers.
type ReviewStats struct {
	Total int `json:"total"`
	Today int `json:"today"`
}

// StatsResponse is the full stats payload.
type StatsResponse struct {
	Providers map[string]ProviderStatsDTO `json:"providers"`
	Reviews   ReviewStats                 `json:"reviews"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := StatsResponse{
		Providers: make(map[string]ProviderStatsDTO),
	}

	for provider, stats := range h.tracker.Snapshot() {
		totalCache := stats.CacheHits + stats.CacheMisses
		hitRate := int64(0)
		if totalCache > 0 {
			hitRate = (stats.CacheHits * 100) / totalCache
		}
		resp.Providers[provider] = ProviderStatsDTO{
			CacheHits:   stats.CacheHits,
			CacheMisses: stats.CacheMisses,
			APISuccess:  stats.APISuccess,
			APIFailures: stats.APIFailures,
			HitRate:     hitRate,
		}
	}

	if h.reviews != nil {
		if total, err := h.reviews.ReviewCount(ctx); err == nil {
			resp.Reviews.Total = total
		}
		// "Today" starts at local midnight; Truncate would give the UTC
		// day boundary.
		now := time.Now()
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if todays, err := h.reviews.GetReviews(ctx, midnight); err == nil {
			resp.Reviews.Today = len(todays)
		}
	}

	writeJSON(w, resp)
}
