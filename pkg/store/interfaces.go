package store

import (
	"context"
	"time"
)

// CacheStore handles generic key-value caching (HTTP responses, media).
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	HasCache(ctx context.Context, key string) (bool, error)
	SetCache(ctx context.Context, key string, val []byte) error
	ListCacheKeys(ctx context.Context, prefix string) ([]string, error)
}

// StateStore handles persistent client preferences.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}

// ReviewRecord is one answered card.
type ReviewRecord struct {
	ItemID      string
	UserAnswer  string
	ScoreChange int
	TotalScore  int
	AnsweredAt  time.Time
}

// ReviewLogStore persists answered cards for the local stats endpoint.
type ReviewLogStore interface {
	LogReview(ctx context.Context, rec *ReviewRecord) error
	GetReviews(ctx context.Context, since time.Time) ([]*ReviewRecord, error)
	ReviewCount(ctx context.Context) (int, error)
}

// Store defines the repository interface.
// It composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	CacheStore
	StateStore
	ReviewLogStore

	// Close closes the store connection.
	Close() error
}
