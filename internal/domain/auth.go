package domain

import (
	"context"
	"time"
)

// WebhookVerifier authenticates an inbound delivery from its raw body and a
// header accessor. Implementations own their header names; the engine never
// depends on them.
type WebhookVerifier interface {
	Verify(getHeader func(name string) string, body []byte) error
}

type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (RateLimitDecision, error)
}
