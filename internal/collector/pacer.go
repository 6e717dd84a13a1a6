package collector

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultAlphaVantageInterval keeps the free tier under its per-second quota.
const DefaultAlphaVantageInterval = 1300 * time.Millisecond

// Pacer gates outbound requests. Wait blocks until the next request may start.
type Pacer interface {
	Wait(ctx context.Context) error
}

// NewIntervalPacer allows one request per interval. Share a single instance across
// every client that draws from the same quota.
func NewIntervalPacer(interval time.Duration) Pacer {
	return rate.NewLimiter(rate.Every(interval), 1)
}

// NoPacer never waits.
type NoPacer struct{}

func (NoPacer) Wait(ctx context.Context) error { return ctx.Err() }
