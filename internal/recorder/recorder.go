package recorder

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"FairValue/internal/model"
)

var (
	// ErrNotFound is returned by Get when no analysis is cached for the symbol.
	ErrNotFound = errors.New("analysis not found")
	// ErrNotConfigured is returned when no database backs the store.
	ErrNotConfigured = errors.New("no database configured")
)

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 50

// Analysis is one cached row of ticker_analyses.
type Analysis struct {
	Symbol    string           `json:"symbol"`
	Ticker    model.TickerData `json:"ticker"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// Store persists ticker data and saved valuations, keyed by upper-cased symbol.
// Upserts are idempotent per symbol; the last write wins.
type Store interface {
	Get(ctx context.Context, symbol string) (*Analysis, error)
	// SaveTicker refreshes the market data columns and keeps any saved DCF parameters.
	SaveTicker(ctx context.Context, symbol string, data *model.TickerData) error
	SaveAnalysis(ctx context.Context, symbol string, data *model.TickerData, params model.SavedDCFParams) error
	// List returns the most recently updated analyses first.
	List(ctx context.Context, limit int) ([]Analysis, error)
	Close() error
}

// IsStale reports whether a cached row must be refetched: it carries valuation
// metrics but none of them has a usable price.
func IsStale(a *Analysis) bool {
	if a == nil {
		return false
	}
	metrics := a.Ticker.ValuationMetrics
	if len(metrics) == 0 {
		return false
	}
	for _, m := range metrics {
		if m.Price != nil && !math.IsNaN(*m.Price) && !math.IsInf(*m.Price, 0) {
			return false
		}
	}
	return true
}

func key(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
