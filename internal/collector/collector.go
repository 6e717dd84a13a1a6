package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"FairValue/internal/calculator"
	"FairValue/internal/model"
	"FairValue/internal/recorder"
)

var (
	// ErrInvalidSymbol is returned for a blank symbol.
	ErrInvalidSymbol = errors.New("missing or invalid symbol")
	// ErrNotCached is returned for a cache-only lookup that misses.
	ErrNotCached = errors.New("symbol not cached")
	// ErrSaveFailed wraps persistence failures reported by Refresh.
	ErrSaveFailed = errors.New("save ticker data")
)

// GrowthEstimator supplies an analyst five-year growth estimate.
type GrowthEstimator interface {
	FetchAnalystGrowth(ctx context.Context, symbol string) (float64, bool)
}

// ResolveOptions tunes a single Resolve call.
type ResolveOptions struct {
	// CacheOnly never reaches a provider; a cache miss is ErrNotCached.
	CacheOnly bool
	// Force skips the cache read.
	Force bool
}

// Collector resolves a symbol to canonical ticker data: cache first, then the primary
// provider, falling back to the secondary one only when the primary has no credential.
type Collector struct {
	Primary   Provider
	Secondary Provider
	Growth    GrowthEstimator
	Store     recorder.Store

	// SupplementGrowth asks Growth for the analyst estimate after a primary success.
	SupplementGrowth bool

	logger *zap.Logger
}

// NewCollector wires a collector. When secondary also estimates growth it is used as Growth.
func NewCollector(primary, secondary Provider, store recorder.Store, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = recorder.NewNoopStore()
	}
	c := &Collector{
		Primary:          primary,
		Secondary:        secondary,
		Store:            store,
		SupplementGrowth: true,
		logger:           logger,
	}
	if g, ok := secondary.(GrowthEstimator); ok {
		c.Growth = g
	}
	return c
}

// NormalizeSymbol trims and upper-cases a ticker symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Resolve returns ticker data for symbol. A fresh cache row is served as is; otherwise the
// providers are queried and the result is cached. Cache write failures are only logged.
// Without a configured store the cache is bypassed, CacheOnly included.
func (c *Collector) Resolve(ctx context.Context, symbol string, opts ResolveOptions) (*model.TickerData, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, ErrInvalidSymbol
	}

	if !opts.Force {
		cacheOnly := opts.CacheOnly
		cached, err := c.Store.Get(ctx, symbol)
		switch {
		case err == nil && (opts.CacheOnly || !recorder.IsStale(cached)):
			data := cached.Ticker
			withGrowth(&data)
			return &data, nil
		case err == nil:
			c.logger.Info("cached valuation metrics have no prices, refetching", zap.String("symbol", symbol))
		case errors.Is(err, recorder.ErrNotFound):
		case errors.Is(err, recorder.ErrNotConfigured):
			cacheOnly = false
		default:
			c.logger.Warn("cache read failed", zap.String("symbol", symbol), zap.Error(err))
		}
		if cacheOnly {
			return nil, ErrNotCached
		}
	}

	data, err := c.fetch(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if err := c.Store.SaveTicker(ctx, symbol, data); err != nil && !errors.Is(err, recorder.ErrNotConfigured) {
		c.logger.Warn("cache write failed", zap.String("symbol", symbol), zap.Error(err))
	}
	return data, nil
}

// Refresh always queries the providers and reports a failed cache write as ErrSaveFailed,
// returning the fetched data alongside it.
func (c *Collector) Refresh(ctx context.Context, symbol string) (*model.TickerData, error) {
	symbol = NormalizeSymbol(symbol)
	if symbol == "" {
		return nil, ErrInvalidSymbol
	}
	data, err := c.fetch(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if err := c.Store.SaveTicker(ctx, symbol, data); err != nil {
		return data, fmt.Errorf("%w %s: %w", ErrSaveFailed, symbol, err)
	}
	return data, nil
}

func (c *Collector) fetch(ctx context.Context, symbol string) (*model.TickerData, error) {
	var (
		rec *Record
		err error
	)
	if c.Primary != nil {
		rec, err = c.Primary.Fetch(ctx, symbol)
	} else {
		err = &FetchError{Provider: "primary", Kind: NoCredential, Detail: "no primary provider configured"}
	}

	switch kind, _ := KindOf(err); {
	case err == nil:
		if c.SupplementGrowth && c.Growth != nil && rec.AnalystGrowth == nil {
			rec.AnalystGrowth = Degrade(ctx, c.logger, "analyst growth", func(ctx context.Context) (*float64, error) {
				if g, ok := c.Growth.FetchAnalystGrowth(ctx, symbol); ok {
					return &g, nil
				}
				return nil, nil
			})
		}
	case kind == NoCredential && c.Secondary != nil:
		c.logger.Info("primary provider unavailable, using secondary",
			zap.String("symbol", symbol),
			zap.String("secondary", c.Secondary.Name()),
		)
		rec, err = c.Secondary.Fetch(ctx, symbol)
		if err != nil {
			return nil, err
		}
		// Sector is only known to the primary provider.
		rec.Sector = ""
	default:
		return nil, err
	}

	return assemble(rec), nil
}

// assemble applies the heuristics to a provider record.
func assemble(rec *Record) *model.TickerData {
	data := &model.TickerData{
		Quote:               rec.Quote,
		FCFHistory:          NormalizeFCFHistory(rec.FCFHistory),
		AnalystGrowthRate5y: rec.AnalystGrowth,
		ValuationMetrics:    rec.ValuationMetrics,
	}
	if w, ok := calculator.SuggestWacc(rec.Beta, rec.Sector); ok {
		data.SuggestedWacc = model.Float(w.Rate)
		data.WaccSource = w.Detail
	}
	withGrowth(data)
	return data
}

func withGrowth(data *model.TickerData) {
	if data.SuggestedGrowthRate != nil {
		return
	}
	g := calculator.ResolveGrowth(data.AnalystGrowthRate5y, model.FreeCashflows(data.FCFHistory))
	data.SuggestedGrowthRate = model.Float(g.Rate)
	data.GrowthSource = g.Source
}
