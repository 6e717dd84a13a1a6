package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"FairValue/internal/calculator"
	"FairValue/internal/collector"
	"FairValue/internal/model"
	"FairValue/internal/notifier"
)

// Refresher is the part of collector.Collector the scheduler drives.
type Refresher interface {
	Resolve(ctx context.Context, symbol string, opts collector.ResolveOptions) (*model.TickerData, error)
	Refresh(ctx context.Context, symbol string) (*model.TickerData, error)
}

// Notifier delivers the refresh report.
type Notifier interface {
	Enabled() bool
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Scheduler refreshes the watchlist on a cron schedule and reports intrinsic values.
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	notifier  Notifier
	watchlist []string
	logger    *zap.Logger
	ctx       context.Context
	now       func() time.Time

	running sync.Mutex

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// New creates a scheduler. notifier may be nil.
func New(ctx context.Context, refresher Refresher, n Notifier, watchlist []string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		refresher: refresher,
		notifier:  n,
		watchlist: watchlist,
		logger:    logger,
		ctx:       ctx,
		now:       time.Now,
	}
}

// Register schedules the watchlist refresh.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, func() { s.RunNow(s.ctx) }); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", zap.Int("watchlist", len(s.watchlist)))
}

// Stop stops the cron scheduler and waits for running refreshes, scheduled or
// started with RunAsync, to finish. Later RunAsync calls are ignored.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// RunAsync starts RunNow in the background. Stop waits for it.
func (s *Scheduler) RunAsync(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		s.logger.Warn("scheduler stopped, refresh not started")
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RunNow(ctx)
	}()
}

// RunNow refreshes every watchlist symbol in order and sends one report.
// A run that overlaps another one is skipped.
func (s *Scheduler) RunNow(ctx context.Context) []notifier.Valuation {
	if !s.running.TryLock() {
		s.logger.Warn("refresh already running, skipping")
		return nil
	}
	defer s.running.Unlock()

	if len(s.watchlist) == 0 {
		s.logger.Info("watchlist empty, nothing to refresh")
		return nil
	}
	start := s.now()
	s.logger.Info("running watchlist refresh", zap.Strings("symbols", s.watchlist))

	vals := make([]notifier.Valuation, 0, len(s.watchlist))
	for _, sym := range s.watchlist {
		if ctx.Err() != nil {
			break
		}
		data, err := s.refresher.Refresh(ctx, sym)
		switch {
		case errors.Is(err, collector.ErrSaveFailed) && data != nil:
			s.logger.Warn("refreshed but not cached", zap.String("symbol", sym), zap.Error(err))
		case err != nil || data == nil:
			s.logger.Warn("refresh failed", zap.String("symbol", sym), zap.Error(err))
			if err == nil {
				err = errors.New("no data")
			}
			vals = append(vals, notifier.Valuation{Symbol: sym, Err: err})
			continue
		}
		vals = append(vals, Value(sym, data))
	}

	s.logger.Info("watchlist refresh done", zap.Int("symbols", len(vals)), zap.Duration("took", s.now().Sub(start)))
	s.send(ctx, notifier.FormatRefreshReport(vals, start))
	return vals
}

// HandleCommand answers a Telegram command.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return usage
	}
	switch strings.ToLower(fields[0]) {
	case "/value":
		if len(fields) < 2 {
			return "usage: /value SYMBOL"
		}
		sym := collector.NormalizeSymbol(fields[1])
		data, err := s.refresher.Resolve(ctx, sym, collector.ResolveOptions{})
		if err != nil {
			return notifier.FormatValuation(notifier.Valuation{Symbol: sym, Err: err})
		}
		return notifier.FormatValuation(Value(sym, data))
	case "/refresh":
		s.RunAsync(s.ctx)
		return "refresh started"
	default:
		return usage
	}
}

const usage = "commands:\n/value SYMBOL - intrinsic value from cached or live data\n/refresh - refresh the watchlist now"

// Value runs a DCF on ticker data with the heuristic growth and WACC suggestions.
func Value(symbol string, data *model.TickerData) notifier.Valuation {
	v := notifier.Valuation{
		Symbol: symbol,
		Name:   data.Quote.ShortName,
		Price:  data.Quote.RegularMarketPrice,
	}
	fcf := model.FreeCashflows(data.FCFHistory)
	if len(fcf) == 0 {
		v.Err = errors.New("no free cash flow history")
		return v
	}
	if data.Quote.Shares() <= 0 {
		v.Err = errors.New("shares outstanding unknown")
		return v
	}

	growth := calculator.ResolveGrowth(data.AnalystGrowthRate5y, fcf)
	p := calculator.Params{
		BaseFCF:            fcf[0],
		GrowthRate:         growth.Rate,
		DiscountRate:       calculator.DefaultDiscountRate,
		TerminalGrowthRate: calculator.DefaultTerminalGrowthRate,
		ProjectionYears:    calculator.DefaultProjectionYears,
		SharesOutstanding:  data.Quote.Shares(),
	}
	if data.SuggestedWacc != nil {
		p.DiscountRate = *data.SuggestedWacc
		v.WaccSource = data.WaccSource
	}
	p = calculator.ClampParams(p)

	res := calculator.ComputeDCF(p)
	v.Intrinsic = res.IntrinsicValuePerShare
	v.GrowthRate = p.GrowthRate
	v.GrowthSource = growth.Source
	v.DiscountRate = p.DiscountRate
	v.Multiples = calculator.SummarizeMultiples(data.ValuationMetrics)
	if v.Price != nil {
		if m, ok := calculator.MarginOfSafety(v.Intrinsic, *v.Price); ok {
			v.MarginOfSafety = &m
		}
	}
	return v
}

func (s *Scheduler) send(ctx context.Context, text string) {
	if s.notifier == nil || !s.notifier.Enabled() {
		return
	}
	if err := s.notifier.SendWithRetry(ctx, text, 3); err != nil {
		s.logger.Error("send notification", zap.Error(err))
	}
}
