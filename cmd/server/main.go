package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"FairValue/internal/advisor"
	"FairValue/internal/api"
	"FairValue/internal/collector"
	"FairValue/internal/config"
	"FairValue/internal/logging"
	"FairValue/internal/notifier"
	"FairValue/internal/recorder"
	"FairValue/internal/scheduler"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[WARN] load .env: %v", err)
	}

	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("[FATAL] load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("[FATAL] config validation: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("[FATAL] init logger: %v", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	logger.Info("FairValue starting", zap.String("config", cfgPath))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := openStore(ctx, cfg, logger)
	defer store.Close()

	httpClient := collector.NewHTTPClient(cfg.Proxy)

	avOpts := []collector.Option{
		collector.WithHTTPClient(httpClient),
		collector.WithPacer(collector.NewIntervalPacer(cfg.Providers.AlphaVantage.Interval)),
		collector.WithLogger(logger.Named("alphavantage")),
	}
	if cfg.Providers.AlphaVantage.BaseURL != "" {
		avOpts = append(avOpts, collector.WithBaseURL(cfg.Providers.AlphaVantage.BaseURL))
	}
	yahooOpts := []collector.Option{
		collector.WithHTTPClient(httpClient),
		collector.WithLogger(logger.Named("yahoo")),
	}
	if len(cfg.Providers.Yahoo.Hosts) > 0 {
		yahooOpts = append(yahooOpts, collector.WithBaseURL(cfg.Providers.Yahoo.Hosts...))
	}
	primary := collector.NewAlphaVantage(cfg.Providers.AlphaVantage.APIKey, avOpts...)
	secondary := collector.NewYahoo(yahooOpts...)
	if cfg.Providers.AlphaVantage.APIKey == "" {
		logger.Warn("ALPHA_VANTAGE_API_KEY not set, using Yahoo Finance only")
	}

	col := collector.NewCollector(primary, secondary, store, logger.Named("collector"))
	col.SupplementGrowth = cfg.SupplementGrowth()

	var gen advisor.Generator
	if cfg.Gemini.APIKey != "" {
		g, err := advisor.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, httpClient)
		if err != nil {
			logger.Warn("gemini unavailable, dcf advice disabled", zap.Error(err))
		} else {
			gen = g
		}
	}
	adv := advisor.New(gen, logger.Named("advisor"))

	tg := notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, httpClient, logger.Named("telegram"))

	sched := scheduler.New(ctx, col, tg, cfg.Schedule.Watchlist, logger.Named("scheduler"))
	if err := sched.Register(cfg.Schedule.RefreshCron); err != nil {
		logger.Fatal("register cron task", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	if tg.Enabled() {
		go tg.StartPolling(ctx, sched.HandleCommand)
		logger.Info("telegram polling started")
	}
	if cfg.Schedule.RunOnStart {
		logger.Info("RUN_ON_START enabled, refreshing watchlist now")
		sched.RunAsync(ctx)
	}

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: api.NewServer(col, store, adv, logger.Named("api")).Handler(),
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutdown signal received, stopping")
	cancel()
	shutdownCtx, done := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", zap.Error(err))
	}
	logger.Info("FairValue stopped")
}

// openStore prefers Postgres, then SQLite, and falls back to a no-op store so the
// service keeps answering from live providers when no database is usable.
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) recorder.Store {
	if cfg.Database.URL != "" {
		pg, err := recorder.NewPostgresStore(ctx, cfg.Database.URL, logger.Named("postgres"))
		if err == nil {
			return pg
		}
		logger.Warn("init postgres store failed, trying sqlite", zap.Error(err))
	}
	if cfg.Database.SQLitePath != "" {
		if dir := filepath.Dir(cfg.Database.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				logger.Warn("create sqlite directory", zap.Error(err))
			}
		}
		sq, err := recorder.NewSQLiteStore(cfg.Database.SQLitePath, logger.Named("sqlite"))
		if err == nil {
			return sq
		}
		logger.Warn("init sqlite store failed, using noop", zap.Error(err))
	}
	return recorder.NewNoopStore()
}
