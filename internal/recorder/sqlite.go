package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"FairValue/internal/model"
)

// SQLiteStore persists analyses to a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
	now    func() time.Time
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the HTTP handlers read while a refresh writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db, logger: logger, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite store opened", zap.String("path", dbPath))
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ticker_analyses (
			symbol                    TEXT PRIMARY KEY,
			quote                     TEXT NOT NULL,
			fcf_history               TEXT NOT NULL DEFAULT '[]',
			analyst_growth_rate_5y    REAL,
			suggested_wacc            REAL,
			wacc_source               TEXT,
			valuation_metrics         TEXT,
			growth_rate               REAL,
			discount_rate             REAL,
			terminal_growth_rate      REAL,
			projection_years          INTEGER,
			intrinsic_value_per_share REAL,
			current_price             REAL,
			created_at                INTEGER NOT NULL,
			updated_at                INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ticker_analyses_updated ON ticker_analyses(updated_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, symbol string) (*Analysis, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM ticker_analyses WHERE symbol = ?`, key(symbol))
	a, err := scanSQLite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key(symbol), err)
	}
	return a, nil
}

func (s *SQLiteStore) SaveTicker(ctx context.Context, symbol string, data *model.TickerData) error {
	c, err := tickerColumns(symbol, data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `INSERT INTO ticker_analyses
		(symbol, quote, fcf_history, analyst_growth_rate_5y, suggested_wacc, wacc_source, valuation_metrics, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?)
		ON CONFLICT(symbol) DO UPDATE SET
			quote = excluded.quote,
			fcf_history = excluded.fcf_history,
			analyst_growth_rate_5y = excluded.analyst_growth_rate_5y,
			suggested_wacc = excluded.suggested_wacc,
			wacc_source = excluded.wacc_source,
			valuation_metrics = excluded.valuation_metrics,
			updated_at = excluded.updated_at`,
		c.Symbol, c.Quote, c.FCFHistory, c.AnalystGrowth, c.SuggestedWacc, c.WaccSource, c.ValuationMetrics,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("save ticker %s: %w", c.Symbol, err)
	}
	return nil
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, symbol string, data *model.TickerData, params model.SavedDCFParams) error {
	c, err := tickerColumns(symbol, data)
	if err != nil {
		return err
	}
	c.setParams(params)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `INSERT INTO ticker_analyses
		(symbol, quote, fcf_history, analyst_growth_rate_5y, suggested_wacc, wacc_source, valuation_metrics,
		 growth_rate, discount_rate, terminal_growth_rate, projection_years, intrinsic_value_per_share, current_price,
		 created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(symbol) DO UPDATE SET
			quote = excluded.quote,
			fcf_history = excluded.fcf_history,
			analyst_growth_rate_5y = excluded.analyst_growth_rate_5y,
			suggested_wacc = excluded.suggested_wacc,
			wacc_source = excluded.wacc_source,
			valuation_metrics = COALESCE(excluded.valuation_metrics, ticker_analyses.valuation_metrics),
			growth_rate = excluded.growth_rate,
			discount_rate = excluded.discount_rate,
			terminal_growth_rate = excluded.terminal_growth_rate,
			projection_years = excluded.projection_years,
			intrinsic_value_per_share = excluded.intrinsic_value_per_share,
			current_price = excluded.current_price,
			updated_at = excluded.updated_at`,
		c.Symbol, c.Quote, c.FCFHistory, c.AnalystGrowth, c.SuggestedWacc, c.WaccSource, c.ValuationMetrics,
		c.GrowthRate, c.DiscountRate, c.TerminalGrowthRate, c.ProjectionYears, c.IntrinsicValue, c.CurrentPrice,
		now, now,
	)
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", c.Symbol, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Analysis, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM ticker_analyses ORDER BY updated_at DESC LIMIT ?`, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	out := []Analysis{}
	for rows.Next() {
		a, err := scanSQLite(rows)
		if err != nil {
			return nil, fmt.Errorf("list analyses: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.logger.Info("closing sqlite store")
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLite(sc scanner) (*Analysis, error) {
	var (
		c                columns
		created, updated int64
	)
	if err := sc.Scan(append(c.dest(), &created, &updated)...); err != nil {
		return nil, err
	}
	a, err := c.analysis()
	if err != nil {
		return nil, err
	}
	a.CreatedAt = time.UnixMilli(created).UTC()
	a.UpdatedAt = time.UnixMilli(updated).UTC()
	if a.Ticker.SavedDCFParams != nil {
		a.Ticker.SavedDCFParams.UpdatedAt = a.UpdatedAt
	}
	return a, nil
}
