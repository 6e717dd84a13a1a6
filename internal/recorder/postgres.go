package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"FairValue/internal/model"
)

// PostgresStore persists analyses to PostgreSQL, with JSON columns stored as jsonb.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore connects to databaseURL and creates the table when missing.
func NewPostgresStore(ctx context.Context, databaseURL string, logger *zap.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{pool: pool, logger: logger}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("postgres store opened", zap.String("host", cfg.ConnConfig.Host), zap.String("database", cfg.ConnConfig.Database))
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS ticker_analyses (
		symbol                    TEXT PRIMARY KEY,
		quote                     JSONB NOT NULL,
		fcf_history               JSONB NOT NULL DEFAULT '[]'::jsonb,
		analyst_growth_rate_5y    DOUBLE PRECISION,
		suggested_wacc            DOUBLE PRECISION,
		wacc_source               TEXT,
		valuation_metrics         JSONB,
		growth_rate               DOUBLE PRECISION,
		discount_rate             DOUBLE PRECISION,
		terminal_growth_rate      DOUBLE PRECISION,
		projection_years          BIGINT,
		intrinsic_value_per_share DOUBLE PRECISION,
		current_price             DOUBLE PRECISION,
		created_at                TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at                TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	return err
}

func (s *PostgresStore) Get(ctx context.Context, symbol string) (*Analysis, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM ticker_analyses WHERE symbol = $1`, key(symbol))
	a, err := scanPostgres(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key(symbol), err)
	}
	return a, nil
}

func (s *PostgresStore) SaveTicker(ctx context.Context, symbol string, data *model.TickerData) error {
	c, err := tickerColumns(symbol, data)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO ticker_analyses
			(symbol, quote, fcf_history, analyst_growth_rate_5y, suggested_wacc, wacc_source, valuation_metrics, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (symbol)
		DO UPDATE SET
			quote = EXCLUDED.quote,
			fcf_history = EXCLUDED.fcf_history,
			analyst_growth_rate_5y = EXCLUDED.analyst_growth_rate_5y,
			suggested_wacc = EXCLUDED.suggested_wacc,
			wacc_source = EXCLUDED.wacc_source,
			valuation_metrics = EXCLUDED.valuation_metrics,
			updated_at = EXCLUDED.updated_at`,
		c.Symbol, c.Quote, c.FCFHistory, c.AnalystGrowth, c.SuggestedWacc, c.WaccSource, c.ValuationMetrics, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("save ticker %s: %w", c.Symbol, err)
	}
	return nil
}

func (s *PostgresStore) SaveAnalysis(ctx context.Context, symbol string, data *model.TickerData, params model.SavedDCFParams) error {
	c, err := tickerColumns(symbol, data)
	if err != nil {
		return err
	}
	c.setParams(params)
	_, err = s.pool.Exec(ctx, `
		INSERT INTO ticker_analyses
			(symbol, quote, fcf_history, analyst_growth_rate_5y, suggested_wacc, wacc_source, valuation_metrics,
			 growth_rate, discount_rate, terminal_growth_rate, projection_years, intrinsic_value_per_share, current_price,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		ON CONFLICT (symbol)
		DO UPDATE SET
			quote = EXCLUDED.quote,
			fcf_history = EXCLUDED.fcf_history,
			analyst_growth_rate_5y = EXCLUDED.analyst_growth_rate_5y,
			suggested_wacc = EXCLUDED.suggested_wacc,
			wacc_source = EXCLUDED.wacc_source,
			valuation_metrics = COALESCE(EXCLUDED.valuation_metrics, ticker_analyses.valuation_metrics),
			growth_rate = EXCLUDED.growth_rate,
			discount_rate = EXCLUDED.discount_rate,
			terminal_growth_rate = EXCLUDED.terminal_growth_rate,
			projection_years = EXCLUDED.projection_years,
			intrinsic_value_per_share = EXCLUDED.intrinsic_value_per_share,
			current_price = EXCLUDED.current_price,
			updated_at = EXCLUDED.updated_at`,
		c.Symbol, c.Quote, c.FCFHistory, c.AnalystGrowth, c.SuggestedWacc, c.WaccSource, c.ValuationMetrics,
		c.GrowthRate, c.DiscountRate, c.TerminalGrowthRate, c.ProjectionYears, c.IntrinsicValue, c.CurrentPrice,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("save analysis %s: %w", c.Symbol, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Analysis, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+selectColumns+` FROM ticker_analyses ORDER BY updated_at DESC LIMIT $1`, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	out := []Analysis{}
	for rows.Next() {
		a, err := scanPostgres(rows)
		if err != nil {
			return nil, fmt.Errorf("list analyses: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.logger.Info("closing postgres store")
	s.pool.Close()
	return nil
}

func scanPostgres(row pgx.Row) (*Analysis, error) {
	var (
		c                columns
		created, updated time.Time
	)
	if err := row.Scan(append(c.dest(), &created, &updated)...); err != nil {
		return nil, err
	}
	a, err := c.analysis()
	if err != nil {
		return nil, err
	}
	a.CreatedAt, a.UpdatedAt = created.UTC(), updated.UTC()
	if a.Ticker.SavedDCFParams != nil {
		a.Ticker.SavedDCFParams.UpdatedAt = a.UpdatedAt
	}
	return a, nil
}
