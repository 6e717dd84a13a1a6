package recorder

import (
	"encoding/json"
	"fmt"

	"FairValue/internal/model"
)

// columns is the flattened form of an analysis shared by the SQL stores.
// JSON columns travel as text; nullable numbers as pointers.
type columns struct {
	Symbol           string
	Quote            string
	FCFHistory       string
	AnalystGrowth    *float64
	SuggestedWacc    *float64
	WaccSource       *string
	ValuationMetrics *string

	GrowthRate         *float64
	DiscountRate       *float64
	TerminalGrowthRate *float64
	ProjectionYears    *int64
	IntrinsicValue     *float64
	CurrentPrice       *float64
}

func tickerColumns(symbol string, data *model.TickerData) (*columns, error) {
	if data == nil {
		return nil, fmt.Errorf("nil ticker data for %s", symbol)
	}
	quote, err := json.Marshal(data.Quote)
	if err != nil {
		return nil, fmt.Errorf("marshal quote: %w", err)
	}
	history := data.FCFHistory
	if history == nil {
		history = []model.FCFEntry{}
	}
	fcf, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("marshal fcf history: %w", err)
	}
	c := &columns{
		Symbol:        key(symbol),
		Quote:         string(quote),
		FCFHistory:    string(fcf),
		AnalystGrowth: data.AnalystGrowthRate5y,
		SuggestedWacc: data.SuggestedWacc,
	}
	if data.WaccSource != "" {
		src := data.WaccSource
		c.WaccSource = &src
	}
	if len(data.ValuationMetrics) > 0 {
		vm, err := json.Marshal(data.ValuationMetrics)
		if err != nil {
			return nil, fmt.Errorf("marshal valuation metrics: %w", err)
		}
		s := string(vm)
		c.ValuationMetrics = &s
	}
	return c, nil
}

func (c *columns) setParams(p model.SavedDCFParams) {
	years := int64(p.ProjectionYears)
	c.GrowthRate = &p.GrowthRate
	c.DiscountRate = &p.DiscountRate
	c.TerminalGrowthRate = &p.TerminalGrowthRate
	c.ProjectionYears = &years
	c.IntrinsicValue = &p.IntrinsicValuePerShare
	c.CurrentPrice = &p.CurrentPrice
}

// dest returns scan targets in select order, without the timestamp columns.
func (c *columns) dest() []any {
	return []any{
		&c.Symbol, &c.Quote, &c.FCFHistory, &c.AnalystGrowth, &c.SuggestedWacc, &c.WaccSource,
		&c.ValuationMetrics, &c.GrowthRate, &c.DiscountRate, &c.TerminalGrowthRate,
		&c.ProjectionYears, &c.IntrinsicValue, &c.CurrentPrice,
	}
}

const selectColumns = `symbol, quote, fcf_history, analyst_growth_rate_5y, suggested_wacc, wacc_source,
	valuation_metrics, growth_rate, discount_rate, terminal_growth_rate,
	projection_years, intrinsic_value_per_share, current_price, created_at, updated_at`

func (c *columns) analysis() (*Analysis, error) {
	a := &Analysis{Symbol: c.Symbol}
	t := &a.Ticker
	if err := json.Unmarshal([]byte(c.Quote), &t.Quote); err != nil {
		return nil, fmt.Errorf("decode quote of %s: %w", c.Symbol, err)
	}
	if c.FCFHistory != "" {
		if err := json.Unmarshal([]byte(c.FCFHistory), &t.FCFHistory); err != nil {
			return nil, fmt.Errorf("decode fcf history of %s: %w", c.Symbol, err)
		}
	}
	if t.FCFHistory == nil {
		t.FCFHistory = []model.FCFEntry{}
	}
	t.AnalystGrowthRate5y = c.AnalystGrowth
	t.SuggestedWacc = c.SuggestedWacc
	if c.WaccSource != nil {
		t.WaccSource = *c.WaccSource
	}
	if c.ValuationMetrics != nil && *c.ValuationMetrics != "" {
		if err := json.Unmarshal([]byte(*c.ValuationMetrics), &t.ValuationMetrics); err != nil {
			return nil, fmt.Errorf("decode valuation metrics of %s: %w", c.Symbol, err)
		}
	}
	if c.GrowthRate != nil {
		p := &model.SavedDCFParams{GrowthRate: *c.GrowthRate}
		p.DiscountRate = deref(c.DiscountRate)
		p.TerminalGrowthRate = deref(c.TerminalGrowthRate)
		if c.ProjectionYears != nil {
			p.ProjectionYears = int(*c.ProjectionYears)
		}
		p.IntrinsicValuePerShare = deref(c.IntrinsicValue)
		p.CurrentPrice = deref(c.CurrentPrice)
		t.SavedDCFParams = p
	}
	return a, nil
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
