package model

import "time"

// TickerData is the canonical payload served to callers and persisted in the cache.
type TickerData struct {
	Quote               Quote                  `json:"quote"`
	FCFHistory          []FCFEntry             `json:"fcfHistory"`
	AnalystGrowthRate5y *float64               `json:"analystGrowthRate5y,omitempty"`
	SuggestedWacc       *float64               `json:"suggestedWacc,omitempty"`
	WaccSource          string                 `json:"waccSource,omitempty"`
	SuggestedGrowthRate *float64               `json:"suggestedGrowthRate,omitempty"`
	GrowthSource        string                 `json:"growthSource,omitempty"`
	ValuationMetrics    []ValuationMetricEntry `json:"valuationMetrics,omitempty"`
	SavedDCFParams      *SavedDCFParams        `json:"savedDcfParams,omitempty"`
}

// SavedDCFParams is the last DCF parameter set a user saved for a symbol.
type SavedDCFParams struct {
	GrowthRate             float64   `json:"growthRate"`
	DiscountRate           float64   `json:"discountRate"`
	TerminalGrowthRate     float64   `json:"terminalGrowthRate"`
	ProjectionYears        int       `json:"projectionYears"`
	IntrinsicValuePerShare float64   `json:"intrinsicValuePerShare"`
	CurrentPrice           float64   `json:"currentPrice"`
	UpdatedAt              time.Time `json:"updatedAt"`
}
