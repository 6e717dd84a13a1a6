package model

// MaxValuationMetrics is five years of monthly samples.
const MaxValuationMetrics = 60

// ValuationMetricEntry holds valuation ratios for one monthly close.
// A nil ratio means the denominator was missing or non-positive.
type ValuationMetricEntry struct {
	Year   int      `json:"year"`
	Month  int      `json:"month,omitempty"`
	PS     *float64 `json:"ps"`
	PEGaap *float64 `json:"peGaap"`
	PFCF   *float64 `json:"pfcf"`
	Price  *float64 `json:"price"`
}
