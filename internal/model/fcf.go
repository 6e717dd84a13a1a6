package model

import "time"

// MaxFCFHistory caps how many annual entries a history keeps.
const MaxFCFHistory = 10

// FCFEntry is one fiscal year of cash-flow data.
type FCFEntry struct {
	Date               int64    `json:"date"` // fiscal year end, unix milliseconds
	FreeCashflow       *float64 `json:"freeCashflow,omitempty"`
	OperatingCashflow  *float64 `json:"operatingCashflow,omitempty"`
	CapitalExpenditure *float64 `json:"capitalExpenditure,omitempty"`
}

// Time returns the fiscal year end as a time.Time.
func (e FCFEntry) Time() time.Time {
	return time.UnixMilli(e.Date).UTC()
}

// FreeCashflows extracts resolved FCF values, keeping the input order.
func FreeCashflows(entries []FCFEntry) []float64 {
	out := make([]float64, 0, len(entries))
	for _, e := range entries {
		if e.FreeCashflow != nil {
			out = append(out, *e.FreeCashflow)
		}
	}
	return out
}
