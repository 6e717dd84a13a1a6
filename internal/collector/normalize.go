package collector

import (
	"math"
	"sort"
	"time"

	"FairValue/internal/model"
)

// metricsWindowYears is how far back valuation metrics reach.
const metricsWindowYears = 5

// NormalizeFCFHistory drops entries without a usable FCF, orders the rest newest first
// and keeps at most model.MaxFCFHistory of them.
func NormalizeFCFHistory(entries []model.FCFEntry) []model.FCFEntry {
	out := make([]model.FCFEntry, 0, len(entries))
	for _, e := range entries {
		if e.FreeCashflow == nil || !isFinite(*e.FreeCashflow) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if len(out) > model.MaxFCFHistory {
		out = out[:model.MaxFCFHistory]
	}
	return out
}

// deriveFCF returns operating - |capex| when both are known, else operating alone.
func deriveFCF(operating, capex flexFloat) flexFloat {
	if operating.Valid && capex.Valid {
		v := operating.Value - math.Abs(capex.Value)
		return flexFloat{Value: v, Valid: isFinite(v)}
	}
	return operating
}

// MonthlyClose is one point of a monthly adjusted price series.
type MonthlyClose struct {
	Year  int
	Month int
	Close float64
}

// MetricInputs feeds BuildValuationMetrics. The year maps are keyed by fiscal year.
type MetricInputs struct {
	Shares        float64
	RevenueByYear map[int]float64
	EPSByYear     map[int]float64
	FCFByYear     map[int]float64
	Monthly       []MonthlyClose
}

// BuildValuationMetrics turns a monthly price series into P/S, P/E (GAAP) and P/FCF points for
// the last five calendar years, capped at model.MaxValuationMetrics. A ratio is nil when its
// denominator for that year is missing or not positive.
func BuildValuationMetrics(in MetricInputs, now time.Time) []model.ValuationMetricEntry {
	if in.Shares <= 0 || len(in.Monthly) == 0 {
		return nil
	}
	series := make([]MonthlyClose, 0, len(in.Monthly))
	from := now.Year() - metricsWindowYears
	for _, p := range in.Monthly {
		if p.Year < from || p.Month < 1 || p.Month > 12 || !isFinite(p.Close) {
			continue
		}
		series = append(series, p)
	}
	sort.Slice(series, func(i, j int) bool {
		if series[i].Year != series[j].Year {
			return series[i].Year < series[j].Year
		}
		return series[i].Month < series[j].Month
	})
	if len(series) > model.MaxValuationMetrics {
		series = series[len(series)-model.MaxValuationMetrics:]
	}

	out := make([]model.ValuationMetricEntry, 0, len(series))
	for _, p := range series {
		marketCap := p.Close * in.Shares
		out = append(out, model.ValuationMetricEntry{
			Year:   p.Year,
			Month:  p.Month,
			PS:     ratio(marketCap, in.RevenueByYear, p.Year),
			PEGaap: ratio(p.Close, in.EPSByYear, p.Year),
			PFCF:   ratio(marketCap, in.FCFByYear, p.Year),
			Price:  model.Float(p.Close),
		})
	}
	return out
}

func ratio(num float64, denoms map[int]float64, year int) *float64 {
	d, ok := denoms[year]
	if !ok || !(d > 0) {
		return nil
	}
	v := num / d
	if !isFinite(v) {
		return nil
	}
	return &v
}

