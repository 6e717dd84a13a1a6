package calculator

import (
	"errors"
	"math"

	"FairValue/internal/model"
)

// MultipleStats summarises one valuation multiple over the sampled window.
type MultipleStats struct {
	Current  float64 `json:"current"`
	Mean     float64 `json:"mean"`
	Low      float64 `json:"low"`
	High     float64 `json:"high"`
	Position float64 `json:"position"` // 0 at Low, 1 at High
	Samples  int     `json:"samples"`
}

// MultiplesSummary holds the stats of each multiple with at least one sample.
type MultiplesSummary struct {
	PS     *MultipleStats `json:"ps,omitempty"`
	PEGaap *MultipleStats `json:"peGaap,omitempty"`
	PFCF   *MultipleStats `json:"pfcf,omitempty"`
}

// SummarizeMultiples walks chronological valuation metrics and summarises every multiple.
// Missing and non-finite samples are skipped.
func SummarizeMultiples(entries []model.ValuationMetricEntry) MultiplesSummary {
	var ps, pe, pfcf []float64
	for _, e := range entries {
		ps = appendFinite(ps, e.PS)
		pe = appendFinite(pe, e.PEGaap)
		pfcf = appendFinite(pfcf, e.PFCF)
	}
	return MultiplesSummary{
		PS:     summarize(ps),
		PEGaap: summarize(pe),
		PFCF:   summarize(pfcf),
	}
}

func summarize(values []float64) *MultipleStats {
	if len(values) == 0 {
		return nil
	}
	mean, _ := Mean(values)
	high, low := seriesRange(values)
	current := values[len(values)-1]
	return &MultipleStats{
		Current:  current,
		Mean:     mean,
		Low:      low,
		High:     high,
		Position: RangePosition(current, high, low),
		Samples:  len(values),
	}
}

// Mean returns the arithmetic mean of values.
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, errors.New("no values")
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

func seriesRange(values []float64) (high, low float64) {
	high, low = math.Inf(-1), math.Inf(1)
	for _, v := range values {
		high = math.Max(high, v)
		low = math.Min(low, v)
	}
	return high, low
}

// RangePosition returns where current sits within [low, high], clamped to [0, 1].
// A flat range yields 0.5.
func RangePosition(current, high, low float64) float64 {
	if high <= low {
		return 0.5
	}
	return clamp((current-low)/(high-low), 0, 1)
}

func appendFinite(dst []float64, v *float64) []float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return dst
	}
	return append(dst, *v)
}
