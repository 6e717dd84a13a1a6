package calculator

import "math"

// Parameter bounds accepted by the DCF form and the advisor.
const (
	MinGrowthRate = 0.01
	MaxGrowthRate = 0.5

	MinDiscountRate = 0.05
	MaxDiscountRate = 0.25

	MinTerminalGrowthRate = 0.005
	MaxTerminalGrowthRate = 0.05

	MinProjectionYears = 3
	MaxProjectionYears = 15

	DefaultGrowthRate         = 0.10
	DefaultDiscountRate       = 0.10
	DefaultTerminalGrowthRate = 0.025
	DefaultProjectionYears    = 5
)

// ClampParams forces the rate and horizon fields into their accepted ranges.
// NaN rates fall back to the defaults; BaseFCF and SharesOutstanding pass through.
func ClampParams(p Params) Params {
	p.GrowthRate = clampOr(p.GrowthRate, MinGrowthRate, MaxGrowthRate, DefaultGrowthRate)
	p.DiscountRate = clampOr(p.DiscountRate, MinDiscountRate, MaxDiscountRate, DefaultDiscountRate)
	p.TerminalGrowthRate = clampOr(p.TerminalGrowthRate, MinTerminalGrowthRate, MaxTerminalGrowthRate, DefaultTerminalGrowthRate)
	p.ProjectionYears = ClampYears(float64(p.ProjectionYears))
	return p
}

// ClampYears rounds a horizon to whole years within [MinProjectionYears, MaxProjectionYears].
func ClampYears(years float64) int {
	if math.IsNaN(years) {
		return DefaultProjectionYears
	}
	return int(clamp(math.Round(years), MinProjectionYears, MaxProjectionYears))
}

func clampOr(v, lo, hi, def float64) float64 {
	if math.IsNaN(v) {
		return def
	}
	return clamp(v, lo, hi)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
