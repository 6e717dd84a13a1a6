package calculator

import (
	"fmt"
	"math"
)

// Source labels where a suggested rate came from.
const (
	SourceAnalyst      = "analyst"
	SourceConservative = "conservative"
	SourceDefault      = "default"
	SourceCAPM         = "capm"
	SourceSector       = "sector"
)

const (
	conservativeYears  = 3
	conservativeWeight = 0.8
	minConservative    = -0.10
	maxConservative    = 0.50
)

// Estimate is a suggested rate and the heuristic that produced it.
type Estimate struct {
	Rate   float64 `json:"rate"`
	Source string  `json:"source"`
	Detail string  `json:"detail,omitempty"` // human readable derivation
}

// ConservativeGrowthFromHistory derives a haircut CAGR from an FCF series ordered newest first.
// At most `years` year-over-year steps are used. Both endpoints must be positive.
func ConservativeGrowthFromHistory(fcf []float64, years int, weight float64) (float64, bool) {
	if len(fcf) < 2 || years < 1 {
		return 0, false
	}
	use := years
	if len(fcf)-1 < use {
		use = len(fcf) - 1
	}
	last, first := fcf[0], fcf[use]
	if !(last > 0) || !(first > 0) {
		return 0, false
	}
	cagr := math.Pow(last/first, 1/float64(use)) - 1
	g := cagr * weight
	if math.IsNaN(g) || math.IsInf(g, 0) {
		return 0, false
	}
	return clamp(g, minConservative, maxConservative), true
}

// ResolveGrowth picks the growth rate to suggest: a finite analyst figure, then the conservative
// estimate from history, then DefaultGrowthRate.
func ResolveGrowth(analyst *float64, fcf []float64) Estimate {
	if analyst != nil && !math.IsNaN(*analyst) && !math.IsInf(*analyst, 0) {
		return Estimate{Rate: *analyst, Source: SourceAnalyst, Detail: "analyst 5y estimate"}
	}
	if g, ok := ConservativeGrowthFromHistory(fcf, conservativeYears, conservativeWeight); ok {
		return Estimate{
			Rate:   g,
			Source: SourceConservative,
			Detail: fmt.Sprintf("%.0f%% of historical FCF CAGR ≈ %.1f%%", conservativeWeight*100, g*100),
		}
	}
	return Estimate{Rate: DefaultGrowthRate, Source: SourceDefault, Detail: "default"}
}
