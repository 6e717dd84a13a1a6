package calculator

import (
	"fmt"
	"math"
	"strings"
)

const (
	riskFreeRate      = 0.04
	equityRiskPremium = 0.055
	minWacc           = 0.06
	maxWacc           = 0.18
	defaultSectorWacc = 0.10
)

type sectorRate struct {
	name string
	rate float64
}

// Order matters: the first entry whose name contains, or is contained in, the sector wins.
var sectorWacc = []sectorRate{
	{"Technology", 0.105},
	{"Consumer Cyclical", 0.09},
	{"Consumer Defensive", 0.07},
	{"Healthcare", 0.08},
	{"Utilities", 0.06},
	{"Financial Services", 0.09},
	{"Industrials", 0.08},
	{"Energy", 0.08},
	{"Basic Materials", 0.08},
	{"Real Estate", 0.07},
	{"Communication Services", 0.08},
}

// SuggestWacc estimates a discount rate. A finite beta is priced with CAPM and clamped to [6%, 18%].
// Otherwise the sector table is used, defaulting to 10% for sectors it does not know.
// Returns false when neither beta nor sector is available.
func SuggestWacc(beta *float64, sector string) (Estimate, bool) {
	if beta != nil && !math.IsNaN(*beta) && !math.IsInf(*beta, 0) {
		rate := clamp(riskFreeRate+*beta*equityRiskPremium, minWacc, maxWacc)
		return Estimate{
			Rate:   rate,
			Source: SourceCAPM,
			Detail: fmt.Sprintf("risk-free %.1f%% + β %.2f × %.1f%% ≈ %.1f%%", riskFreeRate*100, *beta, equityRiskPremium*100, rate*100),
		}, true
	}
	sector = strings.TrimSpace(sector)
	if sector == "" {
		return Estimate{}, false
	}
	rate := sectorRateFor(sector)
	return Estimate{
		Rate:   rate,
		Source: SourceSector,
		Detail: fmt.Sprintf("typical WACC for sector %q ≈ %.1f%%", sector, rate*100),
	}, true
}

func sectorRateFor(sector string) float64 {
	s := strings.ToLower(sector)
	for _, e := range sectorWacc {
		name := strings.ToLower(e.name)
		if strings.Contains(s, name) || strings.Contains(name, s) {
			return e.rate
		}
	}
	return defaultSectorWacc
}
