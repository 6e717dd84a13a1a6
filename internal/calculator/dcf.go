package calculator

import "math"

// Params are the inputs of a discounted cash flow projection.
type Params struct {
	BaseFCF            float64 `json:"baseFcf"`
	GrowthRate         float64 `json:"growthRate"`
	DiscountRate       float64 `json:"discountRate"`
	TerminalGrowthRate float64 `json:"terminalGrowthRate"`
	ProjectionYears    int     `json:"projectionYears"`
	SharesOutstanding  float64 `json:"sharesOutstanding"`
}

// Projection is one projected year.
type Projection struct {
	Year int     `json:"year"`
	FCF  float64 `json:"fcf"`
	PV   float64 `json:"pv"`
}

// Result is the output of ComputeDCF.
type Result struct {
	Projections            []Projection `json:"projections"`
	PVProjected            float64      `json:"pvProjected"`
	TerminalValue          float64      `json:"terminalValue"`
	PVTerminal             float64      `json:"pvTerminal"`
	EnterpriseValue        float64      `json:"enterpriseValue"`
	IntrinsicValuePerShare float64      `json:"intrinsicValuePerShare"`
}

// MaxHorizon is the longest projection ComputeDCF evaluates. Longer horizons yield a zero Result.
const MaxHorizon = 1000

// ComputeDCF projects BaseFCF forward ProjectionYears years at GrowthRate, discounts every year at
// DiscountRate and adds a Gordon growth terminal value. The terminal value is 0 whenever the discount
// rate does not exceed the terminal growth rate, and the per-share value is 0 without a positive share count.
func ComputeDCF(p Params) Result {
	n := p.ProjectionYears
	if n < 0 {
		n = 0
	}
	if n > MaxHorizon {
		return Result{Projections: []Projection{}}
	}
	res := Result{Projections: make([]Projection, 0, min(n, MaxProjectionYears))}

	fcf := p.BaseFCF
	for t := 1; t <= n; t++ {
		fcf *= 1 + p.GrowthRate
		pv := fcf / math.Pow(1+p.DiscountRate, float64(t))
		res.Projections = append(res.Projections, Projection{Year: t, FCF: fcf, PV: pv})
		res.PVProjected += pv
	}

	if p.DiscountRate > p.TerminalGrowthRate {
		res.TerminalValue = fcf * (1 + p.TerminalGrowthRate) / (p.DiscountRate - p.TerminalGrowthRate)
		res.PVTerminal = res.TerminalValue / math.Pow(1+p.DiscountRate, float64(n))
	}

	res.EnterpriseValue = res.PVProjected + res.PVTerminal
	if p.SharesOutstanding > 0 {
		res.IntrinsicValuePerShare = res.EnterpriseValue / p.SharesOutstanding
	}
	return res
}

// MarginOfSafety returns (intrinsic - price) / intrinsic, or false when intrinsic is not positive.
func MarginOfSafety(intrinsic, price float64) (float64, bool) {
	if intrinsic <= 0 || math.IsNaN(price) {
		return 0, false
	}
	return (intrinsic - price) / intrinsic, true
}
