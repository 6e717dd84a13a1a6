package calculator

import (
	"math"
	"testing"
)

const eps = 1e-6

func approx(a, b float64) bool {
	return math.Abs(a-b) <= eps*math.Max(1, math.Abs(b))
}

func TestComputeDCF_ReferenceScenario(t *testing.T) {
	res := ComputeDCF(Params{
		BaseFCF:            100,
		GrowthRate:         0.10,
		DiscountRate:       0.10,
		TerminalGrowthRate: 0.025,
		ProjectionYears:    5,
		SharesOutstanding:  50,
	})

	if len(res.Projections) != 5 {
		t.Fatalf("expected 5 projections, got %d", len(res.Projections))
	}
	for _, p := range res.Projections {
		if !approx(p.PV, 100) {
			t.Errorf("year %d: expected pv 100, got %.6f", p.Year, p.PV)
		}
	}
	if !approx(res.Projections[4].FCF, 161.051) {
		t.Errorf("expected year-5 fcf 161.051, got %.6f", res.Projections[4].FCF)
	}
	if !approx(res.PVProjected, 500) {
		t.Errorf("expected pv projected 500, got %.6f", res.PVProjected)
	}
	if !approx(res.TerminalValue, 165.077275/0.075) {
		t.Errorf("expected terminal value %.6f, got %.6f", 165.077275/0.075, res.TerminalValue)
	}
	if !approx(res.PVTerminal, 1366.666667) {
		t.Errorf("expected pv terminal 1366.67, got %.6f", res.PVTerminal)
	}
	if !approx(res.EnterpriseValue, 1866.666667) {
		t.Errorf("expected EV 1866.67, got %.6f", res.EnterpriseValue)
	}
	if !approx(res.IntrinsicValuePerShare, 37.333333) {
		t.Errorf("expected 37.33 per share, got %.6f", res.IntrinsicValuePerShare)
	}
}

func TestComputeDCF_EVIsSumOfParts(t *testing.T) {
	cases := []Params{
		{BaseFCF: 1e9, GrowthRate: 0.07, DiscountRate: 0.09, TerminalGrowthRate: 0.02, ProjectionYears: 10, SharesOutstanding: 1e8},
		{BaseFCF: -5e6, GrowthRate: 0.2, DiscountRate: 0.12, TerminalGrowthRate: 0.03, ProjectionYears: 3, SharesOutstanding: 2e6},
		{BaseFCF: 42, GrowthRate: -0.05, DiscountRate: 0.06, TerminalGrowthRate: 0.01, ProjectionYears: 15, SharesOutstanding: 0},
	}
	for i, p := range cases {
		res := ComputeDCF(p)
		if !approx(res.EnterpriseValue, res.PVProjected+res.PVTerminal) {
			t.Errorf("case %d: EV %.4f != %.4f + %.4f", i, res.EnterpriseValue, res.PVProjected, res.PVTerminal)
		}
		var sum float64
		for _, pr := range res.Projections {
			sum += pr.PV
		}
		if !approx(sum, res.PVProjected) {
			t.Errorf("case %d: projections sum %.4f, pv projected %.4f", i, sum, res.PVProjected)
		}
	}
}

func TestComputeDCF_NoTerminalWhenDiscountNotAboveTerminal(t *testing.T) {
	for _, r := range []float64{0.02, 0.025} {
		res := ComputeDCF(Params{BaseFCF: 100, GrowthRate: 0.05, DiscountRate: r, TerminalGrowthRate: 0.025, ProjectionYears: 5, SharesOutstanding: 10})
		if res.TerminalValue != 0 || res.PVTerminal != 0 {
			t.Errorf("r=%.3f: expected zero terminal value, got tv=%.4f pv=%.4f", r, res.TerminalValue, res.PVTerminal)
		}
		if !approx(res.EnterpriseValue, res.PVProjected) {
			t.Errorf("r=%.3f: EV should equal pv projected", r)
		}
	}
}

func TestComputeDCF_ZeroSharesGivesZeroPerShare(t *testing.T) {
	res := ComputeDCF(Params{BaseFCF: 100, GrowthRate: 0.1, DiscountRate: 0.1, TerminalGrowthRate: 0.02, ProjectionYears: 5})
	if res.IntrinsicValuePerShare != 0 {
		t.Errorf("expected 0 per share, got %.4f", res.IntrinsicValuePerShare)
	}
	if res.EnterpriseValue <= 0 {
		t.Errorf("expected positive EV, got %.4f", res.EnterpriseValue)
	}
}

func TestComputeDCF_ZeroYears(t *testing.T) {
	res := ComputeDCF(Params{BaseFCF: 100, DiscountRate: 0.1, TerminalGrowthRate: 0.0, ProjectionYears: 0, SharesOutstanding: 1})
	if len(res.Projections) != 0 {
		t.Fatalf("expected no projections, got %d", len(res.Projections))
	}
	// TV = 100 / 0.1, undiscounted at t=0.
	if !approx(res.EnterpriseValue, 1000) {
		t.Errorf("expected EV 1000, got %.4f", res.EnterpriseValue)
	}
}

func TestMarginOfSafety(t *testing.T) {
	m, ok := MarginOfSafety(100, 75)
	if !ok || !approx(m, 0.25) {
		t.Errorf("expected 0.25, got %.4f (ok=%v)", m, ok)
	}
	if _, ok := MarginOfSafety(0, 10); ok {
		t.Error("expected no margin for zero intrinsic value")
	}
}

func TestComputeDCF_HorizonBeyondBound(t *testing.T) {
	for _, years := range []int{MaxHorizon + 1, math.MaxInt} {
		res := ComputeDCF(Params{
			BaseFCF:            100,
			GrowthRate:         0.1,
			DiscountRate:       0.1,
			TerminalGrowthRate: 0.02,
			ProjectionYears:    years,
			SharesOutstanding:  1,
		})
		if len(res.Projections) != 0 || res.EnterpriseValue != 0 || res.IntrinsicValuePerShare != 0 {
			t.Errorf("years=%d: expected zero result, got %d projections, ev %.3f", years, len(res.Projections), res.EnterpriseValue)
		}
	}

	res := ComputeDCF(Params{BaseFCF: 100, GrowthRate: 0.1, DiscountRate: 0.1, TerminalGrowthRate: 0.02, ProjectionYears: 40})
	if len(res.Projections) != 40 {
		t.Errorf("expected 40 projections past the form bound, got %d", len(res.Projections))
	}
}
