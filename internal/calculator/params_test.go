package calculator

import (
	"math"
	"testing"
)

func TestClampParams(t *testing.T) {
	p := ClampParams(Params{
		BaseFCF:            123,
		GrowthRate:         0.9,
		DiscountRate:       0.01,
		TerminalGrowthRate: 0.2,
		ProjectionYears:    40,
		SharesOutstanding:  7,
	})
	if p.GrowthRate != MaxGrowthRate {
		t.Errorf("expected growth %.2f, got %.4f", MaxGrowthRate, p.GrowthRate)
	}
	if p.DiscountRate != MinDiscountRate {
		t.Errorf("expected discount %.2f, got %.4f", MinDiscountRate, p.DiscountRate)
	}
	if p.TerminalGrowthRate != MaxTerminalGrowthRate {
		t.Errorf("expected terminal %.3f, got %.4f", MaxTerminalGrowthRate, p.TerminalGrowthRate)
	}
	if p.ProjectionYears != MaxProjectionYears {
		t.Errorf("expected %d years, got %d", MaxProjectionYears, p.ProjectionYears)
	}
	if p.BaseFCF != 123 || p.SharesOutstanding != 7 {
		t.Errorf("base fcf and shares must pass through, got %+v", p)
	}
}

func TestClampParams_NaNDefaults(t *testing.T) {
	p := ClampParams(Params{GrowthRate: math.NaN(), DiscountRate: math.NaN(), TerminalGrowthRate: math.NaN(), ProjectionYears: 0})
	if p.GrowthRate != DefaultGrowthRate || p.DiscountRate != DefaultDiscountRate || p.TerminalGrowthRate != DefaultTerminalGrowthRate {
		t.Errorf("expected defaults, got %+v", p)
	}
	if p.ProjectionYears != MinProjectionYears {
		t.Errorf("expected %d years, got %d", MinProjectionYears, p.ProjectionYears)
	}
}

func TestClampYears(t *testing.T) {
	cases := map[float64]int{
		math.NaN(): DefaultProjectionYears,
		2.4:        3,
		7.5:        8,
		9.49:       9,
		100:        15,
	}
	for in, want := range cases {
		if got := ClampYears(in); got != want {
			t.Errorf("ClampYears(%v) = %d, want %d", in, got, want)
		}
	}
}
