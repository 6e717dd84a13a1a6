package calculator

import (
	"math"
	"testing"
)

func TestConservativeGrowthFromHistory(t *testing.T) {
	// newest first: 133.1 -> 100 over 3 years is a 10% CAGR.
	g, ok := ConservativeGrowthFromHistory([]float64{133.1, 121, 110, 100, 50}, 3, 0.8)
	if !ok {
		t.Fatal("expected an estimate")
	}
	if !approx(g, 0.08) {
		t.Errorf("expected 0.08, got %.6f", g)
	}
}

func TestConservativeGrowthFromHistory_ShortSeries(t *testing.T) {
	g, ok := ConservativeGrowthFromHistory([]float64{120, 100}, 3, 0.8)
	if !ok {
		t.Fatal("expected an estimate from two points")
	}
	if !approx(g, 0.16) {
		t.Errorf("expected 0.16, got %.6f", g)
	}
}

func TestConservativeGrowthFromHistory_Absent(t *testing.T) {
	cases := map[string][]float64{
		"empty":             nil,
		"single":            {100},
		"negative latest":   {-10, 100, 90},
		"zero earliest":     {100, 90, 0},
		"negative earliest": {100, 90, 80, -5},
	}
	for name, fcf := range cases {
		if g, ok := ConservativeGrowthFromHistory(fcf, 3, 0.8); ok {
			t.Errorf("%s: expected no estimate, got %.4f", name, g)
		}
	}
}

func TestConservativeGrowthFromHistory_Bounds(t *testing.T) {
	series := [][]float64{
		{1e9, 1, 1, 1},
		{1, 1e9, 1e9, 1e9},
		{5, 4, 3, 2, 1},
		{100, 100},
	}
	for _, fcf := range series {
		g, ok := ConservativeGrowthFromHistory(fcf, 3, 0.8)
		if !ok {
			t.Fatalf("expected estimate for %v", fcf)
		}
		if g < -0.10 || g > 0.50 {
			t.Errorf("estimate %.4f out of bounds for %v", g, fcf)
		}
	}
}

func TestResolveGrowth(t *testing.T) {
	analyst := 0.125
	if e := ResolveGrowth(&analyst, []float64{200, 100}); e.Rate != 0.125 || e.Source != SourceAnalyst {
		t.Errorf("expected analyst figure, got %+v", e)
	}

	nan := math.NaN()
	if e := ResolveGrowth(&nan, []float64{121, 110, 100}); e.Source != SourceConservative || !approx(e.Rate, 0.08) {
		t.Errorf("expected conservative 0.08, got %+v", e)
	}

	if e := ResolveGrowth(nil, []float64{-1, 100}); e.Rate != DefaultGrowthRate || e.Source != SourceDefault {
		t.Errorf("expected default, got %+v", e)
	}
}
