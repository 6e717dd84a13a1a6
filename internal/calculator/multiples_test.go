package calculator

import (
	"math"
	"testing"

	"FairValue/internal/model"
)


func TestSummarizeMultiples(t *testing.T) {
	entries := []model.ValuationMetricEntry{
		{Year: 2023, Month: 1, PS: model.Float(4), PEGaap: model.Float(20), PFCF: nil},
		{Year: 2023, Month: 2, PS: model.Float(6), PEGaap: model.Float(math.Inf(1))},
		{Year: 2023, Month: 3, PS: model.Float(5), PEGaap: model.Float(30)},
	}
	got := SummarizeMultiples(entries)

	if got.PFCF != nil {
		t.Errorf("PFCF = %+v, want nil", got.PFCF)
	}
	if got.PS == nil || got.PEGaap == nil {
		t.Fatalf("missing stats: %+v", got)
	}
	ps := *got.PS
	if ps.Current != 5 || ps.Low != 4 || ps.High != 6 || ps.Samples != 3 {
		t.Errorf("PS = %+v", ps)
	}
	if math.Abs(ps.Mean-5) > 1e-9 || math.Abs(ps.Position-0.5) > 1e-9 {
		t.Errorf("PS mean/position = %v/%v, want 5/0.5", ps.Mean, ps.Position)
	}
	pe := *got.PEGaap
	if pe.Samples != 2 || pe.Current != 30 || pe.Position != 1 {
		t.Errorf("PEGaap = %+v", pe)
	}
}

func TestRangePosition(t *testing.T) {
	tests := []struct {
		current, high, low, want float64
	}{
		{15, 20, 10, 0.5},
		{25, 20, 10, 1},
		{5, 20, 10, 0},
		{7, 7, 7, 0.5},
	}
	for _, tt := range tests {
		if got := RangePosition(tt.current, tt.high, tt.low); got != tt.want {
			t.Errorf("RangePosition(%v, %v, %v) = %v, want %v", tt.current, tt.high, tt.low, got, tt.want)
		}
	}
}

func TestMean(t *testing.T) {
	if _, err := Mean(nil); err == nil {
		t.Error("expected error for empty input")
	}
	if got, _ := Mean([]float64{1, 2, 3, 4}); got != 2.5 {
		t.Errorf("Mean = %v, want 2.5", got)
	}
}
