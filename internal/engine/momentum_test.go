package engine

import (
	"testing"
	"time"

	"SpikeWatch/internal/domain/models"
)

func pricesToTrades(prices []float64) []models.Trade {
	out := make([]models.Trade, len(prices))
	for i, p := range prices {
		out[i] = tradeAt("ABCD", p, 100, testBase.Add(time.Duration(i)*time.Second))
	}
	return out
}

func TestClassifyMomentum(t *testing.T) {
	cases := []struct {
		name   string
		prices []float64
		want   models.Momentum
	}{
		{"too few trades", []float64{10, 10.1}, models.MomentumUnknown},
		{"all rising", []float64{10, 10.1, 10.2, 10.3, 10.4}, models.MomentumAccelerating},
		{"all falling", []float64{10.4, 10.3, 10.2, 10.1, 10}, models.MomentumReversing},
		{"balanced chop", []float64{10, 10.1, 10, 10.1, 10}, models.MomentumSlowing},
		{"flat tape", []float64{10, 10, 10, 10}, models.MomentumSlowing},
		{"uneven chop", []float64{10, 10.1, 10.2, 10.3, 10.2, 10.3, 10.2}, models.MomentumMixed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyMomentum(pricesToTrades(tc.prices)); got != tc.want {
				t.Fatalf("momentum = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestClassifyMomentumDominanceBoundary(t *testing.T) {
	// Three ups against one down: 3 > 2*1 so the dominance rule fires.
	up := pricesToTrades([]float64{10, 10.1, 10.2, 10.3, 10.2})
	if got := ClassifyMomentum(up); got != models.MomentumAccelerating {
		t.Fatalf("3 up 1 down = %v, want accelerating", got)
	}

	// Two ups against one down: 2 <= 2*1, difference is 1, so it slows.
	edge := pricesToTrades([]float64{10, 10.1, 10.2, 10.1})
	if got := ClassifyMomentum(edge); got != models.MomentumSlowing {
		t.Fatalf("2 up 1 down = %v, want slowing", got)
	}
}
