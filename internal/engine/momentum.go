package engine

import (
	"SpikeWatch/internal/domain/models"
)

// ClassifyMomentum labels the direction of the most recent trades of an
// active spike. Fewer than three trades yields Unknown, which exit decisions
// ignore.
func ClassifyMomentum(trades []models.Trade) models.Momentum {
	if len(trades) < 3 {
		return models.MomentumUnknown
	}

	var ups, downs int
	for i := 1; i < len(trades); i++ {
		switch {
		case trades[i].Price > trades[i-1].Price:
			ups++
		case trades[i].Price < trades[i-1].Price:
			downs++
		}
	}

	switch {
	case ups > 2*downs:
		return models.MomentumAccelerating
	case downs > 2*ups:
		return models.MomentumReversing
	case abs(ups-downs) <= 1:
		return models.MomentumSlowing
	default:
		return models.MomentumMixed
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
