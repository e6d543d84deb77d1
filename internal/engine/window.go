package engine

import (
	"SpikeWatch/internal/domain/models"
)

// ComputeWindow derives WindowMetrics from an ordered trade slice. With fewer
// than two trades every rate and tick count stays at its zero value; nothing
// here ever divides by zero.
func ComputeWindow(trades []models.Trade) models.WindowMetrics {
	var m models.WindowMetrics
	m.TradeCount = len(trades)
	if len(trades) == 0 {
		return m
	}

	m.FirstPrice = trades[0].Price
	m.CurrentPrice = trades[len(trades)-1].Price

	var totalSize float64
	for i, t := range trades {
		totalSize += t.Size
		m.DollarVolume += t.DollarValue()
		if t.Price > m.HighPrice {
			m.HighPrice = t.Price
		}
		if i == 0 {
			continue
		}
		switch {
		case t.Price > trades[i-1].Price:
			m.Upticks++
		case t.Price < trades[i-1].Price:
			m.Downticks++
		}
	}

	if len(trades) < 2 {
		return m
	}

	span := trades[len(trades)-1].Timestamp.Sub(trades[0].Timestamp).Seconds()
	if span < 1 {
		span = 1
	}
	m.VolumeRate = totalSize / span
	return m
}

// PriceChangePercent returns the percentage move from the first to the last
// trade of the window, signed.
func PriceChangePercent(m models.WindowMetrics) float64 {
	if m.FirstPrice <= 0 {
		return 0
	}
	return (m.CurrentPrice - m.FirstPrice) / m.FirstPrice * 100
}
