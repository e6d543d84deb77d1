package engine

import (
	"math"
	"testing"
	"time"

	"SpikeWatch/internal/domain/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeWindowEmpty(t *testing.T) {
	m := ComputeWindow(nil)
	if m.TradeCount != 0 || m.VolumeRate != 0 || m.DollarVolume != 0 {
		t.Fatalf("empty window not zero: %+v", m)
	}
}

func TestComputeWindowSingleTrade(t *testing.T) {
	m := ComputeWindow([]models.Trade{tradeAt("ABCD", 5, 100, testBase)})
	if m.TradeCount != 1 {
		t.Fatalf("trade count = %d, want 1", m.TradeCount)
	}
	if m.VolumeRate != 0 {
		t.Fatalf("single trade must not produce a rate, got %v", m.VolumeRate)
	}
	if m.Upticks != 0 || m.Downticks != 0 {
		t.Fatalf("single trade produced ticks: %d up %d down", m.Upticks, m.Downticks)
	}
	if !almostEqual(m.DollarVolume, 500) {
		t.Fatalf("dollar volume = %v, want 500", m.DollarVolume)
	}
}

func TestComputeWindowMetrics(t *testing.T) {
	trades := []models.Trade{
		tradeAt("ABCD", 10.00, 100, testBase),
		tradeAt("ABCD", 10.10, 200, testBase.Add(2*time.Second)),
		tradeAt("ABCD", 10.05, 100, testBase.Add(4*time.Second)),
		tradeAt("ABCD", 10.05, 100, testBase.Add(6*time.Second)),
		tradeAt("ABCD", 10.20, 100, testBase.Add(10*time.Second)),
	}
	m := ComputeWindow(trades)

	if m.Upticks != 2 || m.Downticks != 1 {
		t.Fatalf("ticks = %d up %d down, want 2 up 1 down", m.Upticks, m.Downticks)
	}
	if m.FirstPrice != 10.00 || m.CurrentPrice != 10.20 || m.HighPrice != 10.20 {
		t.Fatalf("prices wrong: %+v", m)
	}
	// 600 shares over a 10 second span.
	if !almostEqual(m.VolumeRate, 60) {
		t.Fatalf("volume rate = %v, want 60", m.VolumeRate)
	}
	if !almostEqual(PriceChangePercent(m), 2.0) {
		t.Fatalf("price change = %v, want 2.0", PriceChangePercent(m))
	}
}

func TestComputeWindowSubSecondSpanClamped(t *testing.T) {
	trades := []models.Trade{
		tradeAt("ABCD", 10, 100, testBase),
		tradeAt("ABCD", 10, 100, testBase.Add(100*time.Millisecond)),
	}
	m := ComputeWindow(trades)
	// The span clamps to one second so a burst of near-simultaneous trades
	// cannot inflate the rate without bound.
	if !almostEqual(m.VolumeRate, 200) {
		t.Fatalf("volume rate = %v, want 200", m.VolumeRate)
	}
}

func TestPriceChangePercentZeroFirstPrice(t *testing.T) {
	if got := PriceChangePercent(models.WindowMetrics{CurrentPrice: 5}); got != 0 {
		t.Fatalf("change with zero first price = %v, want 0", got)
	}
}
