package engine

import (
	"testing"
	"time"

	"SpikeWatch/internal/domain/models"
)

func hasTag(tags []models.SignalTag, want models.SignalTag) bool {
	for _, tag := range tags {
		if tag == want {
			return true
		}
	}
	return false
}

func TestLargeTradeTagSticky(t *testing.T) {
	cfg := testDetection(t)
	s := newSignalState()

	s.observeTrade(tradeAt("XYZ", 2.50, cfg.LargeTradeShares-1, testBase), cfg)
	if len(s.activeTags()) != 0 {
		t.Fatalf("below-threshold trade raised tags: %v", s.activeTags())
	}

	s.observeTrade(tradeAt("XYZ", 2.50, cfg.LargeTradeShares, testBase), cfg)
	if !hasTag(s.activeTags(), models.SignalLargeTrade) {
		t.Fatal("LARGE_TRADE not raised")
	}

	// Small follow-up prints must not clear it.
	s.observeTrade(tradeAt("XYZ", 2.50, 100, testBase.Add(time.Second)), cfg)
	if !hasTag(s.activeTags(), models.SignalLargeTrade) {
		t.Fatal("LARGE_TRADE cleared by a small trade")
	}
}

func TestHighVolatilityTagTracksSpread(t *testing.T) {
	cfg := testDetection(t)
	s := newSignalState()

	wide := models.Quote{Symbol: "XYZ", BidPrice: 10.00, AskPrice: 10.20, Timestamp: testBase}
	s.observeQuote(wide, cfg)
	if !hasTag(s.activeTags(), models.SignalHighVolatility) {
		t.Fatalf("wide spread (%.2f%%) did not raise HIGH_VOLATILITY", wide.SpreadPercent())
	}

	tight := models.Quote{Symbol: "XYZ", BidPrice: 10.00, AskPrice: 10.02, Timestamp: testBase.Add(time.Second)}
	s.observeQuote(tight, cfg)
	if hasTag(s.activeTags(), models.SignalHighVolatility) {
		t.Fatal("tight spread did not clear HIGH_VOLATILITY")
	}
}

func TestVolumeSurgeNeedsBaseline(t *testing.T) {
	cfg := testDetection(t)
	s := newSignalState()

	// The first bars only build the baseline, however large.
	for i := 0; i < 2; i++ {
		s.observeBar(models.Bar{Symbol: "XYZ", Volume: 1e6, Timestamp: testBase.Add(time.Duration(i) * time.Minute)}, cfg)
	}
	if hasTag(s.activeTags(), models.SignalVolumeSurge) {
		t.Fatal("surge raised before baseline existed")
	}

	s.observeBar(models.Bar{Symbol: "XYZ", Volume: 1000, Timestamp: testBase.Add(2 * time.Minute)}, cfg)
	s.observeBar(models.Bar{Symbol: "XYZ", Volume: 1000, Timestamp: testBase.Add(3 * time.Minute)}, cfg)

	// Baseline average is now ~500k; ten times that is a surge.
	s.observeBar(models.Bar{Symbol: "XYZ", Volume: 5.1e6, Timestamp: testBase.Add(4 * time.Minute)}, cfg)
	if !hasTag(s.activeTags(), models.SignalVolumeSurge) {
		t.Fatal("surge bar did not raise VOLUME_SURGE")
	}

	// An ordinary bar clears it again.
	s.observeBar(models.Bar{Symbol: "XYZ", Volume: 1000, Timestamp: testBase.Add(5 * time.Minute)}, cfg)
	if hasTag(s.activeTags(), models.SignalVolumeSurge) {
		t.Fatal("ordinary bar did not clear VOLUME_SURGE")
	}
}

func TestRapidTradingTag(t *testing.T) {
	cfg := testDetection(t)
	buf := NewSymbolBuffer("XYZ", cfg.MaxTradesStored, cfg.HistoryWindow())
	s := newSignalState()

	now := testBase
	for i := cfg.RapidTradeThreshold + 4; i >= 0; i-- {
		buf.Record(tradeAt("XYZ", 5, 10, now.Add(-time.Duration(i)*5*time.Millisecond)))
	}

	s.refreshRapid(buf, cfg, now)
	if !hasTag(s.activeTags(), models.SignalRapidTrading) {
		t.Fatal("dense tape did not raise RAPID_TRADING")
	}

	s.refreshRapid(buf, cfg, now.Add(2*time.Second))
	if hasTag(s.activeTags(), models.SignalRapidTrading) {
		t.Fatal("RAPID_TRADING survived after the tape went quiet")
	}
}

func TestClearEmptiesAllTags(t *testing.T) {
	cfg := testDetection(t)
	s := newSignalState()
	s.observeTrade(tradeAt("XYZ", 2.50, cfg.LargeTradeShares, testBase), cfg)
	s.observeQuote(models.Quote{Symbol: "XYZ", BidPrice: 10.00, AskPrice: 10.20, Timestamp: testBase}, cfg)

	if len(s.activeTags()) != 2 {
		t.Fatalf("tags = %v, want 2 active", s.activeTags())
	}
	s.clear()
	if len(s.activeTags()) != 0 {
		t.Fatalf("tags after clear = %v, want none", s.activeTags())
	}
}
