package engine

import (
	"math"
	"testing"
	"time"

	"SpikeWatch/internal/domain/models"
)

// seedEntryScenario loads a flat 60 second baseline followed by a 10 second
// burst at roughly three times the baseline volume rate with a +1.2% move.
func seedEntryScenario(buf *SymbolBuffer, now time.Time) {
	fillBaseline(buf, 20, 10.00, 100, now.Add(-60*time.Second), now.Add(-10*time.Second))
	for i := 0; i < 6; i++ {
		ts := now.Add(-9 * time.Second).Add(time.Duration(i) * 1800 * time.Millisecond)
		price := 10.00 + 0.024*float64(i)
		buf.Record(tradeAt(buf.Symbol(), price, 190, ts))
	}
}

func TestSpikeEntry(t *testing.T) {
	cfg := testDetection(t)
	buf := NewSymbolBuffer("XYZ", cfg.MaxTradesStored, cfg.HistoryWindow())
	seedEntryScenario(buf, testBase)

	var s spikeState
	tr, rec := s.evaluate(buf, cfg, testBase)
	if tr != transitionStart {
		t.Fatalf("transition = %v, want start", tr)
	}
	if rec.Symbol != "XYZ" || rec.StartTime != testBase {
		t.Fatalf("record identity wrong: %+v", rec)
	}
	if rec.VolumeBurstRatio < 2.8 || rec.VolumeBurstRatio > 3.2 {
		t.Fatalf("burst ratio = %v, want ~3.0", rec.VolumeBurstRatio)
	}
	if math.Abs(rec.PriceChangePercent-1.2) > 0.01 {
		t.Fatalf("price change = %v, want ~1.2", rec.PriceChangePercent)
	}
	if rec.TradeCount != 6 {
		t.Fatalf("trade count = %d, want 6", rec.TradeCount)
	}
	if rec.Momentum != models.MomentumAccelerating {
		t.Fatalf("momentum = %v, want accelerating", rec.Momentum)
	}
	if s.active == nil {
		t.Fatal("state not active after entry")
	}
}

func TestSpikeNoEntryBelowBurst(t *testing.T) {
	cfg := testDetection(t)
	buf := NewSymbolBuffer("XYZ", cfg.MaxTradesStored, cfg.HistoryWindow())
	fillBaseline(buf, 20, 10.00, 100, testBase.Add(-60*time.Second), testBase.Add(-10*time.Second))
	// Same price move but volume barely above baseline.
	for i := 0; i < 6; i++ {
		ts := testBase.Add(-9 * time.Second).Add(time.Duration(i) * 1800 * time.Millisecond)
		buf.Record(tradeAt("XYZ", 10.00+0.024*float64(i), 60, ts))
	}

	var s spikeState
	if tr, _ := s.evaluate(buf, cfg, testBase); tr != transitionNone {
		t.Fatalf("transition = %v, want none", tr)
	}
}

func TestSpikeNoEntryThinBaseline(t *testing.T) {
	cfg := testDetection(t)
	buf := NewSymbolBuffer("XYZ", cfg.MaxTradesStored, cfg.HistoryWindow())
	fillBaseline(buf, cfg.MinBaselineTrades-1, 10.00, 100, testBase.Add(-60*time.Second), testBase.Add(-10*time.Second))
	for i := 0; i < 6; i++ {
		ts := testBase.Add(-9 * time.Second).Add(time.Duration(i) * 1800 * time.Millisecond)
		buf.Record(tradeAt("XYZ", 10.00+0.024*float64(i), 190, ts))
	}

	var s spikeState
	if tr, _ := s.evaluate(buf, cfg, testBase); tr != transitionNone {
		t.Fatalf("thin baseline must block entry, got %v", tr)
	}
}

func TestSpikeNoEntryAbovePriceCap(t *testing.T) {
	cfg := testDetection(t)
	buf := NewSymbolBuffer("XYZ", cfg.MaxTradesStored, cfg.HistoryWindow())
	fillBaseline(buf, 20, 150.00, 100, testBase.Add(-60*time.Second), testBase.Add(-10*time.Second))
	for i := 0; i < 6; i++ {
		ts := testBase.Add(-9 * time.Second).Add(time.Duration(i) * 1800 * time.Millisecond)
		buf.Record(tradeAt("XYZ", 150.00+0.36*float64(i), 190, ts))
	}

	var s spikeState
	if tr, _ := s.evaluate(buf, cfg, testBase); tr != transitionNone {
		t.Fatalf("price above cap must block entry, got %v", tr)
	}
}

func TestSpikeDirectionFilter(t *testing.T) {
	seedDown := func(buf *SymbolBuffer) {
		fillBaseline(buf, 20, 10.00, 100, testBase.Add(-60*time.Second), testBase.Add(-10*time.Second))
		for i := 0; i < 6; i++ {
			ts := testBase.Add(-9 * time.Second).Add(time.Duration(i) * 1800 * time.Millisecond)
			buf.Record(tradeAt(buf.Symbol(), 10.00-0.024*float64(i), 190, ts))
		}
	}

	cfg := testDetection(t)
	buf := NewSymbolBuffer("XYZ", cfg.MaxTradesStored, cfg.HistoryWindow())
	seedDown(buf)

	var s spikeState
	if tr, _ := s.evaluate(buf, cfg, testBase); tr != transitionNone {
		t.Fatalf("downward move with direction=up must not enter, got %v", tr)
	}

	cfg.Direction = "down"
	buf2 := NewSymbolBuffer("XYZ", cfg.MaxTradesStored, cfg.HistoryWindow())
	seedDown(buf2)

	var s2 spikeState
	tr, rec := s2.evaluate(buf2, cfg, testBase)
	if tr != transitionStart {
		t.Fatalf("downward move with direction=down should enter, got %v", tr)
	}
	if rec.PriceChangePercent >= 0 {
		t.Fatalf("downward episode has non-negative change: %v", rec.PriceChangePercent)
	}
}

func TestSpikeUpdateAccumulates(t *testing.T) {
	cfg := testDetection(t)
	buf := NewSymbolBuffer("XYZ", cfg.MaxTradesStored, cfg.HistoryWindow())
	seedEntryScenario(buf, testBase)

	var s spikeState
	if tr, _ := s.evaluate(buf, cfg, testBase); tr != transitionStart {
		t.Fatal("expected entry")
	}

	// Burst continues for another five seconds with a new high.
	for i := 0; i < 3; i++ {
		ts := testBase.Add(time.Duration(i+1) * 1500 * time.Millisecond)
		buf.Record(tradeAt("XYZ", 10.13+0.01*float64(i), 190, ts))
	}
	now := testBase.Add(5 * time.Second)
	tr, rec := s.evaluate(buf, cfg, now)
	if tr != transitionUpdate {
		t.Fatalf("transition = %v, want update", tr)
	}
	if rec.TradeCount != 9 {
		t.Fatalf("trade count = %d, want 9", rec.TradeCount)
	}
	if rec.HighPrice < 10.14 {
		t.Fatalf("high price not updated: %v", rec.HighPrice)
	}
	if rec.DurationSeconds != 5 {
		t.Fatalf("duration = %v, want 5", rec.DurationSeconds)
	}
}

func TestSpikeEndMaxDurationAfterFeedGap(t *testing.T) {
	cfg := testDetection(t)
	buf := NewSymbolBuffer("XYZ", cfg.MaxTradesStored, cfg.HistoryWindow())
	seedEntryScenario(buf, testBase)

	var s spikeState
	if tr, _ := s.evaluate(buf, cfg, testBase); tr != transitionStart {
		t.Fatal("expected entry")
	}

	// A long gap must survive as an active episode until max duration, not
	// exit early on a ratio computed from empty windows.
	mid, rec := s.evaluate(buf, cfg, testBase.Add(30*time.Second))
	if mid != transitionUpdate {
		t.Fatalf("mid-gap transition = %v, want update", mid)
	}
	if rec.EndReason != "" {
		t.Fatalf("mid-gap record carries end reason %q", rec.EndReason)
	}

	tr, rec := s.evaluate(buf, cfg, testBase.Add(125*time.Second))
	if tr != transitionEnd {
		t.Fatalf("transition = %v, want end", tr)
	}
	if rec.EndReason != models.EndReasonMaxDuration {
		t.Fatalf("end reason = %v, want max_duration", rec.EndReason)
	}
	if rec.DurationSeconds < 120 {
		t.Fatalf("duration = %v, want >= 120", rec.DurationSeconds)
	}
	if s.active != nil {
		t.Fatal("state still active after end")
	}
	if len(s.history) != 1 {
		t.Fatalf("history len = %d, want 1", len(s.history))
	}
}

func TestSpikeEndMomentumReversal(t *testing.T) {
	cfg := testDetection(t)
	buf := NewSymbolBuffer("XYZ", cfg.MaxTradesStored, cfg.HistoryWindow())
	seedEntryScenario(buf, testBase)

	var s spikeState
	if tr, _ := s.evaluate(buf, cfg, testBase); tr != transitionStart {
		t.Fatal("expected entry")
	}

	// Five straight downticks flip the momentum classifier.
	for i := 0; i < 5; i++ {
		ts := testBase.Add(time.Duration(i+1) * time.Second)
		buf.Record(tradeAt("XYZ", 10.12-0.03*float64(i+1), 190, ts))
	}
	tr, rec := s.evaluate(buf, cfg, testBase.Add(6*time.Second))
	if tr != transitionEnd {
		t.Fatalf("transition = %v, want end", tr)
	}
	if rec.EndReason != models.EndReasonReversal {
		t.Fatalf("end reason = %v, want momentum_reversal", rec.EndReason)
	}
}

func TestSpikeEndBurstDecay(t *testing.T) {
	cfg := testDetection(t)
	buf := NewSymbolBuffer("XYZ", cfg.MaxTradesStored, cfg.HistoryWindow())
	seedEntryScenario(buf, testBase)

	var s spikeState
	if tr, _ := s.evaluate(buf, cfg, testBase); tr != transitionStart {
		t.Fatal("expected entry")
	}

	// The tape thins out to a trickle while the price drifts gently up, so
	// neither duration nor momentum exits apply.
	buf.Record(tradeAt("XYZ", 10.12, 10, testBase.Add(2*time.Second)))
	buf.Record(tradeAt("XYZ", 10.13, 10, testBase.Add(8*time.Second)))

	tr, rec := s.evaluate(buf, cfg, testBase.Add(10*time.Second))
	if tr != transitionEnd {
		t.Fatalf("transition = %v, want end", tr)
	}
	if rec.EndReason != models.EndReasonBurstDecay {
		t.Fatalf("end reason = %v, want burst_decay", rec.EndReason)
	}
	if rec.VolumeBurstRatio >= cfg.MinVolumeBurst {
		t.Fatalf("burst ratio = %v, should be below %v", rec.VolumeBurstRatio, cfg.MinVolumeBurst)
	}
}

func TestSpikeReentryAfterEnd(t *testing.T) {
	cfg := testDetection(t)
	buf := NewSymbolBuffer("XYZ", cfg.MaxTradesStored, cfg.HistoryWindow())
	seedEntryScenario(buf, testBase)

	var s spikeState
	if tr, _ := s.evaluate(buf, cfg, testBase); tr != transitionStart {
		t.Fatal("expected first entry")
	}
	if tr, _ := s.evaluate(buf, cfg, testBase.Add(125*time.Second)); tr != transitionEnd {
		t.Fatal("expected end")
	}

	// A fresh burst three minutes later starts a new episode.
	next := testBase.Add(5 * time.Minute)
	seedEntryScenario(buf, next)
	tr, rec := s.evaluate(buf, cfg, next)
	if tr != transitionStart {
		t.Fatalf("transition = %v, want start", tr)
	}
	if rec.StartTime != next {
		t.Fatalf("second episode start = %v, want %v", rec.StartTime, next)
	}
	if len(s.history) != 1 {
		t.Fatalf("history len = %d, want 1", len(s.history))
	}
}
