package engine

import (
	"testing"
	"time"

	"SpikeWatch/internal/domain/models"
	"SpikeWatch/pkg/config"
)

var testBase = time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

func testDetection(t *testing.T) *config.Detection {
	t.Helper()
	d := &config.Detection{}
	if err := d.Normalize(); err != nil {
		t.Fatalf("normalize default detection: %v", err)
	}
	return d
}

func tradeAt(symbol string, price, size float64, ts time.Time) models.Trade {
	return models.Trade{Symbol: symbol, Price: price, Size: size, Timestamp: ts}
}

// fillBaseline records n evenly spaced trades of a flat price across
// [from, to) so the baseline window has a known volume rate.
func fillBaseline(buf *SymbolBuffer, n int, price, size float64, from, to time.Time) {
	step := to.Sub(from) / time.Duration(n)
	for i := 0; i < n; i++ {
		buf.Record(tradeAt(buf.Symbol(), price, size, from.Add(time.Duration(i)*step)))
	}
}

type nopMetrics struct{}

func (nopMetrics) RecordEventIngested(string, string) {}
func (nopMetrics) RecordEventDropped(string)          {}
func (nopMetrics) RecordError(string)                 {}
func (nopMetrics) RecordActiveSpikes(int)             {}
func (nopMetrics) RecordAlertEmitted(string, string)  {}
func (nopMetrics) RecordAlertSuppressed(string)       {}
func (nopMetrics) RecordLastPrice(string, float64)    {}
func (nopMetrics) RecordLatency(string, float64)      {}

// captureDispatcher records every dispatched event in order.
type captureDispatcher struct {
	events []*models.AlertEvent
}

func (d *captureDispatcher) Dispatch(ev *models.AlertEvent) {
	d.events = append(d.events, ev)
}

func (d *captureDispatcher) ofKind(kind models.EventKind) []*models.AlertEvent {
	var out []*models.AlertEvent
	for _, ev := range d.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
