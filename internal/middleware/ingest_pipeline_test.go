package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SpikeWatch/internal/domain/models"
)

type nopMetrics struct{}

func (nopMetrics) RecordEventIngested(string, string) {}
func (nopMetrics) RecordEventDropped(string)          {}
func (nopMetrics) RecordError(string)                 {}
func (nopMetrics) RecordActiveSpikes(int)             {}
func (nopMetrics) RecordAlertEmitted(string, string)  {}
func (nopMetrics) RecordAlertSuppressed(string)       {}
func (nopMetrics) RecordLastPrice(string, float64)    {}
func (nopMetrics) RecordLatency(string, float64)      {}

type captureProc struct {
	mu     sync.Mutex
	events []models.MarketEvent
	err    error
}

func (p *captureProc) Ingest(_ context.Context, ev models.MarketEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *captureProc) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func (p *captureProc) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func validTrade(sym string, ts time.Time) models.MarketEvent {
	return models.MarketEvent{Trade: &models.Trade{Symbol: sym, Price: 5.25, Size: 100, Timestamp: ts}}
}

func TestPipelineForwardsValidEvents(t *testing.T) {
	proc := &captureProc{}
	p := NewIngestPipeline(proc, nopMetrics{})
	ctx := context.Background()

	if err := p.Process(ctx, validTrade("XYZ", time.Now())); err != nil {
		t.Fatalf("process valid trade: %v", err)
	}
	if len(proc.events) != 1 {
		t.Fatalf("forwarded = %d, want 1", len(proc.events))
	}
}

func TestPipelineDropsInvalidEvents(t *testing.T) {
	proc := &captureProc{}
	p := NewIngestPipeline(proc, nopMetrics{})
	ctx := context.Background()

	bad := []models.MarketEvent{
		{},
		{Trade: &models.Trade{Symbol: "", Price: 5, Size: 1, Timestamp: time.Now()}},
		{Trade: &models.Trade{Symbol: "XYZ", Price: 0, Size: 1, Timestamp: time.Now()}},
		{Trade: &models.Trade{Symbol: "XYZ", Price: 5, Size: -1, Timestamp: time.Now()}},
		{Trade: &models.Trade{Symbol: "XYZ", Price: 5, Size: 1}},
		{Quote: &models.Quote{Symbol: "", BidPrice: 1, AskPrice: 2}},
		{Bar: &models.Bar{Symbol: "XYZ", Volume: -5}},
	}
	for i, ev := range bad {
		if err := p.Process(ctx, ev); err == nil {
			t.Fatalf("event %d accepted, want validation error", i)
		}
	}
	if len(proc.events) != 0 {
		t.Fatalf("invalid events reached downstream: %d", len(proc.events))
	}
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	proc := &captureProc{}
	p := NewIngestPipeline(proc, nopMetrics{}, WithMaxRPS(1))
	ctx := context.Background()

	now := time.Now()
	if err := p.Process(ctx, validTrade("XYZ", now)); err != nil {
		t.Fatalf("first trade: %v", err)
	}
	// Second trade inside the same second is silently dropped.
	if err := p.Process(ctx, validTrade("XYZ", now)); err != nil {
		t.Fatalf("throttled trade must not error: %v", err)
	}
	// Another symbol is unaffected.
	if err := p.Process(ctx, validTrade("ABCD", now)); err != nil {
		t.Fatalf("other symbol: %v", err)
	}
	if len(proc.events) != 2 {
		t.Fatalf("forwarded = %d, want 2", len(proc.events))
	}
}

func TestPipelineBuffersOnBackpressure(t *testing.T) {
	proc := &captureProc{err: errors.New("queue full")}
	p := NewIngestPipeline(proc, nopMetrics{}, WithBufferSize(4))
	ctx := context.Background()

	err := p.Process(ctx, validTrade("XYZ", time.Now()))
	if err == nil {
		t.Fatal("downstream failure must surface")
	}
	if p.Depth() != 1 {
		t.Fatalf("buffer depth = %d, want 1", p.Depth())
	}

	// Once downstream recovers, Start drains the buffer.
	proc.setErr(nil)
	p.Start(ctx)
	defer p.Stop()

	deadline := time.After(2 * time.Second)
	for proc.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("buffered event never flushed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
