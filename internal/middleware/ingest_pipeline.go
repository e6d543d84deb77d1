package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"SpikeWatch/internal/domain/models"
	domrepo "SpikeWatch/internal/domain/repository"
)

// Proc is the minimal downstream interface the pipeline needs.
type Proc interface {
	Ingest(ctx context.Context, ev models.MarketEvent) error
}

// IngestPipeline sits between the market stream and the detection engine. It
// validates, throttles per symbol, forwards, and buffers when the downstream
// reports backpressure so short stalls never lose the tape.
type IngestPipeline struct {
	proc     Proc
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan models.MarketEvent
	stopCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time // per-symbol last accepted trade time
}

type PipelineOption func(*IngestPipeline)

// WithMaxRPS sets the max trades per second per symbol. Quotes and bars are
// never throttled; they are already interval-shaped upstream.
func WithMaxRPS(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the overflow buffer size used during backpressure.
func WithBufferSize(n int) PipelineOption {
	return func(p *IngestPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewIngestPipeline creates a pipeline in front of proc.
func NewIngestPipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *IngestPipeline {
	p := &IngestPipeline{
		proc:     proc,
		metrics:  metrics,
		maxRPS:   200,
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan models.MarketEvent, p.bufSize)
	return p
}

// Start launches background flushing of buffered events.
func (p *IngestPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case ev := <-p.bufCh:
				if err := p.proc.Ingest(ctx, ev); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- ev:
					default:
						p.metrics.RecordEventDropped("pipeline_buffer")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *IngestPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates and forwards an event, buffering it on backpressure.
// Invalid events are dropped with a metric; they never reach the engine.
func (p *IngestPipeline) Process(ctx context.Context, ev models.MarketEvent) error {
	start := time.Now()
	if err := validateEvent(ev); err != nil {
		p.metrics.RecordEventDropped("invalid")
		return err
	}
	if ev.Trade != nil && !p.allow(ev.Trade.Symbol, start) {
		p.metrics.RecordEventDropped("throttled")
		return nil
	}

	if err := p.proc.Ingest(ctx, ev); err != nil {
		p.metrics.RecordError("pipeline_ingest")
		select {
		case p.bufCh <- ev:
		default:
			p.metrics.RecordEventDropped("pipeline_buffer")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

// Depth reports the overflow buffer fill level.
func (p *IngestPipeline) Depth() int {
	return len(p.bufCh)
}

func validateEvent(ev models.MarketEvent) error {
	switch {
	case ev.Trade != nil:
		t := ev.Trade
		if t.Symbol == "" {
			return fmt.Errorf("trade without symbol")
		}
		if t.Timestamp.IsZero() {
			return fmt.Errorf("trade without timestamp")
		}
		if t.Price <= 0 || t.Size < 0 {
			return fmt.Errorf("trade with invalid price/size")
		}
	case ev.Quote != nil:
		q := ev.Quote
		if q.Symbol == "" {
			return fmt.Errorf("quote without symbol")
		}
		if q.BidPrice < 0 || q.AskPrice < 0 {
			return fmt.Errorf("quote with negative prices")
		}
	case ev.Bar != nil:
		b := ev.Bar
		if b.Symbol == "" {
			return fmt.Errorf("bar without symbol")
		}
		if b.Volume < 0 {
			return fmt.Errorf("bar with negative volume")
		}
	default:
		return fmt.Errorf("empty market event")
	}
	return nil
}

func (p *IngestPipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last := p.lastSeen[symbol]
	if last.IsZero() {
		p.lastSeen[symbol] = now
		return true
	}
	if now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}
