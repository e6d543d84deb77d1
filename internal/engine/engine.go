package engine

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"SpikeWatch/internal/domain/models"
	"SpikeWatch/internal/domain/repository"
	"SpikeWatch/pkg/config"
	"SpikeWatch/pkg/logger"
)

// ErrBackpressure is returned by Ingest when a shard queue is full. The
// caller decides whether to buffer, retry, or drop.
var ErrBackpressure = errors.New("engine: shard queue full")

// Dispatcher decouples detection from alert delivery. Implementations must
// never block.
type Dispatcher interface {
	Dispatch(ev *models.AlertEvent)
}

// symbolState is everything the engine tracks for one symbol. It is owned by
// exactly one shard and mutated only by that shard's goroutine.
type symbolState struct {
	buf       *SymbolBuffer
	spike     spikeState
	signals   *signalState
	lastPrice float64
}

// shard owns a disjoint set of symbols. All mutations for a symbol flow
// through its shard channel, giving the single-writer-per-symbol discipline;
// the mutex only guards concurrent read-only snapshots.
type shard struct {
	eng     *Engine
	events  chan models.MarketEvent
	mu      sync.RWMutex
	symbols map[string]*symbolState
}

// Engine is the real-time spike and rocket detection core. Cross-symbol work
// is fully parallel across shards; per-symbol guarantees are arrival order
// and monotonic Idle→Active→Ended transitions.
type Engine struct {
	cfg      atomic.Pointer[config.Detection]
	shards   []*shard
	dispatch Dispatcher
	cooldown *CooldownRegistry
	metrics  repository.Metrics
	log      *logger.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures the Engine.
type Option func(*engineOptions)

type engineOptions struct {
	shardCount int
	queueSize  int
}

// WithShards sets the number of shards (parallel symbol owners).
func WithShards(n int) Option {
	return func(o *engineOptions) {
		if n > 0 {
			o.shardCount = n
		}
	}
}

// WithShardQueueSize sets the per-shard event queue capacity.
func WithShardQueueSize(n int) Option {
	return func(o *engineOptions) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// New creates an Engine with the given detection snapshot.
func New(
	cfg *config.Detection,
	dispatch Dispatcher,
	cooldown *CooldownRegistry,
	metrics repository.Metrics,
	log *logger.Logger,
	opts ...Option,
) *Engine {
	o := &engineOptions{shardCount: 8, queueSize: 4096}
	for _, opt := range opts {
		opt(o)
	}

	e := &Engine{
		dispatch: dispatch,
		cooldown: cooldown,
		metrics:  metrics,
		log:      log,
	}
	e.cfg.Store(cfg)

	e.shards = make([]*shard, o.shardCount)
	for i := range e.shards {
		e.shards[i] = &shard{
			eng:     e,
			events:  make(chan models.MarketEvent, o.queueSize),
			symbols: make(map[string]*symbolState),
		}
	}
	return e
}

// Config returns the current detection snapshot.
func (e *Engine) Config() *config.Detection {
	return e.cfg.Load()
}

// UpdateConfig validates and atomically swaps in a new detection snapshot.
// In-flight evaluations keep the snapshot they started with.
func (e *Engine) UpdateConfig(cfg *config.Detection) error {
	if err := cfg.Normalize(); err != nil {
		return fmt.Errorf("update config: %w", err)
	}
	e.cfg.Store(cfg)
	e.log.Info("detection config swapped",
		logger.Float64("min_volume_burst", cfg.MinVolumeBurst),
		logger.Float64("min_price_change", cfg.MinPriceChange),
		logger.String("direction", cfg.Direction))
	return nil
}

// Start launches one goroutine per shard. Each drains its event queue and
// runs a periodic evaluation sweep so detection latency stays bounded even
// when no trades arrive.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return
	}
	e.started = true
	ctx, e.cancel = context.WithCancel(ctx)
	e.mu.Unlock()

	for _, sh := range e.shards {
		e.wg.Add(1)
		go func(sh *shard) {
			defer e.wg.Done()
			sh.run(ctx)
		}(sh)
	}
	e.log.Info("engine started", logger.Int("shards", len(e.shards)))
}

// Stop cancels all shard loops and waits for them to exit. No alerts are
// dispatched after Stop returns.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return
	}
	e.started = false
	cancel := e.cancel
	e.mu.Unlock()

	cancel()
	e.wg.Wait()
	e.log.Info("engine stopped")
}

// Ingest routes a market event to its symbol's shard without blocking.
func (e *Engine) Ingest(_ context.Context, ev models.MarketEvent) error {
	sym := ev.Symbol()
	if sym == "" {
		return errors.New("engine: event without symbol")
	}
	sh := e.shardFor(sym)
	select {
	case sh.events <- ev:
		return nil
	default:
		return ErrBackpressure
	}
}

func (e *Engine) shardFor(symbol string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return e.shards[h.Sum32()%uint32(len(e.shards))]
}

// --- shard loop ---

func (sh *shard) run(ctx context.Context) {
	cfg := sh.eng.Config()
	ticker := time.NewTicker(cfg.EvalInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sh.events:
			sh.safeApply(ev, time.Now())
		case <-ticker.C:
			sh.safeSweep(time.Now())
		}
	}
}

// safeApply isolates a single symbol's processing fault from the rest of the
// shard.
func (sh *shard) safeApply(ev models.MarketEvent, now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			sh.eng.metrics.RecordError("panic")
			sh.eng.log.Error("recovered from event panic",
				logger.String("symbol", ev.Symbol()),
				logger.Any("panic", r))
		}
	}()
	sh.apply(ev, now)
}

func (sh *shard) safeSweep(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			sh.eng.metrics.RecordError("panic")
			sh.eng.log.Error("recovered from sweep panic", logger.Any("panic", r))
		}
	}()
	sh.sweep(now)
}

// apply folds one market event into per-symbol state. Detection itself runs
// on the sweep tick, which bounds CPU cost independent of trade rate.
func (sh *shard) apply(ev models.MarketEvent, now time.Time) {
	cfg := sh.eng.Config()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	st := sh.state(ev.Symbol(), cfg)
	switch {
	case ev.Trade != nil:
		t := *ev.Trade
		st.buf.Record(t)
		st.signals.observeTrade(t, cfg)
		st.lastPrice = t.Price
		sh.eng.metrics.RecordEventIngested("trade", t.Symbol)
		sh.eng.metrics.RecordLastPrice(t.Symbol, t.Price)
	case ev.Quote != nil:
		st.signals.observeQuote(*ev.Quote, cfg)
		sh.eng.metrics.RecordEventIngested("quote", ev.Quote.Symbol)
	case ev.Bar != nil:
		st.signals.observeBar(*ev.Bar, cfg)
		sh.eng.metrics.RecordEventIngested("bar", ev.Bar.Symbol)
	}
}

// sweep re-evaluates every symbol the shard owns.
func (sh *shard) sweep(now time.Time) {
	cfg := sh.eng.Config()
	start := time.Now()

	sh.mu.Lock()
	active := 0
	for _, st := range sh.symbols {
		sh.evalSymbol(st, cfg, now)
		if st.spike.active != nil {
			active++
		}
	}
	sh.mu.Unlock()

	sh.eng.metrics.RecordLatency("shard_sweep", time.Since(start).Seconds())
	sh.eng.noteActive(sh, active)
}

// evalSymbol runs buffer pruning, the spike state machine, and the
// corroboration aggregator for one symbol. Caller holds the shard lock.
func (sh *shard) evalSymbol(st *symbolState, cfg *config.Detection, now time.Time) {
	st.buf.Prune(now)

	tr, rec := st.spike.evaluate(st.buf, cfg, now)
	switch tr {
	case transitionStart:
		sh.emit(&models.AlertEvent{Kind: models.EventSpikeStart, Symbol: rec.Symbol, Timestamp: now, Spike: rec})
	case transitionUpdate:
		sh.emit(&models.AlertEvent{Kind: models.EventSpikeUpdate, Symbol: rec.Symbol, Timestamp: now, Spike: rec})
	case transitionEnd:
		sh.emit(&models.AlertEvent{Kind: models.EventSpikeEnd, Symbol: rec.Symbol, Timestamp: now, Spike: rec})
	}

	st.signals.refreshRapid(st.buf, cfg, now)
	tags := st.signals.activeTags()
	if len(tags) < 2 {
		return
	}

	// The cooldown store may be remote; a deadline keeps a hung store from
	// stalling the whole shard sweep.
	cctx, cancel := context.WithTimeout(context.Background(), CooldownStoreTimeout)
	allowed := sh.eng.cooldown.Allow(cctx, st.buf.Symbol(), "rocket", now, cfg.Cooldown())
	cancel()
	if !allowed {
		sh.eng.metrics.RecordAlertSuppressed(string(models.EventRocketDetected))
		return
	}

	alert := &models.RocketAlert{
		Symbol:    st.buf.Symbol(),
		Signals:   tags,
		Price:     st.lastPrice,
		Timestamp: now,
	}
	st.signals.clear()
	sh.emit(&models.AlertEvent{Kind: models.EventRocketDetected, Symbol: alert.Symbol, Timestamp: now, Rocket: alert})
}

func (sh *shard) emit(ev *models.AlertEvent) {
	if sh.eng.dispatch != nil {
		sh.eng.dispatch.Dispatch(ev)
	}
}

func (sh *shard) state(symbol string, cfg *config.Detection) *symbolState {
	st, ok := sh.symbols[symbol]
	if !ok {
		st = &symbolState{
			buf:     NewSymbolBuffer(symbol, cfg.MaxTradesStored, cfg.HistoryWindow()),
			signals: newSignalState(),
		}
		sh.symbols[symbol] = st
	}
	return st
}

// noteActive aggregates the active spike count across shards for the gauge.
func (e *Engine) noteActive(_ *shard, _ int) {
	total := 0
	for _, sh := range e.shards {
		sh.mu.RLock()
		for _, st := range sh.symbols {
			if st.spike.active != nil {
				total++
			}
		}
		sh.mu.RUnlock()
	}
	e.metrics.RecordActiveSpikes(total)
}

// --- read-only snapshots ---

// ActiveSpikes returns clones of every active spike record.
func (e *Engine) ActiveSpikes() []*models.SpikeRecord {
	var out []*models.SpikeRecord
	for _, sh := range e.shards {
		sh.mu.RLock()
		for _, st := range sh.symbols {
			if st.spike.active != nil {
				out = append(out, st.spike.active.Clone())
			}
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// History returns clones of the completed episodes for one symbol, newest
// last.
func (e *Engine) History(symbol string) []*models.SpikeRecord {
	sh := e.shardFor(symbol)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	st, ok := sh.symbols[symbol]
	if !ok {
		return nil
	}
	out := make([]*models.SpikeRecord, 0, len(st.spike.history))
	for _, rec := range st.spike.history {
		out = append(out, rec.Clone())
	}
	return out
}

// Signals returns the currently-active corroboration tags for one symbol.
func (e *Engine) Signals(symbol string) []models.SignalTag {
	sh := e.shardFor(symbol)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	st, ok := sh.symbols[symbol]
	if !ok {
		return nil
	}
	return st.signals.activeTags()
}

// Symbols lists every symbol with engine state.
func (e *Engine) Symbols() []string {
	var out []string
	for _, sh := range e.shards {
		sh.mu.RLock()
		for sym := range sh.symbols {
			out = append(out, sym)
		}
		sh.mu.RUnlock()
	}
	sort.Strings(out)
	return out
}
