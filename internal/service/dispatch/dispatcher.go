package dispatch

import (
	"context"
	"sync"
	"time"

	"SpikeWatch/internal/domain/models"
	"SpikeWatch/internal/domain/repository"
	"SpikeWatch/internal/engine"
	"SpikeWatch/pkg/logger"
	"SpikeWatch/pkg/queue"
)

// CooldownFn returns the currently configured alert cooldown. Indirected so a
// live config swap takes effect without rebuilding the dispatcher.
type CooldownFn func() time.Duration

// Dispatcher fans detection events out to the configured sinks through a
// bounded async queue. Episode starts are cooldown gated per symbol; updates
// and ends flow only for episodes whose start was accepted, so sinks never see
// a partial episode.
type Dispatcher struct {
	q        *queue.Queue
	sinks    []repository.AlertSink
	cooldown *engine.CooldownRegistry
	cooldur  CooldownFn
	metrics  repository.Metrics
	log      *logger.Logger

	mu       sync.Mutex
	accepted map[string]time.Time // symbol -> accepted episode start
}

// New creates a dispatcher over the given sinks.
func New(
	qcfg queue.Config,
	sinks []repository.AlertSink,
	cooldown *engine.CooldownRegistry,
	cooldur CooldownFn,
	metrics repository.Metrics,
	log *logger.Logger,
) *Dispatcher {
	d := &Dispatcher{
		sinks:    sinks,
		cooldown: cooldown,
		cooldur:  cooldur,
		metrics:  metrics,
		log:      log,
		accepted: make(map[string]time.Time),
	}
	d.q = queue.New(qcfg, func(job *queue.Job) {
		d.metrics.RecordEventDropped("alert_queue")
		d.log.Warn("alert dropped from full queue", logger.String("kind", job.Kind))
	})
	return d
}

// Start launches the delivery workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.q.Start(ctx, d.deliver)
}

// Stop drains the queue and closes every sink.
func (d *Dispatcher) Stop() {
	d.q.Stop()
	for _, s := range d.sinks {
		if err := s.Close(); err != nil {
			d.log.Warn("sink close", logger.String("sink", s.Name()), logger.Error(err))
		}
	}
}

// Dispatch applies emission policy and enqueues the event for delivery. It
// never blocks the caller.
func (d *Dispatcher) Dispatch(ev *models.AlertEvent) {
	switch ev.Kind {
	case models.EventSpikeStart:
		cctx, cancel := context.WithTimeout(context.Background(), engine.CooldownStoreTimeout)
		allowed := d.cooldown.Allow(cctx, ev.Symbol, "spike", ev.Timestamp, d.cooldur())
		cancel()
		if !allowed {
			d.metrics.RecordAlertSuppressed(string(ev.Kind))
			d.log.Debug("spike start suppressed by cooldown", logger.String("symbol", ev.Symbol))
			return
		}
		d.mu.Lock()
		d.accepted[ev.Symbol] = ev.Spike.StartTime
		d.mu.Unlock()
	case models.EventSpikeUpdate, models.EventSpikeEnd:
		d.mu.Lock()
		start, ok := d.accepted[ev.Symbol]
		if ok && ev.Kind == models.EventSpikeEnd {
			delete(d.accepted, ev.Symbol)
		}
		d.mu.Unlock()
		if !ok || !start.Equal(ev.Spike.StartTime) {
			// The episode's start was suppressed; its tail stays silent too.
			return
		}
	case models.EventRocketDetected:
		// Already cooldown gated at detection time.
	}

	d.q.Enqueue(&queue.Job{Kind: string(ev.Kind), Payload: ev})
}

// Depth reports the queued alert count.
func (d *Dispatcher) Depth() int {
	return d.q.Depth()
}

// deliver fans one event out to every sink. Sink failures are the sink's own
// concern; a nil return keeps the queue from retrying the whole fanout.
func (d *Dispatcher) deliver(ctx context.Context, job *queue.Job) error {
	ev, ok := job.Payload.(*models.AlertEvent)
	if !ok {
		return nil
	}
	for _, s := range d.sinks {
		if err := s.Deliver(ctx, ev); err != nil {
			d.metrics.RecordError("sink_" + s.Name())
			d.log.Warn("sink delivery failed",
				logger.String("sink", s.Name()),
				logger.String("kind", string(ev.Kind)),
				logger.String("symbol", ev.Symbol),
				logger.Error(err))
			continue
		}
		d.metrics.RecordAlertEmitted(string(ev.Kind), s.Name())
	}
	return nil
}
