package usecase

import (
	"context"
	"time"

	"SpikeWatch/internal/domain/models"
	drepo "SpikeWatch/internal/domain/repository"
	"SpikeWatch/internal/engine"
	mid "SpikeWatch/internal/middleware"
	"SpikeWatch/pkg/logger"
)

// FeedCollector owns the market stream lifecycle: connect, subscribe, pump
// events through the ingest pipeline into the engine, and reconnect when the
// stream reports an error.
type FeedCollector struct {
	stream  drepo.MarketStream
	eng     *engine.Engine
	pipe    *mid.IngestPipeline
	metrics drepo.Metrics
	log     *logger.Logger
	symbols []string

	// Delay between reconnect attempts when Reconnect itself keeps failing.
	retryMin time.Duration
	retryMax time.Duration
}

// NewFeedCollector creates a collector for the given initial symbol universe.
func NewFeedCollector(
	stream drepo.MarketStream,
	eng *engine.Engine,
	pipe *mid.IngestPipeline,
	metrics drepo.Metrics,
	log *logger.Logger,
	symbols []string,
) *FeedCollector {
	return &FeedCollector{
		stream:   stream,
		eng:      eng,
		pipe:     pipe,
		metrics:  metrics,
		log:      log,
		symbols:  symbols,
		retryMin: time.Second,
		retryMax: 30 * time.Second,
	}
}

// IsConnected reports stream connectivity.
func (c *FeedCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes the initial universe, and launches the consume
// loop.
func (c *FeedCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx, c.symbols); err != nil {
		return err
	}
	c.pipe.Start(ctx)
	c.eng.Start(ctx)

	evCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, evCh, errCh)
	c.log.Info("feed collector started", logger.Int("symbols", len(c.symbols)))
	return nil
}

func (c *FeedCollector) consume(ctx context.Context, evCh <-chan models.MarketEvent, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if ok && err == nil {
				continue
			}
			if ok {
				c.metrics.RecordError("stream")
				c.log.Warn("stream error, reconnecting", logger.Error(err))
			}
			// A closed channel is the read loop exiting; either way the
			// connection is gone and fresh channels are needed.
			if evCh, errCh = c.recover(ctx); evCh == nil {
				return
			}
		case ev, ok := <-evCh:
			if !ok {
				if evCh, errCh = c.recover(ctx); evCh == nil {
					return
				}
				continue
			}
			_ = c.pipe.Process(ctx, ev)
		}
	}
}

// recover retries Reconnect until it succeeds or ctx is cancelled, then
// returns fresh stream channels. The stream owns its own dial backoff; the
// delay here only spaces out attempts when Reconnect fails fast.
func (c *FeedCollector) recover(ctx context.Context) (<-chan models.MarketEvent, <-chan error) {
	delay := c.retryMin
	for {
		if ctx.Err() != nil {
			return nil, nil
		}
		err := c.stream.Reconnect(ctx)
		if err == nil {
			return c.stream.Read(ctx)
		}
		c.metrics.RecordError("reconnect")
		c.log.Error("reconnect failed, retrying",
			logger.Error(err), logger.Duration("retry_in", delay))

		select {
		case <-ctx.Done():
			return nil, nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.retryMax {
			delay = c.retryMax
		}
	}
}

// Track adds symbols to the live subscription.
func (c *FeedCollector) Track(ctx context.Context, symbols []string) error {
	return c.stream.Subscribe(ctx, symbols)
}

// Untrack removes symbols from the live subscription. Engine state for the
// symbol ages out on its own.
func (c *FeedCollector) Untrack(ctx context.Context, symbols []string) error {
	return c.stream.Unsubscribe(ctx, symbols)
}

// Shutdown stops the pipeline, the engine, and the stream, in ingest order.
func (c *FeedCollector) Shutdown(_ context.Context) error {
	c.pipe.Stop()
	err := c.stream.Close()
	c.eng.Stop()
	return err
}
