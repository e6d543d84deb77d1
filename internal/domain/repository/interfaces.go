package repository

import (
	"context"
	"time"

	"SpikeWatch/internal/domain/models"
)

// MarketStream delivers typed market events for a dynamically adjustable
// subscription set. The stream owns its connection lifecycle; the engine only
// consumes events and adjusts subscriptions.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbols []string) error
	Unsubscribe(ctx context.Context, symbols []string) error
	Read(ctx context.Context) (<-chan models.MarketEvent, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// AlertSink receives detection events. Delivery failures are the sink's own
// concern (retry or drop per policy); they must never block detection.
type AlertSink interface {
	Name() string
	Deliver(ctx context.Context, ev *models.AlertEvent) error
	Close() error
}

// SpikeStore persists completed spike episodes and rocket alerts for offline
// review.
type SpikeStore interface {
	Init(ctx context.Context) error
	StoreSpike(ctx context.Context, rec *models.SpikeRecord) error
	StoreRocket(ctx context.Context, alert *models.RocketAlert) error
	QuerySpikes(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.SpikeRecord, error)
	Health(ctx context.Context) error
	Close() error
}

// Metrics records operational counters for the detection path.
type Metrics interface {
	RecordEventIngested(kind, symbol string)
	RecordEventDropped(reason string)
	RecordError(kind string)
	RecordActiveSpikes(n int)
	RecordAlertEmitted(kind, sink string)
	RecordAlertSuppressed(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
