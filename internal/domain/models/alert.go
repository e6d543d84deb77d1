package models

import "time"

// SignalTag is an independently computed boolean indicator used by the
// corroboration aggregator. Tags never alert on their own.
type SignalTag string

const (
	SignalRapidTrading   SignalTag = "RAPID_TRADING"
	SignalLargeTrade     SignalTag = "LARGE_TRADE"
	SignalVolumeSurge    SignalTag = "VOLUME_SURGE"
	SignalHighVolatility SignalTag = "HIGH_VOLATILITY"
)

// EventKind identifies a detection lifecycle event.
type EventKind string

const (
	EventSpikeStart     EventKind = "spike_start"
	EventSpikeUpdate    EventKind = "spike_update"
	EventSpikeEnd       EventKind = "spike_end"
	EventRocketDetected EventKind = "rocket_detected"
)

// RocketAlert is emitted when at least two distinct signal tags are
// simultaneously active for a symbol.
type RocketAlert struct {
	Symbol    string      `json:"symbol"`
	Signals   []SignalTag `json:"signals"`
	Price     float64     `json:"price"`
	Timestamp time.Time   `json:"timestamp"`
}

// AlertEvent is a self-contained snapshot delivered to sinks. Consumers never
// need to query engine-internal state. Exactly one of Spike/Rocket is set,
// matching Kind.
type AlertEvent struct {
	Kind      EventKind    `json:"kind"`
	Symbol    string       `json:"symbol"`
	Timestamp time.Time    `json:"timestamp"`
	Spike     *SpikeRecord `json:"spike,omitempty"`
	Rocket    *RocketAlert `json:"rocket,omitempty"`
}
