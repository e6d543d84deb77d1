package models

import "time"

// Momentum labels the short-term direction of the most recent trades of an
// active spike.
type Momentum string

const (
	MomentumUnknown      Momentum = "unknown"
	MomentumAccelerating Momentum = "accelerating"
	MomentumReversing    Momentum = "reversing"
	MomentumSlowing      Momentum = "slowing"
	MomentumMixed        Momentum = "mixed"
)

// SpikeEndReason records which exit condition closed a spike episode.
type SpikeEndReason string

const (
	EndReasonMaxDuration SpikeEndReason = "max_duration"
	EndReasonReversal    SpikeEndReason = "momentum_reversal"
	EndReasonBurstDecay  SpikeEndReason = "burst_decay"
)

// WindowMetrics is derived from a window of trades, never stored.
type WindowMetrics struct {
	VolumeRate   float64 `json:"volume_rate"` // shares per second
	DollarVolume float64 `json:"dollar_volume"`
	Upticks      int     `json:"upticks"`
	Downticks    int     `json:"downticks"`
	TradeCount   int     `json:"trade_count"`
	FirstPrice   float64 `json:"first_price"`
	CurrentPrice float64 `json:"current_price"`
	HighPrice    float64 `json:"high_price"`
}

// SpikeRecord is the mutable state of one spike episode for one symbol. It
// exists only while the episode is active; on exit it is frozen and moved to
// the completed history.
type SpikeRecord struct {
	Symbol             string         `json:"symbol"`
	StartTime          time.Time      `json:"start_time"`
	EndTime            time.Time      `json:"end_time,omitempty"`
	StartPrice         float64        `json:"start_price"`
	CurrentPrice       float64        `json:"current_price"`
	HighPrice          float64        `json:"high_price"`
	PriceChangePercent float64        `json:"price_change_percent"`
	VolumeBurstRatio   float64        `json:"volume_burst_ratio"`
	DollarVolume       float64        `json:"dollar_volume"`
	TradeCount         int            `json:"trade_count"`
	Momentum           Momentum       `json:"momentum"`
	DurationSeconds    float64        `json:"duration_seconds"`
	EndReason          SpikeEndReason `json:"end_reason,omitempty"`
}

// Clone returns a copy safe to hand outside the engine.
func (r *SpikeRecord) Clone() *SpikeRecord {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
