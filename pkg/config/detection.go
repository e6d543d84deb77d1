package config

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var detectionValidate = validator.New()

// Detection holds every runtime-adjustable detection threshold. A value is
// treated as an immutable snapshot: the engine reads one pointer per
// evaluation pass and reconfiguration swaps in a whole new snapshot, never a
// single field.
type Detection struct {
	// Spike entry/exit thresholds.
	MaxPrice        float64 `yaml:"max_price" json:"max_price" default:"100" validate:"gt=0"`
	MinVolumeBurst  float64 `yaml:"min_volume_burst" json:"min_volume_burst" default:"2.0" validate:"gt=0"`
	MinDollarVolume float64 `yaml:"min_dollar_volume" json:"min_dollar_volume" default:"30000" validate:"gte=0"`
	MinPriceChange  float64 `yaml:"min_price_change" json:"min_price_change" default:"0.5" validate:"gt=0"`

	// Direction filter: "up" detects upward spikes only, "down" downward
	// only, "both" treats either direction as an episode.
	Direction string `yaml:"direction" json:"direction" default:"up" validate:"oneof=up down both"`

	// Window geometry, in seconds.
	SpikeWindowSeconds      int `yaml:"spike_window_seconds" json:"spike_window_seconds" default:"10" validate:"gt=0"`
	BaselineWindowSeconds   int `yaml:"baseline_window_seconds" json:"baseline_window_seconds" default:"60" validate:"gt=0"`
	HistoryWindowSeconds    int `yaml:"history_window_seconds" json:"history_window_seconds" default:"60" validate:"gt=0"`
	MaxSpikeDurationSeconds int `yaml:"max_spike_duration_seconds" json:"max_spike_duration_seconds" default:"120" validate:"gt=0"`
	EvalIntervalSeconds     int `yaml:"eval_interval_seconds" json:"eval_interval_seconds" default:"1" validate:"gt=0"`

	// Buffer and history bounds.
	MaxTradesStored      int `yaml:"max_trades_stored" json:"max_trades_stored" default:"5000" validate:"gt=0"`
	CompletedHistorySize int `yaml:"completed_history_size" json:"completed_history_size" default:"20" validate:"gt=0"`

	// Minimum sample sizes for a meaningful evaluation.
	MinSpikeTrades    int `yaml:"min_spike_trades" json:"min_spike_trades" default:"5" validate:"gt=0"`
	MinBaselineTrades int `yaml:"min_baseline_trades" json:"min_baseline_trades" default:"10" validate:"gt=0"`
	MomentumTrades    int `yaml:"momentum_trades" json:"momentum_trades" default:"5" validate:"gte=3"`

	// Alert throttling.
	CooldownSeconds int `yaml:"cooldown_seconds" json:"cooldown_seconds" default:"300" validate:"gte=0"`

	// Corroboration detector thresholds.
	RapidTradeThreshold    int     `yaml:"rapid_trade_threshold" json:"rapid_trade_threshold" default:"100" validate:"gt=0"`
	LargeTradeShares       float64 `yaml:"large_trade_shares" json:"large_trade_shares" default:"50000" validate:"gt=0"`
	VolumeSurgeMultiple    float64 `yaml:"volume_surge_multiple" json:"volume_surge_multiple" default:"3.0" validate:"gt=1"`
	SpreadPercentThreshold float64 `yaml:"spread_percent_threshold" json:"spread_percent_threshold" default:"1.0" validate:"gt=0"`
}

// Normalize fills defaults for zero-valued fields and validates the result.
func (d *Detection) Normalize() error {
	if err := defaults.Set(d); err != nil {
		return fmt.Errorf("detection defaults: %w", err)
	}
	if err := detectionValidate.Struct(d); err != nil {
		return fmt.Errorf("detection invalid: %w", err)
	}
	if d.SpikeWindowSeconds >= d.BaselineWindowSeconds {
		return fmt.Errorf("spike window (%ds) must be shorter than baseline window (%ds)",
			d.SpikeWindowSeconds, d.BaselineWindowSeconds)
	}
	return nil
}

func (d *Detection) SpikeWindow() time.Duration {
	return time.Duration(d.SpikeWindowSeconds) * time.Second
}

func (d *Detection) BaselineWindow() time.Duration {
	return time.Duration(d.BaselineWindowSeconds) * time.Second
}

func (d *Detection) HistoryWindow() time.Duration {
	return time.Duration(d.HistoryWindowSeconds) * time.Second
}

func (d *Detection) MaxSpikeDuration() time.Duration {
	return time.Duration(d.MaxSpikeDurationSeconds) * time.Second
}

func (d *Detection) EvalInterval() time.Duration {
	return time.Duration(d.EvalIntervalSeconds) * time.Second
}

func (d *Detection) Cooldown() time.Duration {
	return time.Duration(d.CooldownSeconds) * time.Second
}

// DollarVolumeFloor pro-rates the per-minute dollar volume floor down to the
// spike window length (10s against a 60s floor gives one sixth).
func (d *Detection) DollarVolumeFloor() float64 {
	if d.HistoryWindowSeconds <= 0 {
		return d.MinDollarVolume
	}
	return d.MinDollarVolume * float64(d.SpikeWindowSeconds) / float64(d.HistoryWindowSeconds)
}
