package engine

import (
	"math"
	"time"

	"SpikeWatch/internal/domain/models"
	"SpikeWatch/pkg/config"
)

// transition is the outcome of one state machine evaluation.
type transition int

const (
	transitionNone transition = iota
	transitionStart
	transitionUpdate
	transitionEnd
)

// spikeState is the per-symbol lifecycle state machine: Idle (no record) →
// Active → Ended, then back to Idle for future episodes. At most one active
// record exists per symbol at any time.
type spikeState struct {
	active      *models.SpikeRecord
	history     []*models.SpikeRecord
	lastCounted time.Time
}

// evaluate runs one pass of the lifecycle for a symbol at now. The returned
// record is a clone safe to hand to the dispatcher.
func (s *spikeState) evaluate(buf *SymbolBuffer, cfg *config.Detection, now time.Time) (transition, *models.SpikeRecord) {
	if s.active == nil {
		return s.tryEnter(buf, cfg, now)
	}
	return s.continueOrExit(buf, cfg, now)
}

func (s *spikeState) tryEnter(buf *SymbolBuffer, cfg *config.Detection, now time.Time) (transition, *models.SpikeRecord) {
	spikeFrom := now.Add(-cfg.SpikeWindow())
	spikeTrades := buf.Snapshot(spikeFrom, now.Add(time.Nanosecond))
	if len(spikeTrades) < cfg.MinSpikeTrades {
		return transitionNone, nil
	}

	baseTrades := buf.Snapshot(now.Add(-cfg.BaselineWindow()), spikeFrom)
	if len(baseTrades) < cfg.MinBaselineTrades {
		return transitionNone, nil
	}

	spike := ComputeWindow(spikeTrades)
	base := ComputeWindow(baseTrades)

	// An empty baseline rate means no burst ratio, which simply fails entry.
	var burst float64
	if base.VolumeRate > 0 {
		burst = spike.VolumeRate / base.VolumeRate
	}
	change := PriceChangePercent(spike)

	switch {
	case burst < cfg.MinVolumeBurst:
	case math.Abs(change) < cfg.MinPriceChange:
	case spike.DollarVolume < cfg.DollarVolumeFloor():
	case spike.CurrentPrice > cfg.MaxPrice:
	case !directionConfirmed(cfg.Direction, change, spike):
	default:
		rec := &models.SpikeRecord{
			Symbol:             buf.Symbol(),
			StartTime:          now,
			StartPrice:         spike.FirstPrice,
			CurrentPrice:       spike.CurrentPrice,
			HighPrice:          spike.HighPrice,
			PriceChangePercent: change,
			VolumeBurstRatio:   burst,
			DollarVolume:       spike.DollarVolume,
			TradeCount:         spike.TradeCount,
			Momentum:           ClassifyMomentum(buf.LastN(cfg.MomentumTrades)),
		}
		s.active = rec
		s.lastCounted = now.Add(time.Nanosecond)
		return transitionStart, rec.Clone()
	}
	return transitionNone, nil
}

func (s *spikeState) continueOrExit(buf *SymbolBuffer, cfg *config.Detection, now time.Time) (transition, *models.SpikeRecord) {
	rec := s.active
	rec.DurationSeconds = now.Sub(rec.StartTime).Seconds()

	spikeFrom := now.Add(-cfg.SpikeWindow())
	spikeTrades := buf.Snapshot(spikeFrom, now.Add(time.Nanosecond))
	baseTrades := buf.Snapshot(now.Add(-cfg.BaselineWindow()), spikeFrom)
	spike := ComputeWindow(spikeTrades)
	base := ComputeWindow(baseTrades)

	fresh := buf.Snapshot(s.lastCounted, now.Add(time.Nanosecond))
	rec.TradeCount += len(fresh)
	s.lastCounted = now.Add(time.Nanosecond)

	if spike.TradeCount > 0 {
		rec.CurrentPrice = spike.CurrentPrice
		if spike.HighPrice > rec.HighPrice {
			rec.HighPrice = spike.HighPrice
		}
		if rec.StartPrice > 0 {
			rec.PriceChangePercent = (rec.CurrentPrice - rec.StartPrice) / rec.StartPrice * 100
		}
		rec.DollarVolume = spike.DollarVolume
	}
	rec.Momentum = ClassifyMomentum(buf.LastN(cfg.MomentumTrades))

	if rec.DurationSeconds > float64(cfg.MaxSpikeDurationSeconds) {
		return s.end(rec, models.EndReasonMaxDuration, cfg, now)
	}
	if rec.Momentum == models.MomentumReversing {
		return s.end(rec, models.EndReasonReversal, cfg, now)
	}

	// The burst ratio is only meaningful when both windows carry data. A feed
	// gap leaves them empty; the episode then runs out via max duration
	// instead of a phantom decay.
	if spike.TradeCount > 0 && base.VolumeRate > 0 {
		rec.VolumeBurstRatio = spike.VolumeRate / base.VolumeRate
		if rec.VolumeBurstRatio < cfg.MinVolumeBurst {
			return s.end(rec, models.EndReasonBurstDecay, cfg, now)
		}
	}

	return transitionUpdate, rec.Clone()
}

func (s *spikeState) end(rec *models.SpikeRecord, reason models.SpikeEndReason, cfg *config.Detection, now time.Time) (transition, *models.SpikeRecord) {
	rec.EndTime = now
	rec.EndReason = reason

	s.history = append(s.history, rec)
	if over := len(s.history) - cfg.CompletedHistorySize; over > 0 {
		s.history = append(s.history[:0], s.history[over:]...)
	}
	s.active = nil
	return transitionEnd, rec.Clone()
}

// directionConfirmed applies the configurable direction filter: tick counts
// must agree with the sign of the price move.
func directionConfirmed(direction string, change float64, m models.WindowMetrics) bool {
	up := change > 0 && m.Upticks >= m.Downticks
	down := change < 0 && m.Downticks >= m.Upticks
	switch direction {
	case "down":
		return down
	case "both":
		return up || down
	default:
		return up
	}
}
