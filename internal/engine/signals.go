package engine

import (
	"sort"
	"time"

	"SpikeWatch/internal/domain/models"
	"SpikeWatch/pkg/config"
)

// maxBarSamples bounds the rolling bar-volume baseline for the surge
// detector.
const maxBarSamples = 20

// signalState is the per-symbol set of currently-active corroboration tags.
// Tags have no inherent expiry beyond their own detector clearing them; the
// whole set is cleared when a rocket fires so signals must re-accumulate
// before the next alert.
type signalState struct {
	tags       map[models.SignalTag]time.Time
	barVolumes []float64
}

func newSignalState() *signalState {
	return &signalState{tags: make(map[models.SignalTag]time.Time)}
}

func (s *signalState) set(tag models.SignalTag, at time.Time) {
	if _, ok := s.tags[tag]; !ok {
		s.tags[tag] = at
	}
}

func (s *signalState) unset(tag models.SignalTag) {
	delete(s.tags, tag)
}

// observeTrade raises LARGE_TRADE on any single print at or above the share
// threshold. The tag stays up until a rocket fires.
func (s *signalState) observeTrade(t models.Trade, cfg *config.Detection) {
	if t.Size >= cfg.LargeTradeShares {
		s.set(models.SignalLargeTrade, t.Timestamp)
	}
}

// observeQuote tracks HIGH_VOLATILITY from the bid-ask spread.
func (s *signalState) observeQuote(q models.Quote, cfg *config.Detection) {
	if q.SpreadPercent() > cfg.SpreadPercentThreshold {
		s.set(models.SignalHighVolatility, q.Timestamp)
	} else {
		s.unset(models.SignalHighVolatility)
	}
}

// observeBar tracks VOLUME_SURGE against the rolling average of recent bar
// volumes. The incoming bar is compared before it joins the baseline.
func (s *signalState) observeBar(b models.Bar, cfg *config.Detection) {
	if len(s.barVolumes) >= 3 {
		var sum float64
		for _, v := range s.barVolumes {
			sum += v
		}
		avg := sum / float64(len(s.barVolumes))
		if avg > 0 && b.Volume >= avg*cfg.VolumeSurgeMultiple {
			s.set(models.SignalVolumeSurge, b.Timestamp)
		} else {
			s.unset(models.SignalVolumeSurge)
		}
	}

	s.barVolumes = append(s.barVolumes, b.Volume)
	if len(s.barVolumes) > maxBarSamples {
		s.barVolumes = s.barVolumes[len(s.barVolumes)-maxBarSamples:]
	}
}

// refreshRapid recomputes RAPID_TRADING from the trade count in the trailing
// one second.
func (s *signalState) refreshRapid(buf *SymbolBuffer, cfg *config.Detection, now time.Time) {
	n := len(buf.Snapshot(now.Add(-time.Second), now.Add(time.Nanosecond)))
	if n > cfg.RapidTradeThreshold {
		s.set(models.SignalRapidTrading, now)
	} else {
		s.unset(models.SignalRapidTrading)
	}
}

// activeTags returns the current tags in a stable order.
func (s *signalState) activeTags() []models.SignalTag {
	if len(s.tags) == 0 {
		return nil
	}
	out := make([]models.SignalTag, 0, len(s.tags))
	for tag := range s.tags {
		out = append(out, tag)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// clear empties the set after a rocket fires.
func (s *signalState) clear() {
	for tag := range s.tags {
		delete(s.tags, tag)
	}
}
