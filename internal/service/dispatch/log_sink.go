package dispatch

import (
	"context"

	"SpikeWatch/internal/domain/models"
	"SpikeWatch/pkg/logger"
)

// LogSink writes alert events to the structured log. Always safe to enable;
// mainly useful in development and as a delivery audit trail.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Deliver(_ context.Context, ev *models.AlertEvent) error {
	fields := []logger.Field{
		logger.String("kind", string(ev.Kind)),
		logger.String("symbol", ev.Symbol),
	}
	if ev.Spike != nil {
		fields = append(fields,
			logger.Float64("price_change_pct", ev.Spike.PriceChangePercent),
			logger.Float64("volume_burst", ev.Spike.VolumeBurstRatio),
			logger.Float64("dollar_volume", ev.Spike.DollarVolume),
			logger.Float64("duration_s", ev.Spike.DurationSeconds),
			logger.String("momentum", string(ev.Spike.Momentum)))
		if ev.Spike.EndReason != "" {
			fields = append(fields, logger.String("end_reason", string(ev.Spike.EndReason)))
		}
	}
	if ev.Rocket != nil {
		tags := make([]string, 0, len(ev.Rocket.Signals))
		for _, t := range ev.Rocket.Signals {
			tags = append(tags, string(t))
		}
		fields = append(fields,
			logger.Strings("signals", tags),
			logger.Float64("price", ev.Rocket.Price))
	}
	s.log.Info("alert", fields...)
	return nil
}

func (s *LogSink) Close() error {
	return nil
}
