package dispatch

import (
	"context"

	"SpikeWatch/internal/domain/models"
	"SpikeWatch/internal/domain/repository"
)

// StoreSink persists completed episodes and rocket alerts. Starts and updates
// are transient and skipped; only terminal events are worth a row.
type StoreSink struct {
	store repository.SpikeStore
}

func NewStoreSink(store repository.SpikeStore) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Name() string {
	return "store"
}

func (s *StoreSink) Deliver(ctx context.Context, ev *models.AlertEvent) error {
	switch ev.Kind {
	case models.EventSpikeEnd:
		return s.store.StoreSpike(ctx, ev.Spike)
	case models.EventRocketDetected:
		return s.store.StoreRocket(ctx, ev.Rocket)
	}
	return nil
}

func (s *StoreSink) Close() error {
	return s.store.Close()
}
