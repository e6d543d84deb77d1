//go:build wireinject
// +build wireinject

package di

import (
	"SpikeWatch/pkg/config"
	"SpikeWatch/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Cooldown backing store
		ProvideCacheStore,
		ProvideCooldownRegistry,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideSpikeStore,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Alert delivery
		ProvideChannelSink,
		ProvideSinks,
		ProvideDetection,

		// Feed ingestion
		ProvideStream,
		ProvideCollector,

		// HTTP surface
		ProvideHandler,

		ProvideApp,
	)
	return &server.App{}, nil
}
