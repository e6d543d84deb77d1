package di

import (
	"context"
	"fmt"
	"time"

	"SpikeWatch/internal/domain/repository"
	"SpikeWatch/internal/engine"
	"SpikeWatch/internal/handler/api"
	mid "SpikeWatch/internal/middleware"
	internalrepo "SpikeWatch/internal/repository"
	"SpikeWatch/internal/service/dispatch"
	"SpikeWatch/internal/service/feed"
	"SpikeWatch/internal/usecase"
	"SpikeWatch/pkg/cache"
	pkgch "SpikeWatch/pkg/clickhouse"
	"SpikeWatch/pkg/config"
	xhttp "SpikeWatch/pkg/http"
	pkgkafka "SpikeWatch/pkg/kafka"
	"SpikeWatch/pkg/logger"
	"SpikeWatch/pkg/metrics"
	"SpikeWatch/pkg/queue"
	"SpikeWatch/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideCacheStore creates the cooldown backing store: Redis when enabled,
// an in-process store otherwise.
func ProvideCacheStore(cfg *config.Config) (cache.Store, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryStore(), nil
	}
	store, err := cache.NewRedisStore(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis store: %w", err)
	}
	return store, nil
}

// ProvideCooldownRegistry creates the per-symbol cooldown registry.
func ProvideCooldownRegistry(store cache.Store) *engine.CooldownRegistry {
	return engine.NewCooldownRegistry(store)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when the
// backend is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSpikeStore creates the persisted spike history over ClickHouse.
// Returns nil when ClickHouse is disabled; callers treat a nil store as
// in-memory only.
func ProvideSpikeStore(chClient *pkgch.Client) (repository.SpikeStore, error) {
	if chClient == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseSpikeStore(chClient.DB(), "", "")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("spike store schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a producer for the alert topic, or nil when
// the Kafka alert sink is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Alerts.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a consumer for the tick topic, or nil when
// the feed source is not Kafka.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if cfg.Feed.Source != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideChannelSink creates the in-process fanout used by the websocket
// streaming endpoint.
func ProvideChannelSink(cfg *config.Config) *dispatch.ChannelSink {
	return dispatch.NewChannelSink(cfg.Alerts.Queue.Size)
}

// ProvideSinks assembles the alert sink set from config. The channel sink is
// always attached so /stream works regardless of external backends.
func ProvideSinks(
	cfg *config.Config,
	log *logger.Logger,
	producer *pkgkafka.Producer,
	store repository.SpikeStore,
	channel *dispatch.ChannelSink,
) []repository.AlertSink {
	sinks := []repository.AlertSink{channel}
	if cfg.Alerts.Log.Enabled {
		sinks = append(sinks, dispatch.NewLogSink(log))
	}
	if cfg.Alerts.Kafka.Enabled && producer != nil {
		sinks = append(sinks, dispatch.NewKafkaSink(producer, cfg.Alerts.Kafka.Topic))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		client := xhttp.NewClient(xhttp.WithTimeout(cfg.Alerts.Webhook.Timeout))
		sinks = append(sinks, dispatch.NewWebhookSink(
			client,
			cfg.Alerts.Webhook.URL,
			cfg.Alerts.Webhook.MaxPerSecond,
			cfg.Alerts.Webhook.RetryAttempts,
		))
	}
	if store != nil {
		sinks = append(sinks, dispatch.NewStoreSink(store))
	}
	return sinks
}

// Detection bundles the engine with its alert dispatcher. The two are built
// together because the dispatcher's episode cooldown tracks the engine's
// live detection config, which can be swapped over HTTP at runtime.
type Detection struct {
	Engine     *engine.Engine
	Dispatcher *dispatch.Dispatcher
}

// ProvideDetection creates the engine and dispatcher pair.
func ProvideDetection(
	cfg *config.Config,
	sinks []repository.AlertSink,
	cooldown *engine.CooldownRegistry,
	m repository.Metrics,
	log *logger.Logger,
) (*Detection, error) {
	if err := cfg.Detection.Normalize(); err != nil {
		return nil, fmt.Errorf("detection config: %w", err)
	}

	var eng *engine.Engine
	disp := dispatch.New(
		queue.Config{
			Workers:    cfg.Alerts.Queue.Workers,
			Size:       cfg.Alerts.Queue.Size,
			RetryLimit: cfg.Alerts.Queue.RetryLimit,
			RetryDelay: cfg.Alerts.Queue.RetryDelay,
		},
		sinks,
		cooldown,
		func() time.Duration { return eng.Config().Cooldown() },
		m,
		log,
	)
	eng = engine.New(&cfg.Detection, disp, cooldown, m, log)
	return &Detection{Engine: eng, Dispatcher: disp}, nil
}

// ProvideStream creates the market stream for the configured feed source.
func ProvideStream(cfg *config.Config, consumer *pkgkafka.Consumer, log *logger.Logger) (repository.MarketStream, error) {
	switch cfg.Feed.Source {
	case "kafka":
		if consumer == nil {
			return nil, fmt.Errorf("feed source kafka requires a consumer")
		}
		return feed.NewKafkaStream(consumer, cfg.Feed.KafkaTopic, cfg.Feed.BufferSize, log), nil
	default:
		return feed.New(feed.Options{
			APIKey:       cfg.Feed.APIKey,
			URL:          cfg.Feed.WebSocketURL,
			PingInterval: cfg.Feed.PingInterval,
			BackoffMin:   cfg.Feed.BackoffMin,
			BackoffMax:   cfg.Feed.BackoffMax,
			ReadBuffer:   cfg.Feed.BufferSize,
		}, log), nil
	}
}

// ProvideCollector creates the feed collector with its ingest pipeline.
func ProvideCollector(
	cfg *config.Config,
	stream repository.MarketStream,
	det *Detection,
	m repository.Metrics,
	log *logger.Logger,
) *usecase.FeedCollector {
	pipe := mid.NewIngestPipeline(det.Engine, m,
		mid.WithMaxRPS(cfg.Feed.ThrottlePerSec),
		mid.WithBufferSize(cfg.Feed.BufferSize),
	)
	return usecase.NewFeedCollector(stream, det.Engine, pipe, m, log, cfg.Feed.Symbols)
}

// ProvideHandler creates the HTTP API handler.
func ProvideHandler(
	log *logger.Logger,
	det *Detection,
	store repository.SpikeStore,
	collector *usecase.FeedCollector,
	channel *dispatch.ChannelSink,
) xhttp.Handler {
	return api.NewSpikesHandler(log, det.Engine, store, collector, channel)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	collector *usecase.FeedCollector,
	det *Detection,
	handler xhttp.Handler,
	chClient *pkgch.Client,
	cacheStore cache.Store,
) *server.App {
	return server.New(cfg, log, collector, det.Dispatcher, handler, chClient, cacheStore)
}
