package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"SpikeWatch/internal/service/dispatch"
	"SpikeWatch/internal/usecase"
	"SpikeWatch/pkg/cache"
	pkgch "SpikeWatch/pkg/clickhouse"
	"SpikeWatch/pkg/config"
	xhttp "SpikeWatch/pkg/http"
	applogger "SpikeWatch/pkg/logger"
)

// App wires the whole detection service together and owns its lifecycle.
// Shutdown runs in reverse ingest order: feed first so no new events arrive,
// then the dispatcher so queued alerts drain, then the outer surfaces.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	collector  *usecase.FeedCollector
	dispatcher *dispatch.Dispatcher
	httpServer *xhttp.Server
	chClient   *pkgch.Client
	cacheStore cache.Store
}

// New creates an App from already-constructed components. chClient and
// cacheStore may be nil when the corresponding backends are disabled.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	collector *usecase.FeedCollector,
	dispatcher *dispatch.Dispatcher,
	handler xhttp.Handler,
	chClient *pkgch.Client,
	cacheStore cache.Store,
) *App {
	httpServer := xhttp.NewServer(handler,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	)
	return &App{
		cfg:        cfg,
		log:        log,
		collector:  collector,
		dispatcher: dispatcher,
		httpServer: httpServer,
		chClient:   chClient,
		cacheStore: cacheStore,
	}
}

// Run starts everything and blocks until an interrupt arrives.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a.dispatcher.Start(ctx)

	if err := a.collector.Start(ctx); err != nil {
		a.log.Error("feed collector start", applogger.Error(err))
		return err
	}
	a.log.Info("collector started", applogger.Strings("symbols", a.cfg.Feed.Symbols))

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start", applogger.Error(err))
		return err
	}
	a.log.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

func (a *App) shutdown(ctx context.Context) error {
	if err := a.collector.Shutdown(ctx); err != nil {
		a.log.Warn("collector shutdown", applogger.Error(err))
	}

	// Engine is stopped; drain queued alerts and close sinks.
	a.dispatcher.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown", applogger.Error(err))
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close", applogger.Error(err))
		}
	}
	if a.cacheStore != nil {
		if err := a.cacheStore.Close(); err != nil {
			a.log.Warn("cache close", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
