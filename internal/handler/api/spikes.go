package api

import (
	"context"
	"net/http"
	"time"

	"SpikeWatch/internal/domain/models"
	domrepo "SpikeWatch/internal/domain/repository"
	"SpikeWatch/internal/engine"
	"SpikeWatch/internal/service/dispatch"
	"SpikeWatch/pkg/config"
	xhttp "SpikeWatch/pkg/http"
	xlogger "SpikeWatch/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// SymbolTracker adjusts the tracked symbol universe at runtime.
type SymbolTracker interface {
	Track(ctx context.Context, symbols []string) error
	Untrack(ctx context.Context, symbols []string) error
}

// SpikesHandler exposes detection state and control over HTTP.
type SpikesHandler struct {
	logger  *xlogger.Logger
	engine  *engine.Engine
	store   domrepo.SpikeStore // optional persisted history
	tracker SymbolTracker      // optional dynamic universe
	stream  *dispatch.ChannelSink
	up      websocket.Upgrader
}

func NewSpikesHandler(
	logger *xlogger.Logger,
	eng *engine.Engine,
	store domrepo.SpikeStore,
	tracker SymbolTracker,
	stream *dispatch.ChannelSink,
) *SpikesHandler {
	return &SpikesHandler{
		logger:  logger,
		engine:  eng,
		store:   store,
		tracker: tracker,
		stream:  stream,
		up: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (h *SpikesHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api/v1")
	g.GET("/spikes/active", h.Active)
	g.GET("/spikes/history", h.History)
	g.GET("/signals/:symbol", h.Signals)
	g.GET("/symbols", h.Symbols)
	g.POST("/symbols", h.AddSymbols)
	g.DELETE("/symbols", h.RemoveSymbols)
	g.GET("/config", h.GetConfig)
	g.PUT("/config", h.PutConfig)
	g.GET("/stream", h.Stream)
}

func (h *SpikesHandler) Health(c echo.Context) error {
	if h.store != nil {
		if err := h.store.Health(c.Request().Context()); err != nil {
			h.logger.Error("store health", xlogger.Error(err))
			return xhttp.DataResponse(c, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		}
	}
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

func (h *SpikesHandler) Active(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.ActiveSpikes())
}

// History serves completed episodes. With a spike store configured it reads
// the persisted history; otherwise it falls back to the in-memory ring.
func (h *SpikesHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if h.store == nil {
		recs := h.engine.History(req.Symbol)
		if req.Limit > 0 && len(recs) > req.Limit {
			recs = recs[len(recs)-req.Limit:]
		}
		return xhttp.SuccessResponse(c, recs)
	}

	now := time.Now()
	from := xhttp.ParseTimeDefault(req.From, now.Add(-24*time.Hour))
	to := xhttp.ParseTimeDefault(req.To, now)
	recs, err := h.store.QuerySpikes(c.Request().Context(), req.Symbol, from, to, req.Limit)
	if err != nil {
		h.logger.Error("history query", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, recs)
}

func (h *SpikesHandler) Signals(c echo.Context) error {
	symbol := c.Param("symbol")
	if symbol == "" {
		return xhttp.BadRequestResponse(c, "symbol required")
	}
	tags := h.engine.Signals(symbol)
	if tags == nil {
		tags = []models.SignalTag{}
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{"symbol": symbol, "signals": tags})
}

func (h *SpikesHandler) Symbols(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.Symbols())
}

func (h *SpikesHandler) AddSymbols(c echo.Context) error {
	if h.tracker == nil {
		return xhttp.NotFoundResponse(c, "symbol tracking disabled")
	}
	req := &models.SymbolsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.tracker.Track(c.Request().Context(), req.Symbols); err != nil {
		h.logger.Error("track symbols", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, req.Symbols)
}

func (h *SpikesHandler) RemoveSymbols(c echo.Context) error {
	if h.tracker == nil {
		return xhttp.NotFoundResponse(c, "symbol tracking disabled")
	}
	req := &models.SymbolsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.tracker.Untrack(c.Request().Context(), req.Symbols); err != nil {
		h.logger.Error("untrack symbols", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *SpikesHandler) GetConfig(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.engine.Config())
}

// PutConfig swaps in a whole new detection snapshot. Partial updates are not
// supported; omitted fields fall back to their defaults.
func (h *SpikesHandler) PutConfig(c echo.Context) error {
	next := &config.Detection{}
	if err := c.Bind(next); err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	if err := h.engine.UpdateConfig(next); err != nil {
		return xhttp.BadRequestResponse(c, err.Error())
	}
	h.logger.Info("detection config updated over http")
	return xhttp.SuccessResponse(c, h.engine.Config())
}

// Stream pushes alert events over a websocket until the client disconnects.
func (h *SpikesHandler) Stream(c echo.Context) error {
	if h.stream == nil {
		return xhttp.NotFoundResponse(c, "streaming disabled")
	}
	conn, err := h.up.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	events, cancel := h.stream.Subscribe()
	defer cancel()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := conn.WriteJSON(ev); err != nil {
				return nil
			}
		}
	}
}
