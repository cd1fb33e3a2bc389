package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"signal-feed/internal/broadcast"
	"signal-feed/internal/cache"
	"signal-feed/internal/config"
	"signal-feed/internal/metrics"
	"signal-feed/internal/poller"
	"signal-feed/internal/service"
)

// QueryService answers status and per-instrument queries.
type QueryService interface {
	Analyze(ctx context.Context, asset string) (service.Analysis, error)
	Status() service.Status
}

// Subscribers is the broadcast set websocket clients join.
type Subscribers interface {
	Register(c broadcast.Conn)
	Unregister(c broadcast.Conn)
	Len() int
}

// SnapshotSource supplies the snapshot sent to new subscribers.
type SnapshotSource interface {
	Snapshot() cache.Snapshot
}

// PollerStatus reports the poller's state for health checks.
type PollerStatus interface {
	State() poller.State
	LastCycle() time.Time
}

// Deps bundles the collaborators the HTTP layer calls into.
type Deps struct {
	Service     QueryService
	Subscribers Subscribers
	Snapshots   SnapshotSource
	Poller      PollerStatus
	Metrics     *metrics.Recorder
}

// Server wraps the echo instance serving the HTTP and websocket surface.
type Server struct {
	echo   *echo.Echo
	cfg    config.ServerConfig
	logger zerolog.Logger
}

// NewServer builds the echo server and registers every route.
func NewServer(deps Deps, cfg config.ServerConfig, wsCfg config.WebSocketConfig, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "api").Logger()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(recoverer(logger))
	e.Use(requestLogger(logger))
	if len(cfg.CORSOrigins) > 0 {
		e.Use(cors(cfg.CORSOrigins))
	}

	h := &handler{deps: deps, ws: newWSHandler(deps, wsCfg, logger), logger: logger}
	h.register(e)

	return &Server{echo: e, cfg: cfg, logger: logger}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start listens on the configured address and blocks until the server stops.
func (s *Server) Start() error {
	srv := &http.Server{
		Addr:         s.cfg.Addr(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	s.logger.Info().Str("addr", srv.Addr).Msg("http server listening")
	if err := s.echo.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	s.logger.Info().Msg("http server stopped")
	return nil
}
