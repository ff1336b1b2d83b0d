// Package gateway exposes the streamer over a local HTTP control and status
// API, with a websocket feed of status events.
package gateway

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/scenestream/pkg/config"
	serrors "github.com/DeBrosOfficial/scenestream/pkg/errors"
	"github.com/DeBrosOfficial/scenestream/pkg/logging"
	"github.com/DeBrosOfficial/scenestream/pkg/metrics"
	"github.com/DeBrosOfficial/scenestream/pkg/registry"
	"github.com/DeBrosOfficial/scenestream/pkg/status"
	"github.com/DeBrosOfficial/scenestream/pkg/stream"
	"github.com/DeBrosOfficial/scenestream/pkg/streamer"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Controller is the part of streamer.Service the gateway drives.
type Controller interface {
	StartDiscovery() error
	StopDiscovery()
	Devices() []registry.PeerRecord
	Connect(ctx context.Context, id string) error
	Disconnect()
	StartStreaming() error
	StopStreaming()
	RecordChange()
	Settings() stream.Settings
	UpdateSettings(s stream.Settings) stream.Settings
	Status() streamer.Status
	Hub() *status.Hub
}

// Gateway is the HTTP front of a Controller.
type Gateway struct {
	logger    *logging.ColoredLogger
	config    config.GatewayConfig
	ctl       Controller
	metrics   *metrics.Metrics
	router    chi.Router
	server    *http.Server
	startedAt time.Time

	// closing ends websocket feeds, which Shutdown does not track.
	closing   chan struct{}
	closeOnce sync.Once
}

// New builds the router. It returns nil when the gateway is disabled.
func New(cfg config.GatewayConfig, ctl Controller, m *metrics.Metrics, logger *logging.ColoredLogger) *Gateway {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	g := &Gateway{
		logger:    logger,
		config:    cfg,
		ctl:       ctl,
		metrics:   m,
		router:    chi.NewRouter(),
		startedAt: time.Now(),
		closing:   make(chan struct{}),
	}

	g.router.Use(middleware.RequestID)
	g.router.Use(g.loggingMiddleware)
	g.router.Use(middleware.Recoverer)

	g.router.Get("/health", g.healthHandler)
	if m != nil {
		g.router.Handle("/metrics", m.Handler())
	}
	// The event feed is long-lived and must not inherit the request timeout.
	g.router.Get("/v1/events", g.eventsHandler)

	g.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/v1/devices", g.devicesHandler)
		r.Get("/v1/status", g.statusHandler)
		r.Post("/v1/discovery/start", g.discoveryStartHandler)
		r.Post("/v1/discovery/stop", g.discoveryStopHandler)
		r.Post("/v1/connect", g.connectHandler)
		r.Post("/v1/disconnect", g.disconnectHandler)
		r.Post("/v1/stream/start", g.streamStartHandler)
		r.Post("/v1/stream/stop", g.streamStopHandler)
		r.Get("/v1/stream/settings", g.settingsGetHandler)
		r.Put("/v1/stream/settings", g.settingsPutHandler)
		r.Post("/v1/activity", g.activityHandler)
	})

	g.logger.ComponentInfo(logging.ComponentGateway, "HTTP gateway initialized",
		zap.String("listen_addr", cfg.ListenAddr),
	)
	return g
}

// Router returns the chi router for testing or extension.
func (g *Gateway) Router() chi.Router {
	return g.router
}

// Start serves until ctx is done, then shuts down.
func (g *Gateway) Start(ctx context.Context) error {
	if g == nil {
		return nil
	}

	listener, err := net.Listen("tcp", g.config.ListenAddr)
	if err != nil {
		return serrors.Wrapf(err, "failed to listen on %s", g.config.ListenAddr)
	}
	return g.Serve(ctx, listener)
}

// Serve is Start on an existing listener.
func (g *Gateway) Serve(ctx context.Context, listener net.Listener) error {
	g.server = &http.Server{
		Handler:           g.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          log.New(logging.NewStandardLogger(g.logger, logging.ComponentGateway), "", 0),
	}

	g.logger.ComponentInfo(logging.ComponentGateway, "HTTP gateway listening",
		zap.String("addr", listener.Addr().String()),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := g.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			g.logger.ComponentError(logging.ComponentGateway, "HTTP gateway server error", zap.Error(err))
			return err
		}
		return nil
	case <-ctx.Done():
		return g.Stop()
	}
}

// Stop gracefully stops the server.
func (g *Gateway) Stop() error {
	if g == nil {
		return nil
	}
	g.closeOnce.Do(func() { close(g.closing) })
	if g.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	g.logger.ComponentInfo(logging.ComponentGateway, "HTTP gateway shutting down")
	if err := g.server.Shutdown(ctx); err != nil {
		g.logger.ComponentError(logging.ComponentGateway, "HTTP gateway shutdown error", zap.Error(err))
		return err
	}
	return nil
}
