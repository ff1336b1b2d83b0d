// Package streamer wires discovery, the connection, the stream engine and the
// status model into one Service that a host application drives.
package streamer

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/scenestream/pkg/activity"
	"github.com/DeBrosOfficial/scenestream/pkg/config"
	"github.com/DeBrosOfficial/scenestream/pkg/connection"
	"github.com/DeBrosOfficial/scenestream/pkg/discovery"
	serrors "github.com/DeBrosOfficial/scenestream/pkg/errors"
	"github.com/DeBrosOfficial/scenestream/pkg/executor"
	"github.com/DeBrosOfficial/scenestream/pkg/logging"
	"github.com/DeBrosOfficial/scenestream/pkg/metrics"
	"github.com/DeBrosOfficial/scenestream/pkg/registry"
	"github.com/DeBrosOfficial/scenestream/pkg/status"
	"github.com/DeBrosOfficial/scenestream/pkg/stream"
)

// executorQueue is the backlog of the executor the Service owns when the
// host does not supply one.
const executorQueue = 8

// Options configures a Service. Only Export is required.
type Options struct {
	Config *config.Config
	Export stream.ExportFunc

	// Runner is the host's exclusive execution context. When nil the
	// Service starts and owns a dedicated executor.
	Runner stream.Runner
	// DiscoveryFactory overrides the mDNS backend.
	DiscoveryFactory discovery.Factory
	// Notifier receives every notification in addition to the Hub.
	Notifier status.Notifier

	Logger  *logging.ColoredLogger
	Metrics *metrics.Metrics
	Clock   clock.Clock
	Dialer  connection.DialFunc
}

// Status is a point-in-time view for UIs.
type Status struct {
	Discovery      string          `json:"discovery"`
	Devices        int             `json:"devices"`
	Connected      bool            `json:"connected"`
	Peer           string          `json:"peer,omitempty"`
	Addr           string          `json:"addr,omitempty"`
	ConnectedAt    *time.Time      `json:"connected_at,omitempty"`
	Streaming      bool            `json:"streaming"`
	SessionID      string          `json:"session_id,omitempty"`
	FramesSent     uint64          `json:"frames_sent"`
	Settings       stream.Settings `json:"settings"`
	Message        string          `json:"status"`
	RealtimeStatus string          `json:"realtime_status"`
}

// Service owns every component. There is no package-level state; a process
// may run several services side by side in tests.
type Service struct {
	cfg     *config.Config
	logger  *logging.ColoredLogger
	metrics *metrics.Metrics
	clk     clock.Clock

	hub        *status.Hub
	registry   *registry.Registry
	tracker    *activity.Tracker
	manager    *connection.Manager
	engine     *stream.Engine
	discovery  *discovery.Controller
	ownedExec  *executor.Executor
	baseCtx    context.Context
	baseCancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// New builds a Service from opts.
func New(opts Options) (*Service, error) {
	if opts.Export == nil {
		return nil, serrors.NewValidationError("export", "export function is required", nil)
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}

	hub := status.NewHub(clk)
	var notifier status.Notifier = hub
	if opts.Notifier != nil {
		notifier = status.Multi{hub, opts.Notifier}
	}

	s := &Service{
		cfg:     cfg,
		logger:  logger,
		metrics: opts.Metrics,
		clk:     clk,
		hub:     hub,
	}
	s.baseCtx, s.baseCancel = context.WithCancel(context.Background())
	s.registry = registry.New(status.NewDebounced(notifier, clk, status.DefaultDebounce))
	s.tracker = activity.NewTracker(clk)

	managerOpts := []connection.ManagerOption{
		connection.WithMetrics(opts.Metrics),
		connection.WithClock(clk),
	}
	if opts.Dialer != nil {
		managerOpts = append(managerOpts, connection.WithDialer(opts.Dialer))
	}
	s.manager = connection.NewManager(connection.Options{
		ConnectTimeout: cfg.Connection.ConnectTimeout,
		DisconnectWait: cfg.Connection.DisconnectWait,
		KeepAlive:      cfg.Connection.KeepAlive,
	}, s.tracker, notifier, logger, managerOpts...)

	runner := opts.Runner
	if runner == nil {
		s.ownedExec = executor.New(executorQueue)
		s.ownedExec.Start()
		runner = s.ownedExec
	}

	engine, err := stream.NewEngine(stream.Config{
		Runner:         runner,
		Export:         opts.Export,
		Tracker:        s.tracker,
		Disconnector:   s.manager,
		Notifier:       notifier,
		Metrics:        opts.Metrics,
		Logger:         logger,
		Clock:          clk,
		ExportTimeout:  cfg.Stream.ExportTimeout,
		IdleBackoff:    cfg.Stream.IdleBackoff,
		StopWait:       cfg.Connection.DisconnectWait,
		ScratchDir:     cfg.Stream.ScratchDir,
		ExportFileName: cfg.Stream.ExportFileName,
	})
	if err != nil {
		s.baseCancel()
		if s.ownedExec != nil {
			_ = s.ownedExec.Close()
		}
		return nil, err
	}
	engine.UpdateSettings(stream.Settings{
		TargetFPS:            cfg.Stream.TargetFPS,
		StreamOnlyWhenActive: cfg.Stream.StreamOnlyWhenActive,
		InactivityThreshold:  cfg.Stream.InactivityThreshold,
	})
	s.engine = engine

	factory := opts.DiscoveryFactory
	if factory == nil {
		factory = discovery.ZeroconfFactory(discovery.ZeroconfOptions{
			BrowseInterval: cfg.Discovery.BrowseInterval,
			MissLimit:      cfg.Discovery.MissLimit,
			Logger:         logger,
		})
	}
	s.discovery = discovery.NewController(factory, s.registry, notifier, opts.Metrics, logger, discovery.WithClock(clk))

	return s, nil
}

// Hub returns the status hub for subscribers.
func (s *Service) Hub() *status.Hub { return s.hub }

// Metrics returns the metrics set, possibly nil.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// StartDiscovery begins browsing for the configured service type. The
// session outlives the caller; it ends with StopDiscovery or Close.
func (s *Service) StartDiscovery() error {
	return s.discovery.Start(s.baseCtx, s.cfg.Discovery.ServiceType, s.cfg.Discovery.Domain)
}

// StopDiscovery ends browsing and clears the device list.
func (s *Service) StopDiscovery() {
	s.discovery.Stop()
}

// DiscoveryState reports whether discovery is running.
func (s *Service) DiscoveryState() discovery.State {
	return s.discovery.State()
}

// Devices returns the discovered devices sorted by ID.
func (s *Service) Devices() []registry.PeerRecord {
	return s.registry.Snapshot()
}

// Connect opens the stream socket to a discovered device.
func (s *Service) Connect(ctx context.Context, id string) error {
	peer, ok := s.registry.Get(id)
	if !ok {
		return serrors.NewNotFoundError("device", id)
	}
	_, err := s.manager.Connect(ctx, peer, s.cfg.Connection.ConnectTimeout)
	return err
}

// Disconnect stops any stream session and closes the socket.
func (s *Service) Disconnect() {
	s.manager.Disconnect()
}

// StartStreaming starts a session on the current connection with the
// current settings.
func (s *Service) StartStreaming() error {
	conn := s.manager.Current()
	if conn == nil {
		return serrors.NewNotConnectedError("start streaming")
	}
	settings := s.engine.Settings()
	if settings.StreamOnlyWhenActive {
		// The first frame goes out even if nothing changed recently.
		s.tracker.Touch()
	}
	_, err := s.engine.Start(conn, settings)
	return err
}

// StopStreaming cancels the session and waits a bounded time for it.
func (s *Service) StopStreaming() {
	if !s.engine.Stop() {
		s.logger.ComponentWarn(logging.ComponentStream, "Stream stop timed out")
	}
}

// RecordChange signals that the scene content changed.
func (s *Service) RecordChange() {
	s.tracker.RecordChange()
}

// Settings returns the current stream settings.
func (s *Service) Settings() stream.Settings {
	return s.engine.Settings()
}

// UpdateSettings clamps and applies new settings, returning what was stored.
func (s *Service) UpdateSettings(settings stream.Settings) stream.Settings {
	applied := s.engine.UpdateSettings(settings)
	s.logger.ComponentDebug(logging.ComponentStream, "Stream settings updated",
		zap.Int("fps", applied.TargetFPS),
		zap.Bool("only_when_active", applied.StreamOnlyWhenActive),
		zap.Duration("inactivity_threshold", applied.InactivityThreshold),
	)
	return applied
}

// Status returns the current state of every component.
func (s *Service) Status() Status {
	snap := s.hub.Latest()
	st := Status{
		Discovery:      s.discovery.State().String(),
		Devices:        s.registry.Len(),
		Settings:       s.engine.Settings(),
		Message:        snap.Status,
		RealtimeStatus: snap.RealtimeStatus,
	}
	if conn := s.manager.Current(); conn != nil {
		at := conn.ConnectedAt()
		st.Connected = true
		st.Peer = conn.Peer().DisplayName()
		st.Addr = conn.Addr()
		st.ConnectedAt = &at
	}
	if sess := s.engine.Current(); sess != nil {
		st.Streaming = true
		st.SessionID = sess.ID()
		st.FramesSent = sess.FramesSent()
	}
	return st
}

// Close tears everything down: stream, socket, discovery, then the owned
// executor. It is safe to call more than once.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		var err error
		if !s.engine.Stop() {
			err = multierr.Append(err, serrors.NewInternalError("stream session did not stop in time", nil).WithOperation("close"))
		}
		s.manager.DisconnectIf(s.manager.Current(), connection.CauseShutdown)
		s.discovery.Stop()
		s.baseCancel()
		if s.ownedExec != nil {
			err = multierr.Append(err, s.ownedExec.Close())
		}
		s.closeErr = err
		s.logger.ComponentInfo(logging.ComponentGeneral, "Streamer closed", zap.Error(err))
	})
	return s.closeErr
}
