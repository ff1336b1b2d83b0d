// Package stream runs the producer loop: export the scene on the host's
// exclusive executor, frame the bytes and write them to the receiver.
package stream

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/scenestream/pkg/activity"
	"github.com/DeBrosOfficial/scenestream/pkg/connection"
	serrors "github.com/DeBrosOfficial/scenestream/pkg/errors"
	"github.com/DeBrosOfficial/scenestream/pkg/logging"
	"github.com/DeBrosOfficial/scenestream/pkg/metrics"
	"github.com/DeBrosOfficial/scenestream/pkg/status"
)

// ExportFunc writes the current scene to path. It only ever runs on the
// exclusive executor.
type ExportFunc func(path string) error

// Runner hands work to the exclusive executor and waits a bounded time.
type Runner interface {
	Do(ctx context.Context, fn func() error) error
}

// Disconnector tears down a connection after a fatal transport error.
type Disconnector interface {
	DisconnectIf(conn *connection.Conn, cause string)
}

// Defaults.
const (
	DefaultExportTimeout  = 5 * time.Second
	DefaultIdleBackoff    = 500 * time.Millisecond
	DefaultStopWait       = 2 * time.Second
	DefaultExportFileName = "scene_export.usdz"

	// gateBackoff is the sleep when a previous export still holds the gate.
	gateBackoff = 10 * time.Millisecond
)

// Config wires an Engine.
type Config struct {
	Runner       Runner
	Export       ExportFunc
	Tracker      *activity.Tracker
	Disconnector Disconnector
	Notifier     status.Notifier
	Metrics      *metrics.Metrics
	Logger       *logging.ColoredLogger
	Clock        clock.Clock

	ExportTimeout  time.Duration
	IdleBackoff    time.Duration
	StopWait       time.Duration
	ScratchDir     string
	ExportFileName string
}

// Engine owns at most one Session at a time.
type Engine struct {
	cfg      Config
	settings atomic.Pointer[Settings]

	mu      sync.Mutex
	session *Session
}

// NewEngine validates cfg and fills defaults. Runner, Export and Tracker are required.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Runner == nil {
		return nil, serrors.NewValidationError("runner", "exclusive executor is required", nil)
	}
	if cfg.Export == nil {
		return nil, serrors.NewValidationError("export", "export function is required", nil)
	}
	if cfg.Tracker == nil {
		return nil, serrors.NewValidationError("tracker", "activity tracker is required", nil)
	}
	if cfg.Notifier == nil {
		cfg.Notifier = status.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.ExportTimeout <= 0 {
		cfg.ExportTimeout = DefaultExportTimeout
	}
	if cfg.IdleBackoff <= 0 {
		cfg.IdleBackoff = DefaultIdleBackoff
	}
	if cfg.StopWait <= 0 {
		cfg.StopWait = DefaultStopWait
	}
	if cfg.ExportFileName == "" {
		cfg.ExportFileName = DefaultExportFileName
	}

	e := &Engine{cfg: cfg}
	s := DefaultSettings()
	e.settings.Store(&s)
	return e, nil
}

// Settings returns the current settings.
func (e *Engine) Settings() Settings {
	return *e.settings.Load()
}

// UpdateSettings replaces the settings. A running session picks them up on
// its next iteration.
func (e *Engine) UpdateSettings(s Settings) Settings {
	s = s.Normalize()
	e.settings.Store(&s)
	return s
}

// Start binds a new session to conn and starts the loop.
func (e *Engine) Start(conn *connection.Conn, s Settings) (*Session, error) {
	if conn == nil {
		return nil, serrors.NewNotConnectedError("start streaming")
	}
	e.UpdateSettings(s)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session != nil && !e.session.finished() {
		return nil, serrors.NewAlreadySessionActiveError(e.session.id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		id:     uuid.NewString(),
		engine: e,
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if err := conn.Bind(sess); err != nil {
		cancel()
		return nil, err
	}
	e.session = sess

	e.cfg.Metrics.SessionStarted()
	e.cfg.Logger.ComponentInfo(logging.ComponentStream, "Stream session started",
		zap.String("session", sess.id),
		zap.String("addr", conn.Addr()),
		zap.Int("fps", e.Settings().TargetFPS),
	)
	e.cfg.Notifier.NotifyRealtimeStatus("Streaming...")

	go sess.run()
	return sess, nil
}

// Active reports whether a session is running.
func (e *Engine) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session != nil && !e.session.finished()
}

// Current returns the running session, or nil.
func (e *Engine) Current() *Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil || e.session.finished() {
		return nil
	}
	return e.session
}

// Stop cancels the running session and waits a bounded time for it to
// exit. It returns false if the session was still running when the wait
// expired.
func (e *Engine) Stop() bool {
	s := e.Current()
	if s == nil {
		return true
	}
	s.Stop()
	select {
	case <-s.Done():
		return true
	case <-e.cfg.Clock.After(e.cfg.StopWait):
		e.cfg.Logger.ComponentWarn(logging.ComponentStream, "Stream session did not stop in time",
			zap.String("session", s.id),
		)
		return false
	}
}

func (e *Engine) release(s *Session) {
	e.mu.Lock()
	if e.session == s {
		e.session = nil
	}
	e.mu.Unlock()
}
