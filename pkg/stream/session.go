package stream

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/DeBrosOfficial/scenestream/pkg/connection"
	serrors "github.com/DeBrosOfficial/scenestream/pkg/errors"
	"github.com/DeBrosOfficial/scenestream/pkg/executor"
	"github.com/DeBrosOfficial/scenestream/pkg/logging"
	"github.com/DeBrosOfficial/scenestream/pkg/metrics"
	"github.com/DeBrosOfficial/scenestream/pkg/wire"
)

// Realtime status messages.
const (
	MsgStreaming    = "Streaming..."
	MsgStopped      = "Streaming stopped."
	MsgExportFailed = "Export failed/timed out."
)

var errNoData = errors.New("exporter produced no data")

// Session is one run of the producer loop on a borrowed connection.
type Session struct {
	id     string
	engine *Engine
	conn   *connection.Conn
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	fatalOnce sync.Once
	mu        sync.Mutex
	err       error
	frames    uint64
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Stop cancels the loop. It does not wait.
func (s *Session) Stop() { s.cancel() }

// Done is closed when the loop has exited and cleaned up.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns the fatal error that ended the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// FramesSent returns how many frames the session has written.
func (s *Session) FramesSent() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Session) finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) run() {
	e := s.engine
	log := e.cfg.Logger
	defer func() {
		s.cancel()
		s.conn.Unbind(s)
		e.release(s)
		log.ComponentInfo(logging.ComponentStream, "Stream session ended",
			zap.String("session", s.id),
			zap.Uint64("frames", s.FramesSent()),
			zap.Error(s.Err()),
		)
		e.cfg.Notifier.NotifyRealtimeStatus(MsgStopped)
		close(s.done)
	}()

	for s.ctx.Err() == nil {
		st := e.Settings()

		if st.StreamOnlyWhenActive {
			if idle := e.cfg.Tracker.IdleFor(); idle >= st.InactivityThreshold {
				e.cfg.Metrics.IdleCycle()
				e.cfg.Notifier.NotifyRealtimeStatus(fmt.Sprintf("Streaming (Idle: No activity for %.1fs)", idle.Seconds()))
				s.sleep(e.cfg.IdleBackoff)
				continue
			}
		}

		gate := e.cfg.Tracker.Gate()
		if !gate.TryAcquire() {
			s.sleep(gateBackoff)
			continue
		}

		payload, err := s.export()
		// A Stop that lands while the export runs must not produce a frame.
		if s.ctx.Err() != nil {
			return
		}
		if err == nil {
			err = s.send(payload)
		}
		// The pending flag belongs to this cycle's export whatever its outcome.
		changed := e.cfg.Tracker.TakePending()

		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			if !serrors.ShouldRetry(err) {
				s.fatal(err)
				return
			}
			s.reportExportFailure(err)
		} else {
			e.cfg.Notifier.NotifyRealtimeStatus(fmt.Sprintf("Sent %.2f KB. FPS: %d", float64(len(payload))/1024, st.TargetFPS))
		}

		if changed {
			log.ComponentDebug(logging.ComponentStream, "Scene changed during export, starting next cycle now")
			continue
		}
		s.sleep(st.FrameInterval())
	}
}

// export runs one export on the executor. The gate must be held on entry;
// it is released by the job when it runs, or here when it never does.
func (s *Session) export() ([]byte, error) {
	e := s.engine
	tracker := e.cfg.Tracker
	gate := tracker.Gate()

	type result struct {
		payload []byte
	}
	res := &result{}

	job := func() error {
		defer gate.Release()

		dir, err := os.MkdirTemp(e.cfg.ScratchDir, "scenestream-")
		if err != nil {
			return fmt.Errorf("create scratch dir: %w", err)
		}
		defer os.RemoveAll(dir)

		tracker.BeginExport()
		defer tracker.EndExport()

		path := filepath.Join(dir, e.cfg.ExportFileName)
		if err := e.cfg.Export(path); err != nil {
			return err
		}

		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) || (err == nil && len(data) == 0) {
			return errNoData
		}
		if err != nil {
			return fmt.Errorf("read export: %w", err)
		}
		res.payload = data
		return nil
	}

	start := e.cfg.Clock.Now()
	ctx, cancel := context.WithTimeout(s.ctx, e.cfg.ExportTimeout)
	defer cancel()

	err := e.cfg.Runner.Do(ctx, job)
	e.cfg.Metrics.ObserveExport(e.cfg.Clock.Since(start))

	switch {
	case err == nil:
		return res.payload, nil
	case errors.Is(err, executor.ErrNotStarted), errors.Is(err, executor.ErrClosed):
		gate.Release()
	}

	switch {
	case errors.Is(err, errNoData):
		return nil, serrors.NewExportFailedError("no data", errNoData)
	case errors.Is(err, context.DeadlineExceeded):
		return nil, serrors.NewExportTimeoutError(e.cfg.ExportTimeout.String())
	default:
		return nil, serrors.NewExportFailedError("", err)
	}
}

func (s *Session) reportExportFailure(err error) {
	e := s.engine

	msg := MsgExportFailed
	reason := metrics.ReasonError
	switch {
	case serrors.IsTimeout(err):
		reason = metrics.ReasonTimeout
	case errors.Is(err, errNoData):
		reason = metrics.ReasonNoData
	case serrors.IsExportFailed(err):
		msg = fmt.Sprintf("Export Error: %v", serrors.Cause(err))
	}

	e.cfg.Metrics.ExportFailed(reason)
	e.cfg.Logger.ComponentWarn(logging.ComponentExport, "Export failed",
		zap.String("session", s.id),
		zap.String("reason", reason),
		zap.Error(err),
	)
	e.cfg.Notifier.NotifyRealtimeStatus(msg)
}

func (s *Session) send(payload []byte) error {
	if _, err := wire.WriteFrame(s.conn, payload); err != nil {
		return serrors.NewTransportError("send frame", err)
	}
	s.mu.Lock()
	s.frames++
	s.mu.Unlock()
	s.engine.cfg.Metrics.ObserveFrame(len(payload))
	return nil
}

// fatal records err and requests exactly one asynchronous disconnect. The
// disconnect runs on its own goroutine because it waits for this session to
// finish.
func (s *Session) fatal(err error) {
	s.fatalOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()

		e := s.engine
		e.cfg.Logger.ComponentError(logging.ComponentStream, "Stream transport failed",
			zap.String("session", s.id),
			zap.String("addr", s.conn.Addr()),
			zap.Error(err),
		)
		e.cfg.Notifier.NotifyStatus(fmt.Sprintf("Connection lost: %v", serrors.Cause(err)))
		if e.cfg.Disconnector != nil {
			go e.cfg.Disconnector.DisconnectIf(s.conn, connection.CauseTransport)
		}
	})
}

func (s *Session) sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-s.ctx.Done():
	case <-s.engine.cfg.Clock.After(d):
	}
}
