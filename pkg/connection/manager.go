// Package connection owns the single TCP connection to a receiver.
package connection

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	serrors "github.com/DeBrosOfficial/scenestream/pkg/errors"
	"github.com/DeBrosOfficial/scenestream/pkg/logging"
	"github.com/DeBrosOfficial/scenestream/pkg/metrics"
	"github.com/DeBrosOfficial/scenestream/pkg/registry"
	"github.com/DeBrosOfficial/scenestream/pkg/status"
)

// Disconnect causes, used for logs and metrics.
const (
	CauseUser      = "user"
	CauseTransport = "transport"
	CauseShutdown  = "shutdown"
)

// Default timeouts.
const (
	DefaultConnectTimeout = 5 * time.Second
	DefaultDisconnectWait = 2 * time.Second
	DefaultKeepAlive      = 15 * time.Second
)

// Resetter clears per-connection activity state on disconnect.
type Resetter interface {
	Reset()
}

// Options configures a Manager.
type Options struct {
	ConnectTimeout time.Duration
	DisconnectWait time.Duration
	KeepAlive      time.Duration
}

// DialFunc matches net.Dialer.DialContext.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Manager holds at most one Conn. Connect reserves the slot before dialling
// so concurrent connects cannot both succeed, and the slot stays reserved
// until a torn-down connection is closed and the tracker reset.
type Manager struct {
	opts     Options
	tracker  Resetter
	notifier status.Notifier
	metrics  *metrics.Metrics
	logger   *logging.ColoredLogger
	clk      clock.Clock
	dial     DialFunc

	mu      sync.Mutex
	current *Conn
	dialing bool
	closing bool
}

// ManagerOption customises a Manager.
type ManagerOption func(*Manager)

// WithDialer replaces the dial function.
func WithDialer(d DialFunc) ManagerOption {
	return func(m *Manager) { m.dial = d }
}

// WithMetrics records connection metrics.
func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) { m.clk = c }
}

// NewManager creates a manager. tracker, notifier and logger may be nil.
func NewManager(opts Options, tracker Resetter, notifier status.Notifier, logger *logging.ColoredLogger, options ...ManagerOption) *Manager {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.DisconnectWait <= 0 {
		opts.DisconnectWait = DefaultDisconnectWait
	}
	if opts.KeepAlive == 0 {
		opts.KeepAlive = DefaultKeepAlive
	}
	if notifier == nil {
		notifier = status.Nop{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	m := &Manager{
		opts:     opts,
		tracker:  tracker,
		notifier: notifier,
		logger:   logger,
		clk:      clock.New(),
	}
	for _, o := range options {
		o(m)
	}
	if m.dial == nil {
		m.dial = (&net.Dialer{KeepAlive: opts.KeepAlive}).DialContext
	}
	return m
}

// DialAddress picks the address to dial for peer: the first resolved
// address when present, else the host name.
func DialAddress(peer registry.PeerRecord) string {
	host := peer.Host
	if len(peer.Addresses) > 0 && peer.Addresses[0] != "" {
		host = peer.Addresses[0]
	}
	return net.JoinHostPort(host, strconv.Itoa(int(peer.Port)))
}

// Connect dials peer. timeout <= 0 uses the configured connect timeout. The
// deadline only covers the dial; the data phase has none.
func (m *Manager) Connect(ctx context.Context, peer registry.PeerRecord, timeout time.Duration) (*Conn, error) {
	addr := DialAddress(peer)

	m.mu.Lock()
	if m.current != nil {
		cur := m.current.addr
		m.mu.Unlock()
		return nil, serrors.NewAlreadyConnectedError(cur)
	}
	if m.dialing || m.closing {
		m.mu.Unlock()
		return nil, serrors.NewAlreadyConnectedError("")
	}
	m.dialing = true
	m.mu.Unlock()

	if timeout <= 0 {
		timeout = m.opts.ConnectTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	m.logger.ComponentInfo(logging.ComponentConnection, "Connecting",
		zap.String("peer", peer.ID),
		zap.String("addr", addr),
		zap.Duration("timeout", timeout),
	)

	nc, err := m.dial(dialCtx, "tcp", addr)
	if err == nil {
		// Dialers may leave a deadline behind; the stream must not time out.
		err = nc.SetDeadline(time.Time{})
		if err != nil {
			nc.Close()
		}
	}
	if err != nil {
		m.mu.Lock()
		m.dialing = false
		m.mu.Unlock()
		m.logger.ComponentWarn(logging.ComponentConnection, "Connect failed",
			zap.String("addr", addr),
			zap.Error(err),
		)
		m.notifier.NotifyStatus(fmt.Sprintf("Connection failed: %v", err))
		return nil, serrors.NewConnectError(addr, err)
	}

	conn := &Conn{nc: nc, peer: peer, addr: addr, connectedAt: m.clk.Now()}

	m.mu.Lock()
	m.dialing = false
	m.current = conn
	m.mu.Unlock()

	m.metrics.SetConnected(true)
	m.logger.ComponentInfo(logging.ComponentConnection, "Connected",
		zap.String("peer", peer.ID),
		zap.String("addr", addr),
	)
	m.notifier.NotifyStatus(fmt.Sprintf("Connected to %s", peer.DisplayName()))
	return conn, nil
}

// Current returns the live connection, or nil.
func (m *Manager) Current() *Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Disconnect tears down the current connection. It is a no-op when there is
// none. It must not be called from the session's own goroutine; use
// DisconnectIf from there.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	conn := m.current
	if conn == nil {
		m.mu.Unlock()
		return
	}
	m.current = nil
	m.closing = true
	m.mu.Unlock()

	m.teardown(conn, CauseUser)
}

// DisconnectIf tears down conn only if it is still the current connection.
// Stale requests, e.g. from a session whose connection was already replaced,
// are ignored.
func (m *Manager) DisconnectIf(conn *Conn, cause string) {
	m.mu.Lock()
	if conn == nil || m.current != conn {
		m.mu.Unlock()
		return
	}
	m.current = nil
	m.closing = true
	m.mu.Unlock()

	m.teardown(conn, cause)
}

// teardown releases the slot reserved by the caller once the socket is
// closed and the tracker reset.
func (m *Manager) teardown(conn *Conn, cause string) {
	defer func() {
		m.mu.Lock()
		m.closing = false
		m.mu.Unlock()
	}()

	if s := conn.ActiveSession(); s != nil {
		s.Stop()
		select {
		case <-s.Done():
		case <-m.clk.After(m.opts.DisconnectWait):
			m.logger.ComponentWarn(logging.ComponentConnection, "Stream session did not stop in time",
				zap.String("session", s.ID()),
				zap.Duration("wait", m.opts.DisconnectWait),
			)
		}
	}

	if tc, ok := conn.nc.(interface{ CloseWrite() error }); ok {
		_ = tc.CloseWrite()
	}
	if err := conn.nc.Close(); err != nil {
		m.logger.ComponentDebug(logging.ComponentConnection, "Close returned error", zap.Error(err))
	}

	if m.tracker != nil {
		m.tracker.Reset()
	}

	m.metrics.SetConnected(false)
	m.metrics.Disconnected(cause)
	m.logger.ComponentInfo(logging.ComponentConnection, "Disconnected",
		zap.String("addr", conn.addr),
		zap.String("cause", cause),
	)
	m.notifier.NotifyStatus("Disconnected.")
}
