// Package receiver is the headset side of the stream: it accepts TCP
// connections, reads length-prefixed frames and advertises itself over
// DNS-SD. It lets the streamer be exercised without the headset app.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/libp2p/zeroconf/v2"
	"go.uber.org/zap"

	"github.com/DeBrosOfficial/scenestream/pkg/config"
	serrors "github.com/DeBrosOfficial/scenestream/pkg/errors"
	"github.com/DeBrosOfficial/scenestream/pkg/logging"
	"github.com/DeBrosOfficial/scenestream/pkg/wire"
)

const (
	// DefaultMaxPayload matches the default stream.max_payload_bytes.
	DefaultMaxPayload = 256 << 20
	DefaultInstance   = "scenestream-receiver"
	shutdownWait      = 5 * time.Second
)

// Handler consumes one frame. Returning an error closes the connection.
type Handler interface {
	HandleFrame(remote net.Addr, payload []byte) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(remote net.Addr, payload []byte) error

func (f HandlerFunc) HandleFrame(remote net.Addr, payload []byte) error { return f(remote, payload) }

// Options configures a Receiver.
type Options struct {
	ListenAddr string
	MaxPayload int64

	// Advertise registers the listener over mDNS as Instance.ServiceType.Domain.
	Advertise   bool
	Instance    string
	ServiceType string
	Domain      string
	Text        []string

	Logger *logging.ColoredLogger
}

// Receiver accepts stream connections.
type Receiver struct {
	opts    Options
	handler Handler
	logger  *logging.ColoredLogger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	server   *zeroconf.Server
	running  bool
	stopped  bool
	closing  chan struct{}
	wg       sync.WaitGroup

	frames atomic.Uint64
	bytes  atomic.Uint64
}

// New creates a Receiver that hands frames to h.
func New(opts Options, h Handler) *Receiver {
	if opts.MaxPayload <= 0 {
		opts.MaxPayload = DefaultMaxPayload
	}
	if opts.Instance == "" {
		opts.Instance = DefaultInstance
	}
	if opts.ServiceType == "" {
		opts.ServiceType = config.DefaultServiceType
	}
	if opts.Domain == "" {
		opts.Domain = config.DefaultDomain
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	return &Receiver{
		opts:    opts,
		handler: h,
		logger:  opts.Logger,
		conns:   make(map[net.Conn]struct{}),
		closing: make(chan struct{}),
	}
}

// Frames returns how many frames have been received.
func (r *Receiver) Frames() uint64 { return r.frames.Load() }

// Bytes returns the total payload bytes received.
func (r *Receiver) Bytes() uint64 { return r.bytes.Load() }

// Addr returns the listening address, or nil before Start.
func (r *Receiver) Addr() net.Addr {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listener == nil {
		return nil
	}
	return r.listener.Addr()
}

// Start listens on ListenAddr and serves until ctx is done.
func (r *Receiver) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", r.opts.ListenAddr)
	if err != nil {
		return serrors.Wrapf(err, "failed to listen on %s", r.opts.ListenAddr)
	}
	return r.Serve(ctx, listener)
}

// Serve accepts on listener until ctx is done or Stop is called. A
// Receiver serves once.
func (r *Receiver) Serve(ctx context.Context, listener net.Listener) error {
	r.mu.Lock()
	if r.running || r.stopped {
		r.mu.Unlock()
		listener.Close()
		return serrors.NewAlreadyRunningError("receiver")
	}
	r.listener = listener
	r.running = true
	r.mu.Unlock()

	if r.opts.Advertise {
		if err := r.advertise(listener.Addr()); err != nil {
			r.logger.ComponentWarn(logging.ComponentReceiver, "mDNS advertisement failed", zap.Error(err))
		}
	}

	r.logger.ComponentInfo(logging.ComponentReceiver, "Receiver listening",
		zap.String("addr", listener.Addr().String()),
		zap.Int64("max_payload", r.opts.MaxPayload),
	)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-r.closing:
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				r.logger.ComponentError(logging.ComponentReceiver, "Accept error", zap.Error(err))
				continue
			}
			if !r.track(conn) {
				conn.Close()
				return
			}
			r.wg.Add(1)
			go func(c net.Conn) {
				defer r.wg.Done()
				defer r.untrack(c)
				r.handleConnection(c)
			}(conn)
		}
	}()

	select {
	case <-ctx.Done():
	case <-r.closing:
	}
	return r.Stop()
}

func (r *Receiver) advertise(addr net.Addr) error {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return fmt.Errorf("unexpected listener address %T", addr)
	}
	server, err := zeroconf.Register(
		r.opts.Instance,
		strings.TrimSuffix(r.opts.ServiceType, "."),
		r.opts.Domain,
		tcp.Port,
		r.opts.Text,
		nil,
	)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.server = server
	r.mu.Unlock()

	r.logger.ComponentInfo(logging.ComponentReceiver, "Advertising over mDNS",
		zap.String("instance", r.opts.Instance),
		zap.String("service", r.opts.ServiceType),
		zap.Int("port", tcp.Port),
	)
	return nil
}

func (r *Receiver) track(c net.Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return false
	}
	r.conns[c] = struct{}{}
	return true
}

func (r *Receiver) untrack(c net.Conn) {
	r.mu.Lock()
	delete(r.conns, c)
	r.mu.Unlock()
	c.Close()
}

func (r *Receiver) handleConnection(conn net.Conn) {
	remote := conn.RemoteAddr()
	r.logger.ComponentInfo(logging.ComponentReceiver, "Streamer connected", zap.String("remote", remote.String()))

	for {
		payload, err := wire.ReadFrame(conn, r.opts.MaxPayload)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
				r.logger.ComponentInfo(logging.ComponentReceiver, "Streamer disconnected", zap.String("remote", remote.String()))
			default:
				r.logger.ComponentWarn(logging.ComponentReceiver, "Frame read failed",
					zap.String("remote", remote.String()),
					zap.Error(err),
				)
			}
			return
		}

		r.frames.Add(1)
		r.bytes.Add(uint64(len(payload)))
		if r.handler == nil {
			continue
		}
		if err := r.handler.HandleFrame(remote, payload); err != nil {
			r.logger.ComponentWarn(logging.ComponentReceiver, "Frame handler failed, closing connection",
				zap.String("remote", remote.String()),
				zap.Error(err),
			)
			return
		}
	}
}

// Stop closes the listener and every open connection, withdraws the mDNS
// advertisement and waits a bounded time for handlers to return.
func (r *Receiver) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.stopped = true
	close(r.closing)
	listener, server := r.listener, r.server
	r.server = nil
	for c := range r.conns {
		c.Close()
	}
	r.mu.Unlock()

	if server != nil {
		server.Shutdown()
	}
	err := listener.Close()
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}

	done := make(chan struct{})
	go func() { r.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(shutdownWait):
		r.logger.ComponentWarn(logging.ComponentReceiver, "Shutdown timeout")
	}

	r.logger.ComponentInfo(logging.ComponentReceiver, "Receiver stopped",
		zap.Uint64("frames", r.frames.Load()),
		zap.Uint64("bytes", r.bytes.Load()),
	)
	return err
}
