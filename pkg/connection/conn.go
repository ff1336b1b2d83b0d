package connection

import (
	"net"
	"sync"
	"time"

	serrors "github.com/DeBrosOfficial/scenestream/pkg/errors"
	"github.com/DeBrosOfficial/scenestream/pkg/registry"
)

// Session is the producer loop bound to a connection. Stop must be
// idempotent and non-blocking; Done is closed once the loop has exited.
type Session interface {
	ID() string
	Stop()
	Done() <-chan struct{}
}

// Conn is the single live stream socket and the peer it was dialled for.
type Conn struct {
	nc          net.Conn
	peer        registry.PeerRecord
	addr        string
	connectedAt time.Time

	mu      sync.Mutex
	session Session
}

// Peer returns the record the connection was made to.
func (c *Conn) Peer() registry.PeerRecord { return c.peer }

// Addr returns the dialled host:port.
func (c *Conn) Addr() string { return c.addr }

// ConnectedAt returns when the dial completed.
func (c *Conn) ConnectedAt() time.Time { return c.connectedAt }

// Write writes to the socket. Only the bound session writes.
func (c *Conn) Write(p []byte) (int, error) { return c.nc.Write(p) }

// Bind attaches s as the connection's only session.
func (c *Conn) Bind(s Session) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && !isDone(c.session) {
		return serrors.NewAlreadySessionActiveError(c.session.ID())
	}
	c.session = s
	return nil
}

// Unbind detaches s if it is still the bound session.
func (c *Conn) Unbind(s Session) {
	c.mu.Lock()
	if c.session == s {
		c.session = nil
	}
	c.mu.Unlock()
}

// ActiveSession returns the bound session if it is still running.
func (c *Conn) ActiveSession() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || isDone(c.session) {
		return nil
	}
	return c.session
}

func isDone(s Session) bool {
	select {
	case <-s.Done():
		return true
	default:
		return false
	}
}
