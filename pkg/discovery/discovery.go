// Package discovery browses the local network for stream receivers and
// keeps the registry in sync with what is advertised.
package discovery

import (
	"context"
	"fmt"
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

// State of the controller.
type State int

const (
	Idle State = iota
	Discovering
)

func (s State) String() string {
	if s == Discovering {
		return "discovering"
	}
	return "idle"
}

const (
	eventBuffer = 64
	stopWait    = 2 * time.Second
)

// Controller runs at most one discovery session and feeds the registry.
type Controller struct {
	factory  Factory
	registry *registry.Registry
	notifier status.Notifier
	metrics  *metrics.Metrics
	logger   *logging.ColoredLogger
	clk      clock.Clock

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	wg      *sync.WaitGroup
	session uint64
}

// ControllerOption customises a Controller.
type ControllerOption func(*Controller)

// WithClock replaces the wall clock used for the bounded stop wait.
func WithClock(clk clock.Clock) ControllerOption {
	return func(c *Controller) { c.clk = clk }
}

// NewController creates an idle controller.
func NewController(factory Factory, reg *registry.Registry, notifier status.Notifier, m *metrics.Metrics, logger *logging.ColoredLogger, options ...ControllerOption) *Controller {
	if notifier == nil {
		notifier = status.Nop{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	c := &Controller{
		factory:  factory,
		registry: reg,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		clk:      clock.New(),
	}
	for _, o := range options {
		o(c)
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start clears the registry and begins browsing for serviceType in domain.
// The session lasts until Stop or until ctx is done.
func (c *Controller) Start(ctx context.Context, serviceType, domain string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Discovering {
		return serrors.NewAlreadyRunningError("discovery")
	}
	if c.factory == nil {
		return serrors.NewDiscoveryUnavailableError("", fmt.Errorf("no backend configured"))
	}

	backend, err := c.factory()
	if err != nil {
		c.logger.ComponentWarn(logging.ComponentDiscovery, "Discovery backend unavailable", zap.Error(err))
		return serrors.NewDiscoveryUnavailableError("mdns", err)
	}

	c.registry.Clear()
	c.metrics.SetDevices(0)

	sessCtx, cancel := context.WithCancel(ctx)
	wg := &sync.WaitGroup{}
	c.session++
	id := c.session
	c.state = Discovering
	c.cancel = cancel
	c.wg = wg

	events := make(chan Event, eventBuffer)
	pumped := make(chan struct{})
	wg.Add(2)
	go c.browse(sessCtx, id, wg, backend, serviceType, domain, events, pumped)
	go c.pump(sessCtx, wg, backend, events, pumped)

	c.logger.ComponentInfo(logging.ComponentDiscovery, "Discovery started",
		zap.String("service", serviceType),
		zap.String("domain", domain),
	)
	c.notifier.NotifyStatus("Searching for devices...")
	return nil
}

// Stop ends the session and clears the registry. Stop while idle is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == Idle {
		c.mu.Unlock()
		return
	}
	c.state = Idle
	cancel, wg := c.cancel, c.wg
	c.cancel, c.wg = nil, nil
	c.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-c.clk.After(stopWait):
		c.logger.ComponentDebug(logging.ComponentDiscovery, "Discovery goroutines still exiting after stop")
	}

	c.registry.Clear()
	c.metrics.SetDevices(0)
	c.logger.ComponentInfo(logging.ComponentDiscovery, "Discovery stopped")
	c.notifier.NotifyStatus("Discovery stopped.")
}

func (c *Controller) browse(ctx context.Context, id uint64, wg *sync.WaitGroup, b Backend, serviceType, domain string, events chan<- Event, pumped <-chan struct{}) {
	defer wg.Done()

	err := b.Browse(ctx, serviceType, domain, events)
	close(events)
	if ctx.Err() != nil {
		return
	}

	// The backend gave up on its own: fall back to idle so Start works again.
	c.logger.ComponentWarn(logging.ComponentDiscovery, "Browse ended unexpectedly", zap.Error(err))
	c.notifier.NotifyStatus(fmt.Sprintf("Discovery error: %v", err))
	c.mu.Lock()
	owned := c.session == id && c.state == Discovering
	if owned {
		c.state = Idle
		c.cancel()
		c.cancel, c.wg = nil, nil
	}
	c.mu.Unlock()
	if !owned {
		return
	}

	// Nothing refreshes the devices any more; drop them once the pump is done.
	<-pumped
	c.mu.Lock()
	if c.session == id {
		c.registry.Clear()
		c.metrics.SetDevices(0)
	}
	c.mu.Unlock()
}

func (c *Controller) pump(ctx context.Context, wg *sync.WaitGroup, b Backend, events <-chan Event, pumped chan<- struct{}) {
	defer wg.Done()
	defer close(pumped)

	for ev := range events {
		if ctx.Err() != nil {
			continue
		}
		switch ev.Kind {
		case Added, Updated:
			rec, err := b.Resolve(ctx, ev.Name)
			if err != nil {
				c.logger.ComponentDebug(logging.ComponentDiscovery, "Resolve failed",
					zap.String("name", ev.Name),
					zap.Error(err),
				)
				continue
			}
			c.registry.Upsert(rec)
			c.logger.ComponentDebug(logging.ComponentDiscovery, "Service "+ev.Kind.String(),
				zap.String("name", rec.ID),
				zap.String("host", rec.Host),
				zap.Uint16("port", rec.Port),
				zap.Strings("addresses", rec.Addresses),
			)
		case Removed:
			c.registry.Remove(ev.Name)
			c.logger.ComponentDebug(logging.ComponentDiscovery, "Service removed", zap.String("name", ev.Name))
		}
		c.metrics.SetDevices(c.registry.Len())
	}
}
