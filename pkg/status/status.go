// Package status carries user-visible notifications out of the streamer.
//
// Every call on a Notifier is fire-and-forget: implementations must not block
// the caller, which may be a discovery pump or the stream loop.
package status

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Notifier receives UI hooks.
type Notifier interface {
	// NotifyDevicesChanged signals that the device list should be re-read.
	NotifyDevicesChanged()
	// NotifyStatus publishes a coarse status line ("Connected to ...").
	NotifyStatus(msg string)
	// NotifyRealtimeStatus publishes a per-cycle stream status line.
	NotifyRealtimeStatus(msg string)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) NotifyDevicesChanged()       {}
func (Nop) NotifyStatus(string)         {}
func (Nop) NotifyRealtimeStatus(string) {}

// DefaultDebounce is the delay before a devices refresh is delivered.
const DefaultDebounce = 100 * time.Millisecond

// Debounced coalesces NotifyDevicesChanged calls: at most one refresh is
// pending at a time. Status messages pass straight through.
type Debounced struct {
	next  Notifier
	clk   clock.Clock
	delay time.Duration

	mu      sync.Mutex
	pending bool
}

// NewDebounced wraps next. A nil clock uses the wall clock.
func NewDebounced(next Notifier, clk clock.Clock, delay time.Duration) *Debounced {
	if next == nil {
		next = Nop{}
	}
	if clk == nil {
		clk = clock.New()
	}
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debounced{next: next, clk: clk, delay: delay}
}

func (d *Debounced) NotifyDevicesChanged() {
	d.mu.Lock()
	if d.pending {
		d.mu.Unlock()
		return
	}
	d.pending = true
	d.mu.Unlock()

	d.clk.AfterFunc(d.delay, func() {
		d.mu.Lock()
		d.pending = false
		d.mu.Unlock()
		d.next.NotifyDevicesChanged()
	})
}

func (d *Debounced) NotifyStatus(msg string) { d.next.NotifyStatus(msg) }

func (d *Debounced) NotifyRealtimeStatus(msg string) { d.next.NotifyRealtimeStatus(msg) }

// Multi fans every notification out to each notifier in order.
type Multi []Notifier

func (m Multi) NotifyDevicesChanged() {
	for _, n := range m {
		n.NotifyDevicesChanged()
	}
}

func (m Multi) NotifyStatus(msg string) {
	for _, n := range m {
		n.NotifyStatus(msg)
	}
}

func (m Multi) NotifyRealtimeStatus(msg string) {
	for _, n := range m {
		n.NotifyRealtimeStatus(msg)
	}
}
