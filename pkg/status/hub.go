package status

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

// Kind names an event published by the Hub.
type Kind string

const (
	KindDevices  Kind = "devices"
	KindStatus   Kind = "status"
	KindRealtime Kind = "realtime"
)

// Event is one notification as seen by subscribers.
type Event struct {
	ID      string    `json:"id"`
	Kind    Kind      `json:"kind"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// Snapshot is the latest state kept by the Hub.
type Snapshot struct {
	Status         string    `json:"status"`
	RealtimeStatus string    `json:"realtime_status"`
	DevicesVersion uint64    `json:"devices_version"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Hub is a Notifier that remembers the latest messages and fans events out
// to subscribers. A slow subscriber loses events rather than stalling the
// publisher.
type Hub struct {
	clk clock.Clock

	mu     sync.RWMutex
	latest Snapshot
	subs   map[chan Event]struct{}
}

// NewHub creates an empty hub. A nil clock uses the wall clock.
func NewHub(clk clock.Clock) *Hub {
	if clk == nil {
		clk = clock.New()
	}
	return &Hub{clk: clk, subs: make(map[chan Event]struct{})}
}

// Subscribe registers a subscriber with the given buffer. The returned
// cancel func unregisters it and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Latest returns a copy of the current snapshot.
func (h *Hub) Latest() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.latest
}

func (h *Hub) NotifyDevicesChanged() {
	h.publish(KindDevices, "", func(s *Snapshot) { s.DevicesVersion++ })
}

func (h *Hub) NotifyStatus(msg string) {
	h.publish(KindStatus, msg, func(s *Snapshot) { s.Status = msg })
}

func (h *Hub) NotifyRealtimeStatus(msg string) {
	h.publish(KindRealtime, msg, func(s *Snapshot) { s.RealtimeStatus = msg })
}

func (h *Hub) publish(kind Kind, msg string, apply func(*Snapshot)) {
	now := h.clk.Now()
	ev := Event{ID: uuid.NewString(), Kind: kind, Message: msg, Time: now}

	h.mu.Lock()
	defer h.mu.Unlock()
	apply(&h.latest)
	h.latest.UpdatedAt = now
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
