package status

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingNotifier struct {
	devices  atomic.Int32
	mu       sync.Mutex
	statuses []string
	realtime []string
}

func (c *countingNotifier) NotifyDevicesChanged() { c.devices.Add(1) }

func (c *countingNotifier) NotifyStatus(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, msg)
}

func (c *countingNotifier) NotifyRealtimeStatus(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.realtime = append(c.realtime, msg)
}

func TestDebounced_CoalescesDeviceRefreshes(t *testing.T) {
	mock := clock.NewMock()
	next := &countingNotifier{}
	d := NewDebounced(next, mock, 100*time.Millisecond)

	for i := 0; i < 10; i++ {
		d.NotifyDevicesChanged()
	}
	assert.Equal(t, int32(0), next.devices.Load())

	mock.Add(100 * time.Millisecond)
	require.Eventually(t, func() bool { return next.devices.Load() == 1 }, time.Second, time.Millisecond)

	// A new burst after delivery schedules exactly one more.
	d.NotifyDevicesChanged()
	d.NotifyDevicesChanged()
	mock.Add(100 * time.Millisecond)
	require.Eventually(t, func() bool { return next.devices.Load() == 2 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, int32(2), next.devices.Load())
}

func TestDebounced_PassesStatusThrough(t *testing.T) {
	next := &countingNotifier{}
	d := NewDebounced(next, clock.NewMock(), 0)

	d.NotifyStatus("Connected")
	d.NotifyRealtimeStatus("Streaming...")

	assert.Equal(t, []string{"Connected"}, next.statuses)
	assert.Equal(t, []string{"Streaming..."}, next.realtime)
}

func TestHub_LatestAndFanOut(t *testing.T) {
	mock := clock.NewMock()
	hub := NewHub(mock)

	events, cancel := hub.Subscribe(4)
	defer cancel()

	hub.NotifyStatus("Connected to Studio")
	hub.NotifyRealtimeStatus("Sent 1.00 KB. FPS: 30")
	hub.NotifyDevicesChanged()

	latest := hub.Latest()
	assert.Equal(t, "Connected to Studio", latest.Status)
	assert.Equal(t, "Sent 1.00 KB. FPS: 30", latest.RealtimeStatus)
	assert.Equal(t, uint64(1), latest.DevicesVersion)
	assert.Equal(t, mock.Now(), latest.UpdatedAt)

	kinds := []Kind{}
	for i := 0; i < 3; i++ {
		ev := <-events
		require.NotEmpty(t, ev.ID)
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []Kind{KindStatus, KindRealtime, KindDevices}, kinds)
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub(clock.NewMock())
	_, cancel := hub.Subscribe(1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			hub.NotifyRealtimeStatus("tick")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publisher blocked on a full subscriber")
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	hub := NewHub(nil)
	events, cancel := hub.Subscribe(1)
	cancel()
	cancel()

	_, ok := <-events
	assert.False(t, ok)

	// Publishing after cancel must not panic on the closed channel.
	hub.NotifyStatus("after")
}

func TestMulti_FansOut(t *testing.T) {
	a, b := &countingNotifier{}, &countingNotifier{}
	m := Multi{a, b}

	m.NotifyDevicesChanged()
	m.NotifyStatus("Disconnected.")
	m.NotifyRealtimeStatus("Streaming stopped.")

	for _, n := range []*countingNotifier{a, b} {
		assert.Equal(t, int32(1), n.devices.Load())
		assert.Equal(t, []string{"Disconnected."}, n.statuses)
		assert.Equal(t, []string{"Streaming stopped."}, n.realtime)
	}
}
