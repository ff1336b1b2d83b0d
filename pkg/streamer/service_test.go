package streamer

import (
	"context"
	"errors"
	"net"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DeBrosOfficial/scenestream/pkg/config"
	"github.com/DeBrosOfficial/scenestream/pkg/discovery"
	serrors "github.com/DeBrosOfficial/scenestream/pkg/errors"
	"github.com/DeBrosOfficial/scenestream/pkg/registry"
	"github.com/DeBrosOfficial/scenestream/pkg/stream"
	"github.com/DeBrosOfficial/scenestream/pkg/wire"
)

type staticBackend struct {
	mu      sync.Mutex
	records map[string]registry.PeerRecord
}

func (b *staticBackend) Browse(ctx context.Context, _, _ string, events chan<- discovery.Event) error {
	b.mu.Lock()
	names := make([]string, 0, len(b.records))
	for name := range b.records {
		names = append(names, name)
	}
	b.mu.Unlock()

	for _, name := range names {
		select {
		case events <- discovery.Event{Kind: discovery.Added, Name: name}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (b *staticBackend) Resolve(_ context.Context, name string) (registry.PeerRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.records[name]
	if !ok {
		return registry.PeerRecord{}, serrors.NewNotFoundError("service", name)
	}
	return rec, nil
}

type messages struct {
	mu       sync.Mutex
	statuses []string
	devices  int
}

func (m *messages) NotifyDevicesChanged() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.devices++
}

func (m *messages) NotifyStatus(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses = append(m.statuses, msg)
}

func (m *messages) NotifyRealtimeStatus(string) {}

func (m *messages) saw(prefix string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.statuses {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

func headset(t *testing.T) (registry.PeerRecord, <-chan net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	accepted := make(chan net.Conn, 4)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			accepted <- c
		}
	}()

	return registry.PeerRecord{
		ID:        "Vision Pro._visionpro_blender._tcp.local.",
		Host:      "vision-pro.local.",
		Port:      uint16(ln.Addr().(*net.TCPAddr).Port),
		Addresses: []string{"127.0.0.1"},
	}, accepted
}

func writeScene(payload string) stream.ExportFunc {
	return func(path string) error {
		return os.WriteFile(path, []byte(payload), 0o600)
	}
}

func newService(t *testing.T, backend discovery.Backend, extra *messages) *Service {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Stream.ScratchDir = t.TempDir()
	cfg.Stream.TargetFPS = 60

	opts := Options{
		Config: cfg,
		Export: writeScene("scene"),
		DiscoveryFactory: func() (discovery.Backend, error) {
			if backend == nil {
				return nil, errors.New("no multicast")
			}
			return backend, nil
		},
	}
	if extra != nil {
		opts.Notifier = extra
	}
	svc, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestNew_RequiresExport(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	assert.True(t, serrors.IsValidation(err))
}

func TestService_DiscoverConnectStream(t *testing.T) {
	peer, accepted := headset(t)
	backend := &staticBackend{records: map[string]registry.PeerRecord{peer.ID: peer}}
	extra := &messages{}
	svc := newService(t, backend, extra)

	require.NoError(t, svc.StartDiscovery())
	require.Eventually(t, func() bool { return len(svc.Devices()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Vision Pro", svc.Devices()[0].DisplayName())

	require.NoError(t, svc.Connect(context.Background(), peer.ID))
	var server net.Conn
	select {
	case server = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("headset never accepted")
	}
	defer server.Close()

	require.NoError(t, svc.StartStreaming())

	require.NoError(t, server.SetReadDeadline(time.Now().Add(5*time.Second)))
	payload, err := wire.ReadFrame(server, 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "scene", string(payload))

	st := svc.Status()
	assert.Equal(t, "discovering", st.Discovery)
	assert.Equal(t, 1, st.Devices)
	assert.True(t, st.Connected)
	assert.Equal(t, "Vision Pro", st.Peer)
	assert.True(t, st.Streaming)
	assert.NotEmpty(t, st.SessionID)
	assert.Eventually(t, func() bool { return svc.Status().FramesSent > 0 }, time.Second, 10*time.Millisecond)

	err = svc.StartStreaming()
	assert.True(t, serrors.IsSessionActive(err))

	svc.StopStreaming()
	assert.False(t, svc.Status().Streaming)

	svc.Disconnect()
	assert.False(t, svc.Status().Connected)
	assert.True(t, extra.saw("Connected to Vision Pro"))
	assert.True(t, extra.saw("Disconnected."))
	assert.Eventually(t, func() bool {
		extra.mu.Lock()
		defer extra.mu.Unlock()
		return extra.devices > 0
	}, time.Second, 10*time.Millisecond)
}

func TestService_ConnectUnknownDevice(t *testing.T) {
	svc := newService(t, &staticBackend{}, nil)

	err := svc.Connect(context.Background(), "gone._visionpro_blender._tcp.local.")
	require.Error(t, err)
	assert.True(t, serrors.IsNotFound(err))
}

func TestService_StartStreamingWithoutConnection(t *testing.T) {
	svc := newService(t, &staticBackend{}, nil)

	err := svc.StartStreaming()
	require.Error(t, err)
	assert.True(t, serrors.IsNotConnected(err))
	assert.ErrorIs(t, err, serrors.ErrNotConnected)
}

func TestService_DiscoveryUnavailable(t *testing.T) {
	svc := newService(t, nil, nil)

	err := svc.StartDiscovery()
	require.Error(t, err)
	assert.True(t, serrors.IsDiscoveryUnavailable(err))
	assert.Equal(t, discovery.Idle, svc.DiscoveryState())
}

func TestService_DiscoveryTwice(t *testing.T) {
	svc := newService(t, &staticBackend{}, nil)

	require.NoError(t, svc.StartDiscovery())
	err := svc.StartDiscovery()
	assert.True(t, serrors.IsAlreadyRunning(err))

	svc.StopDiscovery()
	assert.Equal(t, discovery.Idle, svc.DiscoveryState())
	svc.StopDiscovery()
}

func TestService_UpdateSettingsClamps(t *testing.T) {
	svc := newService(t, &staticBackend{}, nil)

	got := svc.UpdateSettings(stream.Settings{TargetFPS: 500, InactivityThreshold: time.Millisecond})
	assert.Equal(t, stream.MaxFPS, got.TargetFPS)
	assert.Equal(t, stream.MinThreshold, got.InactivityThreshold)
	assert.Equal(t, got, svc.Settings())
	assert.Equal(t, got, svc.Status().Settings)
}

func TestService_HubSeesStatus(t *testing.T) {
	svc := newService(t, &staticBackend{}, nil)
	events, cancel := svc.Hub().Subscribe(8)
	defer cancel()

	require.NoError(t, svc.StartDiscovery())

	select {
	case ev := <-events:
		assert.Equal(t, "Searching for devices...", ev.Message)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	assert.Equal(t, "Searching for devices...", svc.Status().Message)
}

func TestService_CloseTearsDownConnection(t *testing.T) {
	peer, accepted := headset(t)
	backend := &staticBackend{records: map[string]registry.PeerRecord{peer.ID: peer}}
	svc := newService(t, backend, nil)

	require.NoError(t, svc.StartDiscovery())
	require.Eventually(t, func() bool { return len(svc.Devices()) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, svc.Connect(context.Background(), peer.ID))
	server := <-accepted
	defer server.Close()
	require.NoError(t, svc.StartStreaming())

	require.NoError(t, svc.Close())
	require.NoError(t, svc.Close())

	st := svc.Status()
	assert.False(t, st.Connected)
	assert.False(t, st.Streaming)
	assert.Equal(t, "idle", st.Discovery)
	assert.Empty(t, svc.Devices())
}
