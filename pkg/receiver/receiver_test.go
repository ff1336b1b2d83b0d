package receiver

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/DeBrosOfficial/scenestream/pkg/errors"
	"github.com/DeBrosOfficial/scenestream/pkg/wire"
)

func startReceiver(t *testing.T, opts Options, h Handler) (*Receiver, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	r := New(opts, h)
	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- r.Serve(ctx, ln) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-served:
		case <-time.After(5 * time.Second):
			t.Error("receiver did not stop")
		}
	})

	require.Eventually(t, func() bool { return r.Addr() != nil }, time.Second, 5*time.Millisecond)
	return r, ln.Addr().String()
}

func TestReceiver_DeliversFrames(t *testing.T) {
	got := make(chan []byte, 4)
	r, addr := startReceiver(t, Options{}, HandlerFunc(func(_ net.Addr, p []byte) error {
		got <- p
		return nil
	}))

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	for _, payload := range [][]byte{{}, []byte("a"), make([]byte, 65536)} {
		_, err := wire.WriteFrame(conn, payload)
		require.NoError(t, err)
	}

	for _, want := range []int{0, 1, 65536} {
		select {
		case p := <-got:
			assert.Len(t, p, want)
		case <-time.After(2 * time.Second):
			t.Fatalf("frame of %d bytes not delivered", want)
		}
	}
	assert.Equal(t, uint64(3), r.Frames())
	assert.Equal(t, uint64(65537), r.Bytes())
}

func TestReceiver_OversizedFrameClosesConnection(t *testing.T) {
	r, addr := startReceiver(t, Options{MaxPayload: 8}, nil)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = wire.WriteFrame(conn, make([]byte, 9))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	// The unread payload makes the close show up as EOF or a reset.
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)
	assert.Zero(t, r.Frames())
}

func TestReceiver_HandlerErrorClosesConnection(t *testing.T) {
	_, addr := startReceiver(t, Options{}, HandlerFunc(func(net.Addr, []byte) error {
		return errors.New("reject")
	}))

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = wire.WriteFrame(conn, []byte("scene"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestReceiver_StopClosesOpenConnections(t *testing.T) {
	r, addr := startReceiver(t, Options{}, nil)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	_, err = wire.WriteFrame(conn, []byte("x"))
	require.NoError(t, err)
	require.Eventually(t, func() bool { return r.Frames() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, r.Stop())
	require.NoError(t, r.Stop())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)

	_, err = net.DialTimeout("tcp", addr, 200*time.Millisecond)
	assert.Error(t, err)
}

func TestReceiver_ServesOnce(t *testing.T) {
	r, _ := startReceiver(t, Options{}, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	err = r.Serve(context.Background(), ln)
	assert.True(t, serrors.IsAlreadyRunning(err))
}

func TestReceiver_ListenFailureKeepsCause(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	r := New(Options{ListenAddr: taken.Addr().String()}, nil)
	err = r.Start(context.Background())
	require.Error(t, err)
	assert.True(t, serrors.IsInternal(err))
	assert.Contains(t, err.Error(), "failed to listen on "+taken.Addr().String())
}

func TestNew_Defaults(t *testing.T) {
	r := New(Options{}, nil)
	assert.Equal(t, int64(DefaultMaxPayload), r.opts.MaxPayload)
	assert.Equal(t, DefaultInstance, r.opts.Instance)
	assert.Equal(t, "_visionpro_blender._tcp", r.opts.ServiceType)
	assert.Equal(t, "local.", r.opts.Domain)
	assert.Nil(t, r.Addr())
}
