package wire

import (
	"bytes"
	"errors"
	"io"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	for _, size := range []int{0, 1, 65536, 5000000} {
		payload := make([]byte, size)
		rand.New(rand.NewSource(int64(size))).Read(payload)

		var buf bytes.Buffer
		n, err := WriteFrame(&buf, payload)
		require.NoError(t, err)
		require.Equal(t, int64(HeaderSize+size), n)

		raw := buf.Bytes()
		require.Len(t, raw, HeaderSize+size)
		assert.Equal(t, byte(size>>24), raw[0])
		assert.Equal(t, byte(size>>16), raw[1])
		assert.Equal(t, byte(size>>8), raw[2])
		assert.Equal(t, byte(size), raw[3])

		got, err := ReadFrame(&buf, 0)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(payload, got), "payload of %d bytes changed in transit", size)
	}
}

func TestEncodeHeader(t *testing.T) {
	h, err := EncodeHeader(0x01020304)
	require.NoError(t, err)
	assert.Equal(t, [4]byte{1, 2, 3, 4}, h)

	_, err = EncodeHeader(-1)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestReadFrame_BackToBack(t *testing.T) {
	var buf bytes.Buffer
	for _, p := range [][]byte{[]byte("first"), {}, []byte("third")} {
		_, err := WriteFrame(&buf, p)
		require.NoError(t, err)
	}

	for _, want := range []string{"first", "", "third"} {
		got, err := ReadFrame(&buf, 0)
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}

	_, err := ReadFrame(&buf, 0)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrame_LimitAndTruncation(t *testing.T) {
	var buf bytes.Buffer
	_, err := WriteFrame(&buf, make([]byte, 100))
	require.NoError(t, err)

	_, err = ReadFrame(bytes.NewReader(buf.Bytes()), 99)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)

	_, err = ReadFrame(bytes.NewReader(buf.Bytes()[:50]), 0)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, err = ReadFrame(bytes.NewReader(buf.Bytes()[:2]), 0)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

type shortWriter struct{ limit int }

func (s *shortWriter) Write(p []byte) (int, error) {
	if len(p) > s.limit {
		n := s.limit
		s.limit = 0
		return n, nil
	}
	s.limit -= len(p)
	return len(p), nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("connection reset by peer") }

func TestWriteFrame_ShortAndFailedWrites(t *testing.T) {
	_, err := WriteFrame(&shortWriter{limit: 6}, []byte("payload"))
	assert.ErrorIs(t, err, io.ErrShortWrite)

	_, err = WriteFrame(failingWriter{}, []byte("payload"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reset")
}
