// Package wire implements the stream framing: a 4-byte big-endian payload
// length followed by the payload. There are no acknowledgements.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
)

// HeaderSize is the length prefix size in bytes.
const HeaderSize = 4

// MaxPayload is the largest payload a header can describe.
const MaxPayload = math.MaxUint32

var (
	// ErrPayloadTooLarge is returned for payloads above MaxPayload or the reader's limit.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// EncodeHeader returns the length prefix for an n-byte payload.
func EncodeHeader(n int) ([HeaderSize]byte, error) {
	var h [HeaderSize]byte
	if n < 0 || uint64(n) > MaxPayload {
		return h, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, n)
	}
	binary.BigEndian.PutUint32(h[:], uint32(n))
	return h, nil
}

// WriteFrame writes header and payload to w. It returns io.ErrShortWrite if
// w accepted fewer bytes than the full frame without reporting an error.
func WriteFrame(w io.Writer, payload []byte) (int64, error) {
	h, err := EncodeHeader(len(payload))
	if err != nil {
		return 0, err
	}

	bufs := net.Buffers{h[:], payload}
	want := int64(HeaderSize + len(payload))
	n, err := bufs.WriteTo(w)
	if err != nil {
		return n, err
	}
	if n != want {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// ReadFrame reads one frame. Payloads larger than max are rejected before
// any payload bytes are read; max <= 0 means MaxPayload. A clean EOF before
// the header is returned as io.EOF.
func ReadFrame(r io.Reader, max int64) ([]byte, error) {
	var h [HeaderSize]byte
	if _, err := io.ReadFull(r, h[:]); err != nil {
		return nil, err
	}

	n := int64(binary.BigEndian.Uint32(h[:]))
	if max > 0 && n > max {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit %d", ErrPayloadTooLarge, n, max)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return payload, nil
}
