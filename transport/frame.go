package transport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize is the sanity ceiling on a declared frame length. A peer
// declaring more is treated as malformed and its connection is closed.
const MaxFrameSize = 8 * 1024 * 1024

// ErrFrameTooLarge reports a declared length above MaxFrameSize.
type ErrFrameTooLarge struct {
	Declared uint32
}

func (e ErrFrameTooLarge) Error() string {
	return fmt.Sprintf("transport: frame of %d bytes exceeds ceiling %d", e.Declared, MaxFrameSize)
}

// WriteFrame writes a 4-byte big-endian length prefix followed by payload.
// The prefix and payload go out in one write so a frame is never interleaved
// with another writer's bytes on the same connection.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge{Declared: uint32(len(payload))}
	}
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf[:4], uint32(len(payload)))
	copy(buf[4:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one length-prefixed frame. It reads exactly the declared
// number of bytes before returning, so partial delivery over a stream is
// reassembled here. The ceiling is checked before any payload read.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge{Declared: n}
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
