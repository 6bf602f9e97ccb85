// Package frame moves whole length-prefixed frames over a byte stream.
// It is the only place partial reads and writes are handled; every layer
// above it sees complete frames.
package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/tylerwon/go-chat-rooms/internal/proto"
)

// ErrFrameTooLarge is returned when the length prefix exceeds the largest
// well-formed frame. A peer sending this is not speaking the protocol.
var ErrFrameTooLarge = errors.New("frame: declared length too large")

// ErrFrameTooShort is returned when the length prefix cannot even cover the
// prefix and type tag.
var ErrFrameTooShort = errors.New("frame: declared length too short")

// Read blocks until one complete frame (including its length prefix) has
// arrived and returns it. A clean peer close before or inside a frame is
// reported as io.EOF; other failures surface as the underlying I/O error.
func Read(r io.Reader) ([]byte, error) {
	var hdr [proto.PrefixSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	total := binary.BigEndian.Uint32(hdr[:])
	if total < proto.HeaderSize {
		return nil, fmt.Errorf("%w (%d)", ErrFrameTooShort, total)
	}
	if total > proto.MaxFrameSize {
		return nil, fmt.Errorf("%w (%d)", ErrFrameTooLarge, total)
	}
	buf := make([]byte, total)
	copy(buf, hdr[:])
	if _, err := io.ReadFull(r, buf[proto.PrefixSize:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return buf, nil
}

// Write sends the whole frame. io.Writer already promises an error whenever
// fewer than len(b) bytes were written, so no retry loop is needed here.
func Write(w io.Writer, b []byte) error {
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("frame write: %w", err)
	}
	return nil
}
