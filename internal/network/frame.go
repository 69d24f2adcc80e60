package network

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// maxMessageSize is the maximum allowed message size (16 MB).
	// A full batch of results is well below this.
	maxMessageSize = 16 << 20

	// lengthPrefixSize is the size of the length prefix in bytes.
	lengthPrefixSize = 4
)

// writeFrame writes a length-prefixed message in a single Write call.
// Format: [4 bytes big-endian length] [payload]
func writeFrame(w io.Writer, data []byte) error {
	if len(data) > maxMessageSize {
		return fmt.Errorf("message too large: %d > %d", len(data), maxMessageSize)
	}

	buf := make([]byte, lengthPrefixSize+len(data))
	binary.BigEndian.PutUint32(buf[:lengthPrefixSize], uint32(len(data)))
	copy(buf[lengthPrefixSize:], data)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}

	return nil
}

// readFrame reads a length-prefixed message.
func readFrame(r io.Reader) ([]byte, error) {
	var lengthBuf [lengthPrefixSize]byte

	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return nil, fmt.Errorf("read length: %w", err)
	}

	length := binary.BigEndian.Uint32(lengthBuf[:])

	if length > maxMessageSize {
		return nil, fmt.Errorf("message too large: %d > %d", length, maxMessageSize)
	}

	data := make([]byte, length)

	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}

	return data, nil
}
