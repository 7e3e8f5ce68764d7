// Package sirf builds the binary messages the monitor sends to the GPS module.
//
// A SiRF binary frame is:
//
//	A0 A2 | len (15 bit, big endian) | payload | checksum (15 bit, big endian) | B0 B3
//
// The checksum is the sum of the payload bytes truncated to 15 bits.
package sirf

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	start0 = 0xa0
	start1 = 0xa2
	end0   = 0xb0
	end1   = 0xb3

	// Overhead is the framing around a payload: start, length, checksum, end.
	Overhead = 8

	// MaxRawTx is the largest RAW_TX trailer the monitor accepts, framing included.
	MaxRawTx = 64

	maxPayload = 0x7fff
)

var ErrShortFrame = errors.New("sirf: short frame")

// Checksum is the 15-bit sum of the payload.
func Checksum(payload []byte) uint16 {
	var sum uint16
	for _, b := range payload {
		sum += uint16(b)
	}
	return sum & 0x7fff
}

// Frame wraps payload into a complete SiRF binary frame.
func Frame(payload []byte) []byte {
	if len(payload) > maxPayload {
		payload = payload[:maxPayload]
	}
	out := make([]byte, 0, len(payload)+Overhead)
	out = append(out, start0, start1)
	out = binary.BigEndian.AppendUint16(out, uint16(len(payload))&0x7fff)
	out = append(out, payload...)
	out = binary.BigEndian.AppendUint16(out, Checksum(payload))
	return append(out, end0, end1)
}

// Payload validates a frame and returns its payload.
func Payload(frame []byte) ([]byte, error) {
	if len(frame) < Overhead {
		return nil, ErrShortFrame
	}
	if frame[0] != start0 || frame[1] != start1 {
		return nil, fmt.Errorf("sirf: bad start 0x%02x%02x", frame[0], frame[1])
	}
	n := int(binary.BigEndian.Uint16(frame[2:4]) & 0x7fff)
	if len(frame) != n+Overhead {
		return nil, fmt.Errorf("sirf: length %d does not match frame size %d", n, len(frame))
	}
	payload := frame[4 : 4+n]
	tail := frame[4+n:]
	if got, want := binary.BigEndian.Uint16(tail[:2]), Checksum(payload); got != want {
		return nil, fmt.Errorf("sirf: checksum 0x%04x want 0x%04x", got, want)
	}
	if tail[2] != end0 || tail[3] != end1 {
		return nil, fmt.Errorf("sirf: bad end 0x%02x%02x", tail[2], tail[3])
	}
	return payload, nil
}

// Output message IDs the driver reacts to.
const (
	MIDSoftwareVersion = 0x06
	MIDOkToSend        = 0x12
)

// MaxFrame bounds a module output frame. The module never sends payloads
// anywhere near the 15-bit length limit; a larger header is line noise.
const MaxFrame = 1023 + Overhead

// FrameLen reports the full frame size announced by the header at the start
// of b. ok is false when b does not start with a frame or is too short to
// hold the length.
func FrameLen(b []byte) (n int, ok bool) {
	if len(b) < 4 || b[0] != start0 || b[1] != start1 {
		return 0, false
	}
	return int(binary.BigEndian.Uint16(b[2:4])&0x7fff) + Overhead, true
}

// IsStart reports whether b begins with the frame start sequence, or with
// its first byte when that is all b holds.
func IsStart(b []byte) bool {
	switch len(b) {
	case 0:
		return false
	case 1:
		return b[0] == start0
	}
	return b[0] == start0 && b[1] == start1
}
