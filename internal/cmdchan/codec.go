// Package cmdchan decodes remote GPS command frames and feeds them to the
// monitor.
//
// A frame is one tag byte, optionally followed by a trailer whose length is
// given by the transport (datagram, MQTT payload or HTTP body size):
//
//	simple   tag
//	raw_tx   0x14 payload[1..64]
//	canned   0x80 index
package cmdchan

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gpsmon/internal/gpsmon"
	"gpsmon/internal/sirf"
)

var (
	ErrEmptyFrame     = errors.New("empty command frame")
	ErrUnknownCommand = errors.New("unknown command tag")
	ErrFrameLength    = errors.New("bad command frame length")
	ErrCannedIndex    = errors.New("canned index out of range")
)

// Decode validates a frame and builds the request. Every error also matches
// gpsmon.ErrCommandRejected.
func Decode(frame []byte) (gpsmon.Request, error) {
	if len(frame) == 0 {
		return gpsmon.Request{}, rejected(ErrEmptyFrame, "")
	}
	c := gpsmon.Command(frame[0])
	if !c.Known() {
		return gpsmon.Request{}, rejected(ErrUnknownCommand, fmt.Sprintf("0x%02x", frame[0]))
	}
	trailer := frame[1:]
	switch c {
	case gpsmon.CmdRawTx:
		if len(trailer) == 0 || len(trailer) > sirf.MaxRawTx {
			return gpsmon.Request{}, rejected(ErrFrameLength, fmt.Sprintf("raw_tx payload %d bytes, want 1..%d", len(trailer), sirf.MaxRawTx))
		}
		return gpsmon.Request{Cmd: c, Payload: append([]byte(nil), trailer...)}, nil
	case gpsmon.CmdCanned:
		if len(trailer) != 1 {
			return gpsmon.Request{}, rejected(ErrFrameLength, fmt.Sprintf("canned trailer %d bytes, want 1", len(trailer)))
		}
		idx := int(trailer[0])
		if idx >= sirf.CannedCount() {
			return gpsmon.Request{}, rejected(ErrCannedIndex, strconv.Itoa(idx))
		}
		return gpsmon.Request{Cmd: c, Index: idx}, nil
	}
	if len(trailer) != 0 {
		return gpsmon.Request{}, rejected(ErrFrameLength, fmt.Sprintf("%s takes no arguments", c))
	}
	return gpsmon.Request{Cmd: c}, nil
}

func rejected(err error, detail string) error {
	if detail == "" {
		return fmt.Errorf("%w: %w", gpsmon.ErrCommandRejected, err)
	}
	return fmt.Errorf("%w: %w: %s", gpsmon.ErrCommandRejected, err, detail)
}

// Encode is the inverse of Decode.
func Encode(r gpsmon.Request) []byte {
	switch r.Cmd {
	case gpsmon.CmdRawTx:
		return append([]byte{byte(r.Cmd)}, r.Payload...)
	case gpsmon.CmdCanned:
		return []byte{byte(r.Cmd), byte(r.Index)}
	}
	return []byte{byte(r.Cmd)}
}

// ParseArgs builds a request from a command short name and its arguments,
// e.g. ["on"], ["can", "swver"], ["can", "1"], ["raw_tx", "a0a2..."].
func ParseArgs(args []string) (gpsmon.Request, error) {
	if len(args) == 0 {
		return gpsmon.Request{}, errors.New("missing command name")
	}
	c, err := gpsmon.ParseCommand(args[0])
	if err != nil {
		return gpsmon.Request{}, err
	}
	rest := args[1:]
	switch c {
	case gpsmon.CmdCanned:
		if len(rest) != 1 {
			return gpsmon.Request{}, errors.New("can: want one canned message name or index")
		}
		if i, ok := sirf.CannedIndex(strings.ToLower(rest[0])); ok {
			return gpsmon.Request{Cmd: c, Index: i}, nil
		}
		i, err := strconv.Atoi(rest[0])
		if err != nil || i < 0 || i > 0xff {
			return gpsmon.Request{}, fmt.Errorf("can: unknown canned message %q", rest[0])
		}
		return gpsmon.Request{Cmd: c, Index: i}, nil
	case gpsmon.CmdRawTx:
		if len(rest) == 0 {
			return gpsmon.Request{}, errors.New("raw_tx: missing hex payload")
		}
		b, err := hex.DecodeString(strings.Join(rest, ""))
		if err != nil {
			return gpsmon.Request{}, fmt.Errorf("raw_tx: %w", err)
		}
		return gpsmon.Request{Cmd: c, Payload: b}, nil
	}
	if len(rest) != 0 {
		return gpsmon.Request{}, fmt.Errorf("%s takes no arguments", c)
	}
	return gpsmon.Request{Cmd: c}, nil
}

// DecodeText accepts a frame written as hex ("80 01", "8001") or as a
// command line ("can swver").
func DecodeText(s string) (gpsmon.Request, error) {
	s = strings.TrimSpace(s)
	if b, err := hex.DecodeString(strings.Join(strings.Fields(s), "")); err == nil && len(b) > 0 {
		return Decode(b)
	}
	r, err := ParseArgs(strings.Fields(s))
	if err != nil {
		return gpsmon.Request{}, rejected(err, "")
	}
	return Decode(Encode(r))
}
