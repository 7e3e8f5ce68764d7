package driver

import (
	"bytes"

	"gpsmon/internal/gpsmon"
	"gpsmon/internal/sirf"
)

var frameStart = []byte{0xa0, 0xa2}

// ScanOutput is a bufio.SplitFunc for module output that mixes NMEA text
// with SiRF binary frames. Text comes back one line at a time without the
// line ending; each binary frame comes back whole. Frame headers announcing
// more than sirf.MaxFrame bytes are skipped as noise.
func ScanOutput(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if len(data) == 0 {
		return 0, nil, nil
	}
	if sirf.IsStart(data) {
		n, ok := sirf.FrameLen(data)
		switch {
		case !ok && atEOF:
			return len(data), nil, nil
		case !ok:
			return 0, nil, nil
		case n > sirf.MaxFrame:
			return len(frameStart), nil, nil
		case len(data) >= n:
			return n, data[:n], nil
		case atEOF:
			return len(data), nil, nil
		}
		return 0, nil, nil
	}

	end := len(data)
	if i := bytes.Index(data, frameStart); i >= 0 {
		end = i
	}
	if i := bytes.IndexByte(data[:end], '\n'); i >= 0 {
		return i + 1, dropCR(data[:i]), nil
	}
	if end < len(data) || atEOF {
		return end, dropCR(data[:end]), nil
	}
	return 0, nil, nil
}

func dropCR(b []byte) []byte {
	return bytes.TrimSuffix(b, []byte{'\r'})
}

// ClassifyFrame maps one SiRF binary frame to a monitor event. The software
// version reply to the startup poll is SWVER; every other well formed frame
// shows the module is talking.
func ClassifyFrame(frame []byte) (gpsmon.Event, bool) {
	p, err := sirf.Payload(frame)
	if err != nil || len(p) == 0 {
		return gpsmon.EvNone, false
	}
	switch p[0] {
	case sirf.MIDSoftwareVersion:
		return gpsmon.EvSwVer, true
	case sirf.MIDOkToSend:
		if len(p) < 2 {
			return gpsmon.EvNone, false
		}
		if p[1] != 0 {
			return gpsmon.EvOTSYes, true
		}
		return gpsmon.EvOTSNo, true
	}
	return gpsmon.EvMsg, true
}

// ClassifyToken classifies one ScanOutput token, text or binary.
func ClassifyToken(tok []byte) (gpsmon.Event, bool) {
	if sirf.IsStart(tok) {
		return ClassifyFrame(tok)
	}
	return Classify(string(tok))
}
