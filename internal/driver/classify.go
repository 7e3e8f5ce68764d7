// Package driver turns the GPS module's output into coarse monitor events.
//
// No fix data is extracted: a sentence only tells the monitor that the module
// is talking, that it has a position or time lock, or which software it runs.
package driver

import (
	"strings"

	nmea "github.com/adrianmo/go-nmea"

	"gpsmon/internal/gpsmon"
)

// otsPrefix is the SiRF "OK to send" sentence; go-nmea has no parser for it.
const otsPrefix = "$PSRF150,"

// Classify maps one NMEA line to a monitor event. ok is false for lines that
// carry no event (noise, partial or unsupported sentences).
func Classify(line string) (gpsmon.Event, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return gpsmon.EvNone, false
	}
	if strings.HasPrefix(line, otsPrefix) {
		switch rest := strings.TrimPrefix(line, otsPrefix); {
		case strings.HasPrefix(rest, "1"):
			return gpsmon.EvOTSYes, true
		case strings.HasPrefix(rest, "0"):
			return gpsmon.EvOTSNo, true
		}
		return gpsmon.EvNone, false
	}

	s, err := nmea.Parse(line)
	if err != nil {
		return gpsmon.EvNone, false
	}
	switch s.DataType() {
	case nmea.TypeRMC:
		if m, ok := s.(nmea.RMC); ok && m.Validity == nmea.ValidRMC {
			return gpsmon.EvLockPos, true
		}
	case nmea.TypeGGA:
		if m, ok := s.(nmea.GGA); ok && m.FixQuality != "" && m.FixQuality != nmea.Invalid {
			return gpsmon.EvLockPos, true
		}
	case nmea.TypeZDA:
		if m, ok := s.(nmea.ZDA); ok && m.Year > 0 {
			return gpsmon.EvLockTime, true
		}
	case nmea.TypeTXT:
		// The version banner in NMEA mode. In binary mode the reply to the
		// startup poll is MID 6, see ClassifyFrame.
		return gpsmon.EvSwVer, true
	}
	return gpsmon.EvMsg, true
}
