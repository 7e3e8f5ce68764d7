package gpsmon

import (
	"fmt"
	"strings"
)

// Command is a GPS command tag as it appears on the wire.
type Command uint8

const (
	CmdNOP       Command = 0x00
	CmdTurnOn    Command = 0x01
	CmdTurnOff   Command = 0x02
	CmdStandby   Command = 0x03
	CmdPowerOn   Command = 0x04
	CmdPowerOff  Command = 0x05
	CmdCycle     Command = 0x06
	CmdAwake     Command = 0x10
	CmdMPM       Command = 0x11
	CmdPulse     Command = 0x12
	CmdReset     Command = 0x13
	CmdRawTx     Command = 0x14
	CmdHibernate Command = 0x15
	CmdWake      Command = 0x16
	CmdCanned    Command = 0x80
	CmdLow       Command = 0xfc
	CmdSleep     Command = 0xfd
	CmdPanic     Command = 0xfe
	CmdReboot    Command = 0xff
)

var commandNames = map[Command]string{
	CmdNOP:       "nop",
	CmdTurnOn:    "on",
	CmdTurnOff:   "off",
	CmdStandby:   "standby",
	CmdPowerOn:   "pwron",
	CmdPowerOff:  "pwroff",
	CmdCycle:     "cycle",
	CmdAwake:     "awake",
	CmdMPM:       "mpm",
	CmdPulse:     "pulse",
	CmdReset:     "reset",
	CmdRawTx:     "raw_tx",
	CmdHibernate: "hibernate",
	CmdWake:      "wake",
	CmdCanned:    "can",
	CmdLow:       "low",
	CmdSleep:     "sleep",
	CmdPanic:     "panic",
	CmdReboot:    "reboot",
}

// Known reports whether c is a defined command tag.
func (c Command) Known() bool {
	_, ok := commandNames[c]
	return ok
}

func (c Command) String() string {
	if n, ok := commandNames[c]; ok {
		return n
	}
	return fmt.Sprintf("unk(0x%02x)", uint8(c))
}

// ParseCommand maps a short command name ("on", "can", "raw_tx", ...) to its tag.
func ParseCommand(name string) (Command, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for c, n := range commandNames {
		if n == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown gps command %q", name)
}

// Event is a monitor event produced by the driver, the lines or the timers.
type Event uint8

const (
	EvNone Event = iota
	EvBoot
	EvStartup
	EvFail
	EvTimeout
	EvSwVer
	EvMsg
	EvOTSNo
	EvOTSYes
	EvLockPos
	EvLockTime
	EvMPM
	EvMPMError
)

var eventNames = [...]string{
	EvNone:     "none",
	EvBoot:     "boot",
	EvStartup:  "startup",
	EvFail:     "fail",
	EvTimeout:  "timeout",
	EvSwVer:    "swver",
	EvMsg:      "msg",
	EvOTSNo:    "ots_no",
	EvOTSYes:   "ots_yes",
	EvLockPos:  "lock_pos",
	EvLockTime: "lock_time",
	EvMPM:      "mpm",
	EvMPMError: "mpm_error",
}

func (e Event) String() string {
	if int(e) < len(eventNames) {
		return eventNames[e]
	}
	return "unk"
}

// ParseEvent maps an event name ("lock_pos") to its value.
func ParseEvent(name string) (Event, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range eventNames {
		if n == name {
			return Event(i), nil
		}
	}
	return EvNone, fmt.Errorf("unknown monitor event %q", name)
}

// State is the fine-grained monitor state.
type State uint8

const (
	StateOff        State = iota // fresh boot
	StateFail                    // down, couldn't make it work
	StateBooting                 // letting the driver communicate
	StateStartup                 // config and initial swver
	StateCommCheck               // can we hear?
	StateLockSearch              // looking for lock
	StateMPMWait                 // trying to go into MPM
	StateMPMRestart              // mpm recovery, wait for shutdown
	StateMPM                     // in MPM
	StateCollect                 // gathering fixes
	StateStandby                 // reserved
	StateUp                      // reserved
)

var stateNames = [...]string{
	StateOff:        "off",
	StateFail:       "fail",
	StateBooting:    "booting",
	StateStartup:    "startup",
	StateCommCheck:  "comm_check",
	StateLockSearch: "lock_search",
	StateMPMWait:    "mpm_wait",
	StateMPMRestart: "mpm_restart",
	StateMPM:        "mpm",
	StateCollect:    "collect",
	StateStandby:    "standby",
	StateUp:         "up",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unk"
}

// MajorState tracks why a collection is running.
type MajorState uint8

const (
	MajorNone MajorState = iota
	MajorCycle
	MajorMPMCollect
	MajorSatsCollect
	MajorTimeCollect
)

var majorNames = [...]string{
	MajorNone:        "none",
	MajorCycle:       "cycle",
	MajorMPMCollect:  "mpm_collect",
	MajorSatsCollect: "sats_collect",
	MajorTimeCollect: "time_collect",
}

func (m MajorState) String() string {
	if int(m) < len(majorNames) {
		return majorNames[m]
	}
	return "unk"
}

// ParseCollect maps the configured collection type to a major state.
// "auto" (or empty) returns MajorNone, meaning "pick by lock kind".
func ParseCollect(s string) (MajorState, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return MajorNone, nil
	case "sats":
		return MajorSatsCollect, nil
	case "time":
		return MajorTimeCollect, nil
	default:
		return MajorNone, fmt.Errorf("unknown collection type %q", s)
	}
}

// legalPairing is the single place that decides which (state, major)
// combinations may coexist.
func legalPairing(s State, m MajorState) bool {
	if m == MajorNone {
		return true
	}
	switch s {
	case StateCollect, StateMPM, StateLockSearch:
		return true
	}
	return false
}

// Request is a decoded, validated command.
//
// Payload is only set for CmdRawTx and Index only for CmdCanned.
type Request struct {
	Cmd     Command
	Payload []byte
	Index   int
}

func (r Request) String() string {
	switch r.Cmd {
	case CmdRawTx:
		return fmt.Sprintf("%s[%d]", r.Cmd, len(r.Payload))
	case CmdCanned:
		return fmt.Sprintf("%s(%d)", r.Cmd, r.Index)
	}
	return r.Cmd.String()
}
