package gpsmon

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"gpsmon/internal/sirf"
	"gpsmon/internal/timeout"
)

// Timing holds the transition timeouts.
type Timing struct {
	Boot       time.Duration
	Startup    time.Duration
	CommCheck  time.Duration
	LockSearch time.Duration
	MPMEntry   time.Duration
	MPMRestart time.Duration
}

// DefaultTiming is used for any zero field of Config.Timing.
var DefaultTiming = Timing{
	Boot:       3 * time.Second,
	Startup:    5 * time.Second,
	CommCheck:  5 * time.Second,
	LockSearch: 3 * time.Minute,
	MPMEntry:   10 * time.Second,
	MPMRestart: 2 * time.Second,
}

// DefaultRetryBudget bounds lock-search re-arms and MPM restarts.
const DefaultRetryBudget = 2

// Config tunes a Machine.
type Config struct {
	Timing Timing
	// RetryBudget is how many times a lock search is re-armed, and how many
	// MPM restarts are tried, before giving up. Negative means zero.
	RetryBudget int
	// Collect forces the collection type entered on lock. MajorNone picks
	// SATS_COLLECT for a position lock and TIME_COLLECT for a time lock.
	Collect MajorState
	// TellTransitions wiggles the debug tell line with the new state number
	// on every state change.
	TellTransitions bool
}

// Input is one unit of work for the machine: an event, or a command when Req
// is set.
type Input struct {
	Event   Event
	Purpose timeout.Purpose
	Req     *Request
}

func EventInput(e Event) Input             { return Input{Event: e} }
func TimeoutInput(p timeout.Purpose) Input { return Input{Event: EvTimeout, Purpose: p} }
func CommandInput(r Request) Input         { return Input{Req: &r} }

func (in Input) String() string {
	if in.Req != nil {
		return "cmd " + in.Req.String()
	}
	if in.Event == EvTimeout {
		return "ev timeout(" + in.Purpose.String() + ")"
	}
	return "ev " + in.Event.String()
}

// Outcome is the result of one Handle call.
//
// Err is nil, a *RejectError (errors.Is ErrCommandRejected), ErrEventIgnored,
// or wraps ErrTransitionTimeout / ErrModuleFailure when a timeout or failure
// drove the transition.
type Outcome struct {
	From  State
	To    State
	Major MajorState
	Err   error
}

// Changed reports whether the state moved.
func (o Outcome) Changed() bool { return o.From != o.To }

// Status is a point-in-time view of the machine.
type Status struct {
	State       string    `json:"state"`
	Major       string    `json:"major"`
	Since       time.Time `json:"since"`
	LockRetries int       `json:"lock_retries"`
	MPMRestarts int       `json:"mpm_restarts"`
	OkToSend    bool      `json:"ok_to_send"`
	ArmedTimers int       `json:"armed_timers"`
	LastFailure string    `json:"last_failure,omitempty"`
}

// Machine is the GPS monitor transition function and the state it owns.
// It is not safe for concurrent use; Monitor serializes access.
type Machine struct {
	cfg Config
	d   Deps
	log *logrus.Entry

	state State
	major MajorState
	since time.Time

	lockRetries int
	mpmRestarts int
	ots         bool
	lastFailure string
}

func NewMachine(cfg Config, d Deps) *Machine {
	d = d.withDefaults()
	t := &cfg.Timing
	for _, f := range []struct {
		v   *time.Duration
		def time.Duration
	}{
		{&t.Boot, DefaultTiming.Boot},
		{&t.Startup, DefaultTiming.Startup},
		{&t.CommCheck, DefaultTiming.CommCheck},
		{&t.LockSearch, DefaultTiming.LockSearch},
		{&t.MPMEntry, DefaultTiming.MPMEntry},
		{&t.MPMRestart, DefaultTiming.MPMRestart},
	} {
		if *f.v <= 0 {
			*f.v = f.def
		}
	}
	if cfg.RetryBudget < 0 {
		cfg.RetryBudget = 0
	}
	return &Machine{
		cfg:   cfg,
		d:     d,
		log:   d.Log,
		state: StateOff,
		major: MajorNone,
		since: d.Now(),
	}
}

func (m *Machine) State() State      { return m.state }
func (m *Machine) Major() MajorState { return m.major }

func (m *Machine) Status() Status {
	return Status{
		State:       m.state.String(),
		Major:       m.major.String(),
		Since:       m.since,
		LockRetries: m.lockRetries,
		MPMRestarts: m.mpmRestarts,
		OkToSend:    m.ots,
		ArmedTimers: m.d.Timers.Armed(),
		LastFailure: m.lastFailure,
	}
}

// Handle runs one input to completion.
func (m *Machine) Handle(in Input) Outcome {
	from := m.state
	var err error
	if in.Req != nil {
		err = m.command(*in.Req)
	} else {
		err = m.event(in.Event, in.Purpose)
	}
	if !legalPairing(m.state, m.major) {
		m.log.WithFields(logrus.Fields{"state": m.state, "major": m.major}).Error("illegal state pairing, clearing major state")
		m.major = MajorNone
	}
	var re *RejectError
	if errors.As(err, &re) {
		m.log.WithFields(logrus.Fields{"cmd": re.Cmd, "state": re.State}).Warn(re.Error())
		m.notify(Notification{Kind: NoteRejected, Command: re.Cmd.String(), Detail: re.Reason})
	}
	return Outcome{From: from, To: m.state, Major: m.major, Err: err}
}

// Shutdown cancels every timer and leaves the module powered down with
// RESETN released.
func (m *Machine) Shutdown() {
	m.d.Timers.CancelAll()
	m.d.Hardware.FullReset()
}

func (m *Machine) command(r Request) error {
	switch r.Cmd {
	case CmdPanic:
		m.panicStop()
		return nil
	case CmdReset, CmdReboot:
		m.reset(r.Cmd)
		return nil
	case CmdNOP:
		return nil
	case CmdAwake:
		lv := m.d.Hardware.Levels()
		m.notify(Notification{Kind: NoteStatus, Command: r.Cmd.String(), Lines: &lv})
		return nil
	case CmdPulse:
		m.d.Hardware.Pulse()
		return nil

	case CmdTurnOn, CmdPowerOn:
		if m.state != StateOff {
			return reject(r.Cmd, m.state, "module is not off")
		}
		m.d.Hardware.PowerOn()
		m.arm(timeout.Boot)
		m.enter(StateBooting, r.Cmd.String())
		return nil

	case CmdTurnOff, CmdPowerOff:
		if m.state != StateOff && m.state != StateFail {
			return reject(r.Cmd, m.state, "module is active, use reset or reboot")
		}
		m.d.Timers.CancelAll()
		m.d.Hardware.PowerOff()
		m.major = MajorNone
		m.enter(StateOff, r.Cmd.String())
		return nil

	case CmdCycle:
		if m.state != StateCollect {
			return reject(r.Cmd, m.state, "no collection running")
		}
		m.major = MajorNone
		m.lockRetries = 0
		m.arm(timeout.LockSearch)
		m.enter(StateLockSearch, r.Cmd.String())
		return nil

	case CmdMPM:
		if m.state != StateLockSearch {
			return reject(r.Cmd, m.state, "mpm is only entered from lock search")
		}
		m.d.Timers.Cancel(timeout.LockSearch)
		m.send("mpm request", sirf.MPMRequest)
		m.major = MajorNone
		m.arm(timeout.MPMEntry)
		m.enter(StateMPMWait, r.Cmd.String())
		return nil

	case CmdRawTx:
		if !m.canTalk() {
			return reject(r.Cmd, m.state, "module link not up")
		}
		if err := m.d.Link.Send(r.Payload); err != nil {
			return reject(r.Cmd, m.state, err.Error())
		}
		return nil

	case CmdCanned:
		frame, ok := sirf.Canned(r.Index)
		if !ok {
			return reject(r.Cmd, m.state, fmt.Sprintf("no canned message %d", r.Index))
		}
		if !m.canTalk() {
			return reject(r.Cmd, m.state, "module link not up")
		}
		if err := m.d.Link.Send(frame); err != nil {
			return reject(r.Cmd, m.state, err.Error())
		}
		return nil

	case CmdHibernate, CmdWake:
		if m.state == StateOff || m.state == StateFail {
			return reject(r.Cmd, m.state, "module is not powered")
		}
		// ON_OFF toggles: only pulse if it moves the module the right way.
		if awake := m.d.Hardware.Awake(); awake == (r.Cmd == CmdHibernate) {
			m.d.Hardware.Pulse()
		}
		if r.Cmd == CmdWake && m.state == StateMPM {
			m.send("full power request", sirf.FullPowerRequest)
		}
		return nil

	case CmdStandby, CmdLow, CmdSleep:
		return reject(r.Cmd, m.state, "not supported")
	}
	return reject(r.Cmd, m.state, "unknown command")
}

func (m *Machine) event(e Event, p timeout.Purpose) error {
	if e == EvTimeout {
		return m.timeout(p)
	}

	switch m.state {
	case StateBooting:
		if e == EvBoot {
			m.booted(e.String())
			return nil
		}
	case StateStartup:
		switch e {
		case EvSwVer:
			m.d.Timers.Cancel(timeout.Startup)
			m.arm(timeout.CommCheck)
			m.enter(StateCommCheck, e.String())
			return nil
		case EvFail:
			return m.fail("module reported failure during startup")
		}
	case StateCommCheck:
		if e == EvMsg {
			m.d.Timers.Cancel(timeout.CommCheck)
			m.lockRetries = 0
			m.major = MajorCycle
			m.arm(timeout.LockSearch)
			m.enter(StateLockSearch, e.String())
			return nil
		}
	case StateLockSearch:
		if e == EvLockPos || e == EvLockTime {
			m.d.Timers.Cancel(timeout.LockSearch)
			m.major = m.collectFor(e)
			m.enter(StateCollect, e.String())
			m.notify(Notification{Kind: NoteLock, Event: e.String()})
			return nil
		}
	case StateMPMWait:
		switch e {
		case EvMPM:
			m.d.Timers.Cancel(timeout.MPMEntry)
			m.mpmRestarts = 0
			m.major = MajorMPMCollect
			m.enter(StateMPM, e.String())
			return nil
		case EvMPMError:
			m.mpmRestart(e.String())
			return nil
		}
	case StateMPMRestart:
		if e == EvBoot {
			m.restartBoot(e.String())
			return nil
		}
	case StateCollect, StateMPM:
		if e == EvLockPos || e == EvLockTime {
			m.notify(Notification{Kind: NoteLock, Event: e.String()})
			return nil
		}
	}

	switch e {
	case EvOTSYes, EvOTSNo:
		m.ots = e == EvOTSYes
		return nil
	}
	m.log.WithFields(logrus.Fields{"event": e, "state": m.state}).Debug("event ignored")
	return ErrEventIgnored
}

var waitFor = map[State]timeout.Purpose{
	StateBooting:    timeout.Boot,
	StateStartup:    timeout.Startup,
	StateCommCheck:  timeout.CommCheck,
	StateLockSearch: timeout.LockSearch,
	StateMPMWait:    timeout.MPMEntry,
	StateMPMRestart: timeout.MPMRestart,
}

func (m *Machine) timeout(p timeout.Purpose) error {
	if want, ok := waitFor[m.state]; !ok || want != p {
		m.log.WithFields(logrus.Fields{"purpose": p, "state": m.state}).Debug("stale timeout ignored")
		return ErrEventIgnored
	}
	switch m.state {
	case StateLockSearch:
		if m.lockRetries < m.cfg.RetryBudget {
			m.lockRetries++
			m.arm(timeout.LockSearch)
			m.log.WithField("retry", m.lockRetries).Info("lock search timed out, retrying")
			return fmt.Errorf("%w: %s retry %d", ErrTransitionTimeout, p, m.lockRetries)
		}
		return m.fail("lock search retries exhausted")
	case StateMPMWait:
		if m.mpmRestarts >= m.cfg.RetryBudget {
			return m.fail("mpm entry retries exhausted")
		}
		m.mpmRestart("mpm entry timeout")
		return fmt.Errorf("%w: %s", ErrTransitionTimeout, p)
	case StateMPMRestart:
		m.restartBoot("restart settled")
		return fmt.Errorf("%w: %s", ErrTransitionTimeout, p)
	}
	return m.fail(p.String() + " timeout")
}

// booted sends the startup poll once the module has come out of reset.
func (m *Machine) booted(cause string) {
	m.d.Timers.Cancel(timeout.Boot)
	m.send("swver poll", mustCanned(sirf.CannedSwVer))
	m.arm(timeout.Startup)
	m.enter(StateStartup, cause)
}

// restartBoot powers the module back up after an MPM restart. The awake
// edge that ends MPM_RESTART is the only boot indication the module gives,
// so an already awake module goes on to STARTUP in the same step.
func (m *Machine) restartBoot(cause string) {
	m.d.Timers.Cancel(timeout.MPMRestart)
	m.d.Hardware.PowerOn()
	m.arm(timeout.Boot)
	m.enter(StateBooting, cause)
	if m.d.Hardware.Awake() {
		m.booted("module already awake")
	}
}

func (m *Machine) mpmRestart(cause string) {
	m.mpmRestarts++
	m.d.Timers.Cancel(timeout.MPMEntry)
	m.major = MajorNone
	m.d.Hardware.PowerOff()
	m.arm(timeout.MPMRestart)
	m.enter(StateMPMRestart, cause)
}

func (m *Machine) fail(reason string) error {
	m.d.Timers.CancelAll()
	m.d.Hardware.SafeState()
	m.major = MajorNone
	m.lastFailure = reason
	m.enter(StateFail, reason)
	m.notify(Notification{Kind: NoteFailure, Detail: reason})
	m.log.WithField("reason", reason).Error("gps module failure")
	return fmt.Errorf("%w: %s", ErrModuleFailure, reason)
}

func (m *Machine) panicStop() {
	m.d.Timers.CancelAll()
	m.d.Hardware.SafeState()
	m.major = MajorNone
	m.lastFailure = "panic"
	m.enter(StateFail, CmdPanic.String())
	m.notify(Notification{Kind: NoteFailure, Command: CmdPanic.String(), Detail: "panic"})
}

// reset returns to OFF. Unlike PANIC and FAIL, which leave RESETN asserted,
// it ends with RESETN floated: OFF is a resting state and an asserted reset
// line back-powers the unpowered module.
func (m *Machine) reset(cmd Command) {
	m.d.Timers.CancelAll()
	m.d.Hardware.FullReset()
	m.major = MajorNone
	m.lockRetries = 0
	m.mpmRestarts = 0
	m.ots = false
	m.lastFailure = ""
	m.enter(StateOff, cmd.String())
}

func (m *Machine) enter(to State, cause string) {
	prev := m.state
	m.state = to
	if prev == to {
		return
	}
	m.since = m.d.Now()
	m.log.WithFields(logrus.Fields{"from": prev, "to": to, "major": m.major, "cause": cause}).Info("gps state change")
	m.notify(Notification{Kind: NoteTransition, Prev: prev.String(), Detail: cause})
	if m.cfg.TellTransitions {
		m.d.Hardware.Wiggle(int(to))
	}
}

func (m *Machine) notify(n Notification) {
	n.State = m.state.String()
	n.Major = m.major.String()
	if n.At.IsZero() {
		n.At = m.d.Now()
	}
	m.d.Notifier.Notify(n)
}

func (m *Machine) arm(p timeout.Purpose) {
	var d time.Duration
	switch p {
	case timeout.Boot:
		d = m.cfg.Timing.Boot
	case timeout.Startup:
		d = m.cfg.Timing.Startup
	case timeout.CommCheck:
		d = m.cfg.Timing.CommCheck
	case timeout.LockSearch:
		d = m.cfg.Timing.LockSearch
	case timeout.MPMEntry:
		d = m.cfg.Timing.MPMEntry
	case timeout.MPMRestart:
		d = m.cfg.Timing.MPMRestart
	}
	m.d.Timers.Arm(p, d)
}

func (m *Machine) send(what string, b []byte) {
	if err := m.d.Link.Send(b); err != nil {
		m.log.WithError(err).WithField("msg", what).Warn("gps send failed")
	}
}

func (m *Machine) canTalk() bool {
	switch m.state {
	case StateStartup, StateCommCheck, StateLockSearch, StateCollect, StateMPMWait, StateMPM:
		return true
	}
	return false
}

func (m *Machine) collectFor(e Event) MajorState {
	if m.cfg.Collect != MajorNone {
		return m.cfg.Collect
	}
	if e == EvLockTime {
		return MajorTimeCollect
	}
	return MajorSatsCollect
}

func mustCanned(i int) []byte {
	b, ok := sirf.Canned(i)
	if !ok {
		panic(fmt.Sprintf("gpsmon: canned message %d missing", i))
	}
	return b
}
