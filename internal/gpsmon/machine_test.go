package gpsmon

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"go.uber.org/mock/gomock"

	"gpsmon/internal/hwline"
	"gpsmon/internal/sirf"
	"gpsmon/internal/timeout"
)

type fakeTimers struct {
	armed map[timeout.Purpose]time.Duration
	arms  []timeout.Purpose
}

func newFakeTimers() *fakeTimers {
	return &fakeTimers{armed: make(map[timeout.Purpose]time.Duration)}
}

func (f *fakeTimers) Arm(p timeout.Purpose, d time.Duration) {
	f.armed[p] = d
	f.arms = append(f.arms, p)
}
func (f *fakeTimers) Cancel(p timeout.Purpose) { delete(f.armed, p) }
func (f *fakeTimers) CancelAll()               { clear(f.armed) }
func (f *fakeTimers) Armed() int               { return len(f.armed) }

type fakeLink struct {
	sent [][]byte
	err  error
}

func (f *fakeLink) Send(b []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, append([]byte(nil), b...))
	return nil
}

func (f *fakeLink) last() []byte {
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

type recNotifier struct{ notes []Notification }

func (r *recNotifier) Notify(n Notification) { r.notes = append(r.notes, n) }

func (r *recNotifier) count(k NoteKind) int {
	n := 0
	for _, x := range r.notes {
		if x.Kind == k {
			n++
		}
	}
	return n
}

type rig struct {
	m      *Machine
	mem    *hwline.Mem
	timers *fakeTimers
	link   *fakeLink
	notes  *recNotifier
}

func newRig(t *testing.T, cfg Config) *rig {
	t.Helper()
	logger, _ := test.NewNullLogger()
	log := logrus.NewEntry(logger)
	r := &rig{mem: hwline.NewMem(), timers: newFakeTimers(), link: &fakeLink{}, notes: &recNotifier{}}
	r.m = NewMachine(cfg, Deps{
		Hardware: hwline.NewController(r.mem, log, hwline.WithPulseWidth(1), hwline.WithWiggleDelay(1)),
		Link:     r.link,
		Timers:   r.timers,
		Notifier: r.notes,
		Log:      log,
	})
	return r
}

func cmd(c Command) Input { return CommandInput(Request{Cmd: c}) }

func (r *rig) run(t *testing.T, ins ...Input) Outcome {
	t.Helper()
	var out Outcome
	for _, in := range ins {
		out = r.m.Handle(in)
	}
	return out
}

// pathTo lists the inputs that walk a fresh machine into each state.
func pathTo(s State) []Input {
	booting := []Input{cmd(CmdTurnOn)}
	startup := append(booting, EventInput(EvBoot))
	comm := append(startup, EventInput(EvSwVer))
	search := append(comm, EventInput(EvMsg))
	wait := append(search, cmd(CmdMPM))
	switch s {
	case StateBooting:
		return booting
	case StateStartup:
		return startup
	case StateCommCheck:
		return comm
	case StateLockSearch:
		return search
	case StateCollect:
		return append(search, EventInput(EvLockPos))
	case StateMPMWait:
		return wait
	case StateMPM:
		return append(wait, EventInput(EvMPM))
	case StateMPMRestart:
		return append(wait, EventInput(EvMPMError))
	case StateFail:
		return append(booting, TimeoutInput(timeout.Boot))
	}
	return nil
}

var reachable = []State{
	StateOff, StateFail, StateBooting, StateStartup, StateCommCheck, StateLockSearch,
	StateMPMWait, StateMPMRestart, StateMPM, StateCollect,
}

func TestPathTo_ReachesEveryState(t *testing.T) {
	for _, s := range reachable {
		r := newRig(t, Config{})
		r.run(t, pathTo(s)...)
		if r.m.State() != s {
			t.Fatalf("path to %s ended in %s", s, r.m.State())
		}
		if !legalPairing(r.m.State(), r.m.Major()) {
			t.Fatalf("%s/%s is not a legal pairing", r.m.State(), r.m.Major())
		}
	}
}

func TestHandle_UnlistedInputsLeaveStateUnchanged(t *testing.T) {
	everywhere := []Input{
		EventInput(EvNone),
		EventInput(EvStartup),
		TimeoutInput(timeout.PurposeNone),
		cmd(CmdStandby),
		cmd(CmdLow),
		cmd(CmdSleep),
		cmd(CmdNOP),
		cmd(CmdAwake),
		cmd(Command(0x42)),
	}
	perState := map[State][]Input{
		StateOff:        {EventInput(EvBoot), EventInput(EvLockPos), EventInput(EvMPM), cmd(CmdCycle), cmd(CmdMPM), cmd(CmdRawTx), cmd(CmdHibernate), TimeoutInput(timeout.Boot)},
		StateFail:       {EventInput(EvBoot), cmd(CmdTurnOn), cmd(CmdWake), TimeoutInput(timeout.LockSearch)},
		StateBooting:    {EventInput(EvSwVer), EventInput(EvMsg), cmd(CmdTurnOn), cmd(CmdTurnOff), cmd(CmdRawTx), TimeoutInput(timeout.Startup)},
		StateStartup:    {EventInput(EvBoot), EventInput(EvLockPos), cmd(CmdCycle), TimeoutInput(timeout.Boot)},
		StateCommCheck:  {EventInput(EvSwVer), EventInput(EvMPM), cmd(CmdMPM), TimeoutInput(timeout.Startup)},
		StateLockSearch: {EventInput(EvMsg), EventInput(EvMPMError), cmd(CmdCycle), cmd(CmdPowerOn)},
		StateCollect:    {EventInput(EvLockPos), EventInput(EvLockTime), EventInput(EvMPM), cmd(CmdMPM), TimeoutInput(timeout.LockSearch)},
		StateMPMWait:    {EventInput(EvLockPos), cmd(CmdMPM), cmd(CmdCycle), TimeoutInput(timeout.LockSearch)},
		StateMPM:        {EventInput(EvMPM), EventInput(EvMPMError), EventInput(EvLockTime), cmd(CmdCycle)},
		StateMPMRestart: {EventInput(EvMPM), EventInput(EvMsg), cmd(CmdRawTx), TimeoutInput(timeout.MPMEntry)},
	}
	for _, s := range reachable {
		r := newRig(t, Config{})
		r.run(t, pathTo(s)...)
		major := r.m.Major()
		for _, in := range append(everywhere, perState[s]...) {
			out := r.m.Handle(in)
			if out.Changed() || r.m.State() != s {
				t.Fatalf("%s: %s moved to %s", s, in, r.m.State())
			}
			if r.m.Major() != major {
				t.Fatalf("%s: %s changed major %s -> %s", s, in, major, r.m.Major())
			}
		}
	}
}

func TestTurnOn_PowersOnExactlyOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	hw := NewMockHardware(ctrl)
	hw.EXPECT().PowerOn().Times(1)

	timers := newFakeTimers()
	logger, _ := test.NewNullLogger()
	m := NewMachine(Config{}, Deps{Hardware: hw, Timers: timers, Log: logrus.NewEntry(logger)})

	out := m.Handle(cmd(CmdTurnOn))
	if out.Err != nil || out.From != StateOff || out.To != StateBooting {
		t.Fatalf("outcome=%+v", out)
	}
	if _, ok := timers.armed[timeout.Boot]; !ok {
		t.Fatalf("boot timeout not armed: %v", timers.armed)
	}

	out = m.Handle(cmd(CmdPowerOn))
	if !errors.Is(out.Err, ErrCommandRejected) || m.State() != StateBooting {
		t.Fatalf("second power on: %+v", out)
	}
}

func TestHandle_BootToCollect(t *testing.T) {
	r := newRig(t, Config{})

	r.run(t, cmd(CmdTurnOn), EventInput(EvBoot))
	if r.m.State() != StateStartup {
		t.Fatalf("state=%s want startup", r.m.State())
	}
	swver, _ := sirf.Canned(sirf.CannedSwVer)
	if !bytes.Equal(r.link.last(), swver) {
		t.Fatalf("startup sent % x want swver poll % x", r.link.last(), swver)
	}

	r.run(t, EventInput(EvSwVer), EventInput(EvMsg))
	if r.m.State() != StateLockSearch || r.m.Major() != MajorCycle {
		t.Fatalf("state=%s/%s want lock_search/cycle", r.m.State(), r.m.Major())
	}

	out := r.m.Handle(EventInput(EvLockPos))
	if out.To != StateCollect || out.Major != MajorSatsCollect {
		t.Fatalf("outcome=%+v", out)
	}
	if r.timers.Armed() != 0 {
		t.Fatalf("armed=%v want none while collecting", r.timers.armed)
	}
	if r.notes.count(NoteLock) != 1 {
		t.Fatalf("lock notifications=%d want 1", r.notes.count(NoteLock))
	}
}

func TestHandle_CollectType(t *testing.T) {
	cases := []struct {
		name    string
		collect MajorState
		ev      Event
		want    MajorState
	}{
		{"auto pos", MajorNone, EvLockPos, MajorSatsCollect},
		{"auto time", MajorNone, EvLockTime, MajorTimeCollect},
		{"forced time", MajorTimeCollect, EvLockPos, MajorTimeCollect},
		{"forced sats", MajorSatsCollect, EvLockTime, MajorSatsCollect},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRig(t, Config{Collect: tc.collect})
			r.run(t, pathTo(StateLockSearch)...)
			if out := r.m.Handle(EventInput(tc.ev)); out.Major != tc.want {
				t.Fatalf("major=%s want %s", out.Major, tc.want)
			}
		})
	}
}

func TestPanic_FromAnyState(t *testing.T) {
	for _, s := range reachable {
		r := newRig(t, Config{})
		r.run(t, pathTo(s)...)
		r.mem.SetInput(hwline.LineAwake, 1)

		out := r.m.Handle(cmd(CmdPanic))
		if out.Err != nil || out.To != StateFail || out.Major != MajorNone {
			t.Fatalf("panic from %s: %+v", s, out)
		}
		if r.timers.Armed() != 0 {
			t.Fatalf("panic from %s left timers %v", s, r.timers.armed)
		}
		if r.mem.Floating(hwline.LineResetN) {
			t.Fatalf("panic from %s: reset should be asserted", s)
		}
	}
}

func TestLockSearch_RetryBudgetFailsOnce(t *testing.T) {
	r := newRig(t, Config{RetryBudget: 2})
	r.run(t, pathTo(StateLockSearch)...)

	for i := 1; i <= 2; i++ {
		out := r.m.Handle(TimeoutInput(timeout.LockSearch))
		if out.To != StateLockSearch || !errors.Is(out.Err, ErrTransitionTimeout) {
			t.Fatalf("retry %d: %+v", i, out)
		}
		if _, ok := r.timers.armed[timeout.LockSearch]; !ok {
			t.Fatalf("retry %d: lock search not re-armed", i)
		}
	}

	out := r.m.Handle(TimeoutInput(timeout.LockSearch))
	if out.To != StateFail || !errors.Is(out.Err, ErrModuleFailure) {
		t.Fatalf("budget exhausted: %+v", out)
	}
	out = r.m.Handle(TimeoutInput(timeout.LockSearch))
	if out.To != StateFail || !errors.Is(out.Err, ErrEventIgnored) {
		t.Fatalf("late timeout: %+v", out)
	}
	if n := r.notes.count(NoteFailure); n != 1 {
		t.Fatalf("failure notifications=%d want 1", n)
	}
	if r.m.Status().LastFailure == "" {
		t.Fatalf("last failure not recorded")
	}
}

func TestReboot_FromFail(t *testing.T) {
	for _, c := range []Command{CmdReboot, CmdReset} {
		r := newRig(t, Config{})
		r.run(t, pathTo(StateFail)...)
		if r.mem.Floating(hwline.LineResetN) {
			t.Fatalf("fail should hold reset asserted")
		}

		out := r.m.Handle(cmd(c))
		if out.Err != nil || out.To != StateOff || out.Major != MajorNone {
			t.Fatalf("%s: %+v", c, out)
		}
		st := r.m.Status()
		if st.LastFailure != "" || st.LockRetries != 0 || st.MPMRestarts != 0 {
			t.Fatalf("%s left status %+v", c, st)
		}
		if !r.mem.Floating(hwline.LineResetN) {
			t.Fatalf("%s: reset should be floated after full reset", c)
		}
	}
}

func TestTurnOff_OnlyFromOffOrFail(t *testing.T) {
	r := newRig(t, Config{})
	r.run(t, pathTo(StateLockSearch)...)
	if out := r.m.Handle(cmd(CmdTurnOff)); !errors.Is(out.Err, ErrCommandRejected) {
		t.Fatalf("turn off while searching: %+v", out)
	}

	r = newRig(t, Config{})
	r.run(t, pathTo(StateFail)...)
	if out := r.m.Handle(cmd(CmdPowerOff)); out.Err != nil || out.To != StateOff {
		t.Fatalf("power off from fail: %+v", out)
	}
}

func TestMPM_Entry(t *testing.T) {
	r := newRig(t, Config{})
	r.run(t, pathTo(StateLockSearch)...)

	out := r.m.Handle(cmd(CmdMPM))
	if out.To != StateMPMWait || out.Major != MajorNone {
		t.Fatalf("mpm cmd: %+v", out)
	}
	if !bytes.Equal(r.link.last(), sirf.MPMRequest) {
		t.Fatalf("sent % x want mpm request", r.link.last())
	}
	if _, ok := r.timers.armed[timeout.LockSearch]; ok {
		t.Fatalf("lock search still armed")
	}

	out = r.m.Handle(EventInput(EvMPM))
	if out.To != StateMPM || out.Major != MajorMPMCollect {
		t.Fatalf("mpm event: %+v", out)
	}
}

func TestMPM_ErrorRestarts(t *testing.T) {
	r := newRig(t, Config{})
	r.run(t, pathTo(StateMPMWait)...)
	r.mem.SetInput(hwline.LineAwake, 1)

	out := r.m.Handle(EventInput(EvMPMError))
	if out.To != StateMPMRestart || out.Major != MajorNone {
		t.Fatalf("mpm error: %+v", out)
	}
	if r.m.Status().MPMRestarts != 1 {
		t.Fatalf("restarts=%d want 1", r.m.Status().MPMRestarts)
	}
	if _, ok := r.timers.armed[timeout.MPMRestart]; !ok {
		t.Fatalf("restart timer not armed: %v", r.timers.armed)
	}

	r.mem.SetInput(hwline.LineAwake, 0)
	if out := r.m.Handle(EventInput(EvBoot)); out.To != StateBooting {
		t.Fatalf("boot after restart: %+v", out)
	}
}

func TestMPM_RestartBootOfAwakeModuleStartsUp(t *testing.T) {
	r := newRig(t, Config{})
	r.run(t, pathTo(StateMPMRestart)...)
	r.mem.SetInput(hwline.LineAwake, 1)

	out := r.m.Handle(EventInput(EvBoot))
	if out.From != StateMPMRestart || out.To != StateStartup {
		t.Fatalf("boot after restart: %+v", out)
	}
	if !bytes.Equal(r.link.last(), mustCanned(sirf.CannedSwVer)) {
		t.Fatalf("last frame % x, want swver poll", r.link.last())
	}
	if _, ok := r.timers.armed[timeout.Startup]; !ok || r.timers.Armed() != 1 {
		t.Fatalf("armed=%v want only startup", r.timers.armed)
	}
}

func TestMPM_EntryTimeoutBudget(t *testing.T) {
	r := newRig(t, Config{RetryBudget: 1})
	r.run(t, pathTo(StateMPMWait)...)

	if out := r.m.Handle(TimeoutInput(timeout.MPMEntry)); out.To != StateMPMRestart {
		t.Fatalf("first mpm timeout: %+v", out)
	}
	if out := r.m.Handle(TimeoutInput(timeout.MPMRestart)); out.To != StateBooting {
		t.Fatalf("restart settle: %+v", out)
	}
	r.run(t, EventInput(EvBoot), EventInput(EvSwVer), EventInput(EvMsg), cmd(CmdMPM))
	if r.m.State() != StateMPMWait {
		t.Fatalf("state=%s want mpm_wait", r.m.State())
	}
	out := r.m.Handle(TimeoutInput(timeout.MPMEntry))
	if out.To != StateFail || !errors.Is(out.Err, ErrModuleFailure) {
		t.Fatalf("second mpm timeout: %+v", out)
	}
}

func TestTimeout_StaleIgnored(t *testing.T) {
	r := newRig(t, Config{})
	r.run(t, pathTo(StateStartup)...)
	out := r.m.Handle(TimeoutInput(timeout.Boot))
	if !errors.Is(out.Err, ErrEventIgnored) || out.Changed() {
		t.Fatalf("stale boot timeout: %+v", out)
	}
}

func TestRawTx(t *testing.T) {
	r := newRig(t, Config{})
	payload := []byte{0x84, 0x00}

	out := r.m.Handle(CommandInput(Request{Cmd: CmdRawTx, Payload: payload}))
	var re *RejectError
	if !errors.As(out.Err, &re) || re.Cmd != CmdRawTx || re.State != StateOff {
		t.Fatalf("raw tx while off: %+v", out)
	}
	if r.notes.count(NoteRejected) != 1 {
		t.Fatalf("rejection not notified")
	}

	r.run(t, pathTo(StateStartup)...)
	if out := r.m.Handle(CommandInput(Request{Cmd: CmdRawTx, Payload: payload})); out.Err != nil {
		t.Fatalf("raw tx in startup: %v", out.Err)
	}
	if !bytes.Equal(r.link.last(), payload) {
		t.Fatalf("sent % x want % x", r.link.last(), payload)
	}

	r.link.err = errors.New("uart gone")
	if out := r.m.Handle(CommandInput(Request{Cmd: CmdRawTx, Payload: payload})); !errors.Is(out.Err, ErrCommandRejected) {
		t.Fatalf("link error: %+v", out)
	}
}

func TestCanned(t *testing.T) {
	ctrl := gomock.NewController(t)
	link := NewMockLink(ctrl)
	factory, _ := sirf.Canned(sirf.CannedFactory)

	logger, _ := test.NewNullLogger()
	m := NewMachine(Config{}, Deps{Link: link, Timers: newFakeTimers(), Log: logrus.NewEntry(logger)})

	gomock.InOrder(
		link.EXPECT().Send(gomock.Any()).Return(nil), // swver poll on boot
		link.EXPECT().Send(factory).Return(nil),
	)
	for _, in := range pathTo(StateStartup) {
		m.Handle(in)
	}
	if out := m.Handle(CommandInput(Request{Cmd: CmdCanned, Index: sirf.CannedFactory})); out.Err != nil {
		t.Fatalf("canned factory: %v", out.Err)
	}
	if out := m.Handle(CommandInput(Request{Cmd: CmdCanned, Index: 5})); !errors.Is(out.Err, ErrCommandRejected) {
		t.Fatalf("canned 5: %+v", out)
	}
}

func TestHibernateWake_PulseOnlyWhenNeeded(t *testing.T) {
	pulses := func(ops []hwline.Op) int {
		n := 0
		for _, op := range ops {
			if op.Line == hwline.LineOnOff && op.Value == 1 {
				n++
			}
		}
		return n
	}

	r := newRig(t, Config{})
	r.run(t, pathTo(StateCollect)...)
	base := pulses(r.mem.History())

	r.mem.SetInput(hwline.LineAwake, 1)
	r.run(t, cmd(CmdWake))
	if got := pulses(r.mem.History()) - base; got != 0 {
		t.Fatalf("wake while awake pulsed %d times", got)
	}
	r.run(t, cmd(CmdHibernate))
	if got := pulses(r.mem.History()) - base; got != 1 {
		t.Fatalf("hibernate while awake pulsed %d times, want 1", got)
	}
	if r.m.State() != StateCollect {
		t.Fatalf("state=%s", r.m.State())
	}
}

func TestWake_FromMPMRequestsFullPower(t *testing.T) {
	r := newRig(t, Config{})
	r.run(t, pathTo(StateMPM)...)
	r.run(t, cmd(CmdWake))
	if !bytes.Equal(r.link.last(), sirf.FullPowerRequest) {
		t.Fatalf("last sent=% x", r.link.last())
	}
	if r.m.State() != StateMPM {
		t.Fatalf("state=%s", r.m.State())
	}
}

func TestCycle_FromCollect(t *testing.T) {
	r := newRig(t, Config{})
	r.run(t, pathTo(StateCollect)...)
	out := r.m.Handle(cmd(CmdCycle))
	if out.To != StateLockSearch || out.Major != MajorNone {
		t.Fatalf("cycle: %+v", out)
	}
	if _, ok := r.timers.armed[timeout.LockSearch]; !ok {
		t.Fatalf("lock search not armed")
	}
}

func TestOkToSend(t *testing.T) {
	r := newRig(t, Config{})
	r.run(t, EventInput(EvOTSYes))
	if !r.m.Status().OkToSend {
		t.Fatalf("ots not recorded")
	}
	r.run(t, EventInput(EvOTSNo))
	if r.m.Status().OkToSend {
		t.Fatalf("ots not cleared")
	}
}

func TestTellTransitions(t *testing.T) {
	r := newRig(t, Config{TellTransitions: true})
	r.run(t, cmd(CmdTurnOn))
	highs := 0
	for _, op := range r.mem.History() {
		if op.Line == hwline.LineTellExc && op.Value == 1 {
			highs++
		}
	}
	if want := 3 + int(StateBooting) + 3; highs != want {
		t.Fatalf("tell pulses=%d want %d", highs, want)
	}
}
