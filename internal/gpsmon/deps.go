package gpsmon

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"gpsmon/internal/hwline"
	"gpsmon/internal/timeout"
)

//go:generate go tool mockgen -source=deps.go -destination=mocks_test.go -package=gpsmon

// Hardware is the part of the line controller the machine drives.
type Hardware interface {
	PowerOn()
	PowerOff()
	Pulse()
	SafeState()
	FullReset()
	Awake() bool
	Levels() hwline.Levels
	Wiggle(n int)
}

// Link is the byte stream to the GPS module.
type Link interface {
	Send(b []byte) error
}

// Timers arms and cancels transition timeouts.
type Timers interface {
	Arm(p timeout.Purpose, d time.Duration)
	Cancel(p timeout.Purpose)
	CancelAll()
	Armed() int
}

// Notifier receives monitor notifications. Notify must not block.
type Notifier interface {
	Notify(n Notification)
}

// NoteKind classifies a notification.
type NoteKind string

const (
	NoteTransition NoteKind = "transition"
	NoteLock       NoteKind = "lock"
	NoteFailure    NoteKind = "failure"
	NoteRejected   NoteKind = "rejected"
	NoteStatus     NoteKind = "status"
)

// Notification is what external consumers (loggers, collectors, the web UI)
// see of the monitor.
type Notification struct {
	Kind    NoteKind       `json:"kind"`
	State   string         `json:"state"`
	Prev    string         `json:"prev,omitempty"`
	Major   string         `json:"major"`
	Event   string         `json:"event,omitempty"`
	Command string         `json:"command,omitempty"`
	Detail  string         `json:"detail,omitempty"`
	Lines   *hwline.Levels `json:"lines,omitempty"`
	At      time.Time      `json:"at"`
}

// Deps are the collaborators of a Machine.
type Deps struct {
	Hardware Hardware
	Link     Link
	Timers   Timers
	Notifier Notifier
	Log      *logrus.Entry
	Now      func() time.Time
}

// ErrNoLink is returned when a command needs the module link and none is set.
var ErrNoLink = errors.New("no module link")

type noLink struct{}

func (noLink) Send([]byte) error { return ErrNoLink }

type noNotifier struct{}

func (noNotifier) Notify(Notification) {}

type noTimers struct{}

func (noTimers) Arm(timeout.Purpose, time.Duration) {}
func (noTimers) Cancel(timeout.Purpose)             {}
func (noTimers) CancelAll()                         {}
func (noTimers) Armed() int                         { return 0 }

func (d Deps) withDefaults() Deps {
	if d.Log == nil {
		d.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if d.Hardware == nil {
		d.Hardware = hwline.NewController(hwline.NewMem(), d.Log)
	}
	if d.Link == nil {
		d.Link = noLink{}
	}
	if d.Timers == nil {
		d.Timers = noTimers{}
	}
	if d.Notifier == nil {
		d.Notifier = noNotifier{}
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	return d
}
