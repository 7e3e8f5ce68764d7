package gpsmon

import (
	"errors"
	"fmt"
)

var (
	// ErrCommandRejected is returned for a malformed command or one that does
	// not apply to the current state. The state is left unchanged.
	ErrCommandRejected = errors.New("command rejected")

	// ErrEventIgnored is returned when an event has no transition in the
	// current state. It is diagnostic only.
	ErrEventIgnored = errors.New("event ignored")

	// ErrTransitionTimeout marks an armed wait that expired.
	ErrTransitionTimeout = errors.New("transition timeout")

	// ErrModuleFailure is the only error surfaced to external consumers as a
	// hard failure. The monitor sits in FAIL until RESET or REBOOT.
	ErrModuleFailure = errors.New("gps module failure")

	// ErrClosed is returned by Monitor.Do once the dispatcher has stopped.
	ErrClosed = errors.New("gps monitor closed")
)

// RejectError explains why a command was rejected.
type RejectError struct {
	Cmd    Command
	State  State
	Reason string
}

func (e *RejectError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s in state %s", ErrCommandRejected, e.Cmd, e.State)
	}
	return fmt.Sprintf("%s: %s in state %s: %s", ErrCommandRejected, e.Cmd, e.State, e.Reason)
}

func (e *RejectError) Unwrap() error { return ErrCommandRejected }

func reject(cmd Command, st State, reason string) error {
	return &RejectError{Cmd: cmd, State: st, Reason: reason}
}
