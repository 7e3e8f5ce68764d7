package cmdchan

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"gpsmon/internal/gpsmon"
)

// Dispatcher runs a decoded request. *gpsmon.Monitor implements it.
type Dispatcher interface {
	Do(ctx context.Context, r gpsmon.Request) (gpsmon.Outcome, error)
}

// Reply status bytes.
const (
	StatusAccepted byte = 0
	StatusRejected byte = 1
	StatusError    byte = 2

	// StateUnknown is sent in place of the state when the frame never
	// reached the monitor.
	StateUnknown byte = 0xff
)

// Stats counts frames seen by a Channel.
type Stats struct {
	Received uint64 `json:"received"`
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
}

// Channel is the single entry point for remote command frames.
type Channel struct {
	d   Dispatcher
	log *logrus.Entry

	received atomic.Uint64
	accepted atomic.Uint64
	rejected atomic.Uint64
}

func New(d Dispatcher, log *logrus.Entry) *Channel {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Channel{d: d, log: log}
}

// Handle decodes frame and dispatches it. A malformed frame never reaches the
// monitor. The returned error is the decode or dispatch error; the monitor's
// own verdict is in Outcome.Err.
func (c *Channel) Handle(ctx context.Context, frame []byte) (gpsmon.Outcome, error) {
	c.received.Add(1)
	r, err := Decode(frame)
	if err != nil {
		c.rejected.Add(1)
		c.log.WithError(err).WithField("len", len(frame)).Warn("gps command frame rejected")
		return gpsmon.Outcome{}, err
	}
	return c.Dispatch(ctx, r)
}

// Dispatch runs an already decoded request.
func (c *Channel) Dispatch(ctx context.Context, r gpsmon.Request) (gpsmon.Outcome, error) {
	out, err := c.d.Do(ctx, r)
	if err != nil {
		c.log.WithError(err).WithField("cmd", r.String()).Warn("gps command not delivered")
		return out, err
	}
	if errors.Is(out.Err, gpsmon.ErrCommandRejected) {
		c.rejected.Add(1)
		return out, nil
	}
	c.accepted.Add(1)
	c.log.WithFields(logrus.Fields{"cmd": r.String(), "state": out.To}).Debug("gps command")
	return out, nil
}

func (c *Channel) Stats() Stats {
	return Stats{
		Received: c.received.Load(),
		Accepted: c.accepted.Load(),
		Rejected: c.rejected.Load(),
	}
}

// Reply renders the two byte answer [status, state] for a handled frame.
func Reply(out gpsmon.Outcome, err error) []byte {
	switch {
	case err != nil && errors.Is(err, gpsmon.ErrCommandRejected):
		return []byte{StatusRejected, StateUnknown}
	case err != nil:
		return []byte{StatusError, StateUnknown}
	case errors.Is(out.Err, gpsmon.ErrCommandRejected):
		return []byte{StatusRejected, byte(out.To)}
	}
	return []byte{StatusAccepted, byte(out.To)}
}
