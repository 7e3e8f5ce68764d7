package hwline

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultWiggleDelay is the settle time between wiggle groups.
const DefaultWiggleDelay = 6 * time.Microsecond

// DefaultPulseWidth is how long ON_OFF is held high for one pulse.
const DefaultPulseWidth = 100 * time.Microsecond

// Levels is a sample of the module's status lines.
type Levels struct {
	Awake bool `json:"awake"`
	CTS   bool `json:"cts"`
	RTS   bool `json:"rts"`
}

// Controller is the only owner of the GPS control lines.
//
// Every command is idempotent and returns without waiting for the module to
// settle, except Pulse and Wiggle which spin for a few microseconds.
// Line errors are logged and remembered in LastError; callers treat the
// commands as fire-and-forget.
type Controller struct {
	drv         Driver
	log         *logrus.Entry
	pulseWidth  time.Duration
	wiggleDelay time.Duration

	mu      sync.Mutex
	lastErr error
}

type Option func(*Controller)

// WithPulseWidth overrides DefaultPulseWidth.
func WithPulseWidth(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.pulseWidth = d
		}
	}
}

// WithWiggleDelay overrides DefaultWiggleDelay.
func WithWiggleDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.wiggleDelay = d
		}
	}
}

func NewController(drv Driver, log *logrus.Entry, opts ...Option) *Controller {
	if drv == nil {
		drv = NewMem()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &Controller{
		drv:         drv,
		log:         log,
		pulseWidth:  DefaultPulseWidth,
		wiggleDelay: DefaultWiggleDelay,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// PowerOn releases RESETN and, if the module is not already awake, pulses
// ON_OFF to start it.
func (c *Controller) PowerOn() {
	c.do("power on", func() error {
		if err := c.drv.Float(LineResetN); err != nil {
			return err
		}
		if c.level(LineAwake) {
			return nil
		}
		return c.pulse()
	})
}

// PowerOff pulses ON_OFF if the module is awake, then floats RESETN.
func (c *Controller) PowerOff() {
	c.do("power off", func() error {
		if c.level(LineAwake) {
			if err := c.pulse(); err != nil {
				return err
			}
		}
		return c.drv.Float(LineResetN)
	})
}

// ResetAssert drives RESETN low.
func (c *Controller) ResetAssert() {
	c.do("reset assert", func() error { return c.drv.Set(LineResetN, 0) })
}

// ResetFloat turns RESETN into an input.
func (c *Controller) ResetFloat() {
	c.do("reset float", func() error { return c.drv.Float(LineResetN) })
}

// Pulse emits one ON_OFF pulse regardless of the module state.
func (c *Controller) Pulse() {
	c.do("pulse", c.pulse)
}

// SafeState powers the module off and holds it in reset. Used on PANIC and
// when giving up on the module.
func (c *Controller) SafeState() {
	c.do("safe state", func() error {
		if c.level(LineAwake) {
			if err := c.pulse(); err != nil {
				return err
			}
		}
		if err := c.drv.Set(LineOnOff, 0); err != nil {
			return err
		}
		return c.drv.Set(LineResetN, 0)
	})
}

// FullReset drives the lines to the safe state and then releases RESETN so
// the powered-down module is not back-powered through it.
func (c *Controller) FullReset() {
	c.SafeState()
	c.ResetFloat()
}

// Awake reports the module's awake line.
func (c *Controller) Awake() bool { return c.level(LineAwake) }

// Levels samples awake, CTS and RTS.
func (c *Controller) Levels() Levels {
	return Levels{
		Awake: c.level(LineAwake),
		CTS:   c.level(LineCTS),
		RTS:   c.level(LineRTS),
	}
}

// Wiggle emits the calibration pulse sequence on the tell-exception line:
// three pulses, a short gap, n pulses, a short gap, three pulses. It is the
// only deliberately busy-waiting operation.
func (c *Controller) Wiggle(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.drv.Get(LineTellExc); errors.Is(err, ErrNoLine) {
		return
	}
	wiggle := func() {
		_ = c.drv.Set(LineTellExc, 1)
		_ = c.drv.Set(LineTellExc, 0)
	}
	for i := 0; i < 3; i++ {
		wiggle()
	}
	spin(c.wiggleDelay)
	for i := 0; i < n; i++ {
		wiggle()
	}
	spin(c.wiggleDelay)
	for i := 0; i < 3; i++ {
		wiggle()
	}
}

// LastError returns the most recent line error, if any.
func (c *Controller) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Close releases the lines.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drv.Close()
}

func (c *Controller) do(op string, f func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := f(); err != nil {
		c.lastErr = err
		c.log.WithError(err).WithField("op", op).Warn("gps line command failed")
		return
	}
	c.log.WithField("op", op).Debug("gps line command")
}

func (c *Controller) pulse() error {
	if err := c.drv.Set(LineOnOff, 1); err != nil {
		return err
	}
	spin(c.pulseWidth)
	return c.drv.Set(LineOnOff, 0)
}

// level relies on the driver's own locking.
func (c *Controller) level(l Line) bool {
	v, err := c.drv.Get(l)
	return err == nil && v != 0
}

func spin(d time.Duration) {
	t0 := time.Now()
	for time.Since(t0) < d {
	}
}
