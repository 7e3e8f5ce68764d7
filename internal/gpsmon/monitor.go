package gpsmon

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"gpsmon/internal/hwline"
	"gpsmon/internal/timeout"
)

// DefaultQueueSize is the dispatcher queue depth.
const DefaultQueueSize = 32

// Snapshot is the externally visible monitor state.
type Snapshot struct {
	Status
	Running       bool          `json:"running"`
	PendingTimers []string      `json:"pending_timers"`
	Lines         hwline.Levels `json:"lines"`
	Steps         uint64        `json:"steps"`
	DroppedEvents uint64        `json:"dropped_events"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

type item struct {
	in     Input
	expiry *timeout.Expiry
	sample bool
	reply  chan Outcome
}

// Monitor serializes commands, driver events and timer expiries into the
// Machine. Every input runs to completion before the next one is taken.
type Monitor struct {
	m      *Machine
	hw     Hardware
	timers *timeout.Supervisor
	log    *logrus.Entry
	now    func() time.Time

	queue chan item
	done  chan struct{}

	runOnce  sync.Once
	stopOnce sync.Once

	awake     bool
	haveAwake bool

	steps   atomic.Uint64
	dropped atomic.Uint64
	last    atomic.Value // Snapshot
}

// NewMonitor builds a monitor that owns its own timeout supervisor. Any
// Timers set in d is replaced.
func NewMonitor(cfg Config, d Deps) *Monitor {
	d = d.withDefaults()
	mon := &Monitor{
		hw:    d.Hardware,
		log:   d.Log,
		now:   d.Now,
		queue: make(chan item, DefaultQueueSize),
		done:  make(chan struct{}),
	}
	mon.timers = timeout.New(mon.expire)
	d.Timers = mon.timers
	mon.m = NewMachine(cfg, d)
	mon.publish(false)
	return mon
}

// Run processes the queue until ctx is done. On exit the lines are left in
// the safe state with every timer cancelled.
func (mon *Monitor) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("ctx is nil")
	}
	started := false
	mon.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("gps monitor already running")
	}
	defer mon.stop()

	mon.log.WithField("state", mon.m.State()).Info("gps monitor started")
	mon.publish(true)
	for {
		select {
		case <-ctx.Done():
			mon.m.Shutdown()
			mon.log.Info("gps monitor stopped")
			return nil
		case it := <-mon.queue:
			mon.step(it)
		}
	}
}

func (mon *Monitor) stop() {
	mon.stopOnce.Do(func() {
		close(mon.done)
		mon.publish(false)
	})
}

func (mon *Monitor) step(it item) {
	in := it.in
	if it.sample {
		e, ok := mon.awakeEdge()
		if !ok {
			return
		}
		in = EventInput(e)
	}
	if it.expiry != nil {
		if !mon.timers.Claim(*it.expiry) {
			mon.log.WithField("purpose", it.expiry.Purpose).Debug("stale timer expiry dropped")
			return
		}
		in = TimeoutInput(it.expiry.Purpose)
	}
	out := mon.m.Handle(in)
	mon.steps.Add(1)
	if out.Err != nil && !errors.Is(out.Err, ErrEventIgnored) && !errors.Is(out.Err, ErrCommandRejected) {
		mon.log.WithError(out.Err).WithField("input", in.String()).Info("gps monitor step")
	}
	mon.publish(true)
	if it.reply != nil {
		it.reply <- out
	}
}

// Do submits a command and waits for its outcome.
func (mon *Monitor) Do(ctx context.Context, r Request) (Outcome, error) {
	it := item{in: CommandInput(r), reply: make(chan Outcome, 1)}
	select {
	case <-mon.done:
		return Outcome{}, ErrClosed
	default:
	}
	select {
	case mon.queue <- it:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-mon.done:
		return Outcome{}, ErrClosed
	}
	select {
	case out := <-it.reply:
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case <-mon.done:
		return Outcome{}, ErrClosed
	}
}

// Post queues a driver event without blocking. It reports false when the
// event was dropped because the queue is full or the monitor has stopped.
func (mon *Monitor) Post(e Event) bool {
	select {
	case <-mon.done:
		return false
	default:
	}
	select {
	case mon.queue <- item{in: EventInput(e)}:
		return true
	default:
		mon.dropped.Add(1)
		mon.log.WithField("event", e).Warn("gps monitor queue full, event dropped")
		return false
	}
}

// WatchAwake samples the awake line every interval until ctx is done. A
// rising edge is posted as BOOT and a falling edge as MPM. Sampling goes
// through the queue so the lines are only read by the dispatcher.
func (mon *Monitor) WatchAwake(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-mon.done:
			return
		case <-t.C:
			select {
			case mon.queue <- item{sample: true}:
			default:
			}
		}
	}
}

func (mon *Monitor) awakeEdge() (Event, bool) {
	awake := mon.hw.Awake()
	prev, have := mon.awake, mon.haveAwake
	mon.awake, mon.haveAwake = awake, true
	switch {
	case !have || awake == prev:
		return EvNone, false
	case awake:
		return EvBoot, true
	default:
		return EvMPM, true
	}
}

// expire runs on the timer goroutine. Expiries are never dropped for a full
// queue; the timer goroutine waits instead.
func (mon *Monitor) expire(e timeout.Expiry) {
	select {
	case mon.queue <- item{expiry: &e}:
	case <-mon.done:
	}
}

func (mon *Monitor) Snapshot() Snapshot {
	if v := mon.last.Load(); v != nil {
		if s, ok := v.(Snapshot); ok {
			return s
		}
	}
	return Snapshot{}
}

func (mon *Monitor) publish(running bool) {
	pending := mon.timers.Pending()
	names := make([]string, 0, len(pending))
	for _, p := range pending {
		names = append(names, p.String())
	}
	mon.last.Store(Snapshot{
		Status:        mon.m.Status(),
		Running:       running,
		PendingTimers: names,
		Lines:         mon.hw.Levels(),
		Steps:         mon.steps.Load(),
		DroppedEvents: mon.dropped.Load(),
		UpdatedAt:     mon.now(),
	})
}
