package timeout

import (
	"sort"
	"sync"
	"time"
)

// Purpose names the wait a timer belongs to. At most one timer per purpose
// is live at any time.
type Purpose uint8

const (
	PurposeNone Purpose = iota
	Boot
	Startup
	CommCheck
	LockSearch
	MPMEntry
	MPMRestart
)

var purposeNames = [...]string{
	PurposeNone: "none",
	Boot:        "boot",
	Startup:     "startup",
	CommCheck:   "comm_check",
	LockSearch:  "lock_search",
	MPMEntry:    "mpm_entry",
	MPMRestart:  "mpm_restart",
}

func (p Purpose) String() string {
	if int(p) < len(purposeNames) {
		return purposeNames[p]
	}
	return "unk"
}

// Expiry is delivered when an armed timer runs out. Gen identifies the arming
// so a late expiry from a cancelled or re-armed timer can be told apart.
type Expiry struct {
	Purpose Purpose
	Gen     uint64
}

// Stopper is the part of *time.Timer the supervisor needs.
type Stopper interface {
	Stop() bool
}

var afterFuncFn = func(d time.Duration, f func()) Stopper { return time.AfterFunc(d, f) }

type entry struct {
	gen uint64
	t   Stopper
}

// Supervisor arms and cancels the monitor's transition timers.
//
// Expiries are handed to the fire callback from the timer goroutine; the
// owner is expected to queue them and check Claim before acting.
type Supervisor struct {
	fire func(Expiry)

	mu   sync.Mutex
	gen  uint64
	live map[Purpose]entry
}

func New(fire func(Expiry)) *Supervisor {
	if fire == nil {
		fire = func(Expiry) {}
	}
	return &Supervisor{fire: fire, live: make(map[Purpose]entry)}
}

// Arm starts a timer for p, replacing any timer already armed for p.
func (s *Supervisor) Arm(p Purpose, d time.Duration) {
	if s == nil || p == PurposeNone {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.live[p]; ok {
		old.t.Stop()
	}
	s.gen++
	e := Expiry{Purpose: p, Gen: s.gen}
	s.live[p] = entry{gen: e.Gen, t: afterFuncFn(d, func() { s.fire(e) })}
}

// Cancel stops the timer for p, if any.
func (s *Supervisor) Cancel(p Purpose) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.live[p]; ok {
		old.t.Stop()
		delete(s.live, p)
	}
}

// CancelAll stops every armed timer.
func (s *Supervisor) CancelAll() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for p, old := range s.live {
		old.t.Stop()
		delete(s.live, p)
	}
}

// Claim reports whether e is the expiry of the currently armed timer for its
// purpose. A successful claim disarms that purpose.
func (s *Supervisor) Claim(e Expiry) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.live[e.Purpose]
	if !ok || cur.gen != e.Gen {
		return false
	}
	delete(s.live, e.Purpose)
	return true
}

// Armed returns the number of live timers.
func (s *Supervisor) Armed() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// Pending lists the purposes with a live timer, in purpose order.
func (s *Supervisor) Pending() []Purpose {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	out := make([]Purpose, 0, len(s.live))
	for p := range s.live {
		out = append(out, p)
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
