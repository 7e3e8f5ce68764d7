package hwline

import (
	"fmt"
	"sync"
)

// Op is one recorded operation on a Mem driver.
type Op struct {
	Line  Line
	Float bool
	Value int
}

func (o Op) String() string {
	if o.Float {
		return fmt.Sprintf("%s=float", o.Line)
	}
	return fmt.Sprintf("%s=%d", o.Line, o.Value)
}

// Mem is an in-memory driver. It backs the "none" backend for bench runs and
// lets tests play the module side through SetInput.
type Mem struct {
	mu      sync.Mutex
	level   [numLines]int
	float   [numLines]bool
	history []Op
	closed  bool
}

func NewMem() *Mem {
	m := &Mem{}
	m.float[LineResetN] = true
	return m
}

func (m *Mem) Set(l Line, v int) error {
	if l < 0 || l >= numLines {
		return ErrNoLine
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v != 0 {
		v = 1
	}
	m.level[l] = v
	m.float[l] = false
	m.history = append(m.history, Op{Line: l, Value: v})
	return nil
}

func (m *Mem) Get(l Line) (int, error) {
	if l < 0 || l >= numLines {
		return 0, ErrNoLine
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level[l], nil
}

func (m *Mem) Float(l Line) error {
	if l < 0 || l >= numLines {
		return ErrNoLine
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.float[l] = true
	m.history = append(m.history, Op{Line: l, Float: true})
	return nil
}

func (m *Mem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetInput sets the level the module presents on l without recording it.
func (m *Mem) SetInput(l Line, v int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v != 0 {
		v = 1
	}
	m.level[l] = v
}

// Floating reports whether l is currently an input.
func (m *Mem) Floating(l Line) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.float[l]
}

// History returns the recorded operations.
func (m *Mem) History() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Op(nil), m.history...)
}

// Closed reports whether Close was called.
func (m *Mem) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
