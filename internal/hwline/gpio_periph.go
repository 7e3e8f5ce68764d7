package hwline

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// openPeriph resolves lines through the periph.io pin registry, so any name
// gpioreg knows ("GPIO17", "P1_11", aliases) can be used.
func openPeriph(names map[Line]string) (Driver, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("hwline: periph host init: %w", err)
	}
	p := &periphLines{pins: make(map[Line]gpio.PinIO, len(names))}
	for l, name := range names {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("hwline: periph pin %q (%s) not found", name, l)
		}
		var err error
		if l.isInput() || l == LineResetN {
			err = pin.In(gpio.Float, gpio.NoEdge)
			p.floating[l] = true
		} else {
			err = pin.Out(gpio.Low)
		}
		if err != nil {
			return nil, fmt.Errorf("hwline: periph pin %q (%s): %w", name, l, err)
		}
		p.pins[l] = pin
	}
	return p, nil
}

var openPeriphFn = openPeriph

type periphLines struct {
	mu       sync.Mutex
	pins     map[Line]gpio.PinIO
	floating [numLines]bool
}

func (p *periphLines) Set(l Line, v int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pin, ok := p.pins[l]
	if !ok {
		return ErrNoLine
	}
	p.floating[l] = false
	return pin.Out(gpio.Level(v != 0))
}

func (p *periphLines) Get(l Line) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pin, ok := p.pins[l]
	if !ok {
		return 0, ErrNoLine
	}
	if pin.Read() == gpio.High {
		return 1, nil
	}
	return 0, nil
}

func (p *periphLines) Float(l Line) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	pin, ok := p.pins[l]
	if !ok {
		return ErrNoLine
	}
	if p.floating[l] {
		return nil
	}
	if err := pin.In(gpio.Float, gpio.NoEdge); err != nil {
		return err
	}
	p.floating[l] = true
	return nil
}

func (p *periphLines) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pin, ok := p.pins[LineOnOff]; ok && !p.floating[LineOnOff] {
		_ = pin.Out(gpio.Low)
	}
	var first error
	for l, pin := range p.pins {
		if err := pin.Halt(); err != nil && first == nil {
			first = err
		}
		delete(p.pins, l)
	}
	return first
}
