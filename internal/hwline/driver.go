package hwline

import (
	"errors"
	"fmt"
	"strings"
)

// Line is a logical GPS control line.
type Line int

const (
	LineAwake Line = iota
	LineCTS
	LineRTS
	LineResetN
	LineOnOff
	LineTell
	LineTellExc
	numLines
)

var lineNames = [numLines]string{
	LineAwake:   "awake",
	LineCTS:     "cts",
	LineRTS:     "rts",
	LineResetN:  "reset_n",
	LineOnOff:   "on_off",
	LineTell:    "tell",
	LineTellExc: "tell_exc",
}

func (l Line) String() string {
	if l >= 0 && l < numLines {
		return lineNames[l]
	}
	return fmt.Sprintf("line(%d)", int(l))
}

// ParseLine maps a config key ("reset_n") to a Line.
func ParseLine(name string) (Line, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range lineNames {
		if n == name {
			return Line(i), nil
		}
	}
	return 0, fmt.Errorf("hwline: unknown line %q", name)
}

// isInput reports lines the module drives and we only sample.
func (l Line) isInput() bool {
	switch l {
	case LineAwake, LineRTS:
		return true
	}
	return false
}

// ErrNoLine is returned for a line the backend was not configured with.
var ErrNoLine = errors.New("hwline: line not configured")

// Driver is the minimal interface the controller needs from a GPIO backend.
//
// Set drives a line as an output, switching it to output if it was floating.
// Float turns a line into a high-impedance input.
// Close should be best-effort and leave the lines in a safe state.
type Driver interface {
	Set(l Line, v int) error
	Get(l Line) (int, error)
	Float(l Line) error
	Close() error
}

// Required lists the lines every hardware backend must be given.
var Required = []Line{LineAwake, LineResetN, LineOnOff}

// Config selects and configures a backend.
type Config struct {
	// Backend is "gpiocdev", "periph" or "none".
	Backend string
	// Chip is the gpiochip device for the gpiocdev backend. Empty scans /dev.
	Chip string
	// Lines maps logical names ("awake", "reset_n", ...) to backend line names.
	Lines map[string]string
	// Consumer labels requested lines (gpiocdev only).
	Consumer string
}

// Open returns the driver selected by cfg.Backend.
func Open(cfg Config) (Driver, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" || backend == "none" {
		return NewMem(), nil
	}

	names := make(map[Line]string, len(cfg.Lines))
	for k, v := range cfg.Lines {
		l, err := ParseLine(k)
		if err != nil {
			return nil, err
		}
		if v = strings.TrimSpace(v); v != "" {
			names[l] = v
		}
	}
	for _, l := range Required {
		if names[l] == "" {
			return nil, fmt.Errorf("hwline: %s line is required for backend %q", l, backend)
		}
	}
	consumer := cfg.Consumer
	if consumer == "" {
		consumer = "gpsmon"
	}

	switch backend {
	case "gpiocdev":
		return openGPIOFn(cfg.Chip, names, consumer)
	case "periph":
		return openPeriphFn(names)
	default:
		return nil, fmt.Errorf("hwline: unknown backend %q", cfg.Backend)
	}
}
