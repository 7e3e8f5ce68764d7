// Package transport opens the byte stream to the GPS module.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// DefaultBaud is the module's power-on NMEA rate.
const DefaultBaud = 9600

// Port is an open link to the module.
type Port interface {
	io.ReadWriteCloser
}

type Config struct {
	// Backend is "serial" (go.bug.st/serial), "termios" (raw Linux termios),
	// "replay" (plays the capture file named by Device) or "none". Empty
	// means "none".
	Backend string
	Device  string
	Baud    int

	// Capture, when set, records everything read from the module to this
	// file in replay format.
	Capture string
	// ReplaySpeed scales replay timing; 0 means real time.
	ReplaySpeed float64
	ReplayLoop  bool
}

var (
	openSerialFn  = openSerial
	openTermiosFn = openTermios
)

// Open opens the configured backend, wrapped in a capture tee when
// cfg.Capture is set. ctx only bounds the open itself.
func Open(ctx context.Context, cfg Config) (Port, error) {
	p, err := open(ctx, cfg)
	if err != nil || strings.TrimSpace(cfg.Capture) == "" {
		return p, err
	}
	c, err := newCapture(p, cfg.Capture)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("capture %s: %w", cfg.Capture, err)
	}
	return c, nil
}

func open(ctx context.Context, cfg Config) (Port, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" || backend == "none" {
		return NewDiscard(), nil
	}
	dev := strings.TrimSpace(cfg.Device)
	if dev == "" {
		return nil, fmt.Errorf("transport %s: device is empty", backend)
	}
	baud := cfg.Baud
	if baud <= 0 {
		baud = DefaultBaud
	}
	switch backend {
	case "serial":
		p, err := openSerialFn(dev, baud)
		if err != nil {
			return nil, fmt.Errorf("open serial %s: %w", dev, err)
		}
		return p, nil
	case "termios":
		p, err := openTermiosFn(dev, baud)
		if err != nil {
			return nil, fmt.Errorf("open termios %s: %w", dev, err)
		}
		return p, nil
	case "replay":
		p, err := openReplay(dev, cfg.ReplaySpeed, cfg.ReplayLoop)
		if err != nil {
			return nil, fmt.Errorf("open replay %s: %w", dev, err)
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown transport backend %q", cfg.Backend)
}

// Link adapts a Port to the monitor's Send. Writes are serialized and always
// complete or fail as a whole.
type Link struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLink(w io.Writer) *Link { return &Link{w: w} }

var ErrShortWrite = errors.New("short write to gps module")

func (l *Link) Send(b []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(b) > 0 {
		n, err := l.w.Write(b)
		if err != nil {
			return fmt.Errorf("gps write: %w", err)
		}
		if n == 0 {
			return ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}

// Discard is the "none" backend: writes vanish and reads block until Close.
type Discard struct {
	once   sync.Once
	closed chan struct{}

	mu      sync.Mutex
	written int
}

func NewDiscard() *Discard { return &Discard{closed: make(chan struct{})} }

func (d *Discard) Read(p []byte) (int, error) {
	<-d.closed
	return 0, io.EOF
}

func (d *Discard) Write(p []byte) (int, error) {
	select {
	case <-d.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	d.mu.Lock()
	d.written += len(p)
	d.mu.Unlock()
	return len(p), nil
}

// Written is the number of bytes accepted so far.
func (d *Discard) Written() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.written
}

func (d *Discard) Close() error {
	d.once.Do(func() { close(d.closed) })
	return nil
}
