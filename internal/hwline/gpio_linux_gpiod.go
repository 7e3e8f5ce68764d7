//go:build linux

package hwline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/warthog618/go-gpiocdev"
)

// openGPIO requests the named lines from a Linux GPIO character device.
//
// Module outputs (awake, rts) are requested as inputs. RESETN starts floating
// so the module is never back-powered through it. Everything else starts as an
// output driven low.
func openGPIO(chipPath string, names map[Line]string, consumer string) (Driver, error) {
	chipCandidates := []string{}
	if p := strings.TrimSpace(chipPath); p != "" {
		chipCandidates = append(chipCandidates, p)
	} else {
		entries, _ := os.ReadDir("/dev")
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), "gpiochip") {
				chipCandidates = append(chipCandidates, filepath.Join("/dev", e.Name()))
			}
		}
	}

	var lastErr error
	for _, path := range chipCandidates {
		g, err := requestLines(path, names, consumer)
		if err != nil {
			lastErr = err
			continue
		}
		return g, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no gpiochip found")
	}
	return nil, fmt.Errorf("hwline: gpiocdev: %w", lastErr)
}

var openGPIOFn = openGPIO

func requestLines(path string, names map[Line]string, consumer string) (*gpiodLines, error) {
	chip, err := gpiocdev.NewChip(path)
	if err != nil {
		return nil, err
	}
	g := &gpiodLines{chip: chip, lines: make(map[Line]*gpiocdev.Line, len(names))}
	for l, name := range names {
		offset, err := chip.FindLine(name)
		if err != nil {
			_ = g.Close()
			return nil, fmt.Errorf("%s: line %q (%s): %w", path, name, l, err)
		}
		var cfg gpiocdev.LineReqOption = gpiocdev.AsOutput(0)
		if l.isInput() || l == LineResetN {
			cfg = gpiocdev.AsInput
			g.floating[l] = true
		}
		line, err := chip.RequestLine(offset, cfg, gpiocdev.WithConsumer(consumer))
		if err != nil {
			_ = g.Close()
			return nil, fmt.Errorf("%s: request %q (%s): %w", path, name, l, err)
		}
		g.lines[l] = line
	}
	return g, nil
}

type gpiodLines struct {
	mu       sync.Mutex
	chip     *gpiocdev.Chip
	lines    map[Line]*gpiocdev.Line
	floating [numLines]bool
}

func (g *gpiodLines) Set(l Line, v int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	line, ok := g.lines[l]
	if !ok {
		return ErrNoLine
	}
	if v != 0 {
		v = 1
	}
	if g.floating[l] {
		if err := line.Reconfigure(gpiocdev.AsOutput(v)); err != nil {
			return fmt.Errorf("hwline: %s to output: %w", l, err)
		}
		g.floating[l] = false
		return nil
	}
	return line.SetValue(v)
}

func (g *gpiodLines) Get(l Line) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	line, ok := g.lines[l]
	if !ok {
		return 0, ErrNoLine
	}
	return line.Value()
}

func (g *gpiodLines) Float(l Line) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	line, ok := g.lines[l]
	if !ok {
		return ErrNoLine
	}
	if g.floating[l] {
		return nil
	}
	if err := line.Reconfigure(gpiocdev.AsInput); err != nil {
		return fmt.Errorf("hwline: %s to input: %w", l, err)
	}
	g.floating[l] = true
	return nil
}

func (g *gpiodLines) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var first error
	for l, line := range g.lines {
		if l == LineOnOff && !g.floating[l] {
			_ = line.SetValue(0)
		}
		if err := line.Close(); err != nil && first == nil {
			first = err
		}
		delete(g.lines, l)
	}
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return first
}
