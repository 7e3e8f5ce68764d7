package transport

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"gpsmon/internal/replay"
)

// replayPort feeds a recorded capture to the reader and accepts writes
// without sending them anywhere.
type replayPort struct {
	pr     *io.PipeReader
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	written int
}

func openReplay(path string, speed float64, loop bool) (*replayPort, error) {
	recs, err := replay.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if speed <= 0 {
		speed = 1
	}
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	p := &replayPort{pr: pr, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		err := replay.Play(ctx, recs, speed, loop, nil, func(b []byte) error {
			_, err := pw.Write(b)
			return err
		})
		if errors.Is(err, context.Canceled) {
			err = nil
		}
		_ = pw.CloseWithError(err)
	}()
	return p, nil
}

func (p *replayPort) Read(b []byte) (int, error) { return p.pr.Read(b) }

func (p *replayPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	p.written += len(b)
	p.mu.Unlock()
	return len(b), nil
}

func (p *replayPort) Close() error {
	p.cancel()
	_ = p.pr.Close()
	<-p.done
	return nil
}

// capturePort records every chunk read through it.
type capturePort struct {
	Port
	w   *replay.Writer
	now func() time.Time
}

func newCapture(p Port, path string) (*capturePort, error) {
	w, err := replay.CreateWriter(path)
	if err != nil {
		return nil, err
	}
	return &capturePort{Port: p, w: w, now: time.Now}, nil
}

func (c *capturePort) Read(b []byte) (int, error) {
	n, err := c.Port.Read(b)
	if n > 0 {
		_ = c.w.WriteChunk(c.now(), b[:n])
	}
	return n, err
}

func (c *capturePort) Close() error {
	err := c.Port.Close()
	if cerr := c.w.Close(); err == nil {
		err = cerr
	}
	return err
}
