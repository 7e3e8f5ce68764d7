package driver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"gpsmon/internal/gpsmon"
)

// Poster accepts events without blocking. *gpsmon.Monitor implements it.
type Poster interface {
	Post(e gpsmon.Event) bool
}

// DefaultRepeat is how often the same event may be re-posted.
const DefaultRepeat = 5 * time.Second

// Reader scans module output, NMEA lines and SiRF binary frames, and posts
// the classified events.
// A module streaming NMEA repeats the same sentences every second; each event
// is posted again at most once per Repeat.
type Reader struct {
	src    io.Reader
	p      Poster
	log    *logrus.Entry
	repeat time.Duration
	now    func() time.Time

	mu     sync.Mutex
	last   map[gpsmon.Event]time.Time
	posted uint64
	lines  uint64
}

func NewReader(src io.Reader, p Poster, repeat time.Duration, log *logrus.Entry) *Reader {
	if repeat <= 0 {
		repeat = DefaultRepeat
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Reader{
		src:    src,
		p:      p,
		log:    log,
		repeat: repeat,
		now:    time.Now,
		last:   make(map[gpsmon.Event]time.Time),
	}
}

// Run reads until the source ends or ctx is done. A source that is an
// io.Closer is closed on cancellation to unblock the read.
func (r *Reader) Run(ctx context.Context) error {
	if c, ok := r.src.(io.Closer); ok {
		done := make(chan struct{})
		defer close(done)
		go func() {
			select {
			case <-ctx.Done():
				_ = c.Close()
			case <-done:
			}
		}()
	}

	sc := bufio.NewScanner(r.src)
	sc.Buffer(make([]byte, 0, 1024), 64*1024)
	sc.Split(ScanOutput)
	for sc.Scan() {
		r.post(ClassifyToken(sc.Bytes()))
	}
	if err := sc.Err(); err != nil && ctx.Err() == nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("gps read: %w", err)
	}
	return nil
}

// Line classifies and posts one NMEA line.
func (r *Reader) Line(line string) {
	r.post(Classify(line))
}

func (r *Reader) post(ev gpsmon.Event, ok bool) {
	r.mu.Lock()
	r.lines++
	if !ok {
		r.mu.Unlock()
		return
	}
	now := r.now()
	if t, seen := r.last[ev]; seen && now.Sub(t) < r.repeat {
		r.mu.Unlock()
		return
	}
	r.last[ev] = now
	r.posted++
	r.mu.Unlock()

	if !r.p.Post(ev) {
		r.log.WithField("event", ev).Debug("gps event not queued")
	}
}

// Counts returns lines and frames read, and events posted.
func (r *Reader) Counts() (lines, posted uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lines, r.posted
}
