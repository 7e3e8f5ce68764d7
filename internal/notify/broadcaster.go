// Package notify fans monitor notifications out to the web UI and to
// external collectors.
package notify

import (
	"sync"
	"sync/atomic"

	"gpsmon/internal/gpsmon"
)

// DefaultHistory is how many recent notifications are kept for new viewers.
const DefaultHistory = 64

// Broadcaster implements gpsmon.Notifier. Notify never blocks: a subscriber
// whose buffer is full misses the notification.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]chan gpsmon.Notification
	nextID int

	histMu  sync.Mutex
	hist    []gpsmon.Notification
	histMax int

	missed atomic.Uint64
}

func NewBroadcaster(history int) *Broadcaster {
	if history <= 0 {
		history = DefaultHistory
	}
	return &Broadcaster{
		subs:    make(map[int]chan gpsmon.Notification),
		histMax: history,
	}
}

func (b *Broadcaster) Subscribe(buffer int) (int, <-chan gpsmon.Notification) {
	if b == nil {
		return 0, nil
	}
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan gpsmon.Notification, buffer)
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()
	return id, ch
}

func (b *Broadcaster) Unsubscribe(id int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	ch, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()
}

func (b *Broadcaster) Notify(n gpsmon.Notification) {
	if b == nil {
		return
	}
	b.histMu.Lock()
	b.hist = append(b.hist, n)
	if over := len(b.hist) - b.histMax; over > 0 {
		b.hist = b.hist[over:]
	}
	b.histMu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
			b.missed.Add(1)
		}
	}
}

// Recent returns up to n of the latest notifications, oldest first.
func (b *Broadcaster) Recent(n int) []gpsmon.Notification {
	if b == nil {
		return nil
	}
	b.histMu.Lock()
	defer b.histMu.Unlock()
	if n <= 0 || n > len(b.hist) {
		n = len(b.hist)
	}
	return append([]gpsmon.Notification(nil), b.hist[len(b.hist)-n:]...)
}

// Missed counts notifications dropped for slow subscribers.
func (b *Broadcaster) Missed() uint64 {
	if b == nil {
		return 0
	}
	return b.missed.Load()
}
