package udp

import (
	"errors"
	"fmt"
	"net"
	"sync/atomic"
)

// MaxNotification is the largest payload Send will put on the wire: one
// unfragmented datagram on a 1500 byte MTU link.
const MaxNotification = 1472

// ErrTooLarge is returned by Send for payloads over MaxNotification.
var ErrTooLarge = errors.New("udp payload too large")

type udpConn interface {
	Write(p []byte) (int, error)
	Close() error
}

// dialer opens the connected socket for a resolved destination.
type dialer func(raddr *net.UDPAddr) (udpConn, error)

// Broadcaster pushes encoded monitor notifications to one collector.
type Broadcaster struct {
	dest string
	conn udpConn

	sent   atomic.Uint64
	failed atomic.Uint64
}

func NewBroadcaster(dest string) (*Broadcaster, error) {
	return newBroadcaster(dest, func(raddr *net.UDPAddr) (udpConn, error) {
		// A nil laddr lets the kernel pick the source address.
		return net.DialUDP("udp", nil, raddr)
	})
}

func newBroadcaster(dest string, dial dialer) (*Broadcaster, error) {
	addr, err := net.ResolveUDPAddr("udp", dest)
	if err != nil {
		return nil, fmt.Errorf("notify dest %q: %w", dest, err)
	}
	conn, err := dial(addr)
	if err != nil {
		return nil, fmt.Errorf("notify dest %q: %w", dest, err)
	}
	return &Broadcaster{dest: addr.String(), conn: conn}, nil
}

// Dest is the resolved destination.
func (b *Broadcaster) Dest() string { return b.dest }

// Send writes payload as one datagram. Empty payloads are skipped.
func (b *Broadcaster) Send(payload []byte) error {
	switch {
	case len(payload) == 0:
		return nil
	case len(payload) > MaxNotification:
		b.failed.Add(1)
		return fmt.Errorf("%w: %d bytes", ErrTooLarge, len(payload))
	}
	if _, err := b.conn.Write(payload); err != nil {
		b.failed.Add(1)
		return err
	}
	b.sent.Add(1)
	return nil
}

// Counts reports datagrams sent and sends that failed.
func (b *Broadcaster) Counts() (sent, failed uint64) {
	return b.sent.Load(), b.failed.Load()
}

func (b *Broadcaster) Close() error {
	if b == nil || b.conn == nil {
		return nil
	}
	return b.conn.Close()
}
