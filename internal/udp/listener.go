package udp

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// MaxDatagram bounds one received frame.
const MaxDatagram = 512

// Handler answers one datagram. An empty reply sends nothing.
type Handler func(ctx context.Context, from net.Addr, frame []byte) []byte

// Listener receives command datagrams and answers each one in order.
type Listener struct {
	conn net.PacketConn
}

func Listen(addr string) (*Listener, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen udp %s: %w", addr, err)
	}
	return &Listener{conn: conn}, nil
}

func (l *Listener) Addr() net.Addr { return l.conn.LocalAddr() }

// Serve reads datagrams until ctx is done or the listener is closed. Replies
// are best effort.
func (l *Listener) Serve(ctx context.Context, h Handler) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = l.conn.Close()
		case <-done:
		}
	}()

	buf := make([]byte, MaxDatagram)
	for {
		n, from, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("udp read: %w", err)
		}
		frame := append([]byte(nil), buf[:n]...)
		if reply := h(ctx, from, frame); len(reply) > 0 {
			_, _ = l.conn.WriteTo(reply, from)
		}
	}
}

func (l *Listener) Close() error {
	if l == nil || l.conn == nil {
		return nil
	}
	return l.conn.Close()
}
