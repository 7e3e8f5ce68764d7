package cmdchan

import (
	"context"
	"net"

	"gpsmon/internal/udp"
)

// ServeUDP answers command datagrams on l until ctx is done. Each datagram is
// one frame; the reply is Reply's two bytes.
func (c *Channel) ServeUDP(ctx context.Context, l *udp.Listener) error {
	c.log.WithField("addr", l.Addr().String()).Info("gps command listener up")
	return l.Serve(ctx, func(ctx context.Context, from net.Addr, frame []byte) []byte {
		out, err := c.Handle(ctx, frame)
		return Reply(out, err)
	})
}
