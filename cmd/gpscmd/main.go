// Command gpscmd sends one command frame to a running gpsmon and prints the
// reply.
//
//	gpscmd -addr 127.0.0.1:4010 on
//	gpscmd can swver
//	gpscmd raw_tx a0a2000184...
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"gpsmon/internal/cmdchan"
	"gpsmon/internal/gpsmon"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "gpscmd: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("gpscmd", flag.ContinueOnError)
	addr := fs.String("addr", "127.0.0.1:4010", "gpsmon command address (host:port)")
	timeout := fs.Duration("timeout", 3*time.Second, "how long to wait for the reply")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req, err := cmdchan.ParseArgs(fs.Args())
	if err != nil {
		return err
	}
	frame := cmdchan.Encode(req)

	conn, err := net.Dial("udp", *addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, err := conn.Write(frame); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(*timeout))
	buf := make([]byte, 16)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("no reply from %s: %w", *addr, err)
	}
	status, state, err := parseReply(buf[:n])
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%s: %s state=%s\n", req, status, state)
	if status != "accepted" {
		return errors.New("command not accepted")
	}
	return nil
}

func parseReply(b []byte) (status, state string, err error) {
	if len(b) != 2 {
		return "", "", fmt.Errorf("bad reply length %d", len(b))
	}
	switch b[0] {
	case cmdchan.StatusAccepted:
		status = "accepted"
	case cmdchan.StatusRejected:
		status = "rejected"
	case cmdchan.StatusError:
		status = "error"
	default:
		return "", "", fmt.Errorf("bad reply status 0x%02x", b[0])
	}
	state = "?"
	if b[1] != cmdchan.StateUnknown {
		state = gpsmon.State(b[1]).String()
	}
	return status, state, nil
}
