//go:build !linux

package transport

import "fmt"

func openTermios(dev string, baud int) (Port, error) {
	return nil, fmt.Errorf("termios transport not supported on this platform")
}
