//go:build !linux

package hwline

import "fmt"

// Stub implementation for non-Linux platforms.
func openGPIO(chipPath string, names map[Line]string, consumer string) (Driver, error) {
	return nil, fmt.Errorf("hwline: gpiocdev unsupported on this platform")
}

var openGPIOFn = openGPIO
