//go:build !linux || (!arm && !arm64)

package status

import "fmt"

// LEDs is unavailable on this platform.
type LEDs struct{}

func OpenLEDs(pins [3]int, consumer string) (*LEDs, error) {
	return nil, fmt.Errorf("status: gpio leds unsupported on this platform")
}

func (l *LEDs) Show(Pattern) error { return fmt.Errorf("status: gpio leds unsupported on this platform") }

func (l *LEDs) Close() error { return nil }
