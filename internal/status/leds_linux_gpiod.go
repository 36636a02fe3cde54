//go:build linux && (arm || arm64)

package status

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

// OpenLEDs requests the three BCM GPIO pins as outputs through the GPIO
// character device. pins[0] is LED1.
func OpenLEDs(pins [3]int, consumer string) (*LEDs, error) {
	if consumer == "" {
		consumer = "gnss-tracker-led"
	}

	chips := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "gpiochip") {
			chips = append(chips, filepath.Join("/dev", e.Name()))
		}
	}

	l := &LEDs{}
	for i, pin := range pins {
		if pin <= 0 {
			_ = l.Close()
			return nil, fmt.Errorf("status: invalid gpio pin %d for LED%d", pin, i+1)
		}
		line, chip, err := requestOutput(chips, pin, consumer)
		if err != nil {
			_ = l.Close()
			return nil, err
		}
		l.lines[i] = line
		l.chips = append(l.chips, chip)
	}
	return l, nil
}

func requestOutput(chips []string, pin int, consumer string) (*gpiocdev.Line, *gpiocdev.Chip, error) {
	// On the Pi header lines are named "GPIO<n>".
	name := fmt.Sprintf("GPIO%d", pin)
	for _, path := range chips {
		chip, err := gpiocdev.NewChip(path)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(name)
		if err != nil {
			_ = chip.Close()
			continue
		}
		line, err := chip.RequestLine(offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer(consumer))
		if err != nil {
			_ = chip.Close()
			continue
		}
		return line, chip, nil
	}
	return nil, nil, fmt.Errorf("status: gpio line %q not found (or busy)", name)
}

// LEDs drives three GPIO lines.
type LEDs struct {
	lines [3]*gpiocdev.Line
	chips []*gpiocdev.Chip
}

func (l *LEDs) Show(p Pattern) error {
	if l == nil {
		return fmt.Errorf("status: leds not initialized")
	}
	for i, line := range l.lines {
		if line == nil {
			return fmt.Errorf("status: LED%d not initialized", i+1)
		}
		v := 0
		if p.On(i + 1) {
			v = 1
		}
		if err := line.SetValue(v); err != nil {
			return fmt.Errorf("status: LED%d: %w", i+1, err)
		}
	}
	return nil
}

// Close releases the lines. The LEDs keep whatever level the kernel leaves
// them at after release.
func (l *LEDs) Close() error {
	if l == nil {
		return nil
	}
	var first error
	for i, line := range l.lines {
		if line == nil {
			continue
		}
		if err := line.Close(); err != nil && first == nil {
			first = err
		}
		l.lines[i] = nil
	}
	for _, c := range l.chips {
		_ = c.Close()
	}
	l.chips = nil
	return first
}
