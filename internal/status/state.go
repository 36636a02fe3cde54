// Package status maps the tracker's operational state onto its three status
// LEDs and decides when the device must stop.
package status

import (
	"fmt"
	"strings"
)

// State is the tracker's operational state.
type State int

const (
	Idle State = iota
	RenewingFile
	AwaitingFix
	Sampling
	RecoverableError
	FatalWriteError
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RenewingFile:
		return "renewing_file"
	case AwaitingFix:
		return "awaiting_fix"
	case Sampling:
		return "sampling"
	case RecoverableError:
		return "recoverable_error"
	case FatalWriteError:
		return "fatal_write_error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Mode selects the LED pattern set. It is fixed at build/deploy time and is
// not part of the persisted settings.
type Mode int

const (
	// ModeMinimal only lights LEDs for a missing fix and for errors.
	ModeMinimal Mode = iota
	// ModeVerbose shows a distinct pattern for every state.
	ModeVerbose
)

func (m Mode) String() string {
	if m == ModeVerbose {
		return "verbose"
	}
	return "minimal"
}

// ParseMode accepts "verbose" or "minimal" (case-insensitive). Empty selects
// minimal.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "minimal":
		return ModeMinimal, nil
	case "verbose", "debug":
		return ModeVerbose, nil
	default:
		return ModeMinimal, fmt.Errorf("status: unknown led mode %q", s)
	}
}

// Pattern is the on/off combination of LED1..LED3 (bit 0 is LED1).
type Pattern uint8

const (
	LED1 Pattern = 1 << iota
	LED2
	LED3

	Off Pattern = 0
	All         = LED1 | LED2 | LED3
)

// On reports whether LED i (1-based) is lit.
func (p Pattern) On(i int) bool {
	if i < 1 || i > 3 {
		return false
	}
	return p&(1<<(i-1)) != 0
}

func (p Pattern) String() string {
	var b [3]byte
	for i := 1; i <= 3; i++ {
		b[i-1] = '-'
		if p.On(i) {
			b[i-1] = '*'
		}
	}
	return string(b[:])
}

// Outcome tells the control loop whether to keep running.
type Outcome int

const (
	Continue Outcome = iota
	Halt
)

func (o Outcome) String() string {
	if o == Halt {
		return "halt"
	}
	return "continue"
}

// Apply returns the LED pattern for state under mode and whether the device
// must halt. It has no side effects.
func Apply(state State, mode Mode) (Pattern, Outcome) {
	if mode == ModeVerbose {
		switch state {
		case Idle:
			return LED1, Continue
		case RenewingFile:
			return LED1 | LED2, Continue
		case AwaitingFix:
			return LED3, Continue
		case Sampling:
			return LED1 | LED3, Continue
		case RecoverableError:
			return LED2 | LED3, Halt
		case FatalWriteError:
			return All, Halt
		default:
			return All, Halt
		}
	}

	switch state {
	case AwaitingFix:
		return LED2, Continue
	case RecoverableError, FatalWriteError:
		return LED3, Halt
	default:
		return Off, Continue
	}
}
