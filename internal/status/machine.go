package status

import (
	"log/slog"
)

// Indicator drives the physical status LEDs.
type Indicator interface {
	Show(p Pattern) error
}

// NopIndicator discards patterns. It is used when no LEDs are wired.
type NopIndicator struct{}

func (NopIndicator) Show(Pattern) error { return nil }

// Machine owns the current operational state. It is written only by the
// control loop; once a halting state is entered it ignores further input.
type Machine struct {
	mode Mode
	ind  Indicator
	log  *slog.Logger

	state   State
	pattern Pattern
	halted  bool

	observe func(State, Pattern, Outcome)
}

func NewMachine(mode Mode, ind Indicator, logger *slog.Logger) *Machine {
	if ind == nil {
		ind = NopIndicator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{mode: mode, ind: ind, log: logger, state: Idle}
}

// Observe registers fn to be called after every accepted transition.
func (m *Machine) Observe(fn func(State, Pattern, Outcome)) {
	m.observe = fn
}

// Enter makes s the current state, shows its pattern and returns the
// resulting outcome. After a halt, Enter is a no-op that returns Halt.
func (m *Machine) Enter(s State) Outcome {
	if m.halted {
		return Halt
	}

	p, out := Apply(s, m.mode)
	prev := m.state
	m.state = s
	m.pattern = p
	if err := m.ind.Show(p); err != nil {
		m.log.Warn("status led update failed", "state", s.String(), "error", err)
	}
	if prev != s {
		m.log.Info("state changed", "from", prev.String(), "to", s.String(), "leds", p.String())
	}
	if out == Halt {
		m.halted = true
		m.log.Error("device halted", "state", s.String(), "leds", p.String())
	}
	if m.observe != nil {
		m.observe(s, p, out)
	}
	return out
}

// Fail enters s and wraps cause into the terminal error when s halts. It
// returns nil when s does not halt.
func (m *Machine) Fail(s State, cause error) error {
	if m.Enter(s) != Halt {
		return nil
	}
	return &HaltError{State: m.state, Pattern: m.pattern, Cause: cause}
}

func (m *Machine) State() State     { return m.state }
func (m *Machine) Pattern() Pattern { return m.pattern }
func (m *Machine) Mode() Mode       { return m.mode }
func (m *Machine) Halted() bool     { return m.halted }
