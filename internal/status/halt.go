package status

import "fmt"

// HaltError is the terminal outcome of the control loop. Only an external
// reset recovers from it.
type HaltError struct {
	State   State
	Pattern Pattern
	Cause   error
}

func (e *HaltError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("device halted in %s: %v", e.State, e.Cause)
	}
	return fmt.Sprintf("device halted in %s", e.State)
}

func (e *HaltError) Unwrap() error { return e.Cause }
