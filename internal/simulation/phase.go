package simulation

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is returned when the driver is asked to move between
// phases the run lifecycle does not allow.
var ErrInvalidTransition = errors.New("invalid phase transition")

// Phase is the lifecycle state of a Driver.
type Phase string

const (
	PhaseSeeded   Phase = "SEEDED"
	PhaseStepping Phase = "STEPPING"
	PhaseDone     Phase = "DONE"
)

// transition validates a lifecycle move: Seeded -> Stepping -> Done.
// Each phase is entered once and Done is terminal.
func transition(from, to Phase) error {
	switch from {
	case PhaseSeeded:
		if to == PhaseStepping {
			return nil
		}
	case PhaseStepping:
		if to == PhaseDone {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// requirePhase reports an invalid transition when an operation runs outside
// the phase it belongs to.
func requirePhase(current, want Phase, op string) error {
	if current != want {
		return fmt.Errorf("%w: %s in phase %s", ErrInvalidTransition, op, current)
	}
	return nil
}
