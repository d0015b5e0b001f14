package callslot

import "fmt"

// Event types emitted on successful transitions.
const (
	EventCalled     = "slot.called"
	EventCancelled  = "slot.cancelled"
	EventDischarged = "slot.discharged"
	EventRecalled   = "slot.recalled"
)

// transitions lists every legal edge between distinct states and the event
// it emits. A move to the current state is always legal and emits nothing.
var transitions = map[Status]map[Status]string{
	StatusInTreatment: {
		StatusBeingCalled: EventCalled,
	},
	StatusBeingCalled: {
		StatusDischarged:  EventDischarged,
		StatusInTreatment: EventCancelled,
	},
	StatusDischarged: {
		StatusInTreatment: EventRecalled,
	},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	_, ok := transitions[from][to]
	return ok
}

// checkTransition returns the event for from -> to, "" for a no-op, or an
// error wrapping ErrInvalidTransition.
func checkTransition(from, to Status) (string, error) {
	if !to.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, to)
	}
	if from == to {
		return "", nil
	}
	ev, ok := transitions[from][to]
	if !ok {
		return "", fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return ev, nil
}
