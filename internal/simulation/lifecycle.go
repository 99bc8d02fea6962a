// Package simulation defines the lifecycle of a simulated emergency event.
//
// The state machine is deliberately small: scheduled events may be run or
// cancelled, running events settle into completed, and the two terminal
// states accept nothing. Legality checks live here so every caller shares
// the same transition table; the atomicity of applying a transition against
// shared storage is the runner's responsibility.
package simulation

import "fmt"

// Status is a lifecycle state of a simulated event.
type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// EventType identifies the emergency scenario being rehearsed.
type EventType string

const (
	EventFire     EventType = "fire"
	EventGas      EventType = "gas"
	EventIntruder EventType = "intruder"
	EventWater    EventType = "water"
	EventPower    EventType = "power"
)

var eventTypes = map[EventType]struct{}{
	EventFire:     {},
	EventGas:      {},
	EventIntruder: {},
	EventWater:    {},
	EventPower:    {},
}

// ValidEventType reports whether t is a member of the event-type set.
func ValidEventType(t EventType) bool {
	_, ok := eventTypes[t]
	return ok
}

// ValidStatus reports whether s is a member of the status set.
func ValidStatus(s Status) bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether s admits no further transitions.
func Terminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled
}

var transitions = map[Status]map[Status]struct{}{
	StatusScheduled: {
		StatusInProgress: {},
		StatusCancelled:  {},
	},
	StatusInProgress: {
		StatusCompleted: {},
	},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	next, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// CheckTransition returns a TransitionError when the move is illegal.
func CheckTransition(from, to Status) error {
	if CanTransition(from, to) {
		return nil
	}
	return &TransitionError{From: from, To: to}
}

// TransitionError reports an illegal state-machine move. The attempted
// transition is preserved so callers can log or surface it.
type TransitionError struct {
	From Status
	To   Status
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("simulation: invalid transition %s -> %s", e.From, e.To)
}
