// Package job owns the session lifecycle: submission, background
// processing, timeout, and retention.
package job

import (
	"errors"
	"fmt"
)

// State is a session lifecycle state. Transitions are strict: queued
// moves to processing, processing moves to exactly one terminal state,
// terminal states never move again.
type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateError      State = "error"
	StateTimeout    State = "timeout"
)

var ErrIllegalTransition = errors.New("illegal state transition")

// Terminal reports whether s is an end state.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateError, StateTimeout:
		return true
	}
	return false
}

// Valid reports whether s is a known lifecycle state.
func (s State) Valid() bool {
	switch s {
	case StateQueued, StateProcessing, StateCompleted, StateError, StateTimeout:
		return true
	}
	return false
}

// Transition validates a state change.
func Transition(from, to State) error {
	if !from.Valid() || !to.Valid() {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	switch {
	case from == StateQueued && to == StateProcessing:
		return nil
	case from == StateProcessing && to.Terminal():
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
}
