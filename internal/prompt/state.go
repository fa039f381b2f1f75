package prompt

import (
	"errors"
	"fmt"
	"strings"
)

// State is a prompt session lifecycle state.
type State string

const (
	// StateOpen is the initial state: the dialog is presented and awaiting input.
	StateOpen State = "open"
	// StateValidationFailed is the transient state after a rejected submission.
	StateValidationFailed State = "validation_failed"
	// StateSubmitted is terminal: the session resolved with a value.
	StateSubmitted State = "submitted"
	// StateCancelled is terminal: the session resolved without a value.
	StateCancelled State = "cancelled"
)

var (
	// ErrCancelled is returned by Await when the user cancelled or dismissed the prompt.
	ErrCancelled = errors.New("prompt cancelled")
	// ErrAlreadyResolved is returned when a terminal action targets a finished session.
	ErrAlreadyResolved = errors.New("prompt session already resolved")
)

var allowedTransitions = map[State]map[State]struct{}{
	StateOpen: {
		StateValidationFailed: {},
		StateSubmitted:        {},
		StateCancelled:        {},
	},
	StateValidationFailed: {
		StateOpen:      {},
		StateCancelled: {},
	},
}

// Terminal reports whether s ends the session.
func (s State) Terminal() bool {
	return s == StateSubmitted || s == StateCancelled
}

// IllegalTransitionError is returned for a transition outside the session lifecycle.
type IllegalTransitionError struct {
	SessionID string
	FromState State
	ToState   State
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf(
		"cannot transition prompt session %q from %q to %q",
		strings.TrimSpace(e.SessionID),
		e.FromState,
		e.ToState,
	)
}

// Is enables errors.Is checks for illegal transition failures.
func (e *IllegalTransitionError) Is(target error) bool {
	_, ok := target.(*IllegalTransitionError)
	return ok
}

func isAllowed(from, to State) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}
