// Package model defines the data structures shared by the tracker and
// discovery services.
//
// Tracked states:
//
//	new ─ saved ─ applied ─ interview ─ offer
//	                                   └─ rejected
//
// The drawing is the usual progression only. Any state may follow any other;
// the history log records what happened, it does not police it.
package model

import (
	"errors"
	"fmt"
)

// State values mirror the CHECK constraint on job_state_history.state.
type State string

const (
	StateNew       State = "new"
	StateSaved     State = "saved"
	StateApplied   State = "applied"
	StateInterview State = "interview"
	StateOffer     State = "offer"
	StateRejected  State = "rejected"
)

// ErrInvalidState is wrapped by ParseState for values outside the enumeration.
var ErrInvalidState = errors.New("invalid state")

// AllStates returns the enumeration in board order.
func AllStates() []State {
	return []State{StateNew, StateSaved, StateApplied, StateInterview, StateOffer, StateRejected}
}

// ParseState converts a raw string to a State. Matching is exact: no case
// folding, no trimming.
func ParseState(s string) (State, error) {
	st := State(s)
	switch st {
	case StateNew, StateSaved, StateApplied, StateInterview, StateOffer, StateRejected:
		return st, nil
	}
	return "", fmt.Errorf("%w %q: must be one of new, saved, applied, interview, offer, rejected", ErrInvalidState, s)
}

// IsTerminal reports whether s ends the pipeline for a posting. It is
// informational only; terminal jobs can still be moved.
func IsTerminal(s State) bool { return s == StateOffer || s == StateRejected }
