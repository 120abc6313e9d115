// Package draft holds the editable, not yet persisted order a salesperson
// reviews after a note has been processed. A [Session] is an explicit state
// machine with pure transition methods and no rendering concerns; a
// [Manager] keeps one live session per user for concurrent callers.
package draft

import (
	"errors"
	"fmt"
)

// State is the lifecycle stage of a draft.
type State int

const (
	// StateEmpty means no note has been processed yet, or the last run
	// failed.
	StateEmpty State = iota

	// StateProcessing means a processing run is in flight.
	StateProcessing

	// StateDrafted means an order is awaiting review and confirmation.
	StateDrafted

	// StateConfirmed means the order and task were written to the ledger.
	StateConfirmed

	// StateCancelled means the draft was discarded.
	StateCancelled
)

var stateNames = [...]string{"empty", "processing", "drafted", "confirmed", "cancelled"}

// String returns the lower-case state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText implements [encoding.TextMarshaler].
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// active reports whether the state counts towards the active drafts gauge.
func (s State) active() bool {
	return s == StateProcessing || s == StateDrafted
}

var (
	// ErrInvalidTransition is returned when an operation is not legal in the
	// session's current state.
	ErrInvalidTransition = errors.New("draft: invalid state transition")

	// ErrNoSession is returned for a user without a session.
	ErrNoSession = errors.New("draft: no session for user")

	// ErrStaleRun is returned when a processing result arrives for a run
	// that has since been superseded or abandoned.
	ErrStaleRun = errors.New("draft: processing run is no longer current")

	// ErrItemIndex is returned for a line-item index out of range.
	ErrItemIndex = errors.New("draft: line item index out of range")

	// ErrEmptyProduct is returned when adding a line item without a name.
	ErrEmptyProduct = errors.New("draft: product name is empty")
)

func invalid(op string, s State) error {
	return fmt.Errorf("%w: %s while %s", ErrInvalidTransition, op, s)
}
