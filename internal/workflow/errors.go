package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when an action is not legal for the
	// current status or the acting role.
	ErrInvalidTransition = errors.New("workflow: invalid transition")
	// ErrMissingReason is returned when a rejection or information request
	// carries no text.
	ErrMissingReason = errors.New("workflow: reason is required")
	// ErrPreconditionFailed is returned when data required by a transition is
	// incomplete, e.g. finance approval without banking details.
	ErrPreconditionFailed = errors.New("workflow: precondition failed")
)
