package promotion

import (
	"errors"
	"fmt"

	"github.com/felixgeelhaar/statekit"

	rperrors "github.com/spinnaker/spinnaker-sub014/internal/errors"
)

// ErrInvalidTransition indicates the lifecycle does not accept the event in the current status.
var ErrInvalidTransition = errors.New("invalid promotion transition")

// TransitionError describes a rejected lifecycle event.
type TransitionError struct {
	From  Status
	Event statekit.EventType
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	if e.From == StatusVetoed {
		return fmt.Sprintf("cannot %s a vetoed version; delete the veto first", e.Event)
	}
	return fmt.Sprintf("cannot %s a version in status %s", e.Event, e.From)
}

// Unwrap returns the sentinel for errors.Is compatibility.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// NewTransitionError returns a state error for the rejected event.
func NewTransitionError(from Status, event statekit.EventType) error {
	return rperrors.StateWrap(&TransitionError{From: from, Event: event},
		"promotion.Transition", "transition rejected")
}
