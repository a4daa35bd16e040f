package appointment

import (
	"errors"
	"fmt"
)

var (
	ErrAppointmentNotFound     = errors.New("appointment not found")
	ErrAppointmentConflict     = errors.New("the dentist already has an appointment in that time slot")
	ErrInvalidStatusTransition = errors.New("invalid appointment status transition")
	ErrInvalidStatus           = errors.New("invalid appointment status")
)

// TransitionError names the status an appointment was in when a change was refused.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	if e.To == StatusConfirmed {
		return fmt.Sprintf("Cannot confirm an appointment with status '%s'.", e.From)
	}
	return fmt.Sprintf("Cannot change appointment status from '%s' to '%s'.", e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidStatusTransition
}
