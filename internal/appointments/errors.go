package appointments

import (
	"errors"
	"fmt"

	"github.com/wolfman30/clinic-scheduling/internal/scheduling"
)

var (
	// ErrAppointmentNotFound is returned when an appointment does not exist for the clinic
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrInvalidRequest is returned when a booking request fails validation
	ErrInvalidRequest = errors.New("invalid appointment request")

	// ErrSlotUnavailable is returned when the resolver refuses the requested slot
	ErrSlotUnavailable = errors.New("slot unavailable")

	// ErrSlotTaken is returned when another booking won the slot between the
	// availability check and the write. Callers may retry with another slot.
	ErrSlotTaken = errors.New("this time was just taken, please pick another")

	// ErrInvalidTransition is returned for status changes the lifecycle forbids
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrOutsideWorkingHours is returned when the slot falls outside the clinic's hours
	ErrOutsideWorkingHours = errors.New("slot outside working hours")
)

// UnavailableError carries the resolver decision behind a refused booking.
type UnavailableError struct {
	Decision scheduling.Decision
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s (%s)", ErrSlotUnavailable.Error(), e.Decision.Mode)
}

func (e *UnavailableError) Unwrap() error {
	return ErrSlotUnavailable
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}
