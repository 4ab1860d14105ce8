package registrations

import "errors"

// Domain errors surfaced to handlers so they can set the right HTTP status.
// Capacity and duplicate-registration outcomes are expected, user-facing
// conditions, not server errors.
var (
	ErrEventNotFound           = errors.New("event not found")
	ErrRegistrationNotFound    = errors.New("registration not found")
	ErrEventNotOpen            = errors.New("event not open for registration")
	ErrCapacityExceeded        = errors.New("event is at full capacity")
	ErrAlreadyRegistered       = errors.New("already registered for this event")
	ErrDepositAlreadyConfirmed = errors.New("deposit already confirmed")
)
