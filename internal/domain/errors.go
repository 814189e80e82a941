package domain

import "errors"

// Domain errors
var (
	// Interval errors
	ErrInvalidInterval = errors.New("invalid interval")

	// Capacity errors
	ErrCapacityExceeded = errors.New("capacity exceeded for requested interval")

	// Hold errors
	ErrHoldNotFound = errors.New("hold not found")
	ErrHoldExpired  = errors.New("hold has expired")

	// Reservation errors
	ErrReservationNotFound = errors.New("reservation not found")
	ErrAlreadyCancelled    = errors.New("reservation already cancelled")
	ErrVersionConflict     = errors.New("reservation version conflict")

	// Resource errors
	ErrResourceNotFound = errors.New("resource not found")
	ErrInvalidCapacity  = errors.New("capacity must be at least one")
	ErrCapacityInUse    = errors.New("capacity below current peak usage")

	// Ownership errors
	ErrNotOwner      = errors.New("record does not belong to caller")
	ErrInvalidOwner  = errors.New("invalid owner id")
	ErrInvalidHoldID = errors.New("invalid hold id")
)

// IsNotFoundError checks if the error is a not found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrHoldNotFound) ||
		errors.Is(err, ErrReservationNotFound) ||
		errors.Is(err, ErrResourceNotFound)
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrInvalidCapacity) ||
		errors.Is(err, ErrInvalidOwner) ||
		errors.Is(err, ErrInvalidHoldID)
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCapacityExceeded) ||
		errors.Is(err, ErrVersionConflict) ||
		errors.Is(err, ErrAlreadyCancelled) ||
		errors.Is(err, ErrCapacityInUse)
}

// IsExpiredError checks if the error is an expiration error
func IsExpiredError(err error) bool {
	return errors.Is(err, ErrHoldExpired)
}
