package booking

import "errors"

// Sentinel errors returned by the Coordinator and Projector.  Callers
// match them with errors.Is; the wrapped message carries the detail.
var (
	// ErrValidation marks malformed input such as an empty seat list or
	// a seat that does not belong to the showtime's auditorium.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a showtime or booking does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a requested seat is already held or
	// confirmed by the time the atomic check runs.  Callers should
	// re-fetch the seat map instead of retrying the same seats.
	ErrConflict = errors.New("seat no longer available")

	// ErrNotConfirmed is returned when a check-in is attempted on a
	// booking that is not CONFIRMED.
	ErrNotConfirmed = errors.New("booking not confirmed")
)
