package database

import "errors"

// Sentinel errors returned by repositories. Handlers and services map these
// to the API error taxonomy; repositories never shape HTTP responses.
var (
	// ErrNotFound indicates the requested row does not exist
	ErrNotFound = errors.New("record not found")

	// ErrInvalidSeat indicates the seat number has no inventory row for the trip
	ErrInvalidSeat = errors.New("seat does not exist for this trip")

	// ErrSeatUnavailable indicates the seat is held or booked by another booking
	ErrSeatUnavailable = errors.New("seat is not available")

	// ErrSeatNotHeld indicates the seat is not currently held by the expected
	// booking, or its hold deadline has passed
	ErrSeatNotHeld = errors.New("seat is not held by this booking")

	// ErrSeatAlreadyBooked indicates the seat was already confirmed by the same
	// booking; a retried confirmation treats this as success
	ErrSeatAlreadyBooked = errors.New("seat already booked by this booking")

	// ErrDuplicatePayment indicates a payment record already exists for this
	// booking or idempotency key
	ErrDuplicatePayment = errors.New("payment already recorded")

	// ErrDuplicateTicketNumber indicates a ticket number collision; callers
	// regenerate and retry
	ErrDuplicateTicketNumber = errors.New("ticket number already in use")

	// ErrStaleTransition indicates a conditional status update matched no rows
	// because the booking is no longer in the expected state
	ErrStaleTransition = errors.New("booking not in expected state")
)
