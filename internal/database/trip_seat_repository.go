package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/smartbus-tz/booking-backend/internal/models"
)

// TripSeatRepository is the seat inventory store. Every transition is a
// single conditional UPDATE checked through RowsAffected, so two concurrent
// callers targeting the same (trip, seat) serialize on the row and exactly
// one of them wins. Contention only ever exists per seat; there is no
// trip-level or global lock.
type TripSeatRepository struct {
	db *sqlx.DB
}

// NewTripSeatRepository creates a new TripSeatRepository
func NewTripSeatRepository(db *sqlx.DB) *TripSeatRepository {
	return &TripSeatRepository{db: db}
}

// CreateSeatsForTrip creates the fixed seat inventory for a trip, numbered
// 1..seatCount. The inventory is never resized afterwards.
func (r *TripSeatRepository) CreateSeatsForTrip(tripID uuid.UUID, seatCount int) error {
	query := `
		INSERT INTO trip_seats (id, trip_id, seat_number, status, created_at, updated_at)
		SELECT gen_random_uuid(), $1, n, 'available', NOW(), NOW()
		FROM generate_series(1, $2) AS n`

	if _, err := r.db.Exec(query, tripID, seatCount); err != nil {
		return fmt.Errorf("failed to create trip seats: %w", err)
	}
	return nil
}

// GetSeat retrieves one seat row
func (r *TripSeatRepository) GetSeat(tripID uuid.UUID, seatNumber int) (*models.TripSeat, error) {
	var seat models.TripSeat
	query := `
		SELECT id, trip_id, seat_number, status, held_by_booking_id, held_until, created_at, updated_at
		FROM trip_seats
		WHERE trip_id = $1 AND seat_number = $2`

	err := r.db.Get(&seat, query, tripID, seatNumber)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get seat: %w", err)
	}
	return &seat, nil
}

// TryHold transitions a seat to held for the given booking, with the given
// deadline. The seat qualifies if it is available, or held by someone whose
// deadline has already lapsed (the hold is reclaimed in the same statement).
// Returns ErrInvalidSeat if the seat number has no inventory row, or
// ErrSeatUnavailable if another booking currently occupies it.
func (r *TripSeatRepository) TryHold(tripID uuid.UUID, seatNumber int, bookingID uuid.UUID, heldUntil time.Time) error {
	query := `
		UPDATE trip_seats
		SET status = 'held', held_by_booking_id = $3, held_until = $4, updated_at = NOW()
		WHERE trip_id = $1 AND seat_number = $2
		  AND (status = 'available'
		       OR (status = 'held' AND held_until < NOW()))`

	result, err := r.db.Exec(query, tripID, seatNumber, bookingID, heldUntil)
	if err != nil {
		return fmt.Errorf("failed to hold seat: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 1 {
		return nil
	}

	// Lost the race or the seat doesn't exist; look at the row to tell which.
	seat, err := r.GetSeat(tripID, seatNumber)
	if err != nil {
		return err
	}
	if seat == nil {
		return ErrInvalidSeat
	}
	return ErrSeatUnavailable
}

// Release returns a held seat to available, but only if it still belongs to
// the expected booking. A stale release (the seat was re-held or confirmed by
// someone else in the meantime) is a no-op, which is what makes the
// expiration sweep safe to run concurrently with confirmations.
func (r *TripSeatRepository) Release(tripID uuid.UUID, seatNumber int, expectedBookingID uuid.UUID) error {
	query := `
		UPDATE trip_seats
		SET status = 'available', held_by_booking_id = NULL, held_until = NULL, updated_at = NOW()
		WHERE trip_id = $1 AND seat_number = $2
		  AND status = 'held' AND held_by_booking_id = $3`

	if _, err := r.db.Exec(query, tripID, seatNumber, expectedBookingID); err != nil {
		return fmt.Errorf("failed to release seat: %w", err)
	}
	return nil
}

// ReleaseBooked frees a booked seat when its confirmed booking is cancelled.
// Conditional on the holder so a stale cancel cannot free someone else's seat.
func (r *TripSeatRepository) ReleaseBooked(tripID uuid.UUID, seatNumber int, expectedBookingID uuid.UUID) error {
	query := `
		UPDATE trip_seats
		SET status = 'available', held_by_booking_id = NULL, held_until = NULL, updated_at = NOW()
		WHERE trip_id = $1 AND seat_number = $2
		  AND status = 'booked' AND held_by_booking_id = $3`

	result, err := r.db.Exec(query, tripID, seatNumber, expectedBookingID)
	if err != nil {
		return fmt.Errorf("failed to release booked seat: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrSeatNotHeld
	}
	return nil
}

// ConfirmSeat transitions a seat from held to booked for the given booking.
// Fails with ErrSeatNotHeld if the booking no longer holds the seat or its
// deadline has passed. If the seat is already booked by the same booking
// (a retry after a partial failure), returns ErrSeatAlreadyBooked so the
// caller can complete the confirmation idempotently.
func (r *TripSeatRepository) ConfirmSeat(tripID uuid.UUID, seatNumber int, bookingID uuid.UUID) error {
	query := `
		UPDATE trip_seats
		SET status = 'booked', updated_at = NOW()
		WHERE trip_id = $1 AND seat_number = $2
		  AND status = 'held' AND held_by_booking_id = $3 AND held_until >= NOW()`

	result, err := r.db.Exec(query, tripID, seatNumber, bookingID)
	if err != nil {
		return fmt.Errorf("failed to confirm seat: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 1 {
		return nil
	}

	seat, err := r.GetSeat(tripID, seatNumber)
	if err != nil {
		return err
	}
	if seat != nil && seat.Status == models.SeatStatusBooked &&
		seat.HeldByBookingID != nil && *seat.HeldByBookingID == bookingID {
		return ErrSeatAlreadyBooked
	}
	return ErrSeatNotHeld
}

// ReleaseExpiredHolds frees every seat whose hold deadline has passed.
// Safety sweep run by the expiration service; the per-booking path in
// BookingRepository.ExpireAndReleaseSeat handles the common case.
func (r *TripSeatRepository) ReleaseExpiredHolds() (int, error) {
	query := `
		UPDATE trip_seats
		SET status = 'available', held_by_booking_id = NULL, held_until = NULL, updated_at = NOW()
		WHERE status = 'held' AND held_until < NOW()`

	result, err := r.db.Exec(query)
	if err != nil {
		return 0, fmt.Errorf("failed to release expired holds: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}
