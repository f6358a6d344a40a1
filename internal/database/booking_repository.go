package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/smartbus-tz/booking-backend/internal/models"
)

// BookingRepository handles reservation rows and their lifecycle transitions.
// Status changes are conditional on the current status, so a terminal booking
// can never transition again no matter how requests interleave.
type BookingRepository struct {
	db *sqlx.DB
}

// NewBookingRepository creates a new BookingRepository
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, user_id, trip_id, seat_number, status, expires_at, ticket_number, confirmed_at, created_at, updated_at`

// CreateBooking inserts a new booking in held state. The caller may preset
// the ID when the seat hold was taken under it before this row exists.
func (r *BookingRepository) CreateBooking(booking *models.Booking) error {
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	booking.Status = models.BookingStatusHeld
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt

	query := `
		INSERT INTO bookings (id, user_id, trip_id, seat_number, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(query,
		booking.ID, booking.UserID, booking.TripID, booking.SeatNumber,
		booking.Status, booking.ExpiresAt, booking.CreatedAt, booking.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}
	return nil
}

// GetBookingByID retrieves a booking by ID
func (r *BookingRepository) GetBookingByID(id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	err := r.db.Get(&booking, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &booking, nil
}

const bookingTripColumns = `
	bk.id, bk.user_id, bk.trip_id, bk.seat_number, bk.status, bk.expires_at,
	bk.ticket_number, bk.confirmed_at, bk.created_at, bk.updated_at,
	r.from_name, r.from_code, r.to_name, r.to_code,
	t.departure_time, t.price, b.plate_number`

// GetBookingWithTrip retrieves a booking joined with its trip, route and bus
func (r *BookingRepository) GetBookingWithTrip(id uuid.UUID) (*models.BookingWithTrip, error) {
	var booking models.BookingWithTrip
	query := `
		SELECT ` + bookingTripColumns + `
		FROM bookings bk
		JOIN trips t ON t.id = bk.trip_id
		JOIN routes r ON r.id = t.route_id
		JOIN buses b ON b.id = t.bus_id
		WHERE bk.id = $1`

	err := r.db.Get(&booking, query, id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking with trip: %w", err)
	}
	return &booking, nil
}

// ListBookingsByUser returns a user's bookings newest first, optionally
// filtered by status
func (r *BookingRepository) ListBookingsByUser(userID uuid.UUID, status models.BookingStatus) ([]models.BookingWithTrip, error) {
	query := `
		SELECT ` + bookingTripColumns + `
		FROM bookings bk
		JOIN trips t ON t.id = bk.trip_id
		JOIN routes r ON r.id = t.route_id
		JOIN buses b ON b.id = t.bus_id
		WHERE bk.user_id = $1`

	args := []interface{}{userID}
	if status != "" {
		query += ` AND bk.status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY bk.created_at DESC`

	var bookings []models.BookingWithTrip
	if err := r.db.Select(&bookings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// HasActiveBooking reports whether the user already holds or has confirmed a
// booking on the trip. Held bookings past their deadline don't count.
func (r *BookingRepository) HasActiveBooking(userID, tripID uuid.UUID) (bool, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM bookings
		WHERE user_id = $1 AND trip_id = $2
		  AND (status = 'confirmed'
		       OR (status = 'held' AND expires_at >= NOW()))`

	if err := r.db.Get(&count, query, userID, tripID); err != nil {
		return false, fmt.Errorf("failed to check active bookings: %w", err)
	}
	return count > 0, nil
}

// ConfirmWithTicket marks a held booking confirmed and assigns its ticket
// number in the same statement, so a ticket can only ever be attached to the
// transition that won. Returns ErrDuplicateTicketNumber on a ticket collision
// (caller regenerates and retries) and ErrStaleTransition if the booking is
// no longer held.
func (r *BookingRepository) ConfirmWithTicket(id uuid.UUID, ticketNumber string) error {
	query := `
		UPDATE bookings
		SET status = 'confirmed', ticket_number = $2, confirmed_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'held'`

	result, err := r.db.Exec(query, id, ticketNumber)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateTicketNumber
		}
		return fmt.Errorf("failed to confirm booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrStaleTransition
	}
	return nil
}

// MarkCancelled transitions a booking to cancelled, conditional on its
// current status so a terminal booking stays terminal
func (r *BookingRepository) MarkCancelled(id uuid.UUID, from models.BookingStatus) error {
	query := `
		UPDATE bookings SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = $2`

	result, err := r.db.Exec(query, id, from)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrStaleTransition
	}
	return nil
}

// MarkExpired transitions a held booking past its deadline to expired
func (r *BookingRepository) MarkExpired(id uuid.UUID) error {
	query := `
		UPDATE bookings SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND status = 'held' AND expires_at < NOW()`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to expire booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrStaleTransition
	}
	return nil
}

// GetExpiredHeld returns held bookings whose deadline has passed, oldest
// first, up to limit
func (r *BookingRepository) GetExpiredHeld(limit int) ([]models.Booking, error) {
	var bookings []models.Booking
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE status = 'held' AND expires_at < NOW()
		ORDER BY expires_at
		LIMIT $1`

	if err := r.db.Select(&bookings, query, limit); err != nil {
		return nil, fmt.Errorf("failed to get expired bookings: %w", err)
	}
	return bookings, nil
}

// ExpireAndReleaseSeat atomically expires a held booking and frees its seat.
// A booking whose seat is already booked under it is skipped: that seat was
// flipped by an in-flight confirmation, and expiring the booking out from
// under it would strand the seat in booked state with no confirmed booking.
// The seat release is conditional on the booking still being the holder, so
// a confirmation that completed concurrently is never clobbered: in that case
// the booking update matches no rows and the whole transaction is a no-op.
// Safe to call repeatedly and from multiple sweep workers.
func (r *BookingRepository) ExpireAndReleaseSeat(booking *models.Booking) (bool, error) {
	tx, err := r.db.Beginx()
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`
		UPDATE bookings SET status = 'expired', updated_at = NOW()
		WHERE id = $1 AND status = 'held' AND expires_at < NOW()
		  AND NOT EXISTS (
		      SELECT 1 FROM trip_seats
		      WHERE trip_id = $2 AND seat_number = $3
		        AND status = 'booked' AND held_by_booking_id = $1)
	`, booking.ID, booking.TripID, booking.SeatNumber)
	if err != nil {
		return false, fmt.Errorf("failed to expire booking: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return false, nil
	}

	_, err = tx.Exec(`
		UPDATE trip_seats
		SET status = 'available', held_by_booking_id = NULL, held_until = NULL, updated_at = NOW()
		WHERE trip_id = $1 AND seat_number = $2
		  AND status = 'held' AND held_by_booking_id = $3
	`, booking.TripID, booking.SeatNumber, booking.ID)
	if err != nil {
		return false, fmt.Errorf("failed to release seat hold: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit expiration: %w", err)
	}
	return true, nil
}
