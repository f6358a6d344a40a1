package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingStatus represents the status of a booking.
// Lifecycle is monotonic: held transitions to exactly one of confirmed,
// cancelled or expired, and terminal states never transition again.
type BookingStatus string

const (
	BookingStatusHeld      BookingStatus = "held"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusExpired   BookingStatus = "expired"
)

// Booking represents a user's claim on one seat of one trip
type Booking struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	UserID       uuid.UUID     `json:"user_id" db:"user_id"`
	TripID       uuid.UUID     `json:"trip_id" db:"trip_id"`
	SeatNumber   int           `json:"seat_number" db:"seat_number"`
	Status       BookingStatus `json:"status" db:"status"`
	ExpiresAt    time.Time     `json:"expires_at" db:"expires_at"`
	TicketNumber NullString    `json:"ticket_number,omitempty" db:"ticket_number"`
	ConfirmedAt  *time.Time    `json:"confirmed_at,omitempty" db:"confirmed_at"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// IsExpired reports whether a held booking is past its hold deadline
func (b *Booking) IsExpired(now time.Time) bool {
	return b.Status == BookingStatusHeld && now.After(b.ExpiresAt)
}

// IsActive reports whether the booking currently occupies a seat
func (b *Booking) IsActive() bool {
	return b.Status == BookingStatusHeld || b.Status == BookingStatusConfirmed
}

// CanCancel reports whether the booking may still be cancelled by its owner
func (b *Booking) CanCancel() bool {
	return b.IsActive()
}

// BookingWithTrip joins a booking with route and trip info for listings
type BookingWithTrip struct {
	Booking
	FromName      string    `json:"-" db:"from_name"`
	FromCode      string    `json:"-" db:"from_code"`
	ToName        string    `json:"-" db:"to_name"`
	ToCode        string    `json:"-" db:"to_code"`
	DepartureTime time.Time `json:"-" db:"departure_time"`
	Price         float64   `json:"-" db:"price"`
	PlateNumber   string    `json:"-" db:"plate_number"`
}

// CreateBookingRequest is the payload for POST /bookings
type CreateBookingRequest struct {
	TripID     uuid.UUID `json:"trip_id" binding:"required"`
	SeatNumber int       `json:"seat_number" binding:"required,min=1"`
}

// ConfirmBookingRequest is the payload for POST /bookings/:bookingId/confirm
type ConfirmBookingRequest struct {
	PaymentMethod  string `json:"payment_method" binding:"required"`
	IdempotencyKey string `json:"idempotency_key"`
}

// BookingResponse is the API shape of a booking in list/detail responses
type BookingResponse struct {
	ID            uuid.UUID     `json:"id"`
	TicketNumber  *string       `json:"ticket_number,omitempty"`
	SeatNumber    int           `json:"seat_number"`
	Status        BookingStatus `json:"status"`
	Route         RouteSummary  `json:"route"`
	DepartureTime time.Time     `json:"departure_time"`
	Price         float64       `json:"price"`
	Payment       *PaymentInfo  `json:"payment,omitempty"`
	ExpiresAt     time.Time     `json:"expires_at"`
	CreatedAt     time.Time     `json:"created_at"`
}

// ToResponse converts a joined row to the API shape
func (b *BookingWithTrip) ToResponse() BookingResponse {
	resp := BookingResponse{
		ID:         b.ID,
		SeatNumber: b.SeatNumber,
		Status:     b.Status,
		Route: RouteSummary{
			From:     b.FromName,
			FromCode: b.FromCode,
			To:       b.ToName,
			ToCode:   b.ToCode,
		},
		DepartureTime: b.DepartureTime,
		Price:         b.Price,
		ExpiresAt:     b.ExpiresAt,
		CreatedAt:     b.CreatedAt,
	}
	if b.TicketNumber.Valid {
		resp.TicketNumber = &b.TicketNumber.String
	}
	return resp
}
