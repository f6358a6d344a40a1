package models

import (
	"time"

	"github.com/google/uuid"
)

// BookingConfirmedEvent is published to the broker after a confirmation
// commits. Consumers resolve the user from UserID; everything else needed to
// render the ticket email is carried in the event.
type BookingConfirmedEvent struct {
	BookingID     uuid.UUID `json:"booking_id"`
	UserID        uuid.UUID `json:"user_id"`
	TicketNumber  string    `json:"ticket_number"`
	SeatNumber    int       `json:"seat_number"`
	From          string    `json:"from"`
	To            string    `json:"to"`
	DepartureTime time.Time `json:"departure_time"`
	Amount        float64   `json:"amount"`
	Method        string    `json:"method"`
	ConfirmedAt   time.Time `json:"confirmed_at"`
}
