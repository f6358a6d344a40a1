package models

import (
	"time"

	"github.com/google/uuid"
)

// SeatStatus represents the state of one seat slot on one trip
type SeatStatus string

const (
	SeatStatusAvailable SeatStatus = "available"
	SeatStatusHeld      SeatStatus = "held"
	SeatStatusBooked    SeatStatus = "booked"
)

// TripSeat is one slot of a trip's seat inventory. The inventory is created
// once per trip from the bus seat count and never resized. Transitions go
// through conditional updates keyed on status and holder, so at most one
// booking occupies a seat at any instant.
type TripSeat struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	TripID          uuid.UUID  `json:"trip_id" db:"trip_id"`
	SeatNumber      int        `json:"seat_number" db:"seat_number"`
	Status          SeatStatus `json:"status" db:"status"`
	HeldByBookingID *uuid.UUID `json:"held_by_booking_id,omitempty" db:"held_by_booking_id"`
	HeldUntil       *time.Time `json:"held_until,omitempty" db:"held_until"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// IsFree reports whether the seat can be newly held at the given instant.
// A held seat whose deadline has passed counts as free; the row is reclaimed
// by the next TryHold or by the expiration sweep, whichever comes first.
func (s *TripSeat) IsFree(now time.Time) bool {
	switch s.Status {
	case SeatStatusAvailable:
		return true
	case SeatStatusHeld:
		return s.HeldUntil != nil && s.HeldUntil.Before(now)
	default:
		return false
	}
}
