package models

import (
	"time"

	"github.com/google/uuid"
)

// Operator represents a bus company
type Operator struct {
	ID           uuid.UUID `json:"id" db:"id"`
	CompanyName  string    `json:"company_name" db:"company_name"`
	ContactEmail string    `json:"contact_email" db:"contact_email"`
	ContactPhone string    `json:"contact_phone" db:"contact_phone"`
	Approved     bool      `json:"approved" db:"approved"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// BusLayout describes the seating arrangement of a bus
type BusLayout string

const (
	Layout2x2 BusLayout = "2x2"
	Layout2x3 BusLayout = "2x3"
	Layout1x2 BusLayout = "1x2"
)

// Bus represents a vehicle owned by an operator. SeatCount is fixed at
// creation; the per-trip seat inventory is derived from it.
type Bus struct {
	ID          uuid.UUID `json:"id" db:"id"`
	OperatorID  uuid.UUID `json:"operator_id" db:"operator_id"`
	PlateNumber string    `json:"plate_number" db:"plate_number"`
	SeatCount   int       `json:"seat_count" db:"seat_count"`
	Layout      BusLayout `json:"layout" db:"layout"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Route represents a journey between two locations
type Route struct {
	ID         uuid.UUID `json:"id" db:"id"`
	From       string    `json:"from" db:"from_name"`
	FromCode   string    `json:"from_code" db:"from_code"`
	To         string    `json:"to" db:"to_name"`
	ToCode     string    `json:"to_code" db:"to_code"`
	DistanceKm float64   `json:"distance_km" db:"distance_km"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Location is a unique endpoint served by at least one route
type Location struct {
	Name string `json:"name"`
	Code string `json:"code"`
}
