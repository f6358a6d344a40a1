package models

import (
	"time"

	"github.com/google/uuid"
)

// TripStatus represents the status of a scheduled trip
type TripStatus string

const (
	TripStatusActive    TripStatus = "active"
	TripStatusCancelled TripStatus = "cancelled"
	TripStatusCompleted TripStatus = "completed"
)

// Trip represents a scheduled departure of a bus on a route
type Trip struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	BusID         uuid.UUID  `json:"bus_id" db:"bus_id"`
	RouteID       uuid.UUID  `json:"route_id" db:"route_id"`
	DepartureTime time.Time  `json:"departure_time" db:"departure_time"`
	Price         float64    `json:"price" db:"price"`
	Status        TripStatus `json:"status" db:"status"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
}

// TripWithDetails joins a trip with its route and bus for display
type TripWithDetails struct {
	Trip
	FromName       string    `json:"-" db:"from_name"`
	FromCode       string    `json:"-" db:"from_code"`
	ToName         string    `json:"-" db:"to_name"`
	ToCode         string    `json:"-" db:"to_code"`
	DistanceKm     float64   `json:"-" db:"distance_km"`
	PlateNumber    string    `json:"-" db:"plate_number"`
	SeatCount      int       `json:"-" db:"seat_count"`
	Layout         BusLayout `json:"-" db:"layout"`
	AvailableSeats int       `json:"-" db:"available_seats"`
}

// TripSearchResult is the API shape for one trip in search results
type TripSearchResult struct {
	ID             uuid.UUID     `json:"id"`
	Route          RouteSummary  `json:"route"`
	Bus            BusSummary    `json:"bus"`
	DepartureTime  time.Time     `json:"departure_time"`
	Price          float64       `json:"price"`
	AvailableSeats int           `json:"available_seats"`
	Status         TripStatus    `json:"status"`
}

// RouteSummary is the route portion of trip responses
type RouteSummary struct {
	From       string  `json:"from"`
	FromCode   string  `json:"from_code"`
	To         string  `json:"to"`
	ToCode     string  `json:"to_code"`
	DistanceKm float64 `json:"distance_km"`
}

// BusSummary is the bus portion of trip responses
type BusSummary struct {
	PlateNumber string    `json:"plate_number"`
	TotalSeats  int       `json:"total_seats"`
	Layout      BusLayout `json:"layout"`
}

// ToSearchResult converts a joined row to the API shape
func (t *TripWithDetails) ToSearchResult() TripSearchResult {
	return TripSearchResult{
		ID: t.ID,
		Route: RouteSummary{
			From:       t.FromName,
			FromCode:   t.FromCode,
			To:         t.ToName,
			ToCode:     t.ToCode,
			DistanceKm: t.DistanceKm,
		},
		Bus: BusSummary{
			PlateNumber: t.PlateNumber,
			TotalSeats:  t.SeatCount,
			Layout:      t.Layout,
		},
		DepartureTime:  t.DepartureTime,
		Price:          t.Price,
		AvailableSeats: t.AvailableSeats,
		Status:         t.Status,
	}
}

// SeatMapEntry is one seat in the seat availability map
type SeatMapEntry struct {
	SeatNumber  int  `json:"seat_number"`
	IsAvailable bool `json:"is_available"`
}

// SeatMap is the full seat availability view for a trip
type SeatMap struct {
	TripID         uuid.UUID      `json:"trip_id"`
	TotalSeats     int            `json:"total_seats"`
	BookedCount    int            `json:"booked_count"`
	AvailableCount int            `json:"available_count"`
	Layout         BusLayout      `json:"layout"`
	Seats          []SeatMapEntry `json:"seats"`
}
