package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/smartbus-tz/booking-backend/internal/models"
)

// TripRepository handles trip lookups and search
type TripRepository struct {
	db *sqlx.DB
}

// NewTripRepository creates a new TripRepository
func NewTripRepository(db *sqlx.DB) *TripRepository {
	return &TripRepository{db: db}
}

// tripDetailColumns joins trips with route, bus, and a live availability
// count. A held seat past its deadline counts as available even before the
// expiration sweep has reclaimed it.
const tripDetailColumns = `
	t.id, t.bus_id, t.route_id, t.departure_time, t.price, t.status, t.created_at,
	r.from_name, r.from_code, r.to_name, r.to_code, r.distance_km,
	b.plate_number, b.seat_count, b.layout,
	(SELECT COUNT(*) FROM trip_seats s
	 WHERE s.trip_id = t.id
	   AND (s.status = 'available'
	        OR (s.status = 'held' AND s.held_until < NOW()))) AS available_seats`

// CreateTrip inserts a new scheduled trip
func (r *TripRepository) CreateTrip(trip *models.Trip) error {
	trip.ID = uuid.New()
	trip.CreatedAt = time.Now()
	if trip.Status == "" {
		trip.Status = models.TripStatusActive
	}

	query := `
		INSERT INTO trips (id, bus_id, route_id, departure_time, price, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(query,
		trip.ID, trip.BusID, trip.RouteID, trip.DepartureTime,
		trip.Price, trip.Status, trip.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}
	return nil
}

// SearchTrips returns active trips on a route departing within [dayStart, dayEnd]
func (r *TripRepository) SearchTrips(routeID uuid.UUID, dayStart, dayEnd time.Time) ([]models.TripWithDetails, error) {
	var trips []models.TripWithDetails
	query := `
		SELECT ` + tripDetailColumns + `
		FROM trips t
		JOIN routes r ON r.id = t.route_id
		JOIN buses b ON b.id = t.bus_id
		WHERE t.route_id = $1
		  AND t.departure_time BETWEEN $2 AND $3
		  AND t.status = 'active'
		ORDER BY t.departure_time`

	if err := r.db.Select(&trips, query, routeID, dayStart, dayEnd); err != nil {
		return nil, fmt.Errorf("failed to search trips: %w", err)
	}
	return trips, nil
}

// GetTripByID retrieves a trip with route and bus details
func (r *TripRepository) GetTripByID(tripID uuid.UUID) (*models.TripWithDetails, error) {
	var trip models.TripWithDetails
	query := `
		SELECT ` + tripDetailColumns + `
		FROM trips t
		JOIN routes r ON r.id = t.route_id
		JOIN buses b ON b.id = t.bus_id
		WHERE t.id = $1`

	err := r.db.Get(&trip, query, tripID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return &trip, nil
}

// GetSeatMap returns the seat rows for a trip in seat order. Callers judge
// lapsed holds themselves.
func (r *TripRepository) GetSeatMap(tripID uuid.UUID) ([]models.TripSeat, error) {
	var seats []models.TripSeat
	query := `
		SELECT id, trip_id, seat_number, status, held_by_booking_id, held_until, created_at, updated_at
		FROM trip_seats
		WHERE trip_id = $1
		ORDER BY seat_number`

	if err := r.db.Select(&seats, query, tripID); err != nil {
		return nil, fmt.Errorf("failed to get seat map: %w", err)
	}
	return seats, nil
}
