package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smartbus-tz/booking-backend/internal/cache"
	"github.com/smartbus-tz/booking-backend/internal/clock"
	"github.com/smartbus-tz/booking-backend/internal/models"
)

var (
	// ErrRouteNotFound indicates no route matches the requested endpoints
	ErrRouteNotFound = fmt.Errorf("no route between those locations")

	// ErrInvalidTravelDate indicates a malformed or past travel date
	ErrInvalidTravelDate = fmt.Errorf("invalid travel date")
)

// RouteStore resolves routes and locations
type RouteStore interface {
	FindRoute(from, to string) (*models.Route, error)
	ListRoutes() ([]models.Route, error)
	ListLocations() ([]models.Location, error)
}

// TripStore is the trip persistence surface the service needs
type TripStore interface {
	CreateTrip(trip *models.Trip) error
	SearchTrips(routeID uuid.UUID, dayStart, dayEnd time.Time) ([]models.TripWithDetails, error)
	GetTripByID(tripID uuid.UUID) (*models.TripWithDetails, error)
	GetSeatMap(tripID uuid.UUID) ([]models.TripSeat, error)
}

// SeatInventoryCreator builds the fixed seat inventory for a new trip
type SeatInventoryCreator interface {
	CreateSeatsForTrip(tripID uuid.UUID, seatCount int) error
}

// TripService serves trip search, seat maps and the location directory.
// Search results and seat maps are cached briefly; seat maps are also
// invalidated on every seat transition, so the cache only smooths read
// bursts and never extends staleness past a booking action.
type TripService struct {
	routes RouteStore
	trips  TripStore
	seats  SeatInventoryCreator
	cache  *cache.Cache
	clock  clock.Clock
	logger *logrus.Logger
}

// NewTripService creates a new trip service
func NewTripService(
	routes RouteStore,
	trips TripStore,
	seats SeatInventoryCreator,
	c *cache.Cache,
	clk clock.Clock,
	logger *logrus.Logger,
) *TripService {
	return &TripService{
		routes: routes,
		trips:  trips,
		seats:  seats,
		cache:  c,
		clock:  clk,
		logger: logger,
	}
}

// Search finds active trips between two locations on a travel date. The
// date is interpreted as a calendar day; trips already departed are
// filtered out when the date is today.
func (s *TripService) Search(ctx context.Context, from, to, date string) ([]models.TripSearchResult, error) {
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, ErrInvalidTravelDate
	}

	key := cache.TripSearchKey(from, to, date)
	var cached []models.TripSearchResult
	if s.cache.Get(ctx, key, &cached) {
		return cached, nil
	}

	route, err := s.routes.FindRoute(from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to find route: %w", err)
	}
	if route == nil {
		return nil, ErrRouteNotFound
	}

	dayStart := day
	dayEnd := day.Add(24 * time.Hour)
	now := s.clock.Now()
	if dayStart.Before(now) {
		dayStart = now
	}
	if !dayEnd.After(dayStart) {
		// whole day already in the past
		return []models.TripSearchResult{}, nil
	}

	trips, err := s.trips.SearchTrips(route.ID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to search trips: %w", err)
	}

	results := make([]models.TripSearchResult, 0, len(trips))
	for i := range trips {
		results = append(results, trips[i].ToSearchResult())
	}

	s.cache.Set(ctx, key, results)
	return results, nil
}

// GetTrip returns one trip with route and bus details
func (s *TripService) GetTrip(tripID uuid.UUID) (*models.TripWithDetails, error) {
	trip, err := s.trips.GetTripByID(tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	if trip == nil {
		return nil, ErrTripNotFound
	}
	return trip, nil
}

// SeatMap returns the per-seat availability view for a trip. Seats whose
// hold deadline has lapsed are reported available even before the sweep
// reclaims them.
func (s *TripService) SeatMap(ctx context.Context, tripID uuid.UUID) (*models.SeatMap, error) {
	key := cache.SeatMapKey(tripID.String())
	var cached models.SeatMap
	if s.cache.Get(ctx, key, &cached) {
		return &cached, nil
	}

	trip, err := s.trips.GetTripByID(tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	if trip == nil {
		return nil, ErrTripNotFound
	}

	now := s.clock.Now()
	seats, err := s.trips.GetSeatMap(tripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load seat map: %w", err)
	}

	seatMap := &models.SeatMap{
		TripID:     tripID,
		TotalSeats: trip.SeatCount,
		Layout:     trip.Layout,
		Seats:      make([]models.SeatMapEntry, 0, len(seats)),
	}
	for i := range seats {
		free := seats[i].IsFree(now)
		if free {
			seatMap.AvailableCount++
		} else {
			seatMap.BookedCount++
		}
		seatMap.Seats = append(seatMap.Seats, models.SeatMapEntry{
			SeatNumber:  seats[i].SeatNumber,
			IsAvailable: free,
		})
	}

	s.cache.Set(ctx, key, seatMap)
	return seatMap, nil
}

// Locations returns the distinct route endpoints for the search form
func (s *TripService) Locations() ([]models.Location, error) {
	locations, err := s.routes.ListLocations()
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return locations, nil
}

// CreateTrip schedules a trip and builds its seat inventory. Used by the
// seeder and operator tooling.
func (s *TripService) CreateTrip(trip *models.Trip, seatCount int) error {
	if err := s.trips.CreateTrip(trip); err != nil {
		return fmt.Errorf("failed to create trip: %w", err)
	}
	if err := s.seats.CreateSeatsForTrip(trip.ID, seatCount); err != nil {
		return fmt.Errorf("failed to create seat inventory: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"trip_id":    trip.ID,
		"seat_count": seatCount,
	}).Info("Trip created")
	return nil
}
