package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smartbus-tz/booking-backend/internal/clock"
	"github.com/smartbus-tz/booking-backend/internal/database"
	"github.com/smartbus-tz/booking-backend/internal/models"
)

var (
	// ErrTripNotFound indicates the trip does not exist
	ErrTripNotFound = fmt.Errorf("trip not found")

	// ErrTripNotBookable indicates the trip is cancelled, completed or departed
	ErrTripNotBookable = fmt.Errorf("trip is not open for booking")

	// ErrSeatOutOfRange indicates the seat number has no inventory row
	ErrSeatOutOfRange = fmt.Errorf("seat number does not exist on this bus")

	// ErrSeatTaken indicates another booking currently occupies the seat
	ErrSeatTaken = fmt.Errorf("seat is already held or booked")

	// ErrDuplicateBooking indicates the user already has an active booking on the trip
	ErrDuplicateBooking = fmt.Errorf("you already have an active booking on this trip")

	// ErrBookingNotFound indicates the booking does not exist
	ErrBookingNotFound = fmt.Errorf("booking not found")

	// ErrForbidden indicates the booking belongs to a different user
	ErrForbidden = fmt.Errorf("booking belongs to another user")

	// ErrCannotCancel indicates the booking is already in a terminal state
	ErrCannotCancel = fmt.Errorf("booking can no longer be cancelled")
)

// BookingStore is the booking persistence surface the service needs
type BookingStore interface {
	CreateBooking(booking *models.Booking) error
	GetBookingByID(id uuid.UUID) (*models.Booking, error)
	GetBookingWithTrip(id uuid.UUID) (*models.BookingWithTrip, error)
	ListBookingsByUser(userID uuid.UUID, status models.BookingStatus) ([]models.BookingWithTrip, error)
	HasActiveBooking(userID, tripID uuid.UUID) (bool, error)
	MarkCancelled(id uuid.UUID, from models.BookingStatus) error
}

// SeatStore is the seat inventory surface the service needs
type SeatStore interface {
	TryHold(tripID uuid.UUID, seatNumber int, bookingID uuid.UUID, heldUntil time.Time) error
	Release(tripID uuid.UUID, seatNumber int, expectedBookingID uuid.UUID) error
	ReleaseBooked(tripID uuid.UUID, seatNumber int, expectedBookingID uuid.UUID) error
}

// TripGetter resolves trips for booking validation
type TripGetter interface {
	GetTripByID(id uuid.UUID) (*models.TripWithDetails, error)
}

// PaymentRefunder flags payments refunded on post-confirmation cancels
type PaymentRefunder interface {
	MarkRefunded(bookingID uuid.UUID) error
}

// SeatMapInvalidator drops cached seat maps after a seat transition
type SeatMapInvalidator interface {
	InvalidateTrip(ctx context.Context, tripID string)
}

// BookingService owns the hold phase of the booking lifecycle: taking seat
// holds, listing a user's bookings and cancelling. Confirmation lives in
// PaymentService.
type BookingService struct {
	bookings BookingStore
	seats    SeatStore
	trips    TripGetter
	payments PaymentRefunder
	cache    SeatMapInvalidator
	clock    clock.Clock
	holdFor  time.Duration
	logger   *logrus.Logger
}

// NewBookingService creates a new booking service. holdFor is the seat hold
// window; the same value drives the expiration sweep.
func NewBookingService(
	bookings BookingStore,
	seats SeatStore,
	trips TripGetter,
	payments PaymentRefunder,
	cache SeatMapInvalidator,
	clk clock.Clock,
	holdFor time.Duration,
	logger *logrus.Logger,
) *BookingService {
	return &BookingService{
		bookings: bookings,
		seats:    seats,
		trips:    trips,
		payments: payments,
		cache:    cache,
		clock:    clk,
		holdFor:  holdFor,
		logger:   logger,
	}
}

// CreateHold places a hold on one seat of one trip for the user. On success
// the returned booking is in held state with its expiry deadline set; the
// user must confirm before the deadline or the seat is reclaimed.
func (s *BookingService) CreateHold(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.Booking, error) {
	now := s.clock.Now()

	// 1. The trip must exist and still be open for booking
	trip, err := s.trips.GetTripByID(req.TripID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trip: %w", err)
	}
	if trip == nil {
		return nil, ErrTripNotFound
	}
	if trip.Status != models.TripStatusActive || !trip.DepartureTime.After(now) {
		return nil, ErrTripNotBookable
	}
	if req.SeatNumber < 1 || req.SeatNumber > trip.SeatCount {
		return nil, ErrSeatOutOfRange
	}

	// 2. One active booking per user per trip
	active, err := s.bookings.HasActiveBooking(userID, req.TripID)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing bookings: %w", err)
	}
	if active {
		return nil, ErrDuplicateBooking
	}

	// 3. Take the seat hold under the booking ID before the booking row
	// exists, so the seat's holder reference is valid from the first write
	bookingID := uuid.New()
	expiresAt := now.Add(s.holdFor)

	if err := s.seats.TryHold(req.TripID, req.SeatNumber, bookingID, expiresAt); err != nil {
		switch err {
		case database.ErrInvalidSeat:
			return nil, ErrSeatOutOfRange
		case database.ErrSeatUnavailable:
			return nil, ErrSeatTaken
		default:
			return nil, fmt.Errorf("failed to hold seat: %w", err)
		}
	}

	// 4. Persist the booking; if that fails, put the seat back
	booking := &models.Booking{
		ID:         bookingID,
		UserID:     userID,
		TripID:     req.TripID,
		SeatNumber: req.SeatNumber,
		ExpiresAt:  expiresAt,
	}
	if err := s.bookings.CreateBooking(booking); err != nil {
		if relErr := s.seats.Release(req.TripID, req.SeatNumber, bookingID); relErr != nil {
			s.logger.WithError(relErr).WithField("booking_id", bookingID).
				Error("Failed to release seat after booking insert failure")
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	s.cache.InvalidateTrip(ctx, req.TripID.String())

	s.logger.WithFields(logrus.Fields{
		"booking_id":  booking.ID,
		"trip_id":     req.TripID,
		"seat_number": req.SeatNumber,
		"expires_at":  expiresAt,
	}).Info("Seat held")

	return booking, nil
}

// GetBooking returns one of the user's bookings with trip details
func (s *BookingService) GetBooking(userID, bookingID uuid.UUID) (*models.BookingWithTrip, error) {
	booking, err := s.bookings.GetBookingWithTrip(bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if booking.UserID != userID {
		return nil, ErrForbidden
	}
	return booking, nil
}

// ListBookings returns the user's bookings newest first, optionally filtered
// by status
func (s *BookingService) ListBookings(userID uuid.UUID, status models.BookingStatus) ([]models.BookingWithTrip, error) {
	bookings, err := s.bookings.ListBookingsByUser(userID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// Cancel cancels a held or confirmed booking owned by the user and frees its
// seat. Cancelling a confirmed booking also flags the payment refunded.
func (s *BookingService) Cancel(ctx context.Context, userID, bookingID uuid.UUID) error {
	booking, err := s.bookings.GetBookingByID(bookingID)
	if err != nil {
		return fmt.Errorf("failed to load booking: %w", err)
	}
	if booking == nil {
		return ErrBookingNotFound
	}
	if booking.UserID != userID {
		return ErrForbidden
	}

	switch booking.Status {
	case models.BookingStatusHeld:
		if err := s.bookings.MarkCancelled(bookingID, models.BookingStatusHeld); err != nil {
			if err == database.ErrStaleTransition {
				// confirmed or expired under us
				return ErrCannotCancel
			}
			return fmt.Errorf("failed to cancel booking: %w", err)
		}
		if err := s.seats.Release(booking.TripID, booking.SeatNumber, bookingID); err != nil {
			s.logger.WithError(err).WithField("booking_id", bookingID).
				Error("Failed to release seat for cancelled hold")
		}

	case models.BookingStatusConfirmed:
		if err := s.bookings.MarkCancelled(bookingID, models.BookingStatusConfirmed); err != nil {
			if err == database.ErrStaleTransition {
				return ErrCannotCancel
			}
			return fmt.Errorf("failed to cancel booking: %w", err)
		}
		if err := s.seats.ReleaseBooked(booking.TripID, booking.SeatNumber, bookingID); err != nil {
			s.logger.WithError(err).WithField("booking_id", bookingID).
				Error("Failed to release seat for cancelled confirmation")
		}
		if err := s.payments.MarkRefunded(bookingID); err != nil {
			s.logger.WithError(err).WithField("booking_id", bookingID).
				Error("Failed to flag payment refunded")
		}

	default:
		return ErrCannotCancel
	}

	s.cache.InvalidateTrip(ctx, booking.TripID.String())

	s.logger.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"was":        booking.Status,
	}).Info("Booking cancelled")

	return nil
}
