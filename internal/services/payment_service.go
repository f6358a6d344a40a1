package services

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smartbus-tz/booking-backend/internal/clock"
	"github.com/smartbus-tz/booking-backend/internal/database"
	"github.com/smartbus-tz/booking-backend/internal/models"
)

var (
	// ErrHoldExpired indicates the hold deadline passed before confirmation
	ErrHoldExpired = fmt.Errorf("seat hold has expired")

	// ErrBookingNotConfirmable indicates the booking is cancelled or expired
	ErrBookingNotConfirmable = fmt.Errorf("booking can no longer be confirmed")

	// ErrInvalidPaymentMethod indicates an unknown payment channel
	ErrInvalidPaymentMethod = fmt.Errorf("invalid payment method")

	// ErrIdempotencyConflict indicates the idempotency key was already used
	// for a different booking
	ErrIdempotencyConflict = fmt.Errorf("idempotency key already used for another booking")
)

// ticketAttempts bounds retries on ticket number collisions
const ticketAttempts = 5

// PaymentStore is the payment persistence surface the service needs
type PaymentStore interface {
	CreatePayment(payment *models.Payment) error
	GetPaymentByIdempotencyKey(key string) (*models.Payment, error)
	GetPaymentByBookingID(bookingID uuid.UUID) (*models.Payment, error)
}

// ConfirmBookingStore is the booking surface the confirmation path needs
type ConfirmBookingStore interface {
	GetBookingByID(id uuid.UUID) (*models.Booking, error)
	GetBookingWithTrip(id uuid.UUID) (*models.BookingWithTrip, error)
	ConfirmWithTicket(id uuid.UUID, ticketNumber string) error
}

// SeatConfirmer flips a held seat to booked
type SeatConfirmer interface {
	ConfirmSeat(tripID uuid.UUID, seatNumber int, bookingID uuid.UUID) error
}

// ConfirmationPublisher emits booking confirmed events. Publishing is
// best-effort; a broker outage never fails a confirmation.
type ConfirmationPublisher interface {
	PublishBookingConfirmed(ctx context.Context, event *models.BookingConfirmedEvent) error
}

// ConfirmResult is what a successful (or idempotently repeated) confirmation
// returns to the handler
type ConfirmResult struct {
	Booking *models.BookingWithTrip
	Payment *models.Payment
}

// PaymentService is the confirmation gate: it settles payment for a held
// booking and atomically promotes the seat and the booking to their booked
// and confirmed states. Every step tolerates being re-run, so a client retry
// after a timeout converges on the same confirmed state instead of paying or
// booking twice.
type PaymentService struct {
	payments  PaymentStore
	bookings  ConfirmBookingStore
	seats     SeatConfirmer
	publisher ConfirmationPublisher
	cache     SeatMapInvalidator
	clock     clock.Clock
	logger    *logrus.Logger
}

// NewPaymentService creates a new payment service
func NewPaymentService(
	payments PaymentStore,
	bookings ConfirmBookingStore,
	seats SeatConfirmer,
	publisher ConfirmationPublisher,
	cache SeatMapInvalidator,
	clk clock.Clock,
	logger *logrus.Logger,
) *PaymentService {
	return &PaymentService{
		payments:  payments,
		bookings:  bookings,
		seats:     seats,
		publisher: publisher,
		cache:     cache,
		clock:     clk,
		logger:    logger,
	}
}

// Confirm settles payment for a held booking and confirms it. The booking
// must belong to the user and its hold deadline must not have passed.
// Safe to retry with the same idempotency key.
func (s *PaymentService) Confirm(ctx context.Context, userID, bookingID uuid.UUID, req *models.ConfirmBookingRequest) (*ConfirmResult, error) {
	if !models.IsValidPaymentMethod(req.PaymentMethod) {
		return nil, ErrInvalidPaymentMethod
	}

	// 1. Load and authorize the booking
	booking, err := s.bookings.GetBookingByID(bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking: %w", err)
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if booking.UserID != userID {
		return nil, ErrForbidden
	}

	// 2. A repeated confirmation of an already confirmed booking is a
	// success, not an error
	switch booking.Status {
	case models.BookingStatusConfirmed:
		return s.buildResult(bookingID)
	case models.BookingStatusCancelled, models.BookingStatusExpired:
		return nil, ErrBookingNotConfirmable
	}

	// 3. Idempotency key replay: same booking converges, different booking
	// is a client bug. Checked before the deadline so a retry that already
	// paid can finish its confirmation even if the hold lapsed meanwhile.
	if req.IdempotencyKey != "" {
		existing, err := s.payments.GetPaymentByIdempotencyKey(req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}
		if existing != nil {
			if existing.BookingID != bookingID {
				return nil, ErrIdempotencyConflict
			}
			return s.completeConfirmation(ctx, booking, existing)
		}
	}

	if s.clock.Now().After(booking.ExpiresAt) {
		return nil, ErrHoldExpired
	}

	// 4. Flip the seat first. If we crash between the seat flip and the
	// booking update, the retry sees ErrSeatAlreadyBooked and finishes the
	// job instead of starting over.
	if err := s.seats.ConfirmSeat(booking.TripID, booking.SeatNumber, bookingID); err != nil {
		switch err {
		case database.ErrSeatAlreadyBooked:
			// previous attempt got this far, keep going
		case database.ErrSeatNotHeld:
			return nil, ErrHoldExpired
		default:
			return nil, fmt.Errorf("failed to confirm seat: %w", err)
		}
	}

	// 5. Record the payment. The unique constraints make a concurrent
	// duplicate lose here, in which case the winner's record is reused.
	trip, err := s.bookings.GetBookingWithTrip(bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking details: %w", err)
	}

	idempotencyKey := req.IdempotencyKey
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}
	payment := &models.Payment{
		BookingID:      bookingID,
		Method:         models.PaymentMethod(req.PaymentMethod),
		Reference:      paymentReference(req.PaymentMethod),
		Amount:         trip.Price,
		Status:         models.PaymentStatusSuccess,
		IdempotencyKey: idempotencyKey,
	}
	if err := s.payments.CreatePayment(payment); err != nil {
		if err == database.ErrDuplicatePayment {
			existing, getErr := s.payments.GetPaymentByBookingID(bookingID)
			if getErr != nil {
				return nil, fmt.Errorf("failed to load existing payment: %w", getErr)
			}
			if existing == nil {
				// key collision from another booking's payment
				return nil, ErrIdempotencyConflict
			}
			payment = existing
		} else {
			return nil, fmt.Errorf("failed to record payment: %w", err)
		}
	}

	return s.completeConfirmation(ctx, booking, payment)
}

// completeConfirmation assigns the ticket number and finishes the booking
// transition. Entered both on the happy path and on retries that already
// have a payment record.
func (s *PaymentService) completeConfirmation(ctx context.Context, booking *models.Booking, payment *models.Payment) (*ConfirmResult, error) {
	var lastErr error
	for i := 0; i < ticketAttempts; i++ {
		ticket, err := generateTicketNumber(s.clock.Now())
		if err != nil {
			return nil, fmt.Errorf("failed to generate ticket number: %w", err)
		}

		err = s.bookings.ConfirmWithTicket(booking.ID, ticket)
		if err == nil {
			lastErr = nil
			break
		}
		if err == database.ErrDuplicateTicketNumber {
			lastErr = err
			continue
		}
		if err == database.ErrStaleTransition {
			// the booking moved under us; this is only our success if a
			// concurrent retry actually confirmed it
			current, getErr := s.bookings.GetBookingByID(booking.ID)
			if getErr != nil {
				return nil, fmt.Errorf("failed to reload booking: %w", getErr)
			}
			if current == nil || current.Status != models.BookingStatusConfirmed {
				return nil, ErrBookingNotConfirmable
			}
			lastErr = nil
			break
		}
		return nil, fmt.Errorf("failed to confirm booking: %w", err)
	}
	if lastErr != nil {
		return nil, fmt.Errorf("failed to assign ticket number: %w", lastErr)
	}

	s.cache.InvalidateTrip(ctx, booking.TripID.String())

	result, err := s.buildResult(booking.ID)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"ticket":     result.Booking.TicketNumber.String,
		"method":     payment.Method,
		"amount":     payment.Amount,
	}).Info("Booking confirmed")

	s.publish(ctx, result)
	return result, nil
}

// buildResult loads the confirmed booking and its payment for the response
func (s *PaymentService) buildResult(bookingID uuid.UUID) (*ConfirmResult, error) {
	booking, err := s.bookings.GetBookingWithTrip(bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking details: %w", err)
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	payment, err := s.payments.GetPaymentByBookingID(bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return &ConfirmResult{Booking: booking, Payment: payment}, nil
}

func (s *PaymentService) publish(ctx context.Context, result *ConfirmResult) {
	if s.publisher == nil {
		return
	}

	event := &models.BookingConfirmedEvent{
		BookingID:     result.Booking.ID,
		UserID:        result.Booking.UserID,
		TicketNumber:  result.Booking.TicketNumber.String,
		SeatNumber:    result.Booking.SeatNumber,
		From:          result.Booking.FromName,
		To:            result.Booking.ToName,
		DepartureTime: result.Booking.DepartureTime,
		Amount:        result.Payment.Amount,
		Method:        string(result.Payment.Method),
	}
	if result.Booking.ConfirmedAt != nil {
		event.ConfirmedAt = *result.Booking.ConfirmedAt
	}
	if err := s.publisher.PublishBookingConfirmed(ctx, event); err != nil {
		s.logger.WithError(err).WithField("booking_id", event.BookingID).
			Warn("Failed to publish confirmation event")
	}
}

const ticketAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// generateTicketNumber builds a ticket like TKT-20260830-K7M2Q9. Collisions
// are caught by the unique constraint and retried with a fresh suffix.
func generateTicketNumber(now time.Time) (string, error) {
	suffix := make([]byte, 6)
	for i := range suffix {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(ticketAlphabet))))
		if err != nil {
			return "", err
		}
		suffix[i] = ticketAlphabet[n.Int64()]
	}
	return fmt.Sprintf("TKT-%s-%s", now.Format("20060102"), string(suffix)), nil
}

// paymentReference fabricates a gateway reference for the simulated
// settlement step
func paymentReference(method string) string {
	return fmt.Sprintf("%s-%s", strings.ToUpper(method), uuid.NewString()[:8])
}
