package services

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smartbus-tz/booking-backend/internal/clock"
	"github.com/smartbus-tz/booking-backend/internal/database"
	"github.com/smartbus-tz/booking-backend/internal/models"
)

// fakeStore is an in-memory stand-in for the repository layer. It mirrors
// the conditional-update semantics of the SQL repositories, including the
// errors they return, so the services can be tested without a database.
type fakeStore struct {
	mu sync.Mutex

	clk clock.Clock

	trips    map[uuid.UUID]*models.TripWithDetails
	seats    map[seatKey]*models.TripSeat
	bookings map[uuid.UUID]*models.Booking
	payments []*models.Payment

	invalidated []string
	events      []*models.BookingConfirmedEvent
	refunded    []uuid.UUID

	failCreateBooking bool
	publishErr        error
}

type seatKey struct {
	tripID uuid.UUID
	seat   int
}

func newFakeStore(clk clock.Clock) *fakeStore {
	return &fakeStore{
		clk:      clk,
		trips:    make(map[uuid.UUID]*models.TripWithDetails),
		seats:    make(map[seatKey]*models.TripSeat),
		bookings: make(map[uuid.UUID]*models.Booking),
	}
}

// addTrip registers a trip and its seat inventory
func (f *fakeStore) addTrip(trip *models.TripWithDetails) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trips[trip.ID] = trip
	for n := 1; n <= trip.SeatCount; n++ {
		f.seats[seatKey{trip.ID, n}] = &models.TripSeat{
			ID:         uuid.New(),
			TripID:     trip.ID,
			SeatNumber: n,
			Status:     models.SeatStatusAvailable,
		}
	}
}

func (f *fakeStore) seat(tripID uuid.UUID, n int) *models.TripSeat {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seats[seatKey{tripID, n}]
}

// TripGetter

func (f *fakeStore) GetTripByID(id uuid.UUID) (*models.TripWithDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.trips[id], nil
}

// SeatStore

func (f *fakeStore) TryHold(tripID uuid.UUID, seatNumber int, bookingID uuid.UUID, heldUntil time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	seat, ok := f.seats[seatKey{tripID, seatNumber}]
	if !ok {
		return database.ErrInvalidSeat
	}
	now := f.clk.Now()
	free := seat.Status == models.SeatStatusAvailable ||
		(seat.Status == models.SeatStatusHeld && seat.HeldUntil != nil && seat.HeldUntil.Before(now))
	if !free {
		return database.ErrSeatUnavailable
	}
	id := bookingID
	until := heldUntil
	seat.Status = models.SeatStatusHeld
	seat.HeldByBookingID = &id
	seat.HeldUntil = &until
	return nil
}

func (f *fakeStore) Release(tripID uuid.UUID, seatNumber int, expectedBookingID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	seat, ok := f.seats[seatKey{tripID, seatNumber}]
	if !ok || seat.Status != models.SeatStatusHeld ||
		seat.HeldByBookingID == nil || *seat.HeldByBookingID != expectedBookingID {
		return nil
	}
	f.clearSeat(seat)
	return nil
}

func (f *fakeStore) ReleaseBooked(tripID uuid.UUID, seatNumber int, expectedBookingID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	seat, ok := f.seats[seatKey{tripID, seatNumber}]
	if !ok || seat.Status != models.SeatStatusBooked ||
		seat.HeldByBookingID == nil || *seat.HeldByBookingID != expectedBookingID {
		return database.ErrSeatNotHeld
	}
	f.clearSeat(seat)
	return nil
}

func (f *fakeStore) ConfirmSeat(tripID uuid.UUID, seatNumber int, bookingID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	seat, ok := f.seats[seatKey{tripID, seatNumber}]
	if !ok {
		return database.ErrSeatNotHeld
	}
	now := f.clk.Now()
	if seat.Status == models.SeatStatusHeld &&
		seat.HeldByBookingID != nil && *seat.HeldByBookingID == bookingID &&
		seat.HeldUntil != nil && !seat.HeldUntil.Before(now) {
		seat.Status = models.SeatStatusBooked
		return nil
	}
	if seat.Status == models.SeatStatusBooked &&
		seat.HeldByBookingID != nil && *seat.HeldByBookingID == bookingID {
		return database.ErrSeatAlreadyBooked
	}
	return database.ErrSeatNotHeld
}

func (f *fakeStore) ReleaseExpiredHolds() (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clk.Now()
	released := 0
	for _, seat := range f.seats {
		if seat.Status == models.SeatStatusHeld && seat.HeldUntil != nil && seat.HeldUntil.Before(now) {
			f.clearSeat(seat)
			released++
		}
	}
	return released, nil
}

func (f *fakeStore) clearSeat(seat *models.TripSeat) {
	seat.Status = models.SeatStatusAvailable
	seat.HeldByBookingID = nil
	seat.HeldUntil = nil
}

// BookingStore

func (f *fakeStore) CreateBooking(booking *models.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCreateBooking {
		return errInjected
	}
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	booking.Status = models.BookingStatusHeld
	booking.CreatedAt = f.clk.Now()
	booking.UpdatedAt = booking.CreatedAt
	cp := *booking
	f.bookings[booking.ID] = &cp
	return nil
}

func (f *fakeStore) GetBookingByID(id uuid.UUID) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	booking, ok := f.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *booking
	return &cp, nil
}

func (f *fakeStore) GetBookingWithTrip(id uuid.UUID) (*models.BookingWithTrip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.joinTrip(id), nil
}

func (f *fakeStore) joinTrip(id uuid.UUID) *models.BookingWithTrip {
	booking, ok := f.bookings[id]
	if !ok {
		return nil
	}
	trip := f.trips[booking.TripID]
	out := &models.BookingWithTrip{Booking: *booking}
	if trip != nil {
		out.FromName = trip.FromName
		out.FromCode = trip.FromCode
		out.ToName = trip.ToName
		out.ToCode = trip.ToCode
		out.DepartureTime = trip.DepartureTime
		out.Price = trip.Price
		out.PlateNumber = trip.PlateNumber
	}
	return out
}

func (f *fakeStore) ListBookingsByUser(userID uuid.UUID, status models.BookingStatus) ([]models.BookingWithTrip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.BookingWithTrip
	for id, booking := range f.bookings {
		if booking.UserID != userID {
			continue
		}
		if status != "" && booking.Status != status {
			continue
		}
		out = append(out, *f.joinTrip(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) HasActiveBooking(userID, tripID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clk.Now()
	for _, booking := range f.bookings {
		if booking.UserID != userID || booking.TripID != tripID {
			continue
		}
		if booking.Status == models.BookingStatusConfirmed {
			return true, nil
		}
		if booking.Status == models.BookingStatusHeld && !booking.ExpiresAt.Before(now) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) MarkCancelled(id uuid.UUID, from models.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	booking, ok := f.bookings[id]
	if !ok || booking.Status != from {
		return database.ErrStaleTransition
	}
	booking.Status = models.BookingStatusCancelled
	return nil
}

func (f *fakeStore) ConfirmWithTicket(id uuid.UUID, ticketNumber string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, booking := range f.bookings {
		if booking.TicketNumber.Valid && booking.TicketNumber.String == ticketNumber {
			return database.ErrDuplicateTicketNumber
		}
	}
	booking, ok := f.bookings[id]
	if !ok || booking.Status != models.BookingStatusHeld {
		return database.ErrStaleTransition
	}
	now := f.clk.Now()
	booking.Status = models.BookingStatusConfirmed
	booking.TicketNumber = models.NullString{}
	booking.TicketNumber.Valid = true
	booking.TicketNumber.String = ticketNumber
	booking.ConfirmedAt = &now
	return nil
}

// ExpiredBookingStore

func (f *fakeStore) GetExpiredHeld(limit int) ([]models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clk.Now()
	var out []models.Booking
	for _, booking := range f.bookings {
		if booking.Status == models.BookingStatusHeld && booking.ExpiresAt.Before(now) {
			out = append(out, *booking)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) ExpireAndReleaseSeat(b *models.Booking) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clk.Now()
	booking, ok := f.bookings[b.ID]
	if !ok || booking.Status != models.BookingStatusHeld || !booking.ExpiresAt.Before(now) {
		return false, nil
	}
	seat := f.seats[seatKey{booking.TripID, booking.SeatNumber}]
	if seat != nil && seat.Status == models.SeatStatusBooked &&
		seat.HeldByBookingID != nil && *seat.HeldByBookingID == booking.ID {
		// seat already flipped by an in-flight confirmation, leave it alone
		return false, nil
	}
	booking.Status = models.BookingStatusExpired
	if seat != nil && seat.Status == models.SeatStatusHeld &&
		seat.HeldByBookingID != nil && *seat.HeldByBookingID == booking.ID {
		f.clearSeat(seat)
	}
	return true, nil
}

// PaymentStore + PaymentRefunder

func (f *fakeStore) CreatePayment(payment *models.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.payments {
		if p.BookingID == payment.BookingID || p.IdempotencyKey == payment.IdempotencyKey {
			return database.ErrDuplicatePayment
		}
	}
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	payment.CreatedAt = f.clk.Now()
	cp := *payment
	f.payments = append(f.payments, &cp)
	return nil
}

func (f *fakeStore) GetPaymentByIdempotencyKey(key string) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.payments {
		if p.IdempotencyKey == key {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetPaymentByBookingID(bookingID uuid.UUID) (*models.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, p := range f.payments {
		if p.BookingID == bookingID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) MarkRefunded(bookingID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.refunded = append(f.refunded, bookingID)
	for _, p := range f.payments {
		if p.BookingID == bookingID && p.Status == models.PaymentStatusSuccess {
			p.Status = models.PaymentStatusRefunded
		}
	}
	return nil
}

// SeatMapInvalidator

func (f *fakeStore) InvalidateTrip(_ context.Context, tripID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, tripID)
}

// ConfirmationPublisher

func (f *fakeStore) PublishBookingConfirmed(_ context.Context, event *models.BookingConfirmedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.publishErr != nil {
		return f.publishErr
	}
	f.events = append(f.events, event)
	return nil
}

var errInjected = &injectedError{}

type injectedError struct{}

func (*injectedError) Error() string { return "injected failure" }

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
