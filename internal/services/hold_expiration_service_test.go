package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/smartbus-tz/booking-backend/internal/clock"
	"github.com/smartbus-tz/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHoldExpirationSweep(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	t.Run("expires lapsed holds and frees their seats", func(t *testing.T) {
		clk := clock.NewFixed(now)
		store := newFakeStore(clk)
		trip := testTrip(now, 40)
		store.addTrip(trip)
		bookingSvc := newBookingService(clk, store)

		stale, err := bookingSvc.CreateHold(context.Background(), uuid.New(), &models.CreateBookingRequest{TripID: trip.ID, SeatNumber: 1})
		require.NoError(t, err)

		clk.Advance(9 * time.Minute)
		fresh, err := bookingSvc.CreateHold(context.Background(), uuid.New(), &models.CreateBookingRequest{TripID: trip.ID, SeatNumber: 2})
		require.NoError(t, err)

		clk.Advance(2 * time.Minute)

		sweeper := NewHoldExpirationService(store, store, store, time.Minute, 100, testLogger())
		sweeper.RunOnce()

		expired, _ := store.GetBookingByID(stale.ID)
		assert.Equal(t, models.BookingStatusExpired, expired.Status)
		assert.Equal(t, models.SeatStatusAvailable, store.seat(trip.ID, 1).Status)

		kept, _ := store.GetBookingByID(fresh.ID)
		assert.Equal(t, models.BookingStatusHeld, kept.Status)
		assert.Equal(t, models.SeatStatusHeld, store.seat(trip.ID, 2).Status)
	})

	t.Run("leaves bookings confirmed mid-sweep alone", func(t *testing.T) {
		clk := clock.NewFixed(now)
		store := newFakeStore(clk)
		trip := testTrip(now, 40)
		store.addTrip(trip)
		bookingSvc := newBookingService(clk, store)
		paymentSvc := NewPaymentService(store, store, store, store, store, clk, testLogger())

		userID := uuid.New()
		booking, err := bookingSvc.CreateHold(context.Background(), userID, &models.CreateBookingRequest{TripID: trip.ID, SeatNumber: 1})
		require.NoError(t, err)

		_, err = paymentSvc.Confirm(context.Background(), userID, booking.ID, &models.ConfirmBookingRequest{PaymentMethod: "mpesa"})
		require.NoError(t, err)

		clk.Advance(time.Hour)

		sweeper := NewHoldExpirationService(store, store, store, time.Minute, 100, testLogger())
		sweeper.RunOnce()

		stored, _ := store.GetBookingByID(booking.ID)
		assert.Equal(t, models.BookingStatusConfirmed, stored.Status)
		assert.Equal(t, models.SeatStatusBooked, store.seat(trip.ID, 1).Status)
	})

	t.Run("skips bookings whose seat a confirmation already booked", func(t *testing.T) {
		clk := clock.NewFixed(now)
		store := newFakeStore(clk)
		trip := testTrip(now, 40)
		store.addTrip(trip)
		bookingSvc := newBookingService(clk, store)

		booking, err := bookingSvc.CreateHold(context.Background(), uuid.New(), &models.CreateBookingRequest{TripID: trip.ID, SeatNumber: 5})
		require.NoError(t, err)

		// a confirmation flipped the seat but has not transitioned the
		// booking yet when the deadline lapses
		require.NoError(t, store.ConfirmSeat(trip.ID, 5, booking.ID))
		clk.Advance(11 * time.Minute)

		sweeper := NewHoldExpirationService(store, store, store, time.Minute, 100, testLogger())
		sweeper.RunOnce()

		stored, _ := store.GetBookingByID(booking.ID)
		assert.Equal(t, models.BookingStatusHeld, stored.Status)
		assert.Equal(t, models.SeatStatusBooked, store.seat(trip.ID, 5).Status)
	})

	t.Run("releases orphan seat holds with no booking row", func(t *testing.T) {
		clk := clock.NewFixed(now)
		store := newFakeStore(clk)
		trip := testTrip(now, 40)
		store.addTrip(trip)

		// a hold whose booking insert never landed
		require.NoError(t, store.TryHold(trip.ID, 3, uuid.New(), now.Add(10*time.Minute)))
		clk.Advance(11 * time.Minute)

		sweeper := NewHoldExpirationService(store, store, store, time.Minute, 100, testLogger())
		sweeper.RunOnce()

		assert.Equal(t, models.SeatStatusAvailable, store.seat(trip.ID, 3).Status)
	})
}
