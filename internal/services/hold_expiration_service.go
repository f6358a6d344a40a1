package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartbus-tz/booking-backend/internal/models"
)

// ExpiredBookingStore is the persistence surface the sweep needs
type ExpiredBookingStore interface {
	GetExpiredHeld(limit int) ([]models.Booking, error)
	ExpireAndReleaseSeat(booking *models.Booking) (bool, error)
}

// SeatSweeper frees any seat hold past its deadline, independent of booking
// rows. Safety net for holds whose booking insert never landed.
type SeatSweeper interface {
	ReleaseExpiredHolds() (int, error)
}

// HoldExpirationService is the background reclaimer: it expires held
// bookings past their deadline and returns their seats to inventory.
// Expiry is lazy elsewhere (TryHold and ConfirmSeat both check deadlines
// themselves), so the sweep only bounds how long a dead hold lingers; the
// system stays correct even if it never runs.
type HoldExpirationService struct {
	bookings  ExpiredBookingStore
	seats     SeatSweeper
	cache     SeatMapInvalidator
	logger    *logrus.Logger
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

// NewHoldExpirationService creates a new expiration service
func NewHoldExpirationService(
	bookings ExpiredBookingStore,
	seats SeatSweeper,
	cache SeatMapInvalidator,
	interval time.Duration,
	batchSize int,
	logger *logrus.Logger,
) *HoldExpirationService {
	return &HoldExpirationService{
		bookings:  bookings,
		seats:     seats,
		cache:     cache,
		logger:    logger,
		stopCh:    make(chan struct{}),
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start begins the background sweep loop
func (s *HoldExpirationService) Start() {
	s.logger.WithField("interval", s.interval).Info("Starting hold expiration service")
	go s.run()
}

// Stop stops the background sweep loop
func (s *HoldExpirationService) Stop() {
	s.logger.Info("Stopping hold expiration service")
	close(s.stopCh)
}

func (s *HoldExpirationService) run() {
	// sweep once at startup to clear anything left over from a restart
	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			s.logger.Info("Hold expiration service stopped")
			return
		}
	}
}

// RunOnce runs a single sweep cycle
func (s *HoldExpirationService) RunOnce() {
	s.sweep()
}

func (s *HoldExpirationService) sweep() {
	expired, err := s.bookings.GetExpiredHeld(s.batchSize)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load expired holds")
		return
	}

	if len(expired) > 0 {
		s.logger.WithField("count", len(expired)).Info("Expiring stale holds")
	}

	for i := range expired {
		booking := &expired[i]
		ok, err := s.bookings.ExpireAndReleaseSeat(booking)
		if err != nil {
			s.logger.WithError(err).WithField("booking_id", booking.ID).
				Error("Failed to expire hold")
			continue
		}
		if !ok {
			// confirmed between the listing and the sweep, leave it alone
			continue
		}
		s.cache.InvalidateTrip(context.Background(), booking.TripID.String())
		s.logger.WithFields(logrus.Fields{
			"booking_id":  booking.ID,
			"trip_id":     booking.TripID,
			"seat_number": booking.SeatNumber,
		}).Info("Hold expired, seat released")
	}

	// orphan holds have no live booking row pointing at them
	released, err := s.seats.ReleaseExpiredHolds()
	if err != nil {
		s.logger.WithError(err).Error("Failed to release orphan seat holds")
	} else if released > 0 {
		s.logger.WithField("count", released).Warn("Released orphan seat holds")
	}
}
