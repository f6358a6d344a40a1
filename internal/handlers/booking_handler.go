package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smartbus-tz/booking-backend/internal/middleware"
	"github.com/smartbus-tz/booking-backend/internal/models"
	"github.com/smartbus-tz/booking-backend/internal/services"
)

// BookingManager is the hold-phase surface the handler needs
type BookingManager interface {
	CreateHold(ctx context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.Booking, error)
	GetBooking(userID, bookingID uuid.UUID) (*models.BookingWithTrip, error)
	ListBookings(userID uuid.UUID, status models.BookingStatus) ([]models.BookingWithTrip, error)
	Cancel(ctx context.Context, userID, bookingID uuid.UUID) error
}

// BookingConfirmer is the confirmation surface the handler needs
type BookingConfirmer interface {
	Confirm(ctx context.Context, userID, bookingID uuid.UUID, req *models.ConfirmBookingRequest) (*services.ConfirmResult, error)
}

// BookingHandler handles booking lifecycle HTTP requests
type BookingHandler struct {
	bookings BookingManager
	payments BookingConfirmer
	logger   *logrus.Logger
}

// NewBookingHandler creates a new booking handler
func NewBookingHandler(bookings BookingManager, payments BookingConfirmer, logger *logrus.Logger) *BookingHandler {
	return &BookingHandler{bookings: bookings, payments: payments, logger: logger}
}

// Create handles POST /api/v1/bookings
func (h *BookingHandler) Create(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	booking, err := h.bookings.CreateHold(c.Request.Context(), userCtx.UserID, &req)
	if err != nil {
		h.writeBookingError(c, err)
		return
	}

	respond(c, http.StatusCreated, "Seat held. Confirm before the hold expires.", gin.H{
		"booking": booking,
	})
}

// List handles GET /api/v1/bookings?status=
func (h *BookingHandler) List(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	status := models.BookingStatus(c.Query("status"))
	switch status {
	case "", models.BookingStatusHeld, models.BookingStatusConfirmed,
		models.BookingStatusCancelled, models.BookingStatusExpired:
	default:
		respondError(c, http.StatusBadRequest, "Invalid status filter")
		return
	}

	bookings, err := h.bookings.ListBookings(userCtx.UserID, status)
	if err != nil {
		h.logger.WithError(err).Error("Booking listing failed")
		respondError(c, http.StatusInternalServerError, "Something went wrong")
		return
	}

	responses := make([]models.BookingResponse, 0, len(bookings))
	for i := range bookings {
		responses = append(responses, bookings[i].ToResponse())
	}

	respond(c, http.StatusOK, "", gin.H{"bookings": responses, "count": len(responses)})
}

// Get handles GET /api/v1/bookings/:bookingId
func (h *BookingHandler) Get(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	bookingID, err := uuid.Parse(c.Param("bookingId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid booking id")
		return
	}

	booking, err := h.bookings.GetBooking(userCtx.UserID, bookingID)
	if err != nil {
		h.writeBookingError(c, err)
		return
	}

	respond(c, http.StatusOK, "", booking.ToResponse())
}

// Confirm handles POST /api/v1/bookings/:bookingId/confirm. The idempotency
// key may arrive in the Idempotency-Key header or the body; the header wins.
func (h *BookingHandler) Confirm(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	bookingID, err := uuid.Parse(c.Param("bookingId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid booking id")
		return
	}

	var req models.ConfirmBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		req.IdempotencyKey = key
	}

	result, err := h.payments.Confirm(c.Request.Context(), userCtx.UserID, bookingID, &req)
	if err != nil {
		h.writeBookingError(c, err)
		return
	}

	resp := result.Booking.ToResponse()
	if result.Payment != nil {
		resp.Payment = result.Payment.Info()
	}

	respond(c, http.StatusOK, "Booking confirmed", resp)
}

// Cancel handles DELETE /api/v1/bookings/:bookingId
func (h *BookingHandler) Cancel(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	bookingID, err := uuid.Parse(c.Param("bookingId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid booking id")
		return
	}

	if err := h.bookings.Cancel(c.Request.Context(), userCtx.UserID, bookingID); err != nil {
		h.writeBookingError(c, err)
		return
	}

	respond(c, http.StatusOK, "Booking cancelled", nil)
}

// writeBookingError maps booking and payment service errors to HTTP responses
func (h *BookingHandler) writeBookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrTripNotFound),
		errors.Is(err, services.ErrBookingNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		respondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrTripNotBookable),
		errors.Is(err, services.ErrSeatOutOfRange),
		errors.Is(err, services.ErrInvalidPaymentMethod):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrSeatTaken),
		errors.Is(err, services.ErrDuplicateBooking),
		errors.Is(err, services.ErrCannotCancel),
		errors.Is(err, services.ErrBookingNotConfirmable),
		errors.Is(err, services.ErrIdempotencyConflict):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrHoldExpired):
		respondError(c, http.StatusGone, err.Error())
	default:
		h.logger.WithError(err).Error("Booking request failed")
		respondError(c, http.StatusInternalServerError, "Something went wrong")
	}
}
