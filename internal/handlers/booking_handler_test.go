package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smartbus-tz/booking-backend/internal/middleware"
	"github.com/smartbus-tz/booking-backend/internal/models"
	"github.com/smartbus-tz/booking-backend/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBookingService scripts the service layer for handler tests
type stubBookingService struct {
	booking     *models.Booking
	bookingTrip *models.BookingWithTrip
	list        []models.BookingWithTrip
	result      *services.ConfirmResult
	err         error

	lastCreateReq  *models.CreateBookingRequest
	lastConfirmReq *models.ConfirmBookingRequest
	lastUserID     uuid.UUID
	lastBookingID  uuid.UUID
	lastStatus     models.BookingStatus
}

func (s *stubBookingService) CreateHold(_ context.Context, userID uuid.UUID, req *models.CreateBookingRequest) (*models.Booking, error) {
	s.lastUserID = userID
	s.lastCreateReq = req
	return s.booking, s.err
}

func (s *stubBookingService) GetBooking(userID, bookingID uuid.UUID) (*models.BookingWithTrip, error) {
	s.lastUserID = userID
	s.lastBookingID = bookingID
	return s.bookingTrip, s.err
}

func (s *stubBookingService) ListBookings(userID uuid.UUID, status models.BookingStatus) ([]models.BookingWithTrip, error) {
	s.lastUserID = userID
	s.lastStatus = status
	return s.list, s.err
}

func (s *stubBookingService) Cancel(_ context.Context, userID, bookingID uuid.UUID) error {
	s.lastUserID = userID
	s.lastBookingID = bookingID
	return s.err
}

func (s *stubBookingService) Confirm(_ context.Context, userID, bookingID uuid.UUID, req *models.ConfirmBookingRequest) (*services.ConfirmResult, error) {
	s.lastUserID = userID
	s.lastBookingID = bookingID
	s.lastConfirmReq = req
	return s.result, s.err
}

func testBookingWithTrip(userID uuid.UUID) *models.BookingWithTrip {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	return &models.BookingWithTrip{
		Booking: models.Booking{
			ID:         uuid.New(),
			UserID:     userID,
			TripID:     uuid.New(),
			SeatNumber: 12,
			Status:     models.BookingStatusHeld,
			ExpiresAt:  now.Add(10 * time.Minute),
			CreatedAt:  now,
		},
		FromName:      "Dar Es Salaam",
		FromCode:      "DSM",
		ToName:        "Arusha",
		ToCode:        "ARK",
		DepartureTime: now.Add(24 * time.Hour),
		Price:         35000,
		PlateNumber:   "T123ABC",
	}
}

// performRequest routes the request through gin with an authenticated user
func performRequest(stub *stubBookingService, userID uuid.UUID, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	handler := NewBookingHandler(stub, stub, logger)

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(middleware.UserContextKey, middleware.UserContext{UserID: userID, Role: "passenger"})
	})
	router.POST("/bookings", handler.Create)
	router.GET("/bookings", handler.List)
	router.GET("/bookings/:bookingId", handler.Get)
	router.POST("/bookings/:bookingId/confirm", handler.Confirm)
	router.DELETE("/bookings/:bookingId", handler.Cancel)

	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestBookingHandlerCreate(t *testing.T) {
	userID := uuid.New()

	t.Run("creates a hold", func(t *testing.T) {
		stub := &stubBookingService{
			booking: &models.Booking{
				ID:         uuid.New(),
				UserID:     userID,
				SeatNumber: 12,
				Status:     models.BookingStatusHeld,
			},
		}

		w := performRequest(stub, userID, http.MethodPost, "/bookings", gin.H{
			"trip_id":     uuid.New().String(),
			"seat_number": 12,
		}, nil)

		assert.Equal(t, http.StatusCreated, w.Code)
		env := decodeEnvelope(t, w)
		assert.True(t, env.Success)
		assert.Equal(t, userID, stub.lastUserID)
		assert.Equal(t, 12, stub.lastCreateReq.SeatNumber)
	})

	t.Run("rejects a missing seat number", func(t *testing.T) {
		stub := &stubBookingService{}

		w := performRequest(stub, userID, http.MethodPost, "/bookings", gin.H{
			"trip_id": uuid.New().String(),
		}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, stub.lastCreateReq)
	})

	t.Run("maps a taken seat to 409", func(t *testing.T) {
		stub := &stubBookingService{err: services.ErrSeatTaken}

		w := performRequest(stub, userID, http.MethodPost, "/bookings", gin.H{
			"trip_id":     uuid.New().String(),
			"seat_number": 12,
		}, nil)

		assert.Equal(t, http.StatusConflict, w.Code)
		env := decodeEnvelope(t, w)
		assert.False(t, env.Success)
	})

	t.Run("maps an unknown trip to 404", func(t *testing.T) {
		stub := &stubBookingService{err: services.ErrTripNotFound}

		w := performRequest(stub, userID, http.MethodPost, "/bookings", gin.H{
			"trip_id":     uuid.New().String(),
			"seat_number": 12,
		}, nil)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestBookingHandlerList(t *testing.T) {
	userID := uuid.New()

	t.Run("lists bookings", func(t *testing.T) {
		stub := &stubBookingService{list: []models.BookingWithTrip{*testBookingWithTrip(userID)}}

		w := performRequest(stub, userID, http.MethodGet, "/bookings?status=held", nil, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.BookingStatusHeld, stub.lastStatus)
		env := decodeEnvelope(t, w)
		data := env.Data.(map[string]interface{})
		assert.Equal(t, float64(1), data["count"])
	})

	t.Run("rejects an unknown status filter", func(t *testing.T) {
		stub := &stubBookingService{}

		w := performRequest(stub, userID, http.MethodGet, "/bookings?status=pending", nil, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestBookingHandlerGet(t *testing.T) {
	userID := uuid.New()

	t.Run("returns the booking", func(t *testing.T) {
		booking := testBookingWithTrip(userID)
		stub := &stubBookingService{bookingTrip: booking}

		w := performRequest(stub, userID, http.MethodGet, "/bookings/"+booking.ID.String(), nil, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, booking.ID, stub.lastBookingID)
	})

	t.Run("rejects a malformed id", func(t *testing.T) {
		stub := &stubBookingService{}

		w := performRequest(stub, userID, http.MethodGet, "/bookings/not-a-uuid", nil, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("maps another user's booking to 403", func(t *testing.T) {
		stub := &stubBookingService{err: services.ErrForbidden}

		w := performRequest(stub, userID, http.MethodGet, "/bookings/"+uuid.New().String(), nil, nil)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestBookingHandlerConfirm(t *testing.T) {
	userID := uuid.New()

	confirmed := func() *services.ConfirmResult {
		booking := testBookingWithTrip(userID)
		booking.Status = models.BookingStatusConfirmed
		booking.TicketNumber.Valid = true
		booking.TicketNumber.String = "TKT-20260830-K7M2Q9"
		return &services.ConfirmResult{
			Booking: booking,
			Payment: &models.Payment{
				ID:        uuid.New(),
				BookingID: booking.ID,
				Method:    models.PaymentMethodMpesa,
				Amount:    35000,
				Status:    models.PaymentStatusSuccess,
			},
		}
	}

	t.Run("confirms with payment details", func(t *testing.T) {
		stub := &stubBookingService{result: confirmed()}

		w := performRequest(stub, userID, http.MethodPost, "/bookings/"+uuid.New().String()+"/confirm", gin.H{
			"payment_method": "mpesa",
		}, nil)

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w)
		data := env.Data.(map[string]interface{})
		assert.Equal(t, "TKT-20260830-K7M2Q9", data["ticket_number"])
		require.NotNil(t, data["payment"])
	})

	t.Run("header idempotency key wins over the body", func(t *testing.T) {
		stub := &stubBookingService{result: confirmed()}

		w := performRequest(stub, userID, http.MethodPost, "/bookings/"+uuid.New().String()+"/confirm", gin.H{
			"payment_method":  "mpesa",
			"idempotency_key": "from-body",
		}, map[string]string{"Idempotency-Key": "from-header"})

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "from-header", stub.lastConfirmReq.IdempotencyKey)
	})

	t.Run("maps an expired hold to 410", func(t *testing.T) {
		stub := &stubBookingService{err: services.ErrHoldExpired}

		w := performRequest(stub, userID, http.MethodPost, "/bookings/"+uuid.New().String()+"/confirm", gin.H{
			"payment_method": "mpesa",
		}, nil)

		assert.Equal(t, http.StatusGone, w.Code)
	})

	t.Run("rejects a missing payment method", func(t *testing.T) {
		stub := &stubBookingService{}

		w := performRequest(stub, userID, http.MethodPost, "/bookings/"+uuid.New().String()+"/confirm", gin.H{}, nil)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Nil(t, stub.lastConfirmReq)
	})
}

func TestBookingHandlerCancel(t *testing.T) {
	userID := uuid.New()

	t.Run("cancels a booking", func(t *testing.T) {
		stub := &stubBookingService{}

		w := performRequest(stub, userID, http.MethodDelete, "/bookings/"+uuid.New().String(), nil, nil)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("maps a terminal booking to 409", func(t *testing.T) {
		stub := &stubBookingService{err: services.ErrCannotCancel}

		w := performRequest(stub, userID, http.MethodDelete, "/bookings/"+uuid.New().String(), nil, nil)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
