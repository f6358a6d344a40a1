package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smartbus-tz/booking-backend/internal/models"
	"github.com/smartbus-tz/booking-backend/internal/services"
)

// TripSearcher is the trip surface the handler needs
type TripSearcher interface {
	Search(ctx context.Context, from, to, date string) ([]models.TripSearchResult, error)
	GetTrip(tripID uuid.UUID) (*models.TripWithDetails, error)
	SeatMap(ctx context.Context, tripID uuid.UUID) (*models.SeatMap, error)
	Locations() ([]models.Location, error)
}

// TripHandler handles trip search and seat map HTTP requests
type TripHandler struct {
	trips  TripSearcher
	logger *logrus.Logger
}

// NewTripHandler creates a new trip handler
func NewTripHandler(trips TripSearcher, logger *logrus.Logger) *TripHandler {
	return &TripHandler{trips: trips, logger: logger}
}

// Search handles GET /api/v1/trips?from=&to=&date=
func (h *TripHandler) Search(c *gin.Context) {
	from := c.Query("from")
	to := c.Query("to")
	date := c.Query("date")
	if from == "" || to == "" || date == "" {
		respondError(c, http.StatusBadRequest, "from, to and date query parameters are required")
		return
	}

	results, err := h.trips.Search(c.Request.Context(), from, to, date)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidTravelDate):
			respondError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrRouteNotFound):
			respondError(c, http.StatusNotFound, err.Error())
		default:
			h.logger.WithError(err).Error("Trip search failed")
			respondError(c, http.StatusInternalServerError, "Something went wrong")
		}
		return
	}

	respond(c, http.StatusOK, "", gin.H{"trips": results, "count": len(results)})
}

// Get handles GET /api/v1/trips/:tripId
func (h *TripHandler) Get(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("tripId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid trip id")
		return
	}

	trip, err := h.trips.GetTrip(tripID)
	if err != nil {
		if errors.Is(err, services.ErrTripNotFound) {
			respondError(c, http.StatusNotFound, err.Error())
			return
		}
		h.logger.WithError(err).Error("Trip lookup failed")
		respondError(c, http.StatusInternalServerError, "Something went wrong")
		return
	}

	respond(c, http.StatusOK, "", trip.ToSearchResult())
}

// SeatMap handles GET /api/v1/trips/:tripId/seats
func (h *TripHandler) SeatMap(c *gin.Context) {
	tripID, err := uuid.Parse(c.Param("tripId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid trip id")
		return
	}

	seatMap, err := h.trips.SeatMap(c.Request.Context(), tripID)
	if err != nil {
		if errors.Is(err, services.ErrTripNotFound) {
			respondError(c, http.StatusNotFound, err.Error())
			return
		}
		h.logger.WithError(err).Error("Seat map lookup failed")
		respondError(c, http.StatusInternalServerError, "Something went wrong")
		return
	}

	respond(c, http.StatusOK, "", seatMap)
}

// Locations handles GET /api/v1/locations
func (h *TripHandler) Locations(c *gin.Context) {
	locations, err := h.trips.Locations()
	if err != nil {
		h.logger.WithError(err).Error("Location listing failed")
		respondError(c, http.StatusInternalServerError, "Something went wrong")
		return
	}

	respond(c, http.StatusOK, "", gin.H{"locations": locations})
}

// PaymentMethods handles GET /api/v1/payment-methods
func (h *TripHandler) PaymentMethods(c *gin.Context) {
	respond(c, http.StatusOK, "", gin.H{"methods": models.ValidPaymentMethods})
}
