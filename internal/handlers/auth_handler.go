package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smartbus-tz/booking-backend/internal/middleware"
	"github.com/smartbus-tz/booking-backend/internal/models"
	"github.com/smartbus-tz/booking-backend/internal/services"
)

// AuthService is the auth surface the handler needs
type AuthService interface {
	Register(req *models.RegisterRequest, ip, userAgent string) error
	VerifyOTP(req *models.VerifyOTPRequest) (*models.AuthResponse, error)
	Login(req *models.LoginRequest) (*models.AuthResponse, error)
	ResendOTP(req *models.ResendOTPRequest, ip, userAgent string) error
	Refresh(req *models.RefreshTokenRequest) (*models.AuthResponse, error)
	Me(userID uuid.UUID) (*models.User, error)
}

// AuthHandler handles authentication HTTP requests
type AuthHandler struct {
	auth   AuthService
	logger *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth AuthService, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.auth.Register(&req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	respond(c, http.StatusCreated, "Registration successful. Check your email for the verification code.", gin.H{
		"email": req.Email,
	})
}

// Verify handles POST /api/v1/auth/verify
func (h *AuthHandler) Verify(c *gin.Context) {
	var req models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.auth.VerifyOTP(&req)
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	respond(c, http.StatusOK, "Account verified", resp)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.auth.Login(&req)
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	respond(c, http.StatusOK, "Login successful", resp)
}

// ResendOTP handles POST /api/v1/auth/resend-otp
func (h *AuthHandler) ResendOTP(c *gin.Context) {
	var req models.ResendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.auth.ResendOTP(&req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	respond(c, http.StatusOK, "Verification code sent", gin.H{"email": req.Email})
}

// Refresh handles POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.auth.Refresh(&req)
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	respond(c, http.StatusOK, "Token refreshed", resp)
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userCtx, ok := middleware.GetUserContext(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Authentication required")
		return
	}

	user, err := h.auth.Me(userCtx.UserID)
	if err != nil {
		h.writeAuthError(c, err)
		return
	}

	respond(c, http.StatusOK, "", gin.H{"user": user})
}

// writeAuthError maps auth service errors to HTTP responses
func (h *AuthHandler) writeAuthError(c *gin.Context, err error) {
	var rateErr *services.RateLimitError
	switch {
	case errors.As(err, &rateErr):
		respondError(c, http.StatusTooManyRequests, rateErr.Message)
	case errors.Is(err, services.ErrEmailTaken):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrInvalidPhone):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrAccountNotVerified),
		errors.Is(err, services.ErrInvalidRefreshToken):
		respondError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrUserNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrAlreadyVerified):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrOTPInvalid),
		errors.Is(err, services.ErrOTPExpired),
		errors.Is(err, services.ErrNoOTPFound),
		errors.Is(err, services.ErrMaxAttemptsExceeded):
		respondError(c, http.StatusBadRequest, err.Error())
	default:
		h.logger.WithError(err).Error("Auth request failed")
		respondError(c, http.StatusInternalServerError, "Something went wrong")
	}
}
