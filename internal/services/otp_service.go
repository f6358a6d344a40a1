package services

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/smartbus-tz/booking-backend/internal/clock"
	"github.com/smartbus-tz/booking-backend/internal/config"
	"github.com/smartbus-tz/booking-backend/internal/models"
)

var (
	// ErrOTPInvalid indicates the code is incorrect
	ErrOTPInvalid = fmt.Errorf("invalid verification code")

	// ErrOTPExpired indicates the code has expired
	ErrOTPExpired = fmt.Errorf("verification code has expired")

	// ErrNoOTPFound indicates no pending code exists for the email
	ErrNoOTPFound = fmt.Errorf("no verification code pending for this email")

	// ErrMaxAttemptsExceeded indicates too many failed validation attempts
	ErrMaxAttemptsExceeded = fmt.Errorf("maximum verification attempts exceeded")
)

// OTPStore is the verification-code persistence surface
type OTPStore interface {
	CreateOTP(otp *models.OTPVerification) error
	GetActiveOTP(email string) (*models.OTPVerification, error)
	IncrementAttempts(id int64) error
	MarkOTPVerified(id int64) error
}

// OTPService generates and validates email verification codes
type OTPService struct {
	store  OTPStore
	config config.OTPConfig
	clock  clock.Clock
}

// NewOTPService creates a new OTP service
func NewOTPService(store OTPStore, cfg config.OTPConfig, clk clock.Clock) *OTPService {
	return &OTPService{store: store, config: cfg, clock: clk}
}

// Generate creates a fresh code for the email, invalidating any previous
// one, and returns the code for delivery. IP and user agent are stored for
// abuse tracking.
func (s *OTPService) Generate(email, ipAddress, userAgent string) (string, error) {
	code, err := randomDigits(s.config.Length)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	otp := &models.OTPVerification{
		Email:       email,
		OTPCode:     code,
		MaxAttempts: s.config.MaxAttempts,
		IPAddress:   ipAddress,
		UserAgent:   userAgent,
		ExpiresAt:   s.clock.Now().Add(s.config.Expiry),
	}
	if err := s.store.CreateOTP(otp); err != nil {
		return "", fmt.Errorf("failed to store code: %w", err)
	}
	return code, nil
}

// Validate checks a code against the pending one for the email. Each wrong
// guess burns an attempt; once attempts run out the code is useless and the
// user must request a new one.
func (s *OTPService) Validate(email, code string) error {
	record, err := s.store.GetActiveOTP(email)
	if err != nil {
		return fmt.Errorf("failed to load verification code: %w", err)
	}
	if record == nil {
		return ErrNoOTPFound
	}
	if s.clock.Now().After(record.ExpiresAt) {
		return ErrOTPExpired
	}
	if record.Attempts >= record.MaxAttempts {
		return ErrMaxAttemptsExceeded
	}

	if record.OTPCode != code {
		if err := s.store.IncrementAttempts(record.ID); err != nil {
			return fmt.Errorf("failed to record attempt: %w", err)
		}
		return ErrOTPInvalid
	}

	if err := s.store.MarkOTPVerified(record.ID); err != nil {
		return fmt.Errorf("failed to consume code: %w", err)
	}
	return nil
}

// randomDigits returns n cryptographically random decimal digits
func randomDigits(n int) (string, error) {
	digits := make([]byte, n)
	for i := range digits {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + d.Int64())
	}
	return string(digits), nil
}
