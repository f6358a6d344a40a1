package services

import (
	"fmt"
	"time"

	"github.com/smartbus-tz/booking-backend/internal/clock"
	"github.com/smartbus-tz/booking-backend/internal/config"
)

// RateLimitError indicates too many verification code requests
type RateLimitError struct {
	Message string
	Type    string // "email" or "ip"
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// OTPRequestCounter counts recently issued codes per identifier
type OTPRequestCounter interface {
	CountRecentByEmail(email string, since time.Time) (int, error)
	CountRecentByIP(ip string, since time.Time) (int, error)
}

// RateLimitService throttles verification code issuance per email and per
// source IP. Counting rides on the otp_verifications rows themselves, so
// there is no separate counter table to keep in sync.
type RateLimitService struct {
	counter OTPRequestCounter
	config  config.OTPConfig
	clock   clock.Clock
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(counter OTPRequestCounter, cfg config.OTPConfig, clk clock.Clock) *RateLimitService {
	return &RateLimitService{counter: counter, config: cfg, clock: clk}
}

// CheckOTPRateLimit returns a RateLimitError when the email or IP has
// requested too many codes inside its window
func (s *RateLimitService) CheckOTPRateLimit(email, ip string) error {
	now := s.clock.Now()

	if email != "" {
		count, err := s.counter.CountRecentByEmail(email, now.Add(-s.config.RateWindow))
		if err != nil {
			return fmt.Errorf("failed to check email rate limit: %w", err)
		}
		if count >= s.config.RateLimit {
			return &RateLimitError{
				Message: "Too many verification codes requested for this email. Please try again later.",
				Type:    "email",
			}
		}
	}

	if ip != "" {
		count, err := s.counter.CountRecentByIP(ip, now.Add(-s.config.IPWindow))
		if err != nil {
			return fmt.Errorf("failed to check IP rate limit: %w", err)
		}
		if count >= s.config.MaxIPRequests {
			return &RateLimitError{
				Message: "Too many verification codes requested from this address. Please try again later.",
				Type:    "ip",
			}
		}
	}

	return nil
}
