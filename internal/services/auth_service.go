package services

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smartbus-tz/booking-backend/internal/models"
	"github.com/smartbus-tz/booking-backend/pkg/jwt"
	"github.com/smartbus-tz/booking-backend/pkg/validator"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmailTaken indicates a verified account already uses the email or phone
	ErrEmailTaken = fmt.Errorf("an account with this email or phone already exists")

	// ErrInvalidCredentials indicates a failed login
	ErrInvalidCredentials = fmt.Errorf("invalid email or password")

	// ErrAccountNotVerified indicates login before email verification
	ErrAccountNotVerified = fmt.Errorf("account is not verified yet")

	// ErrUserNotFound indicates no account exists for the email
	ErrUserNotFound = fmt.Errorf("no account found for this email")

	// ErrAlreadyVerified indicates a resend request for a verified account
	ErrAlreadyVerified = fmt.Errorf("account is already verified")

	// ErrInvalidPhone indicates a phone number that fails validation
	ErrInvalidPhone = fmt.Errorf("invalid phone number")

	// ErrInvalidRefreshToken indicates an expired or malformed refresh token
	ErrInvalidRefreshToken = fmt.Errorf("invalid or expired refresh token")
)

// UserStore is the account persistence surface the service needs
type UserStore interface {
	CreateUser(user *models.User) error
	GetUserByID(id uuid.UUID) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByEmailOrPhone(email, phone string) (*models.User, error)
	MarkVerified(id uuid.UUID) error
	DeleteUser(id uuid.UUID) error
}

// OTPMailer delivers verification codes
type OTPMailer interface {
	SendOTP(to, name, code string) error
}

// TokenIssuer mints and validates access and refresh tokens
type TokenIssuer interface {
	GenerateAccessToken(userID uuid.UUID, role string) (string, error)
	GenerateRefreshToken(userID uuid.UUID) (string, error)
	ValidateRefreshToken(token string) (*jwt.Claims, error)
}

// AuthService implements the register → verify → login flow. Accounts start
// unverified; a code is emailed on registration and the account only becomes
// usable once the code is confirmed.
type AuthService struct {
	users     UserStore
	otp       *OTPService
	rateLimit *RateLimitService
	mailer    OTPMailer
	tokens    TokenIssuer
	logger    *logrus.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(
	users UserStore,
	otp *OTPService,
	rateLimit *RateLimitService,
	mailer OTPMailer,
	tokens TokenIssuer,
	logger *logrus.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		otp:       otp,
		rateLimit: rateLimit,
		mailer:    mailer,
		tokens:    tokens,
		logger:    logger,
	}
}

// Register creates an unverified account and emails a verification code.
// Re-registering an unverified account just reissues the code.
func (s *AuthService) Register(req *models.RegisterRequest, ip, userAgent string) error {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	phone, ok := validator.NormalizePhone(req.Phone)
	if !ok {
		return ErrInvalidPhone
	}

	if err := s.rateLimit.CheckOTPRateLimit(email, ip); err != nil {
		return err
	}

	existing, err := s.users.GetUserByEmailOrPhone(email, phone)
	if err != nil {
		return fmt.Errorf("failed to check existing accounts: %w", err)
	}
	if existing != nil {
		if existing.Verified {
			return ErrEmailTaken
		}
		// unverified leftover: reissue the code against the same account
		return s.issueCode(existing, ip, userAgent)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		Phone:        phone,
		PasswordHash: string(hash),
	}
	if err := s.users.CreateUser(user); err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}

	if err := s.issueCode(user, ip, userAgent); err != nil {
		// the account is unusable without its code, roll it back so the
		// user can register again
		if delErr := s.users.DeleteUser(user.ID); delErr != nil {
			s.logger.WithError(delErr).WithField("user_id", user.ID).
				Error("Failed to roll back account after mail failure")
		}
		return err
	}

	s.logger.WithField("email", email).Info("Account registered, verification pending")
	return nil
}

// VerifyOTP confirms the emailed code, activates the account and returns
// its first token pair
func (s *AuthService) VerifyOTP(req *models.VerifyOTPRequest) (*models.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	if err := s.otp.Validate(email, req.OTP); err != nil {
		return nil, err
	}

	if !user.Verified {
		if err := s.users.MarkVerified(user.ID); err != nil {
			return nil, fmt.Errorf("failed to activate account: %w", err)
		}
		user.Verified = true
	}

	return s.issueTokens(user)
}

// Login authenticates a verified account
func (s *AuthService) Login(req *models.LoginRequest) (*models.AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !user.Verified {
		return nil, ErrAccountNotVerified
	}

	s.logger.WithField("user_id", user.ID).Info("User logged in")
	return s.issueTokens(user)
}

// Me returns the account profile for an authenticated user
func (s *AuthService) Me(userID uuid.UUID) (*models.User, error) {
	user, err := s.users.GetUserByID(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// Refresh exchanges a valid refresh token for a fresh token pair
func (s *AuthService) Refresh(req *models.RefreshTokenRequest) (*models.AuthResponse, error) {
	claims, err := s.tokens.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetUserByID(claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	if user == nil || !user.Verified {
		return nil, ErrInvalidRefreshToken
	}

	return s.issueTokens(user)
}

// ResendOTP reissues the verification code for an unverified account
func (s *AuthService) ResendOTP(req *models.ResendOTPRequest, ip, userAgent string) error {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := s.rateLimit.CheckOTPRateLimit(email, ip); err != nil {
		return err
	}

	user, err := s.users.GetUserByEmail(email)
	if err != nil {
		return fmt.Errorf("failed to load account: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	if user.Verified {
		return ErrAlreadyVerified
	}

	return s.issueCode(user, ip, userAgent)
}

func (s *AuthService) issueCode(user *models.User, ip, userAgent string) error {
	code, err := s.otp.Generate(user.Email, ip, userAgent)
	if err != nil {
		return err
	}
	if err := s.mailer.SendOTP(user.Email, user.Name, code); err != nil {
		return fmt.Errorf("failed to send verification email: %w", err)
	}
	return nil
}

func (s *AuthService) issueTokens(user *models.User) (*models.AuthResponse, error) {
	access, err := s.tokens.GenerateAccessToken(user.ID, string(user.Role))
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	refresh, err := s.tokens.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	return &models.AuthResponse{Token: access, RefreshToken: refresh, User: user}, nil
}
