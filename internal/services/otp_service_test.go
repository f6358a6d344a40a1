package services

import (
	"sync"
	"testing"
	"time"

	"github.com/smartbus-tz/booking-backend/internal/clock"
	"github.com/smartbus-tz/booking-backend/internal/config"
	"github.com/smartbus-tz/booking-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOTPStore keeps one active code per email, like the SQL repository
type fakeOTPStore struct {
	mu     sync.Mutex
	nextID int64
	codes  map[string]*models.OTPVerification
}

func newFakeOTPStore() *fakeOTPStore {
	return &fakeOTPStore{codes: make(map[string]*models.OTPVerification)}
}

func (f *fakeOTPStore) CreateOTP(otp *models.OTPVerification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	otp.ID = f.nextID
	cp := *otp
	f.codes[otp.Email] = &cp
	return nil
}

func (f *fakeOTPStore) GetActiveOTP(email string) (*models.OTPVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	record, ok := f.codes[email]
	if !ok || record.Verified {
		return nil, nil
	}
	cp := *record
	return &cp, nil
}

func (f *fakeOTPStore) IncrementAttempts(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, record := range f.codes {
		if record.ID == id {
			record.Attempts++
		}
	}
	return nil
}

func (f *fakeOTPStore) MarkOTPVerified(id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, record := range f.codes {
		if record.ID == id {
			record.Verified = true
		}
	}
	return nil
}

func otpConfig() config.OTPConfig {
	return config.OTPConfig{
		Length:      6,
		Expiry:      5 * time.Minute,
		MaxAttempts: 3,
	}
}

func TestOTPGenerate(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	clk := clock.NewFixed(now)
	store := newFakeOTPStore()
	svc := NewOTPService(store, otpConfig(), clk)

	code, err := svc.Generate("amina@example.com", "203.0.113.9", "test-agent")
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9]{6}$`, code)

	record, err := store.GetActiveOTP("amina@example.com")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, code, record.OTPCode)
	assert.Equal(t, now.Add(5*time.Minute), record.ExpiresAt)
	assert.Equal(t, "203.0.113.9", record.IPAddress)
}

func TestOTPValidate(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	setup := func(t *testing.T) (*clock.Fixed, *OTPService, string) {
		t.Helper()
		clk := clock.NewFixed(now)
		svc := NewOTPService(newFakeOTPStore(), otpConfig(), clk)
		code, err := svc.Generate("amina@example.com", "", "")
		require.NoError(t, err)
		return clk, svc, code
	}

	t.Run("accepts the right code", func(t *testing.T) {
		_, svc, code := setup(t)
		require.NoError(t, svc.Validate("amina@example.com", code))

		// consumed, a second use fails
		assert.ErrorIs(t, svc.Validate("amina@example.com", code), ErrNoOTPFound)
	})

	t.Run("wrong guesses burn attempts", func(t *testing.T) {
		_, svc, code := setup(t)

		for i := 0; i < 3; i++ {
			assert.ErrorIs(t, svc.Validate("amina@example.com", "000000"), ErrOTPInvalid)
		}
		// attempts exhausted, even the right code is refused
		assert.ErrorIs(t, svc.Validate("amina@example.com", code), ErrMaxAttemptsExceeded)
	})

	t.Run("rejects expired codes", func(t *testing.T) {
		clk, svc, code := setup(t)
		clk.Advance(6 * time.Minute)
		assert.ErrorIs(t, svc.Validate("amina@example.com", code), ErrOTPExpired)
	})

	t.Run("no pending code", func(t *testing.T) {
		_, svc, _ := setup(t)
		assert.ErrorIs(t, svc.Validate("nobody@example.com", "123456"), ErrNoOTPFound)
	})
}
