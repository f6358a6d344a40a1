package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/smartbus-tz/booking-backend/internal/models"
)

// OTPRepository handles email verification codes
type OTPRepository struct {
	db *sqlx.DB
}

// NewOTPRepository creates a new OTPRepository
func NewOTPRepository(db *sqlx.DB) *OTPRepository {
	return &OTPRepository{db: db}
}

const otpColumns = `id, email, otp_code, attempts, max_attempts, verified, ip_address, user_agent, expires_at, created_at`

// CreateOTP stores a fresh verification code for the email, replacing any
// earlier unverified code so only the latest one can succeed
func (r *OTPRepository) CreateOTP(otp *models.OTPVerification) error {
	tx, err := r.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`DELETE FROM otp_verifications WHERE email = $1 AND verified = false`, otp.Email)
	if err != nil {
		return fmt.Errorf("failed to clear previous codes: %w", err)
	}

	err = tx.QueryRow(`
		INSERT INTO otp_verifications (email, otp_code, attempts, max_attempts, verified, ip_address, user_agent, expires_at, created_at)
		VALUES ($1, $2, 0, $3, false, $4, $5, $6, NOW())
		RETURNING id, created_at
	`, otp.Email, otp.OTPCode, otp.MaxAttempts, otp.IPAddress, otp.UserAgent, otp.ExpiresAt).
		Scan(&otp.ID, &otp.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create verification code: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit verification code: %w", err)
	}
	return nil
}

// GetActiveOTP retrieves the current unexpired, unverified code for an email
func (r *OTPRepository) GetActiveOTP(email string) (*models.OTPVerification, error) {
	var otp models.OTPVerification
	query := `
		SELECT ` + otpColumns + `
		FROM otp_verifications
		WHERE email = $1 AND verified = false AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1`

	err := r.db.Get(&otp, query, email)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get verification code: %w", err)
	}
	return &otp, nil
}

// IncrementAttempts records a failed verification attempt
func (r *OTPRepository) IncrementAttempts(id int64) error {
	_, err := r.db.Exec(`UPDATE otp_verifications SET attempts = attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to increment attempts: %w", err)
	}
	return nil
}

// MarkOTPVerified marks a code as consumed
func (r *OTPRepository) MarkOTPVerified(id int64) error {
	result, err := r.db.Exec(`UPDATE otp_verifications SET verified = true WHERE id = $1 AND verified = false`, id)
	if err != nil {
		return fmt.Errorf("failed to mark code verified: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// CountRecentByEmail counts codes issued for an email since the cutoff
func (r *OTPRepository) CountRecentByEmail(email string, since time.Time) (int, error) {
	var count int
	err := r.db.Get(&count, `
		SELECT COUNT(*) FROM otp_verifications WHERE email = $1 AND created_at > $2
	`, email, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent codes for email: %w", err)
	}
	return count, nil
}

// CountRecentByIP counts codes issued from an IP since the cutoff
func (r *OTPRepository) CountRecentByIP(ip string, since time.Time) (int, error) {
	var count int
	err := r.db.Get(&count, `
		SELECT COUNT(*) FROM otp_verifications WHERE ip_address = $1 AND created_at > $2
	`, ip, since)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent codes for ip: %w", err)
	}
	return count, nil
}

// DeleteExpiredOTPs removes stale verification codes
func (r *OTPRepository) DeleteExpiredOTPs() (int, error) {
	result, err := r.db.Exec(`DELETE FROM otp_verifications WHERE expires_at < NOW() - INTERVAL '1 day'`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired codes: %w", err)
	}
	rows, _ := result.RowsAffected()
	return int(rows), nil
}
