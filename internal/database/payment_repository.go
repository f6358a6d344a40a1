package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/smartbus-tz/booking-backend/internal/models"
)

// PaymentRepository handles payment records
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository creates a new PaymentRepository
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, booking_id, method, reference, amount, status, idempotency_key, created_at`

// CreatePayment inserts a payment record. The unique constraints on
// booking_id and idempotency_key surface as ErrDuplicatePayment, which the
// caller resolves by re-reading the existing record.
func (r *PaymentRepository) CreatePayment(payment *models.Payment) error {
	payment.ID = uuid.New()
	payment.CreatedAt = time.Now()

	query := `
		INSERT INTO payments (id, booking_id, method, reference, amount, status, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(query,
		payment.ID, payment.BookingID, payment.Method, payment.Reference,
		payment.Amount, payment.Status, payment.IdempotencyKey, payment.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

// GetPaymentByIdempotencyKey retrieves a payment by its idempotency key
func (r *PaymentRepository) GetPaymentByIdempotencyKey(key string) (*models.Payment, error) {
	var payment models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE idempotency_key = $1`

	err := r.db.Get(&payment, query, key)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment by idempotency key: %w", err)
	}
	return &payment, nil
}

// MarkRefunded flags a settled payment as refunded when its booking is
// cancelled after confirmation
func (r *PaymentRepository) MarkRefunded(bookingID uuid.UUID) error {
	_, err := r.db.Exec(`UPDATE payments SET status = 'refunded' WHERE booking_id = $1 AND status = 'success'`, bookingID)
	if err != nil {
		return fmt.Errorf("failed to mark payment refunded: %w", err)
	}
	return nil
}

// GetPaymentByBookingID retrieves the payment for a booking, if any
func (r *PaymentRepository) GetPaymentByBookingID(bookingID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE booking_id = $1`

	err := r.db.Get(&payment, query, bookingID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment by booking: %w", err)
	}
	return &payment, nil
}
