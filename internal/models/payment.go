package models

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethod represents the payment channel used for a booking
type PaymentMethod string

const (
	PaymentMethodMpesa    PaymentMethod = "mpesa"
	PaymentMethodTigopesa PaymentMethod = "tigopesa"
	PaymentMethodAirtel   PaymentMethod = "airtel"
	PaymentMethodCash     PaymentMethod = "cash"
	PaymentMethodCard     PaymentMethod = "card"
)

// ValidPaymentMethods lists the accepted payment channels in display order
var ValidPaymentMethods = []PaymentMethod{
	PaymentMethodMpesa,
	PaymentMethodTigopesa,
	PaymentMethodAirtel,
	PaymentMethodCash,
	PaymentMethodCard,
}

// IsValidPaymentMethod reports whether m is an accepted payment channel
func IsValidPaymentMethod(m string) bool {
	for _, v := range ValidPaymentMethods {
		if string(v) == m {
			return true
		}
	}
	return false
}

// PaymentStatus represents the outcome of a payment
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusSuccess  PaymentStatus = "success"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Payment records exactly one settled payment per confirmed booking.
// Uniqueness of both booking_id and idempotency_key is enforced at the
// storage level, which is what makes retried confirmations safe.
type Payment struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	BookingID      uuid.UUID     `json:"booking_id" db:"booking_id"`
	Method         PaymentMethod `json:"method" db:"method"`
	Reference      string        `json:"reference" db:"reference"`
	Amount         float64       `json:"amount" db:"amount"`
	Status         PaymentStatus `json:"status" db:"status"`
	IdempotencyKey string        `json:"-" db:"idempotency_key"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
}

// PaymentInfo is the payment portion of booking responses
type PaymentInfo struct {
	Method    PaymentMethod `json:"method"`
	Reference string        `json:"reference"`
	Amount    float64       `json:"amount"`
	Status    PaymentStatus `json:"status"`
}

// Info converts a payment record to its API shape
func (p *Payment) Info() *PaymentInfo {
	return &PaymentInfo{
		Method:    p.Method,
		Reference: p.Reference,
		Amount:    p.Amount,
		Status:    p.Status,
	}
}
