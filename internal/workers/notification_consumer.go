package workers

import (
	"encoding/json"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/smartbus-tz/booking-backend/internal/models"
	"github.com/smartbus-tz/booking-backend/pkg/mailer"
)

// UserResolver looks up the recipient account for an event
type UserResolver interface {
	GetUserByID(id uuid.UUID) (*models.User, error)
}

// TicketMailer delivers ticket emails
type TicketMailer interface {
	SendTicket(to, name string, ticket mailer.TicketEmail) error
}

// EventSource yields booking confirmation deliveries from the broker
type EventSource interface {
	Consume() (<-chan amqp.Delivery, error)
}

// NotificationConsumer drains booking confirmation events and sends the
// ticket email for each. Runs in its own goroutine; the delivery channel
// closing (broker shutdown or Close) ends the loop.
type NotificationConsumer struct {
	source EventSource
	users  UserResolver
	mailer TicketMailer
	logger *logrus.Logger
	done   chan struct{}
}

// NewNotificationConsumer creates a new notification consumer
func NewNotificationConsumer(source EventSource, users UserResolver, m TicketMailer, logger *logrus.Logger) *NotificationConsumer {
	return &NotificationConsumer{
		source: source,
		users:  users,
		mailer: m,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Start begins consuming. Returns an error when the broker is unavailable;
// the caller decides whether that is fatal.
func (w *NotificationConsumer) Start() error {
	deliveries, err := w.source.Consume()
	if err != nil {
		return err
	}

	go func() {
		defer close(w.done)
		for delivery := range deliveries {
			w.handle(delivery)
		}
		w.logger.Info("Notification consumer stopped")
	}()

	w.logger.Info("Notification consumer started")
	return nil
}

// Wait blocks until the consumer loop has drained and exited
func (w *NotificationConsumer) Wait() {
	<-w.done
}

func (w *NotificationConsumer) handle(delivery amqp.Delivery) {
	var event models.BookingConfirmedEvent
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		w.logger.WithError(err).Error("Dropping malformed confirmation event")
		delivery.Nack(false, false)
		return
	}

	log := w.logger.WithFields(logrus.Fields{
		"booking_id": event.BookingID,
		"ticket":     event.TicketNumber,
	})

	user, err := w.users.GetUserByID(event.UserID)
	if err != nil {
		log.WithError(err).Error("Failed to resolve recipient, requeueing")
		delivery.Nack(false, true)
		return
	}
	if user == nil {
		log.Warn("Recipient account gone, dropping event")
		delivery.Ack(false)
		return
	}

	err = w.mailer.SendTicket(user.Email, user.Name, mailer.TicketEmail{
		TicketNumber:  event.TicketNumber,
		From:          event.From,
		To:            event.To,
		SeatNumber:    event.SeatNumber,
		DepartureTime: event.DepartureTime,
		Amount:        event.Amount,
		Method:        event.Method,
	})
	if err != nil {
		// requeue once; the redelivered flag stops a poison message from
		// cycling forever
		if delivery.Redelivered {
			log.WithError(err).Error("Ticket email failed twice, dropping")
			delivery.Nack(false, false)
		} else {
			log.WithError(err).Warn("Ticket email failed, requeueing")
			delivery.Nack(false, true)
		}
		return
	}

	log.Info("Ticket email sent")
	delivery.Ack(false)
}
