package services

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/smartbus-tz/booking-backend/internal/config"
	"github.com/smartbus-tz/booking-backend/internal/models"
)

// NotificationService publishes booking events to RabbitMQ. The queue is
// durable and messages persistent, so confirmations survive a broker
// restart and are delivered to the email consumer at least once.
type NotificationService struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	logger  *logrus.Logger
}

// NewNotificationService connects to the broker and declares the booking
// queue. Returns an error when a broker URL is configured but unreachable;
// callers that want a fully degraded mode pass an empty URL and get a
// publisher that drops events with a warning.
func NewNotificationService(cfg config.AMQPConfig, logger *logrus.Logger) (*NotificationService, error) {
	s := &NotificationService{queue: cfg.QueueName, logger: logger}
	if cfg.URL == "" {
		logger.Warn("AMQP not configured, confirmation events will be dropped")
		return s, nil
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	_, err = channel.QueueDeclare(
		cfg.QueueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	s.conn = conn
	s.channel = channel
	logger.WithField("queue", cfg.QueueName).Info("Connected to message broker")
	return s, nil
}

// PublishBookingConfirmed emits a confirmation event
func (s *NotificationService) PublishBookingConfirmed(ctx context.Context, event *models.BookingConfirmedEvent) error {
	if s.channel == nil {
		s.logger.WithField("booking_id", event.BookingID).
			Warn("Dropping confirmation event, broker not connected")
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = s.channel.PublishWithContext(ctx,
		"",      // default exchange
		s.queue, // routing key
		false,   // mandatory
		false,   // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Consume returns a delivery channel for the booking queue. Used by the
// notification consumer worker.
func (s *NotificationService) Consume() (<-chan amqp.Delivery, error) {
	if s.channel == nil {
		return nil, fmt.Errorf("broker not connected")
	}
	return s.channel.Consume(
		s.queue,
		"",    // consumer tag
		false, // autoAck, we ack after the email goes out
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
}

// Close shuts down the broker connection
func (s *NotificationService) Close() {
	if s.channel != nil {
		s.channel.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
}
