package service

import (
	"context"
	"time"

	"pitchside/pkg/config"
	"pitchside/pkg/kafka"
	kafka_config "pitchside/pkg/kafka/config"
	kafka_middleware "pitchside/pkg/kafka/middleware"
	"pitchside/pkg/locale"
	"pitchside/pkg/logger"
	"pitchside/pkg/model"
)

// Notification event types carried in the event-type header.
const (
	EventTypeSlotsAvailable = "waitlist.slots_available.v1"
	EventTypeBookingStatus  = "booking.status_changed.v1"
)

// SlotsAvailablePayload fans out to waitlist consumers after capacity
// opens up on an event.
type SlotsAvailablePayload struct {
	EventID    string    `json:"event_id"`
	EventName  string    `json:"event_name"`
	StartTime  time.Time `json:"start_time"`
	FreeSlots  []int     `json:"free_slots"`
	OccurredAt time.Time `json:"occurred_at"`
}

// BookingStatusPayload tells notification consumers to message the
// purchaser. TimezoneHint lets them localize the event time.
type BookingStatusPayload struct {
	BookingID    string    `json:"booking_id"`
	EventID      string    `json:"event_id"`
	UserID       string    `json:"user_id"`
	Phone        string    `json:"phone,omitempty"`
	Status       string    `json:"status"`
	TimezoneHint string    `json:"timezone_hint,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Notifier publishes post-commit events. Both operations are
// fire-and-forget: a broker failure is logged and swallowed, it never
// fails the booking write that triggered it.
type Notifier interface {
	SlotsAvailable(ctx context.Context, event *model.Event, freeSlots []int)
	BookingStatusChanged(ctx context.Context, booking *model.Booking)
	Close() error
}

type publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

type kafkaNotifier struct {
	waitlistProducer     publisher
	notificationProducer publisher
	log                  *logger.Logger
	serviceName          string
	closers              []func() error
}

func NewKafkaNotifier(cfg *config.Config, serviceName string) (Notifier, error) {
	kafkaCfg := kafka_config.Load()
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	waitlist, err := kafka.NewProducer(kafkaCfg, kafka_config.TopicSlotsAvailable, kafka_config.TopicBookingsDLQ)
	if err != nil {
		return nil, err
	}

	notifications, err := kafka.NewProducer(kafkaCfg, kafka_config.TopicBookingNotifications, kafka_config.TopicBookingsDLQ)
	if err != nil {
		_ = waitlist.Close()
		return nil, err
	}

	if kafkaCfg.EnableMiddleware {
		for _, producer := range []*kafka.Producer{waitlist, notifications} {
			producer.Use(kafka_middleware.PublishLogging(cfg.Log))
			producer.Use(kafka_middleware.PublishMetrics())
		}
	}

	return &kafkaNotifier{
		waitlistProducer:     waitlist,
		notificationProducer: notifications,
		log:                  cfg.Log,
		serviceName:          serviceName,
		closers:              []func() error{waitlist.Close, notifications.Close},
	}, nil
}

func (n *kafkaNotifier) SlotsAvailable(ctx context.Context, event *model.Event, freeSlots []int) {
	if len(freeSlots) == 0 {
		return
	}

	payload := SlotsAvailablePayload{
		EventID:    event.ID,
		EventName:  event.Name,
		StartTime:  event.StartTime,
		FreeSlots:  freeSlots,
		OccurredAt: time.Now().UTC(),
	}

	msg := kafka.NewMessage().
		WithKey(event.ID).
		WithValue(payload).
		WithEventType(EventTypeSlotsAvailable).
		WithSource(n.serviceName).
		Build()

	if err := n.waitlistProducer.Publish(ctx, msg); err != nil {
		n.log.Error("Failed to publish slots-available event",
			"event_id", event.ID,
			"error", err,
		)
	}
}

func (n *kafkaNotifier) BookingStatusChanged(ctx context.Context, booking *model.Booking) {
	payload := BookingStatusPayload{
		BookingID:    booking.ID,
		EventID:      booking.EventID,
		UserID:       booking.UserID,
		Phone:        booking.PurchaserPhone,
		Status:       booking.Status,
		TimezoneHint: locale.InferTimezoneFromPhone(booking.PurchaserPhone),
		OccurredAt:   time.Now().UTC(),
	}

	msg := kafka.NewMessage().
		WithKey(booking.ID).
		WithValue(payload).
		WithEventType(EventTypeBookingStatus).
		WithCorrelationID(booking.ID).
		WithSource(n.serviceName).
		Build()

	if err := n.notificationProducer.Publish(ctx, msg); err != nil {
		n.log.Error("Failed to publish booking status event",
			"booking_id", booking.ID,
			"status", booking.Status,
			"error", err,
		)
	}
}

func (n *kafkaNotifier) Close() error {
	var firstErr error
	for _, close := range n.closers {
		if err := close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
