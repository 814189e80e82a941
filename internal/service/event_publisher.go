package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aikokik/bookabl-api/internal/domain"
	"github.com/aikokik/bookabl-api/pkg/kafka"
	"github.com/aikokik/bookabl-api/pkg/retry"
)

// EventPublisher defines the interface for publishing booking events
type EventPublisher interface {
	// PublishHoldPlaced publishes a hold placed event
	PublishHoldPlaced(ctx context.Context, hold *domain.Hold) error

	// PublishHoldReleased publishes a hold released event
	PublishHoldReleased(ctx context.Context, hold *domain.Hold) error

	// PublishHoldExpired publishes a hold expired event
	PublishHoldExpired(ctx context.Context, hold *domain.Hold) error

	// PublishReservationConfirmed publishes a reservation confirmed event
	PublishReservationConfirmed(ctx context.Context, reservation *domain.Reservation) error

	// PublishReservationCancelled publishes a reservation cancelled event
	PublishReservationCancelled(ctx context.Context, reservation *domain.Reservation) error

	// Close closes the event publisher
	Close() error
}

// KafkaEventPublisher implements EventPublisher using Kafka. Publishing
// retries briefly in process; an event that still fails is parked on the
// dead letter topic instead of being dropped.
type KafkaEventPublisher struct {
	producer    *kafka.Producer
	dlq         retry.DLQPublisher
	retryCfg    *retry.Config
	topic       string
	serviceName string
}

// EventPublisherConfig contains configuration for the event publisher
type EventPublisherConfig struct {
	Brokers     []string
	Topic       string
	ServiceName string
	ClientID    string
}

// NewKafkaEventPublisher creates a new Kafka event publisher
func NewKafkaEventPublisher(ctx context.Context, cfg *EventPublisherConfig) (*KafkaEventPublisher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("event publisher config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "booking-events"
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "bookabl-api"
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "bookabl-api-producer"
	}

	producer, err := kafka.NewProducer(ctx, &kafka.ProducerConfig{
		Brokers:       cfg.Brokers,
		ClientID:      clientID,
		MaxRetries:    3,
		RetryInterval: 2 * time.Second,
		BatchSize:     100,
		LingerMs:      10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	dlqCfg := retry.DefaultDLQConfig()
	dlqCfg.Source = serviceName

	return &KafkaEventPublisher{
		producer: producer,
		dlq:      retry.NewKafkaDLQPublisher(producer, dlqCfg),
		retryCfg: &retry.Config{
			MaxRetries:      2,
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     time.Second,
			Multiplier:      2.0,
			JitterFactor:    0.1,
		},
		topic:       topic,
		serviceName: serviceName,
	}, nil
}

// PublishHoldPlaced publishes a hold placed event
func (p *KafkaEventPublisher) PublishHoldPlaced(ctx context.Context, hold *domain.Hold) error {
	return p.publishEvent(ctx, holdEvent(domain.BookingEventHeld, hold))
}

// PublishHoldReleased publishes a hold released event
func (p *KafkaEventPublisher) PublishHoldReleased(ctx context.Context, hold *domain.Hold) error {
	return p.publishEvent(ctx, holdEvent(domain.BookingEventReleased, hold))
}

// PublishHoldExpired publishes a hold expired event
func (p *KafkaEventPublisher) PublishHoldExpired(ctx context.Context, hold *domain.Hold) error {
	return p.publishEvent(ctx, holdEvent(domain.BookingEventExpired, hold))
}

// PublishReservationConfirmed publishes a reservation confirmed event
func (p *KafkaEventPublisher) PublishReservationConfirmed(ctx context.Context, reservation *domain.Reservation) error {
	return p.publishEvent(ctx, reservationEvent(domain.BookingEventConfirmed, reservation))
}

// PublishReservationCancelled publishes a reservation cancelled event
func (p *KafkaEventPublisher) PublishReservationCancelled(ctx context.Context, reservation *domain.Reservation) error {
	return p.publishEvent(ctx, reservationEvent(domain.BookingEventCancelled, reservation))
}

// Close closes the event publisher
func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		p.producer.Close()
	}
	return nil
}

func holdEvent(eventType domain.BookingEventType, hold *domain.Hold) *domain.BookingEvent {
	return &domain.BookingEvent{
		EventID:    uuid.New().String(),
		Type:       eventType,
		ResourceID: hold.ResourceID,
		OwnerID:    hold.OwnerID,
		HoldID:     hold.ID,
		Interval:   hold.Interval,
		OccurredAt: time.Now().UTC(),
	}
}

func reservationEvent(eventType domain.BookingEventType, r *domain.Reservation) *domain.BookingEvent {
	return &domain.BookingEvent{
		EventID:       uuid.New().String(),
		Type:          eventType,
		ResourceID:    r.ResourceID,
		OwnerID:       r.OwnerID,
		HoldID:        r.HoldID,
		ReservationID: r.ID,
		Interval:      r.Interval,
		OccurredAt:    time.Now().UTC(),
	}
}

// publishEvent publishes a booking event to Kafka
func (p *KafkaEventPublisher) publishEvent(ctx context.Context, event *domain.BookingEvent) error {
	event.Source = p.serviceName

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	headers := map[string]string{
		"event_type":   string(event.Type),
		"event_id":     event.EventID,
		"source":       p.serviceName,
		"content_type": "application/json",
	}

	msg := &kafka.Message{
		Topic:     p.topic,
		Key:       []byte(event.Key()),
		Value:     value,
		Headers:   headers,
		Timestamp: time.Now(),
	}

	firstAttempt := time.Now().UTC()
	result := retry.Do(ctx, p.retryCfg, func(ctx context.Context) error {
		return p.producer.Produce(ctx, msg)
	})
	if result.Err == nil {
		return nil
	}
	lastErr := result.Err
	if result.LastError != nil {
		lastErr = result.LastError
	}

	dlqErr := p.dlq.PublishToDLQ(ctx, &retry.DLQMessage{
		ID:             event.EventID,
		OriginalTopic:  p.topic,
		OriginalKey:    event.Key(),
		Payload:        value,
		Headers:        headers,
		Error:          lastErr.Error(),
		Attempts:       result.Attempts,
		FirstAttemptAt: firstAttempt,
		LastAttemptAt:  time.Now().UTC(),
	})
	if dlqErr != nil {
		return fmt.Errorf("failed to publish %s event: %w (dlq also failed: %v)", event.Type, lastErr, dlqErr)
	}

	return fmt.Errorf("failed to publish %s event, parked on dlq: %w", event.Type, lastErr)
}

// NoOpEventPublisher is a no-op implementation of EventPublisher for testing
// and for deployments without a broker
type NoOpEventPublisher struct{}

// NewNoOpEventPublisher creates a new no-op event publisher
func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

// PublishHoldPlaced is a no-op
func (p *NoOpEventPublisher) PublishHoldPlaced(ctx context.Context, hold *domain.Hold) error {
	return nil
}

// PublishHoldReleased is a no-op
func (p *NoOpEventPublisher) PublishHoldReleased(ctx context.Context, hold *domain.Hold) error {
	return nil
}

// PublishHoldExpired is a no-op
func (p *NoOpEventPublisher) PublishHoldExpired(ctx context.Context, hold *domain.Hold) error {
	return nil
}

// PublishReservationConfirmed is a no-op
func (p *NoOpEventPublisher) PublishReservationConfirmed(ctx context.Context, reservation *domain.Reservation) error {
	return nil
}

// PublishReservationCancelled is a no-op
func (p *NoOpEventPublisher) PublishReservationCancelled(ctx context.Context, reservation *domain.Reservation) error {
	return nil
}

// Close is a no-op
func (p *NoOpEventPublisher) Close() error {
	return nil
}
