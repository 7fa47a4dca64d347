package audit

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// Envelope is the audit record emitted for every committed mutation.
type Envelope struct {
	EventType     string    `json:"event_type"`
	WorkspaceID   uint      `json:"workspace_id"`
	ActorUserID   uint      `json:"actor_user_id"`
	SubjectID     uint      `json:"subject_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher publishes audit envelopes.
type Publisher interface {
	Publish(ctx context.Context, envelope Envelope) error
	Close() error
}

// NewPublisher builds a RabbitMQ publisher bound to a topic exchange, or a
// noop publisher when AMQP is disabled or unreachable.
func NewPublisher(amqpURL, exchange string, logger zerolog.Logger) Publisher {
	log := logger.With().Str("component", "audit").Logger()

	if amqpURL == "" {
		log.Info().Msg("rabbitmq disabled, using noop: empty amqp url")
		return NewNoopPublisher(log, "empty amqp url")
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq disabled, using noop")
		return NewNoopPublisher(log, err.Error())
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq disabled, using noop")
		_ = conn.Close()
		return NewNoopPublisher(log, err.Error())
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		log.Warn().Err(err).Msg("rabbitmq disabled, using noop")
		_ = ch.Close()
		_ = conn.Close()
		return NewNoopPublisher(log, err.Error())
	}

	log.Info().Str("exchange", exchange).Msg("rabbitmq connected")
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange, logger: log}
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	logger   zerolog.Logger
}

func (p *amqpPublisher) Publish(ctx context.Context, envelope Envelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, RoutingKey(envelope.EventType), false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		Timestamp:     envelope.OccurredAt,
		CorrelationId: envelope.CorrelationID,
		Body:          body,
	})
	if err != nil {
		p.logger.Warn().Err(err).Str("event_type", envelope.EventType).Msg("rabbitmq publish failed")
	}
	return err
}

func (p *amqpPublisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// RoutingKey maps an event type onto the audit exchange's routing key space.
func RoutingKey(eventType string) string {
	return "audit." + eventType
}

type noopPublisher struct {
	reason string
	logger zerolog.Logger
}

// NewNoopPublisher returns a publisher that only logs envelopes.
func NewNoopPublisher(logger zerolog.Logger, reason string) Publisher {
	return noopPublisher{reason: reason, logger: logger}
}

func (p noopPublisher) Publish(_ context.Context, envelope Envelope) error {
	p.logger.Debug().
		Str("routing_key", RoutingKey(envelope.EventType)).
		Uint("workspace_id", envelope.WorkspaceID).
		Uint("actor_user_id", envelope.ActorUserID).
		Str("correlation_id", envelope.CorrelationID).
		Msg("audit noop publish")
	return nil
}

func (noopPublisher) Close() error {
	return nil
}

// Mode reports the publisher mode for logging.
func Mode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}

// NoopReason returns why a noop publisher was selected.
func NoopReason(p Publisher) string {
	if publisher, ok := p.(noopPublisher); ok {
		return publisher.reason
	}
	return ""
}
