package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const defaultExchange = "quiz.events"

// Envelope is the JSON body of every published message.
type Envelope struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload"`
}

// publishChannel is the part of *amqp091.Channel the publisher needs.
type publishChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// Publisher sends events to a topic exchange, using the event type as the
// routing key.
type Publisher struct {
	conn     *amqp091.Connection
	channel  publishChannel
	exchange string
	timeout  time.Duration
	log      logrus.FieldLogger
	now      func() time.Time

	mu sync.Mutex
}

// Dial connects to RabbitMQ and declares a durable topic exchange.
func Dial(uri, exchange string, log logrus.FieldLogger) (*Publisher, error) {
	if exchange == "" {
		exchange = defaultExchange
	}
	conn, err := amqp091.Dial(uri)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	p := newPublisher(ch, exchange, log)
	p.conn = conn
	return p, nil
}

func newPublisher(ch publishChannel, exchange string, log logrus.FieldLogger) *Publisher {
	return &Publisher{
		channel:  ch,
		exchange: exchange,
		timeout:  5 * time.Second,
		log:      log,
		now:      time.Now,
	}
}

func (p *Publisher) Publish(ctx context.Context, eventType string, payload any) error {
	envelope := Envelope{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: p.now().UTC(),
		Payload:    payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", eventType, err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(pubCtx, p.exchange, eventType, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    envelope.ID,
		Timestamp:    envelope.OccurredAt,
		Type:         eventType,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish event %s: %w", eventType, err)
	}
	p.log.WithFields(logrus.Fields{"event": eventType, "event_id": envelope.ID}).Debug("event published")
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.Close(); err != nil {
		p.log.WithError(err).Warn("close rabbitmq channel")
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil {
			return fmt.Errorf("close rabbitmq connection: %w", err)
		}
	}
	return nil
}

// Discard drops every event. It is used when no broker is configured.
type Discard struct{}

func (Discard) Publish(context.Context, string, any) error { return nil }
