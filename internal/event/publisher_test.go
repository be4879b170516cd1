package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	logtest "github.com/sirupsen/logrus/hooks/test"
)

type sentMessage struct {
	exchange string
	key      string
	msg      amqp091.Publishing
}

type fakeChannel struct {
	sent   []sentMessage
	err    error
	closed bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp091.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, sentMessage{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublishUsesTypeAsRoutingKey(t *testing.T) {
	ch := &fakeChannel{}
	logger, _ := logtest.NewNullLogger()
	p := newPublisher(ch, "quiz.events", logger)
	p.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }

	payload := map[string]string{"userId": "u1", "quizId": "onboarding"}
	if err := p.Publish(context.Background(), "quiz.submitted", payload); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(ch.sent) != 1 {
		t.Fatalf("expected one message, got %d", len(ch.sent))
	}
	sent := ch.sent[0]
	if sent.exchange != "quiz.events" || sent.key != "quiz.submitted" {
		t.Fatalf("unexpected routing %s/%s", sent.exchange, sent.key)
	}
	if sent.msg.ContentType != "application/json" || sent.msg.DeliveryMode != amqp091.Persistent {
		t.Fatalf("unexpected publishing %+v", sent.msg)
	}

	var envelope struct {
		ID         string            `json:"id"`
		Type       string            `json:"type"`
		OccurredAt time.Time         `json:"occurredAt"`
		Payload    map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(sent.msg.Body, &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Type != "quiz.submitted" || envelope.ID == "" || envelope.ID != sent.msg.MessageId {
		t.Fatalf("unexpected envelope %+v", envelope)
	}
	if envelope.Payload["quizId"] != "onboarding" || !envelope.OccurredAt.Equal(p.now()) {
		t.Fatalf("payload lost: %+v", envelope)
	}
}

func TestPublishWrapsChannelError(t *testing.T) {
	boom := errors.New("channel closed")
	logger, _ := logtest.NewNullLogger()
	p := newPublisher(&fakeChannel{err: boom}, "quiz.events", logger)

	if err := p.Publish(context.Background(), "quiz.skipped", nil); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped channel error, got %v", err)
	}
}

func TestCloseClosesChannel(t *testing.T) {
	ch := &fakeChannel{}
	logger, _ := logtest.NewNullLogger()
	if err := newPublisher(ch, "quiz.events", logger).Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !ch.closed {
		t.Fatalf("expected channel closed")
	}
}
