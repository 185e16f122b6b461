package service

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/auth-service/internal/queue"
)

// AMQPPublisher publishes audit events to RabbitMQ. It dials per
// publish so a dropped broker connection never wedges the service;
// audit volume is a handful of events per auth action, not a hot path.
// Every failure is returned to the caller, which treats publishing as
// best-effort.
type AMQPPublisher struct {
	URL string
}

// NewAMQPPublisher returns a publisher for the given broker URL, or
// nil when no URL is configured so callers can wire audit off cleanly.
func NewAMQPPublisher(url string) *AMQPPublisher {
	if url == "" {
		return nil
	}
	return &AMQPPublisher{URL: url}
}

// Publish sends one event to the auth.events queue, marked persistent.
func (p *AMQPPublisher) Publish(ctx context.Context, ev queue.Event) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	// Idempotent declare; durable so events survive broker restarts.
	if _, err := ch.QueueDeclare(queue.AuthEventsQueue, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ch.PublishWithContext(ctx, "", queue.AuthEventsQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}
