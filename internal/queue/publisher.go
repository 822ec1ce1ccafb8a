package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"microblog/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
)

// PostEvent is published once per accepted post.
type PostEvent struct {
	ID        int64     `json:"id"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"timestamp"`
}

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	queueDeclarer
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	open      func() (Channel, error)
	queueName string
	metrics   *observability.Metrics
}

func NewPublisher(conn *amqp.Connection, queueName string, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		open: func() (Channel, error) {
			ch, err := CreateChannel(conn)
			if err != nil {
				return nil, err
			}
			return ch, nil
		},
		queueName: queueName,
		metrics:   metrics,
	}
}

// PublishPostCreated sends evt to the post events queue as a persistent
// JSON message. A channel is opened per call; amqp channels are not safe for
// concurrent publishers.
func (p *Publisher) PublishPostCreated(ctx context.Context, evt PostEvent) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to encode post event: %w", err)
	}

	ch, err := p.open()
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	err = ch.PublishWithContext(
		ctx,
		"",          // exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    evt.Timestamp,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish post event: %w", err)
	}

	p.metrics.MessagePublished(p.queueName)
	return nil
}
