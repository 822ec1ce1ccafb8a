package worker

import (
	"context"
	"fmt"
	"time"

	"microblog/internal/observability"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	// MaxRetries is how many times a failed event is republished before it
	// is dropped.
	MaxRetries = 3

	retryHeader = "x-retry-count"
)

// FeedRebuilder refreshes the cached feed. *post.PostService implements it.
type FeedRebuilder interface {
	RebuildFeed(ctx context.Context) error
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

func republishWithRetry(ch publisher, msg *amqp.Delivery, retryCount int32) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Create new headers with incremented retry count
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers[retryHeader] = retryCount

	return ch.PublishWithContext(
		ctx,
		"",             // exchange
		msg.RoutingKey, // routing key (queue name)
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  msg.ContentType,
			DeliveryMode: amqp.Persistent,
			Body:         msg.Body,
			Headers:      headers,
		},
	)
}

// StartWorker consumes post events until ctx is cancelled or the channel
// closes. Each worker owns its channel with a prefetch of one.
func StartWorker(ctx context.Context, conn *amqp.Connection, queueName string, rebuilder FeedRebuilder, metrics *observability.Metrics, id int) {
	ch, err := conn.Channel()
	if err != nil {
		logrus.Fatalf("Worker %d failed to open channel: %v", id, err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		logrus.Fatalf("Worker %d failed to set QoS: %v", id, err)
	}

	msgs, err := ch.Consume(
		queueName,
		fmt.Sprintf("worker-%d", id),
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		logrus.Fatalf("Worker %d failed to start consuming messages: %v", id, err)
		return
	}

	p := &processor{
		id:        id,
		queueName: queueName,
		rebuilder: rebuilder,
		publisher: ch,
		metrics:   metrics,
	}

	logrus.Infof("Worker %d started", id)

	for {
		select {
		case <-ctx.Done():
			logrus.Infof("Worker %d stopping", id)
			return
		case msg, ok := <-msgs:
			if !ok {
				logrus.Warnf("Worker %d delivery channel closed", id)
				return
			}
			p.process(ctx, &msg)
		}
	}
}
