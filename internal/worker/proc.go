package worker

import (
	"context"
	"encoding/json"
	"time"

	"microblog/internal/observability"
	"microblog/internal/queue"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const rebuildTimeout = 10 * time.Second

type processor struct {
	id        int
	queueName string
	rebuilder FeedRebuilder
	publisher publisher
	metrics   *observability.Metrics
}

// process handles one delivery. Failures are republished with an
// incremented retry header until MaxRetries, then dropped.
func (p *processor) process(ctx context.Context, msg *amqp.Delivery) {
	p.metrics.MessageConsumed(p.queueName)

	var evt queue.PostEvent
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		logrus.WithError(err).Error("invalid payload")
		p.metrics.MessageFailed(p.queueName)
		msg.Nack(false, false)
		return
	}

	retryCount := retryCountOf(msg.Headers)

	logrus.WithFields(logrus.Fields{
		"worker":  p.id,
		"post_id": evt.ID,
		"author":  evt.Author,
		"retry":   retryCount,
	}).Info("Processing post event")

	if err := p.handlePostEvent(ctx, &evt); err != nil {
		logrus.WithError(err).WithField("post_id", evt.ID).Error("Failed to handle post event")

		if retryCount >= MaxRetries {
			logrus.Warnf("Worker %d: dropping post event %d after %d retries", p.id, evt.ID, retryCount)
			p.metrics.MessageFailed(p.queueName)
			msg.Nack(false, false)
			return
		}

		logrus.Infof("Worker %d: requeuing post event (retry %d/%d)", p.id, retryCount+1, MaxRetries)

		if err := republishWithRetry(p.publisher, msg, retryCount+1); err != nil {
			logrus.WithError(err).Error("Failed to republish message")
			p.metrics.MessageFailed(p.queueName)
			msg.Nack(false, false)
			return
		}

		p.metrics.MessagePublished(p.queueName)
		msg.Ack(false)
		return
	}

	msg.Ack(false)
}

// handlePostEvent refreshes the cached feed so readers see the new post
// without a cold store read.
func (p *processor) handlePostEvent(ctx context.Context, evt *queue.PostEvent) error {
	ctx, cancel := context.WithTimeout(ctx, rebuildTimeout)
	defer cancel()

	if err := p.rebuilder.RebuildFeed(ctx); err != nil {
		return err
	}

	logrus.Infof("Worker %d rebuilt feed after post %d by %s", p.id, evt.ID, evt.Author)
	return nil
}

func retryCountOf(headers amqp.Table) int32 {
	if headers == nil {
		return 0
	}
	switch v := headers[retryHeader].(type) {
	case int32:
		return v
	case int64:
		return int32(v)
	case int:
		return int32(v)
	default:
		return 0
	}
}
