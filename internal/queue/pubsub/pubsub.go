// Package pubsub backs the audit queue and the completion-event publisher
// with Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/rankpilot/auditor/internal/audit"
)

// Config identifies the Pub/Sub resources backing the queue.
type Config struct {
	ProjectID      string
	TopicID        string
	SubscriptionID string
	// Buffer sizes the handoff channel between Receive and Dequeue.
	Buffer int
}

// Queue implements audit.Queue on a Pub/Sub topic plus subscription.
// Delivery is at-least-once; consumers must tolerate duplicates.
type Queue struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	items  chan audit.QueueItem
	logger *zap.Logger
}

// NewQueue creates the client and verifies the topic and subscription exist.
// Authentication uses Application Default Credentials.
func NewQueue(ctx context.Context, cfg Config, logger *zap.Logger) (*Queue, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(cfg.TopicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check topic %q: %w", cfg.TopicID, err)
	}
	if !exists {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", cfg.TopicID, cfg.ProjectID)
	}

	sub := client.Subscription(cfg.SubscriptionID)
	exists, err = sub.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check subscription %q: %w", cfg.SubscriptionID, err)
	}
	if !exists {
		_ = client.Close()
		return nil, fmt.Errorf("pubsub subscription %q does not exist in project %q", cfg.SubscriptionID, cfg.ProjectID)
	}

	buffer := cfg.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	return &Queue{
		client: client,
		topic:  topic,
		sub:    sub,
		items:  make(chan audit.QueueItem, buffer),
		logger: logger,
	}, nil
}

// Enqueue marshals the item and publishes it, blocking until the server
// acknowledges the message.
func (q *Queue) Enqueue(ctx context.Context, item audit.QueueItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("marshal queue item: %w", err)
	}
	result := q.topic.Publish(ctx, &pubsub.Message{Data: data})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish queue item: %w", err)
	}
	return nil
}

// Run pulls from the subscription into the internal channel until the
// context finishes. A message stays outstanding until the worker settles
// the item; a failed run nacks so the subscription redelivers.
func (q *Queue) Run(ctx context.Context) error {
	err := q.sub.Receive(ctx, func(msgCtx context.Context, msg *pubsub.Message) {
		var item audit.QueueItem
		if err := json.Unmarshal(msg.Data, &item); err != nil {
			q.logger.Warn("dropping malformed queue message", zap.Error(err))
			msg.Ack()
			return
		}
		item.Settle = func(procErr error) {
			if procErr != nil {
				msg.Nack()
				return
			}
			msg.Ack()
		}
		select {
		case q.items <- item:
		case <-msgCtx.Done():
			msg.Nack()
		}
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("pubsub receive: %w", err)
	}
	return nil
}

// Dequeue pops the next item, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (audit.QueueItem, error) {
	select {
	case <-ctx.Done():
		return audit.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case item := <-q.items:
		return item, nil
	}
}

// Client exposes the underlying Pub/Sub client so a Publisher can share it.
func (q *Queue) Client() *pubsub.Client {
	return q.client
}

// Close stops the topic publisher and closes the client.
func (q *Queue) Close() error {
	q.topic.Stop()
	if err := q.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

// Publisher implements audit.Publisher on Pub/Sub topics, used for audit
// completion events.
type Publisher struct {
	client *pubsub.Client
}

// NewPublisher wraps an existing client.
func NewPublisher(client *pubsub.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish marshals the payload to JSON and publishes it to the named topic,
// returning the server-assigned message ID.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if p.client == nil {
		return "", fmt.Errorf("pubsub publisher is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	result := p.client.Topic(topic).Publish(ctx, &pubsub.Message{Data: data})
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}
