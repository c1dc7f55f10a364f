// Package publisher notifies downstream consumers about newly discovered
// posts via Google Cloud Pub/Sub. Publishing is optional and fire-and-forget:
// the crawl never blocks on, or fails because of, a notification.
package publisher

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
)

// PubSub publishes created-post URIs to a Pub/Sub topic.
type PubSub struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSub connects to Pub/Sub using Application Default Credentials and
// verifies the topic exists.
func NewPubSub(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*PubSub, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("close pubsub client", zap.Error(cerr))
		}
		return nil, fmt.Errorf("check pubsub topic %s: %w", topicID, err)
	}
	if !exists {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("close pubsub client", zap.Error(cerr))
		}
		return nil, fmt.Errorf("pubsub topic %s does not exist in project %s", topicID, projectID)
	}

	return &PubSub{client: client, topic: topic, logger: logger}, nil
}

// PublishCreated enqueues a notification for a newly created post. The
// Pub/Sub client batches and retries in the background; the result is not
// awaited.
func (p *PubSub) PublishCreated(ctx context.Context, uri string) {
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       []byte(uri),
		Attributes: map[string]string{"event": "post_created"},
	})
	_ = result
}

// Close flushes pending messages and releases the client.
func (p *PubSub) Close() error {
	p.topic.Stop()
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}
