package queues

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

const pubsubMaxBatch = 100

// pubsubQueue implements Sender over a GCP Pub/Sub topic. Consumption is not
// supported here; Pub/Sub backends serve the dispatch side only.
type pubsubQueue struct {
	id    string
	topic *pubsub.Topic
	log   Logger
}

// newPubSubQueue creates a Pub/Sub queue backend from the given configuration.
func newPubSubQueue(ctx context.Context, cfg QueueConfig, log Logger) (Sender, error) {
	if cfg.PubSub == nil {
		return nil, fmt.Errorf("queue %q missing pubsub configuration", cfg.ID)
	}

	if ctx == nil {
		ctx = context.Background()
	}

	var opts []option.ClientOption
	if cfg.PubSub.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.PubSub.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	return &pubsubQueue{
		id:    cfg.ID,
		topic: client.Topic(cfg.PubSub.Topic),
		log:   ensureLogger(log),
	}, nil
}

func (p *pubsubQueue) ID() string    { return p.id }
func (p *pubsubQueue) Type() string  { return TypePubSub }
func (p *pubsubQueue) MaxBatch() int { return pubsubMaxBatch }

// Send publishes one message body and waits for the server ack.
func (p *pubsubQueue) Send(ctx context.Context, body []byte) error {
	result := p.topic.Publish(ctx, &pubsub.Message{Data: body})
	if _, err := result.Get(ctx); err != nil {
		p.log.ErrorObj("pubsub publish failed", "queue_pubsub_error", map[string]any{
			"queue_id": p.id,
			"error":    err.Error(),
		})
		return fmt.Errorf("publish to pubsub: %w", err)
	}
	return nil
}

// SendBatch publishes the bodies and waits for every server ack. The client
// batches wire traffic internally.
func (p *pubsubQueue) SendBatch(ctx context.Context, bodies [][]byte) error {
	if len(bodies) == 0 {
		return nil
	}
	results := make([]*pubsub.PublishResult, 0, len(bodies))
	for _, body := range bodies {
		results = append(results, p.topic.Publish(ctx, &pubsub.Message{Data: body}))
	}
	for i, result := range results {
		if _, err := result.Get(ctx); err != nil {
			return fmt.Errorf("publish batch entry %d to pubsub: %w", i, err)
		}
	}
	return nil
}
