package queues

import (
	"context"
	"os"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
)

func TestPubSubQueuePublishes(t *testing.T) {
	// Use the in-memory Pub/Sub emulator.
	server := pstest.NewServer()
	defer server.Close()
	defer os.Unsetenv("PUBSUB_EMULATOR_HOST")
	os.Setenv("PUBSUB_EMULATOR_HOST", server.Addr)

	ctx := context.Background()
	client, err := pubsub.NewClient(ctx, "test-project")
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if _, err := client.CreateTopic(ctx, "fetch-topic"); err != nil {
		t.Fatalf("create topic: %v", err)
	}

	sender, err := newPubSubQueue(ctx, QueueConfig{
		ID:   "fetch",
		Type: TypePubSub,
		PubSub: &PubSubQueueConfig{
			ProjectID: "test-project",
			Topic:     "fetch-topic",
		},
	}, nil)
	if err != nil {
		t.Fatalf("newPubSubQueue: %v", err)
	}

	if err := sender.Send(ctx, []byte(`{"source_url":"u"}`)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := sender.SendBatch(ctx, [][]byte{[]byte("a"), []byte("b")}); err != nil {
		t.Fatalf("SendBatch: %v", err)
	}

	if len(server.Messages()) != 3 {
		t.Fatalf("expected 3 published messages, got %d", len(server.Messages()))
	}

	if _, ok := AsConsumer(sender); ok {
		t.Fatalf("pubsub backend must not report consumer support")
	}
}

func TestPubSubQueueRequiresConfig(t *testing.T) {
	if _, err := newPubSubQueue(context.Background(), QueueConfig{ID: "fetch", Type: TypePubSub}, nil); err == nil {
		t.Fatalf("expected error without pubsub config")
	}
}
