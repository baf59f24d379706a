package queues

import (
	"context"
	"testing"
)

func TestMemoryQueueRoundTrip(t *testing.T) {
	q := NewMemoryQueue("fetch")
	ctx := context.Background()

	if err := q.Send(ctx, []byte("a")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := q.SendBatch(ctx, [][]byte{[]byte("b"), []byte("c")}); err != nil {
		t.Fatalf("SendBatch: %v", err)
	}

	c, ok := AsConsumer(q)
	if !ok {
		t.Fatalf("memory queue must be consumable")
	}

	msgs, err := c.Poll(ctx, 2)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if string(msgs[0].Body) != "a" || string(msgs[1].Body) != "b" {
		t.Fatalf("unexpected order: %q %q", msgs[0].Body, msgs[1].Body)
	}
	if msgs[0].QueueID != "fetch" {
		t.Fatalf("queue id = %q", msgs[0].QueueID)
	}

	if err := c.Ack(ctx, msgs[0]); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if err := c.Ack(ctx, msgs[0]); err == nil {
		t.Fatalf("double ack must fail")
	}

	rest, err := c.Poll(ctx, 10)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(rest) != 1 || string(rest[0].Body) != "c" {
		t.Fatalf("unexpected remainder: %v", rest)
	}
}

func TestMemoryQueueNackRedelivers(t *testing.T) {
	q := NewMemoryQueue("fetch").(*memoryQueue)
	ctx := context.Background()

	if err := q.Send(ctx, []byte("a")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	msgs, err := q.Poll(ctx, 1)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("Poll: %v msgs=%d", err, len(msgs))
	}

	q.Nack(msgs[0])

	again, err := q.Poll(ctx, 1)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(again) != 1 || string(again[0].Body) != "a" {
		t.Fatalf("nacked message not redelivered: %v", again)
	}
}

func TestMemoryQueueBatchLimit(t *testing.T) {
	q := NewMemoryQueue("fetch")
	bodies := make([][]byte, memoryMaxBatch+1)
	for i := range bodies {
		bodies[i] = []byte("x")
	}
	if err := q.SendBatch(context.Background(), bodies); err == nil {
		t.Fatalf("expected batch limit error")
	}
}

func TestBuildAllWithDefaultRegistry(t *testing.T) {
	senders, err := BuildAll(context.Background(), DefaultRegistry(), []QueueConfig{
		{ID: "fetch", Type: TypeMemory},
		{ID: "notify", Type: TypeMemory},
	}, nil)
	if err != nil {
		t.Fatalf("BuildAll: %v", err)
	}
	if len(senders) != 2 {
		t.Fatalf("expected 2 senders, got %d", len(senders))
	}
	if senders["fetch"].Type() != TypeMemory {
		t.Fatalf("type = %q", senders["fetch"].Type())
	}
}

func TestBuildAllUnknownType(t *testing.T) {
	_, err := BuildAll(context.Background(), DefaultRegistry(), []QueueConfig{
		{ID: "fetch", Type: "rabbitmq"},
	}, nil)
	if err == nil {
		t.Fatalf("expected error for unregistered backend")
	}
}
