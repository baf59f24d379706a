package queues

import "context"

// Sender submits task messages to a durable queue.
type Sender interface {
	ID() string
	Type() string
	// MaxBatch is the backend's batch-send limit.
	MaxBatch() int
	Send(ctx context.Context, body []byte) error
	// SendBatch submits up to MaxBatch bodies; each accepted batch is durable
	// independently of the others.
	SendBatch(ctx context.Context, bodies [][]byte) error
}

// Consumer delivers queued messages at least once.
type Consumer interface {
	ID() string
	// Poll returns up to max pending messages, blocking briefly when the
	// backend supports long polling.
	Poll(ctx context.Context, max int) ([]Message, error)
	// Ack marks the message as consumed; unacked messages are redelivered.
	Ack(ctx context.Context, msg Message) error
}

// Message is one delivered queue message tagged with its queue of origin.
type Message struct {
	QueueID string
	Receipt string
	Body    []byte
}

// Logger defines the logging surface queue backends rely on.
type Logger interface {
	InfoObj(msg, key string, obj interface{})
	DebugObj(msg, key string, obj interface{})
	WarnObj(msg, key string, obj interface{})
	ErrorObj(msg, key string, obj interface{})
}

type noopLogger struct{}

func (noopLogger) InfoObj(string, string, interface{})  {}
func (noopLogger) DebugObj(string, string, interface{}) {}
func (noopLogger) WarnObj(string, string, interface{})  {}
func (noopLogger) ErrorObj(string, string, interface{}) {}

func ensureLogger(log Logger) Logger {
	if log == nil {
		return noopLogger{}
	}
	return log
}
