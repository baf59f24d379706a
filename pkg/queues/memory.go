package queues

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

const memoryMaxBatch = 100

// memoryQueue is an in-process queue for tests and local runs. Unacked
// messages return to the pending queue on Nack and stay in flight otherwise.
type memoryQueue struct {
	id string

	mu       sync.Mutex
	pending  [][]byte
	inflight map[string][]byte
	receipts int
}

// NewMemoryQueue builds a standalone in-memory queue.
func NewMemoryQueue(id string) Sender {
	return &memoryQueue{
		id:       id,
		inflight: make(map[string][]byte),
	}
}

func newMemoryQueue(_ context.Context, cfg QueueConfig, _ Logger) (Sender, error) {
	return NewMemoryQueue(cfg.ID), nil
}

func (m *memoryQueue) ID() string    { return m.id }
func (m *memoryQueue) Type() string  { return TypeMemory }
func (m *memoryQueue) MaxBatch() int { return memoryMaxBatch }

func (m *memoryQueue) Send(_ context.Context, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, append([]byte(nil), body...))
	return nil
}

func (m *memoryQueue) SendBatch(_ context.Context, bodies [][]byte) error {
	if len(bodies) > memoryMaxBatch {
		return fmt.Errorf("memory batch of %d exceeds limit %d", len(bodies), memoryMaxBatch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, body := range bodies {
		m.pending = append(m.pending, append([]byte(nil), body...))
	}
	return nil
}

func (m *memoryQueue) Poll(_ context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = memoryMaxBatch
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	n := max
	if n > len(m.pending) {
		n = len(m.pending)
	}
	msgs := make([]Message, 0, n)
	for i := 0; i < n; i++ {
		m.receipts++
		receipt := strconv.Itoa(m.receipts)
		m.inflight[receipt] = m.pending[i]
		msgs = append(msgs, Message{
			QueueID: m.id,
			Receipt: receipt,
			Body:    m.pending[i],
		})
	}
	m.pending = m.pending[n:]
	return msgs, nil
}

func (m *memoryQueue) Ack(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inflight[msg.Receipt]; !ok {
		return fmt.Errorf("unknown receipt %q", msg.Receipt)
	}
	delete(m.inflight, msg.Receipt)
	return nil
}

// Nack returns an in-flight message to the pending queue for redelivery.
func (m *memoryQueue) Nack(msg Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.inflight[msg.Receipt]
	if !ok {
		return
	}
	delete(m.inflight, msg.Receipt)
	m.pending = append(m.pending, body)
}
