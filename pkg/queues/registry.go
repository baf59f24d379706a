package queues

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Builder creates a queue backend from a config entry. Backends always
// implement Sender; backends supporting consumption also implement Consumer.
type Builder func(ctx context.Context, cfg QueueConfig, log Logger) (Sender, error)

// Registry maps queue types to builders.
type Registry interface {
	Register(typ string, builder Builder)
	SenderFor(ctx context.Context, cfg QueueConfig, log Logger) (Sender, error)
}

type registry struct {
	mu       sync.RWMutex
	builders map[string]Builder
}

// NewRegistry returns a registry with optional pre-registered builders.
func NewRegistry(builders map[string]Builder) Registry {
	r := &registry{
		builders: make(map[string]Builder),
	}
	for typ, b := range builders {
		r.Register(typ, b)
	}
	return r
}

// Register associates a builder with a queue type.
func (r *registry) Register(typ string, builder Builder) {
	if typ = strings.TrimSpace(strings.ToLower(typ)); typ == "" || builder == nil {
		return
	}

	r.mu.Lock()
	r.builders[typ] = builder
	r.mu.Unlock()
}

// SenderFor returns the queue backend built for the provided config.
func (r *registry) SenderFor(ctx context.Context, cfg QueueConfig, log Logger) (Sender, error) {
	if cfg.Type == "" {
		return nil, fmt.Errorf("queue %q has no type configured", cfg.ID)
	}

	r.mu.RLock()
	builder := r.builders[strings.ToLower(cfg.Type)]
	r.mu.RUnlock()

	if builder == nil {
		return nil, fmt.Errorf("no queue backend registered for type %q", cfg.Type)
	}
	return builder(ctx, cfg, log)
}

// DefaultRegistry wires up known queue backends.
func DefaultRegistry() Registry {
	builders := map[string]Builder{
		TypeSQS:    newSQSQueue,
		TypePubSub: newPubSubQueue,
		TypeMemory: newMemoryQueue,
	}
	return NewRegistry(builders)
}

// BuildAll instantiates queue backends for configs using the registry, keyed
// by queue id.
func BuildAll(ctx context.Context, reg Registry, cfgs []QueueConfig, log Logger) (map[string]Sender, error) {
	if reg == nil || len(cfgs) == 0 {
		return nil, nil
	}

	senders := make(map[string]Sender, len(cfgs))
	for _, cfg := range cfgs {
		sender, err := reg.SenderFor(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		senders[sender.ID()] = sender
	}
	return senders, nil
}

// AsConsumer reports whether the backend supports consumption.
func AsConsumer(s Sender) (Consumer, bool) {
	c, ok := s.(Consumer)
	return c, ok
}
