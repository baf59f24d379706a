package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorandp/utn-frsn-news/internal/domain"
	"github.com/gorandp/utn-frsn-news/internal/errsink"
	"github.com/gorandp/utn-frsn-news/internal/logger"
	"github.com/gorandp/utn-frsn-news/pkg/queues"
)

// Dispatcher converts unseen links into fetch tasks and enqueues them in
// bounded batches.
type Dispatcher struct {
	sender queues.Sender
	sink   errsink.Sink
	now    func() time.Time
	log    logger.Logger
}

// New builds a dispatcher over the fetch queue sender.
func New(sender queues.Sender, sink errsink.Sink, log logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Dispatcher{
		sender: sender,
		sink:   sink,
		now:    time.Now,
		log:    log,
	}
}

// EnqueueFetch submits one fetch task per link. Batches are sent sequentially;
// a failed batch is surfaced to the error sink and the remaining batches are
// still attempted.
func (d *Dispatcher) EnqueueFetch(ctx context.Context, links []domain.DiscoveredLink) error {
	if len(links) == 0 {
		return nil
	}

	enqueuedAt := d.now().UTC()
	bodies := make([][]byte, 0, len(links))
	for _, link := range links {
		task := domain.FetchTask{
			SourceURL:  link.SourceURL,
			PhotoURL:   link.PhotoURL,
			EnqueuedAt: enqueuedAt,
		}
		body, err := json.Marshal(task)
		if err != nil {
			return fmt.Errorf("encode fetch task for %s: %w", link.SourceURL, err)
		}
		bodies = append(bodies, body)
	}

	maxBatch := d.sender.MaxBatch()
	if maxBatch <= 0 {
		maxBatch = 1
	}

	var errs []error
	sent := 0
	for start := 0; start < len(bodies); start += maxBatch {
		end := start + maxBatch
		if end > len(bodies) {
			end = len(bodies)
		}
		if err := d.sender.SendBatch(ctx, bodies[start:end]); err != nil {
			errs = append(errs, fmt.Errorf("enqueue fetch batch %d-%d: %w", start, end-1, err))
			d.report(ctx, links[start:end], err)
			continue
		}
		sent += end - start
	}

	d.log.InfoObj("fetch tasks dispatched", "dispatch_result", map[string]any{
		"links":    len(links),
		"enqueued": sent,
		"failed":   len(links) - sent,
	})
	return errors.Join(errs...)
}

func (d *Dispatcher) report(ctx context.Context, batch []domain.DiscoveredLink, err error) {
	if d.sink == nil {
		return
	}
	for _, link := range batch {
		d.sink.Report(ctx, domain.DeliveryFailure{
			SourceURL:  link.SourceURL,
			Stage:      domain.StageDispatch,
			Message:    err.Error(),
			OccurredAt: d.now().UTC(),
		})
	}
}
