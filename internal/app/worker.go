package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorandp/utn-frsn-news/internal/config"
	"github.com/gorandp/utn-frsn-news/internal/domain"
	"github.com/gorandp/utn-frsn-news/internal/errsink"
	"github.com/gorandp/utn-frsn-news/internal/logger"
	"github.com/gorandp/utn-frsn-news/internal/notify"
	"github.com/gorandp/utn-frsn-news/internal/scraper"
	"github.com/gorandp/utn-frsn-news/internal/storage"
	"github.com/gorandp/utn-frsn-news/pkg/queues"
)

// pollIdleDelay paces the poll loop when the queue reports no messages and
// the backend does not long-poll on its own.
const pollIdleDelay = 2 * time.Second

// worker consumes the fetch and notify queues and drives the per-task
// handlers. Messages are acked only after their handler succeeds; failed
// tasks stay on the queue for redelivery and are reported to the sink.
type worker struct {
	cfg         *config.Config
	log         logger.Logger
	store       storage.Store
	sink        errsink.Sink
	fetcher     *scraper.ItemFetcher
	coordinator *notify.Coordinator
	consumers   []queues.Consumer
	sem         chan struct{}
}

func newWorker(cfg *config.Config, log logger.Logger, store storage.Store, sink errsink.Sink, fetcher *scraper.ItemFetcher, coordinator *notify.Coordinator, consumers []queues.Consumer) *worker {
	return &worker{
		cfg:         cfg,
		log:         log,
		store:       store,
		sink:        sink,
		fetcher:     fetcher,
		coordinator: coordinator,
		consumers:   consumers,
		sem:         make(chan struct{}, cfg.WorkerConcurrency),
	}
}

// run polls every consumer until the context is canceled.
func (w *worker) run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, c := range w.consumers {
		wg.Add(1)
		go func(c queues.Consumer) {
			defer wg.Done()
			w.consume(ctx, c)
		}(c)
	}
	wg.Wait()
}

func (w *worker) consume(ctx context.Context, c queues.Consumer) {
	for {
		if ctx.Err() != nil {
			w.log.InfoObj("consumer stopping", "queue_id", c.ID())
			return
		}

		msgs, err := c.Poll(ctx, w.cfg.WorkerPollMax)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			w.log.ErrorObj("poll failed", "poll_error", map[string]any{
				"queue_id": c.ID(),
				"error":    err.Error(),
			})
			w.sleep(ctx, pollIdleDelay)
			continue
		}
		if len(msgs) == 0 {
			w.sleep(ctx, pollIdleDelay)
			continue
		}

		var wg sync.WaitGroup
		for _, msg := range msgs {
			select {
			case w.sem <- struct{}{}:
			case <-ctx.Done():
				wg.Wait()
				return
			}
			wg.Add(1)
			go func(msg queues.Message) {
				defer wg.Done()
				defer func() { <-w.sem }()
				w.handle(ctx, c, msg)
			}(msg)
		}
		wg.Wait()
	}
}

// handle routes a message by queue id. Malformed bodies and unknown queues
// are acked after reporting so they cannot poison the loop.
func (w *worker) handle(ctx context.Context, c queues.Consumer, msg queues.Message) {
	switch msg.QueueID {
	case w.cfg.FetchQueueID:
		w.handleFetch(ctx, c, msg)
	case w.cfg.NotifyQueueID:
		w.handleNotify(ctx, c, msg)
	default:
		w.report(ctx, domain.DeliveryFailure{
			Stage:   "worker",
			Message: "message from unrouted queue " + msg.QueueID,
		})
		w.ack(ctx, c, msg)
	}
}

func (w *worker) handleFetch(ctx context.Context, c queues.Consumer, msg queues.Message) {
	var task domain.FetchTask
	if err := json.Unmarshal(msg.Body, &task); err != nil {
		w.report(ctx, domain.DeliveryFailure{
			Stage:   domain.StageFetch,
			Message: "malformed fetch task: " + err.Error(),
		})
		w.ack(ctx, c, msg)
		return
	}

	id, err := w.fetcher.Process(ctx, task)
	if err != nil {
		w.report(ctx, domain.DeliveryFailure{
			SourceURL: task.SourceURL,
			Stage:     domain.StageFetch,
			Message:   err.Error(),
		})
		return
	}

	w.log.InfoObj("fetch task done", "fetch_done", map[string]any{
		"item_id":    id,
		"source_url": task.SourceURL,
	})
	w.ack(ctx, c, msg)
}

func (w *worker) handleNotify(ctx context.Context, c queues.Consumer, msg queues.Message) {
	var task domain.NotifyTask
	if err := json.Unmarshal(msg.Body, &task); err != nil {
		w.report(ctx, domain.DeliveryFailure{
			Stage:   domain.StageNotify,
			Message: "malformed notify task: " + err.Error(),
		})
		w.ack(ctx, c, msg)
		return
	}

	err := w.coordinator.Handle(ctx, task)
	if err != nil {
		w.report(ctx, domain.DeliveryFailure{
			ItemID:  task.ItemID,
			Stage:   domain.StageNotify,
			Message: err.Error(),
		})
		// A task pointing at a missing item can never succeed; drop it.
		if errors.Is(err, notify.ErrItemNotFound) {
			w.ack(ctx, c, msg)
		}
		return
	}

	w.log.InfoObj("notify task done", "item_id", task.ItemID)
	w.ack(ctx, c, msg)
}

func (w *worker) report(ctx context.Context, f domain.DeliveryFailure) {
	f.OccurredAt = time.Now().UTC()
	w.sink.Report(ctx, f)
	if err := w.store.RecordFailure(f); err != nil {
		w.log.ErrorObj("failed to record failure", "error", err.Error())
	}
}

func (w *worker) ack(ctx context.Context, c queues.Consumer, msg queues.Message) {
	if err := c.Ack(ctx, msg); err != nil {
		w.log.ErrorObj("ack failed", "ack_error", map[string]any{
			"queue_id": msg.QueueID,
			"error":    err.Error(),
		})
	}
}

func (w *worker) sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
