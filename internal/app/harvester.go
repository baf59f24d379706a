package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorandp/utn-frsn-news/internal/config"
	"github.com/gorandp/utn-frsn-news/internal/errsink"
	"github.com/gorandp/utn-frsn-news/internal/feed"
	"github.com/gorandp/utn-frsn-news/internal/imagehost"
	"github.com/gorandp/utn-frsn-news/internal/logger"
	"github.com/gorandp/utn-frsn-news/internal/notify"
	"github.com/gorandp/utn-frsn-news/internal/scraper"
	"github.com/gorandp/utn-frsn-news/internal/storage"
	"github.com/gorandp/utn-frsn-news/pkg/httpclient"
	"github.com/gorandp/utn-frsn-news/pkg/queues"
)

// Harvester is the full pipeline daemon: the discovery loop and the queue
// consumers running over one shared store handle. bbolt locks its file per
// process, so the roles are colocated instead of split across binaries.
type Harvester struct {
	cfg     *config.Config
	log     logger.Logger
	store   storage.Store
	sink    errsink.Sink
	crawler *feed.Crawler
	fetchQ  queues.Sender
	worker  *worker
}

// NewHarvester wires the whole pipeline from configuration.
func NewHarvester(ctx context.Context, cfg *config.Config, log logger.Logger) (*Harvester, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if log == nil {
		log = logger.NopLogger{}
	}

	senders, err := buildSenders(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	fetchQ, err := senderFor(senders, cfg.FetchQueueID)
	if err != nil {
		return nil, err
	}
	notifyQ, err := senderFor(senders, cfg.NotifyQueueID)
	if err != nil {
		return nil, err
	}

	fetchConsumer, ok := queues.AsConsumer(fetchQ)
	if !ok {
		return nil, fmt.Errorf("queue %q does not support consuming", cfg.FetchQueueID)
	}
	notifyConsumer, ok := queues.AsConsumer(notifyQ)
	if !ok {
		return nil, fmt.Errorf("queue %q does not support consuming", cfg.NotifyQueueID)
	}

	httpc := httpclient.NewRestyClient(cfg.HTTPTimeout)
	tg := buildTelegram(cfg, httpc, log)
	sink, err := buildSink(ctx, cfg, tg, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	crawler := feed.NewCrawler(httpc, feed.Options{
		PageURL:    cfg.FeedPageURL,
		StopWindow: cfg.FeedStopWindow,
		PageBatch:  cfg.FeedPageBatch,
		Throttle:   cfg.FeedThrottle,
	}, log)

	images := imagehost.New(httpc, imagehost.Config{
		AccountID:   cfg.CloudflareAccountID,
		AccountHash: cfg.CloudflareImagesAccountHash,
		APIToken:    cfg.CloudflareImagesAPIToken,
	}, log)

	fetcher := scraper.NewItemFetcher(httpc, store, images, notifyQ, log)
	notifier := notify.NewNotifier(tg, images.PublicURL, cfg.TelegramChatID, log)
	coordinator := notify.NewCoordinator(store, notifier, log)

	w := newWorker(cfg, log, store, sink, fetcher, coordinator, []queues.Consumer{fetchConsumer, notifyConsumer})

	return &Harvester{
		cfg:     cfg,
		log:     log,
		store:   store,
		sink:    sink,
		crawler: crawler,
		fetchQ:  fetchQ,
		worker:  w,
	}, nil
}

// Run starts the discovery loop and the consumers and blocks until the
// context is canceled.
func (h *Harvester) Run(ctx context.Context) error {
	defer func() {
		if err := h.store.Close(); err != nil {
			h.log.ErrorObj("failed to close store", "error", err.Error())
		}
	}()

	h.log.InfoObj("harvester starting", "harvester", map[string]any{
		"index_interval": h.cfg.IndexInterval.String(),
		"concurrency":    h.cfg.WorkerConcurrency,
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.indexLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.worker.run(ctx)
	}()

	wg.Wait()
	h.log.InfoObj("harvester stopped", "reason", ctx.Err().Error())
	return nil
}

func (h *Harvester) indexLoop(ctx context.Context) {
	h.runIndexOnce(ctx)

	ticker := time.NewTicker(h.cfg.IndexInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.runIndexOnce(ctx)
		}
	}
}

func (h *Harvester) runIndexOnce(ctx context.Context) {
	started := time.Now()
	err := runIndexPass(ctx, h.cfg, h.crawler, h.store, h.fetchQ, h.sink, h.log)
	if err != nil {
		h.log.ErrorObj("index pass failed", "error", err.Error())
	}
	h.log.InfoObj("index pass finished", "index_pass", map[string]any{
		"elapsed_seconds": time.Since(started).Seconds(),
		"ok":              err == nil,
	})
}
