package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gorandp/utn-frsn-news/internal/config"
	"github.com/gorandp/utn-frsn-news/internal/errsink"
	"github.com/gorandp/utn-frsn-news/internal/feed"
	"github.com/gorandp/utn-frsn-news/internal/logger"
	"github.com/gorandp/utn-frsn-news/internal/storage"
	"github.com/gorandp/utn-frsn-news/pkg/httpclient"
	"github.com/gorandp/utn-frsn-news/pkg/queues"
)

// Indexer is the standalone discovery runtime: it crawls the listing on an
// interval and enqueues fetch tasks for unseen articles. It owns its store
// handle for the duration of Run, so it must not share a bbolt file with a
// running harvester.
type Indexer struct {
	cfg     *config.Config
	log     logger.Logger
	store   storage.Store
	crawler *feed.Crawler
	fetchQ  queues.Sender
	sink    errsink.Sink
}

// NewIndexer wires the discovery pipeline from configuration.
func NewIndexer(ctx context.Context, cfg *config.Config, log logger.Logger) (*Indexer, error) {
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

	return &Indexer{
		cfg:     cfg,
		log:     log,
		store:   store,
		crawler: crawler,
		fetchQ:  fetchQ,
		sink:    sink,
	}, nil
}

// Run executes one pass immediately, then repeats on the configured interval
// until the context is canceled.
func (ix *Indexer) Run(ctx context.Context) error {
	defer func() {
		if err := ix.store.Close(); err != nil {
			ix.log.ErrorObj("failed to close store", "error", err.Error())
		}
	}()

	if err := ix.runOnce(ctx); err != nil {
		ix.log.ErrorObj("index pass failed", "error", err.Error())
	}

	ticker := time.NewTicker(ix.cfg.IndexInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			ix.log.InfoObj("indexer stopping", "reason", ctx.Err().Error())
			return nil
		case <-ticker.C:
			if err := ix.runOnce(ctx); err != nil {
				ix.log.ErrorObj("index pass failed", "error", err.Error())
			}
		}
	}
}

func (ix *Indexer) runOnce(ctx context.Context) error {
	started := time.Now()
	err := runIndexPass(ctx, ix.cfg, ix.crawler, ix.store, ix.fetchQ, ix.sink, ix.log)
	ix.log.InfoObj("index pass finished", "index_pass", map[string]any{
		"elapsed_seconds": time.Since(started).Seconds(),
		"ok":              err == nil,
	})
	return err
}
