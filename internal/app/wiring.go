package app

import (
	"context"
	"fmt"

	"github.com/gorandp/utn-frsn-news/internal/config"
	"github.com/gorandp/utn-frsn-news/internal/dedup"
	"github.com/gorandp/utn-frsn-news/internal/dispatch"
	"github.com/gorandp/utn-frsn-news/internal/errsink"
	"github.com/gorandp/utn-frsn-news/internal/feed"
	"github.com/gorandp/utn-frsn-news/internal/logger"
	"github.com/gorandp/utn-frsn-news/internal/storage"
	"github.com/gorandp/utn-frsn-news/internal/telegram"
	"github.com/gorandp/utn-frsn-news/pkg/httpclient"
	"github.com/gorandp/utn-frsn-news/pkg/queues"
)

// buildSenders loads the queue registry and instantiates every configured
// backend, keyed by queue id.
func buildSenders(ctx context.Context, cfg *config.Config, log logger.Logger) (map[string]queues.Sender, error) {
	queueReg, err := queues.LoadRegistry(cfg.QueuesFile)
	if err != nil {
		return nil, fmt.Errorf("load queues registry: %w", err)
	}
	senders, err := queues.BuildAll(ctx, queues.DefaultRegistry(), queueReg.All(), log)
	if err != nil {
		return nil, fmt.Errorf("build queues: %w", err)
	}
	return senders, nil
}

func senderFor(senders map[string]queues.Sender, id string) (queues.Sender, error) {
	s, ok := senders[id]
	if !ok {
		return nil, fmt.Errorf("queue %q is not configured", id)
	}
	return s, nil
}

// buildTelegram creates the shared messaging client.
func buildTelegram(cfg *config.Config, httpc httpclient.Client, log logger.Logger) *telegram.Client {
	return telegram.NewClient(httpc, cfg.TelegramAPIKey, cfg.TelegramSilentMode, telegram.RetryPolicy{
		MaxRetries:   cfg.TelegramRetryMax,
		DefaultSleep: cfg.TelegramRetrySleep,
	}, log)
}

// buildSink assembles the failure fan-out: structured log, operator chat,
// and optionally an SNS topic.
func buildSink(ctx context.Context, cfg *config.Config, tg *telegram.Client, log logger.Logger) (*errsink.Fanout, error) {
	sinks := []errsink.Sink{errsink.NewLogSink(log)}
	if cfg.TelegramDebugChatID != "" {
		sinks = append(sinks, errsink.NewTelegramSink(tg, cfg.TelegramDebugChatID, log))
	}
	if cfg.SNSAlertTopicARN != "" {
		snsSink, err := errsink.NewSNSSink(ctx, cfg.SNSAlertTopicARN, cfg.SNSRegion, log)
		if err != nil {
			return nil, fmt.Errorf("build sns sink: %w", err)
		}
		sinks = append(sinks, snsSink)
	}
	return errsink.NewFanout(sinks...), nil
}

// runIndexPass executes one discovery pass: crawl the feed from the stored
// cursor, filter known URLs, and dispatch fetch tasks.
func runIndexPass(ctx context.Context, cfg *config.Config, crawler *feed.Crawler, store storage.Store, fetchQ queues.Sender, sink errsink.Sink, log logger.Logger) error {
	latest, err := store.LatestSourceURL()
	if err != nil {
		return fmt.Errorf("load latest url: %w", err)
	}

	links, err := crawler.Discover(ctx, latest)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}

	fresh, err := dedup.New(store, cfg.LookupBatch).FilterNew(links)
	if err != nil {
		return fmt.Errorf("filter new links: %w", err)
	}

	log.InfoObj("index pass discovered links", "index_result", map[string]any{
		"gathered": len(links),
		"fresh":    len(fresh),
	})

	return dispatch.New(fetchQ, sink, log).EnqueueFetch(ctx, fresh)
}
