package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorandp/utn-frsn-news/internal/domain"
	"github.com/gorandp/utn-frsn-news/internal/logger"
	"github.com/gorandp/utn-frsn-news/internal/storage"
	"github.com/gorandp/utn-frsn-news/pkg/httpclient"
	"github.com/gorandp/utn-frsn-news/pkg/queues"
)

// Uploader pushes raw image bytes to the external image host.
type Uploader interface {
	Upload(ctx context.Context, filename string, data []byte) (string, error)
}

// ItemFetcher turns one fetch task into a persisted item and a queued notify
// task. Any error leaves no partial state behind: the item row is written in
// one store transaction and the notify task only after it.
type ItemFetcher struct {
	client  httpclient.Client
	store   storage.Store
	images  Uploader
	notifyQ queues.Sender
	now     func() time.Time
	log     logger.Logger
}

// NewItemFetcher builds the fetch-stage processor.
func NewItemFetcher(client httpclient.Client, store storage.Store, images Uploader, notifyQ queues.Sender, log logger.Logger) *ItemFetcher {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &ItemFetcher{
		client:  client,
		store:   store,
		images:  images,
		notifyQ: notifyQ,
		now:     time.Now,
		log:     log,
	}
}

// Process fetches, parses, and persists the article, then enqueues its notify
// task. A duplicate URL resolves to the already-stored item and still
// enqueues the notify task; the delivered marker downstream absorbs the
// repeat.
func (f *ItemFetcher) Process(ctx context.Context, task domain.FetchTask) (int64, error) {
	fetchStart := f.now()
	resp, err := f.client.Get(ctx, task.SourceURL, nil)
	if err != nil {
		return 0, fmt.Errorf("fetch article: %w", err)
	}
	if resp.StatusCode() != 200 {
		return 0, fmt.Errorf("article returned status %d", resp.StatusCode())
	}
	fetchSeconds := f.now().Sub(fetchStart).Seconds()

	parseStart := f.now()
	page, err := parseArticle(resp.Body())
	if err != nil {
		return 0, fmt.Errorf("parse article: %w", err)
	}
	parseSeconds := f.now().Sub(parseStart).Seconds()

	photoRef := ""
	if task.PhotoURL != "" {
		photoRef, err = f.uploadPhoto(ctx, task)
		if err != nil {
			return 0, err
		}
	}

	item := &domain.Item{
		SourceURL:       task.SourceURL,
		Title:           page.title,
		Body:            page.body,
		PhotoRef:        photoRef,
		OriginTimestamp: page.origin,
		FetchSeconds:    fetchSeconds,
		ParseSeconds:    parseSeconds,
		IndexedAt:       task.EnqueuedAt.UTC(),
		InsertedAt:      f.now().UTC(),
	}

	id, inserted, err := f.store.InsertItem(item)
	if err != nil {
		return 0, fmt.Errorf("persist item: %w", err)
	}
	if !inserted {
		f.log.InfoObj("item already stored", "item_duplicate", map[string]any{
			"item_id":    id,
			"source_url": task.SourceURL,
		})
	}

	body, err := json.Marshal(domain.NotifyTask{ItemID: id, EnqueuedAt: f.now().UTC()})
	if err != nil {
		return id, fmt.Errorf("encode notify task: %w", err)
	}
	if err := f.notifyQ.Send(ctx, body); err != nil {
		return id, fmt.Errorf("enqueue notify task: %w", err)
	}

	f.log.InfoObj("item fetched and stored", "item_meta", map[string]any{
		"item_id":       id,
		"source_url":    task.SourceURL,
		"fetch_seconds": fetchSeconds,
		"parse_seconds": parseSeconds,
		"has_photo":     photoRef != "",
	})
	return id, nil
}

func (f *ItemFetcher) uploadPhoto(ctx context.Context, task domain.FetchTask) (string, error) {
	resp, err := f.client.Get(ctx, task.PhotoURL, nil)
	if err != nil {
		return "", fmt.Errorf("fetch photo: %w", err)
	}
	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("photo returned status %d", resp.StatusCode())
	}

	ref, err := f.images.Upload(ctx, photoFilename(task), resp.Body())
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	return ref, nil
}

// photoFilename names the upload after the article's origin id and the
// photo's original basename.
func photoFilename(task domain.FetchTask) string {
	originID := task.SourceURL
	if idx := strings.LastIndex(originID, "="); idx >= 0 {
		originID = originID[idx+1:]
	}
	base := task.PhotoURL
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		base = base[idx+1:]
	}
	return fmt.Sprintf("utn-frsn-news-photo-%s-%s", originID, base)
}
