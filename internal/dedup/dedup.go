package dedup

import (
	"fmt"

	"github.com/gorandp/utn-frsn-news/internal/domain"
	"github.com/gorandp/utn-frsn-news/internal/storage"
)

// Deduplicator filters discovered links against the store. It is the first
// gate against duplicate items; the store's unique URL index is the second,
// authoritative one.
type Deduplicator struct {
	store       storage.Store
	lookupBatch int
}

// New builds a deduplicator querying the store in batches of lookupBatch URLs.
func New(store storage.Store, lookupBatch int) *Deduplicator {
	if lookupBatch <= 0 {
		lookupBatch = 100
	}
	return &Deduplicator{store: store, lookupBatch: lookupBatch}
}

// FilterNew returns the links whose URL is not yet stored, preserving input
// order.
func (d *Deduplicator) FilterNew(links []domain.DiscoveredLink) ([]domain.DiscoveredLink, error) {
	if len(links) == 0 {
		return nil, nil
	}

	existing := make(map[string]struct{}, len(links))
	for start := 0; start < len(links); start += d.lookupBatch {
		end := start + d.lookupBatch
		if end > len(links) {
			end = len(links)
		}
		urls := make([]string, 0, end-start)
		for _, l := range links[start:end] {
			urls = append(urls, l.SourceURL)
		}
		found, err := d.store.ExistingURLs(urls)
		if err != nil {
			return nil, fmt.Errorf("lookup existing urls: %w", err)
		}
		for u := range found {
			existing[u] = struct{}{}
		}
	}

	fresh := make([]domain.DiscoveredLink, 0, len(links))
	for _, l := range links {
		if _, ok := existing[l.SourceURL]; ok {
			continue
		}
		fresh = append(fresh, l)
	}
	return fresh, nil
}
