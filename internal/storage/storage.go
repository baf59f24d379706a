package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/gorandp/utn-frsn-news/internal/domain"
)

// Package storage provides the persisted item store abstraction.

// Store persists items keyed by their unique source URL and keeps the
// pipeline's failure log. Implementations must make InsertItem a no-op
// (returning the existing id) when the URL is already present, including
// under concurrent inserts.
type Store interface {
	Close() error

	// LatestSourceURL returns the URL of the newest item by origin timestamp,
	// or "" when the store is empty.
	LatestSourceURL() (string, error)

	// ExistingURLs reports which of the given URLs are already stored.
	ExistingURLs(urls []string) (map[string]struct{}, error)

	// InsertItem persists the item, assigning its id. When the source URL is
	// already present the stored id is returned with inserted=false.
	InsertItem(item *domain.Item) (id int64, inserted bool, err error)

	ItemByID(id int64) (*domain.Item, error)

	// ListItems returns up to limit items, newest origin timestamp first.
	ListItems(limit int) ([]domain.Item, error)

	MarkDelivered(id int64, at time.Time) error

	RecordFailure(f domain.DeliveryFailure) error
}

// NewStore creates the configured storage backend.
func NewStore(typ, path string) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

type noopStore struct{}

func (noopStore) Close() error                                        { return nil }
func (noopStore) LatestSourceURL() (string, error)                    { return "", nil }
func (noopStore) ExistingURLs([]string) (map[string]struct{}, error)  { return nil, nil }
func (noopStore) InsertItem(*domain.Item) (int64, bool, error)        { return 0, false, nil }
func (noopStore) ItemByID(int64) (*domain.Item, error)                { return nil, nil }
func (noopStore) ListItems(int) ([]domain.Item, error)                { return nil, nil }
func (noopStore) MarkDelivered(int64, time.Time) error                { return nil }
func (noopStore) RecordFailure(domain.DeliveryFailure) error          { return nil }
