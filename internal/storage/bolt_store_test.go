package storage

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gorandp/utn-frsn-news/internal/domain"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewStore("bbolt", filepath.Join(t.TempDir(), "news.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func newItem(url string, origin time.Time) *domain.Item {
	return &domain.Item{
		SourceURL:       url,
		Title:           "Titulo",
		Body:            "cuerpo",
		OriginTimestamp: &origin,
		IndexedAt:       origin,
		InsertedAt:      origin.Add(time.Minute),
	}
}

func TestInsertItemAssignsSequentialIDs(t *testing.T) {
	store := openTestStore(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		item := newItem(fmt.Sprintf("https://example.com/?p=%d", i), base.Add(time.Duration(i)*time.Hour))
		id, inserted, err := store.InsertItem(item)
		if err != nil {
			t.Fatalf("InsertItem: %v", err)
		}
		if !inserted {
			t.Fatalf("expected insert for new url")
		}
		if id != int64(i) {
			t.Fatalf("id = %d, want %d", id, i)
		}
	}
}

func TestInsertItemDuplicateURLReturnsExistingID(t *testing.T) {
	store := openTestStore(t)
	origin := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	first, inserted, err := store.InsertItem(newItem("https://example.com/?p=1", origin))
	if err != nil || !inserted {
		t.Fatalf("first insert: id=%d inserted=%v err=%v", first, inserted, err)
	}

	second, inserted, err := store.InsertItem(newItem("https://example.com/?p=1", origin.Add(time.Hour)))
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if inserted {
		t.Fatalf("duplicate url must not insert")
	}
	if second != first {
		t.Fatalf("duplicate insert id = %d, want %d", second, first)
	}
}

func TestInsertItemConcurrentDuplicates(t *testing.T) {
	store := openTestStore(t)
	origin := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	const workers = 8
	ids := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, _, err := store.InsertItem(newItem("https://example.com/?p=1", origin))
			if err != nil {
				t.Errorf("InsertItem: %v", err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("ids diverged: %v", ids)
		}
	}

	items, err := store.ListItems(10)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 stored item, got %d", len(items))
	}
}

func TestLatestSourceURLFollowsOriginTime(t *testing.T) {
	store := openTestStore(t)

	latest, err := store.LatestSourceURL()
	if err != nil {
		t.Fatalf("LatestSourceURL: %v", err)
	}
	if latest != "" {
		t.Fatalf("empty store latest = %q, want empty", latest)
	}

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	// Inserted out of chronological order on purpose.
	for _, it := range []*domain.Item{
		newItem("https://example.com/?p=2", base.Add(2*time.Hour)),
		newItem("https://example.com/?p=3", base.Add(3*time.Hour)),
		newItem("https://example.com/?p=1", base.Add(time.Hour)),
	} {
		if _, _, err := store.InsertItem(it); err != nil {
			t.Fatalf("InsertItem: %v", err)
		}
	}

	latest, err = store.LatestSourceURL()
	if err != nil {
		t.Fatalf("LatestSourceURL: %v", err)
	}
	if latest != "https://example.com/?p=3" {
		t.Fatalf("latest = %q, want ?p=3", latest)
	}
}

func TestListItemsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 5; i++ {
		item := newItem(fmt.Sprintf("https://example.com/?p=%d", i), base.Add(time.Duration(i)*time.Hour))
		if _, _, err := store.InsertItem(item); err != nil {
			t.Fatalf("InsertItem: %v", err)
		}
	}

	items, err := store.ListItems(3)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if items[0].SourceURL != "https://example.com/?p=5" {
		t.Fatalf("newest = %q", items[0].SourceURL)
	}
	if items[2].SourceURL != "https://example.com/?p=3" {
		t.Fatalf("third = %q", items[2].SourceURL)
	}
}

func TestExistingURLs(t *testing.T) {
	store := openTestStore(t)
	origin := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if _, _, err := store.InsertItem(newItem("https://example.com/?p=1", origin)); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}

	found, err := store.ExistingURLs([]string{"https://example.com/?p=1", "https://example.com/?p=2"})
	if err != nil {
		t.Fatalf("ExistingURLs: %v", err)
	}
	if _, ok := found["https://example.com/?p=1"]; !ok {
		t.Fatalf("stored url not reported")
	}
	if _, ok := found["https://example.com/?p=2"]; ok {
		t.Fatalf("unknown url reported as existing")
	}
}

func TestMarkDelivered(t *testing.T) {
	store := openTestStore(t)
	origin := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	id, _, err := store.InsertItem(newItem("https://example.com/?p=1", origin))
	if err != nil {
		t.Fatalf("InsertItem: %v", err)
	}

	at := origin.Add(2 * time.Hour)
	if err := store.MarkDelivered(id, at); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}

	item, err := store.ItemByID(id)
	if err != nil {
		t.Fatalf("ItemByID: %v", err)
	}
	if item == nil || item.DeliveredAt == nil {
		t.Fatalf("delivery marker missing")
	}
	if !item.DeliveredAt.Equal(at) {
		t.Fatalf("delivered at = %v, want %v", item.DeliveredAt, at)
	}

	if err := store.MarkDelivered(999, at); err == nil {
		t.Fatalf("expected error for unknown item")
	}
}

func TestItemByIDMissing(t *testing.T) {
	store := openTestStore(t)
	item, err := store.ItemByID(42)
	if err != nil {
		t.Fatalf("ItemByID: %v", err)
	}
	if item != nil {
		t.Fatalf("expected nil for missing item, got %+v", item)
	}
}

func TestRecordFailure(t *testing.T) {
	store := openTestStore(t)
	err := store.RecordFailure(domain.DeliveryFailure{
		SourceURL:  "https://example.com/?p=1",
		Stage:      domain.StageFetch,
		Message:    "boom",
		OccurredAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("RecordFailure: %v", err)
	}
}

func TestNewStoreVariants(t *testing.T) {
	if _, err := NewStore("bbolt", ""); err == nil {
		t.Fatalf("expected error for empty bbolt path")
	}
	if _, err := NewStore("postgres", "dsn"); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
	store, err := NewStore("none", "")
	if err != nil {
		t.Fatalf("NewStore none: %v", err)
	}
	if latest, err := store.LatestSourceURL(); err != nil || latest != "" {
		t.Fatalf("noop store latest = %q err=%v", latest, err)
	}
}
