package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gorandp/utn-frsn-news/internal/domain"
)

type stubStore struct {
	items     map[int64]*domain.Item
	delivered map[int64]time.Time
	markErr   error
}

func newStubStore(items ...*domain.Item) *stubStore {
	s := &stubStore{items: map[int64]*domain.Item{}, delivered: map[int64]time.Time{}}
	for _, it := range items {
		s.items[it.ID] = it
	}
	return s
}

func (s *stubStore) Close() error                                       { return nil }
func (s *stubStore) LatestSourceURL() (string, error)                   { return "", nil }
func (s *stubStore) ExistingURLs([]string) (map[string]struct{}, error) { return nil, nil }
func (s *stubStore) InsertItem(*domain.Item) (int64, bool, error)       { return 0, false, nil }
func (s *stubStore) ListItems(int) ([]domain.Item, error)               { return nil, nil }
func (s *stubStore) RecordFailure(domain.DeliveryFailure) error         { return nil }

func (s *stubStore) ItemByID(id int64) (*domain.Item, error) {
	return s.items[id], nil
}

func (s *stubStore) MarkDelivered(id int64, at time.Time) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.delivered[id] = at
	return nil
}

func TestHandleDeliversAndMarks(t *testing.T) {
	item := testItem()
	store := newStubStore(item)
	m := &stubMessenger{}
	c := NewCoordinator(store, NewNotifier(m, publicURL, "42", nil), nil)

	if err := c.Handle(context.Background(), domain.NotifyTask{ItemID: item.ID}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(m.texts) != 1 {
		t.Fatalf("expected 1 text, got %d", len(m.texts))
	}
	if _, ok := store.delivered[item.ID]; !ok {
		t.Fatalf("item was not marked delivered")
	}
}

func TestHandleMissingItem(t *testing.T) {
	store := newStubStore()
	c := NewCoordinator(store, NewNotifier(&stubMessenger{}, publicURL, "42", nil), nil)

	err := c.Handle(context.Background(), domain.NotifyTask{ItemID: 99})
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestHandleAlreadyDeliveredIsNoOp(t *testing.T) {
	item := testItem()
	at := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	item.DeliveredAt = &at
	store := newStubStore(item)
	m := &stubMessenger{}
	c := NewCoordinator(store, NewNotifier(m, publicURL, "42", nil), nil)

	if err := c.Handle(context.Background(), domain.NotifyTask{ItemID: item.ID}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(m.texts) != 0 || len(m.photos) != 0 {
		t.Fatalf("expected no delivery for an already delivered item")
	}
}

func TestHandleDeliveryErrorKeepsUndelivered(t *testing.T) {
	item := testItem()
	store := newStubStore(item)
	m := &stubMessenger{textErr: errors.New("offline")}
	c := NewCoordinator(store, NewNotifier(m, publicURL, "42", nil), nil)

	if err := c.Handle(context.Background(), domain.NotifyTask{ItemID: item.ID}); err == nil {
		t.Fatalf("expected error")
	}
	if len(store.delivered) != 0 {
		t.Fatalf("failed delivery must not mark the item")
	}
}
