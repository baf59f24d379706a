package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gorandp/utn-frsn-news/internal/domain"
	bolt "go.etcd.io/bbolt"
)

const (
	itemBucket    = "items"
	urlBucket     = "urls"
	byTimeBucket  = "by_time"
	failureBucket = "failures"

	// Fixed-width so keys sort chronologically as raw bytes.
	timeKeyLayout = "2006-01-02T15:04:05.000000000"
)

// boltStore implements Store backed by BoltDB.
type boltStore struct {
	db *bolt.DB
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{itemBucket, urlBucket, byTimeBucket, failureBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &boltStore{db: db}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// LatestSourceURL returns the URL of the item with the newest origin timestamp.
func (b *boltStore) LatestSourceURL() (string, error) {
	var url string
	err := b.db.View(func(tx *bolt.Tx) error {
		byTime := tx.Bucket([]byte(byTimeBucket))
		if byTime == nil {
			return fmt.Errorf("time index bucket missing")
		}
		_, idRef := byTime.Cursor().Last()
		if idRef == nil {
			return nil
		}
		item, err := itemAt(tx, idRef)
		if err != nil {
			return err
		}
		url = item.SourceURL
		return nil
	})
	return url, err
}

// ExistingURLs reports which of the given URLs already have an item.
func (b *boltStore) ExistingURLs(urls []string) (map[string]struct{}, error) {
	found := make(map[string]struct{}, len(urls))
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(urlBucket))
		if bucket == nil {
			return fmt.Errorf("url bucket missing")
		}
		for _, u := range urls {
			if bucket.Get([]byte(u)) != nil {
				found[u] = struct{}{}
			}
		}
		return nil
	})
	return found, err
}

// InsertItem persists the item inside a single update transaction. The URL
// index lookup and the insert share the transaction, so a duplicate insert
// resolves to the already-stored id even when tasks race.
func (b *boltStore) InsertItem(item *domain.Item) (int64, bool, error) {
	if item == nil {
		return 0, false, fmt.Errorf("item must not be nil")
	}
	var (
		id       int64
		inserted bool
	)
	err := b.db.Update(func(tx *bolt.Tx) error {
		urls := tx.Bucket([]byte(urlBucket))
		items := tx.Bucket([]byte(itemBucket))
		byTime := tx.Bucket([]byte(byTimeBucket))
		if urls == nil || items == nil || byTime == nil {
			return fmt.Errorf("store buckets missing")
		}

		if existing := urls.Get([]byte(item.SourceURL)); existing != nil {
			id = int64(binary.BigEndian.Uint64(existing))
			inserted = false
			return nil
		}

		seq, err := items.NextSequence()
		if err != nil {
			return fmt.Errorf("next item id: %w", err)
		}
		item.ID = int64(seq)

		payload, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("encode item: %w", err)
		}

		idRef := itob(item.ID)
		if err := items.Put(idRef, payload); err != nil {
			return err
		}
		if err := urls.Put([]byte(item.SourceURL), idRef); err != nil {
			return err
		}
		if err := byTime.Put(timeKey(item), idRef); err != nil {
			return err
		}

		id = item.ID
		inserted = true
		return nil
	})
	return id, inserted, err
}

// ItemByID returns the stored item, or nil when absent.
func (b *boltStore) ItemByID(id int64) (*domain.Item, error) {
	var item *domain.Item
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(itemBucket))
		if bucket == nil {
			return fmt.Errorf("item bucket missing")
		}
		raw := bucket.Get(itob(id))
		if raw == nil {
			return nil
		}
		decoded := &domain.Item{}
		if err := json.Unmarshal(raw, decoded); err != nil {
			return fmt.Errorf("decode item %d: %w", id, err)
		}
		item = decoded
		return nil
	})
	return item, err
}

// ListItems walks the origin-time index newest first.
func (b *boltStore) ListItems(limit int) ([]domain.Item, error) {
	if limit <= 0 {
		return nil, nil
	}
	out := make([]domain.Item, 0, limit)
	err := b.db.View(func(tx *bolt.Tx) error {
		byTime := tx.Bucket([]byte(byTimeBucket))
		if byTime == nil {
			return fmt.Errorf("time index bucket missing")
		}
		cursor := byTime.Cursor()
		for k, idRef := cursor.Last(); k != nil && len(out) < limit; k, idRef = cursor.Prev() {
			item, err := itemAt(tx, idRef)
			if err != nil {
				return err
			}
			out = append(out, *item)
		}
		return nil
	})
	return out, err
}

// MarkDelivered sets the delivery marker on the item.
func (b *boltStore) MarkDelivered(id int64, at time.Time) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(itemBucket))
		if bucket == nil {
			return fmt.Errorf("item bucket missing")
		}
		idRef := itob(id)
		raw := bucket.Get(idRef)
		if raw == nil {
			return fmt.Errorf("item %d not found", id)
		}
		var item domain.Item
		if err := json.Unmarshal(raw, &item); err != nil {
			return fmt.Errorf("decode item %d: %w", id, err)
		}
		at = at.UTC()
		item.DeliveredAt = &at
		payload, err := json.Marshal(&item)
		if err != nil {
			return fmt.Errorf("encode item %d: %w", id, err)
		}
		return bucket.Put(idRef, payload)
	})
}

// RecordFailure appends the failure to the error log bucket.
func (b *boltStore) RecordFailure(f domain.DeliveryFailure) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(failureBucket))
		if bucket == nil {
			return fmt.Errorf("failure bucket missing")
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		payload, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("encode failure: %w", err)
		}
		return bucket.Put(itob(int64(seq)), payload)
	})
}

func itemAt(tx *bolt.Tx, idRef []byte) (*domain.Item, error) {
	items := tx.Bucket([]byte(itemBucket))
	if items == nil {
		return nil, fmt.Errorf("item bucket missing")
	}
	raw := items.Get(idRef)
	if raw == nil {
		return nil, fmt.Errorf("dangling time index entry")
	}
	var item domain.Item
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("decode indexed item: %w", err)
	}
	return &item, nil
}

// timeKey orders items by origin timestamp, falling back to the indexing
// time for items without a reliable publish time. The id suffix keeps keys
// unique for identical timestamps.
func timeKey(item *domain.Item) []byte {
	ts := item.IndexedAt
	if item.OriginTimestamp != nil {
		ts = *item.OriginTimestamp
	}
	key := make([]byte, 0, len(timeKeyLayout)+8)
	key = append(key, ts.UTC().Format(timeKeyLayout)...)
	key = append(key, itob(item.ID)...)
	return key
}

func itob(id int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(id))
	return buf
}
