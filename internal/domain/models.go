package domain

import (
	"strconv"
	"time"
)

// Domain contains the core records flowing through the ingestion pipeline.

// DiscoveredLink is a (article URL, thumbnail URL) pair found on the listing
// feed. It lives for a single crawl pass and is never persisted.
type DiscoveredLink struct {
	SourceURL string `json:"source_url"`
	PhotoURL  string `json:"photo_url,omitempty"`
}

// Item is a fetched and persisted article. Items are append-only; only the
// delivery marker changes after insertion.
type Item struct {
	ID              int64      `json:"id"`
	SourceURL       string     `json:"source_url"`
	Title           string     `json:"title"`
	Body            string     `json:"body"`
	PhotoRef        string     `json:"photo_ref,omitempty"`
	OriginTimestamp *time.Time `json:"origin_timestamp,omitempty"`
	FetchSeconds    float64    `json:"fetch_seconds"`
	ParseSeconds    float64    `json:"parse_seconds"`
	IndexedAt       time.Time  `json:"indexed_at"`
	InsertedAt      time.Time  `json:"inserted_at"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty"`
}

// FetchTask is the fetch queue message body. Immutable once enqueued.
type FetchTask struct {
	SourceURL  string    `json:"source_url"`
	PhotoURL   string    `json:"photo_url,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NotifyTask is the notify queue message body. Immutable once enqueued.
type NotifyTask struct {
	ItemID     int64     `json:"item_id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Pipeline stages recorded on failures.
const (
	StageDiscover = "discover"
	StageDispatch = "dispatch"
	StageFetch    = "fetch"
	StageNotify   = "notify"
)

// DeliveryFailure describes a failed task attempt routed to the error sink.
type DeliveryFailure struct {
	ItemID     int64     `json:"item_id,omitempty"`
	SourceURL  string    `json:"source_url,omitempty"`
	Stage      string    `json:"stage"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Key returns the most specific identifier available for log and alert lines.
func (f DeliveryFailure) Key() string {
	if f.SourceURL != "" {
		return f.SourceURL
	}
	if f.ItemID != 0 {
		return strconv.FormatInt(f.ItemID, 10)
	}
	return "-"
}
