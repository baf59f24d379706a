package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/gorandp/utn-frsn-news/internal/domain"
)

// Messages render timestamps in the feed's local offset.
var renderZone = time.FixedZone("UTC-3", -3*60*60)

const renderLayout = "2006-01-02 15:04:05"

// timestampLine renders the item's publish time, truncated to whole seconds.
// Items without an authoritative publish time fall back to the indexing time
// and carry a scraped marker so readers can tell estimated from real dates.
func timestampLine(item *domain.Item) string {
	ts := item.InsertedAt
	marker := "(scrap) "
	if item.OriginTimestamp != nil {
		ts = *item.OriginTimestamp
		marker = ""
	}
	return fmt.Sprintf("<code>%s%s</code>", marker, ts.In(renderZone).Format(renderLayout))
}

// Header renders the timestamp line and the linked title.
func Header(item *domain.Item) string {
	out := []string{
		timestampLine(item),
		fmt.Sprintf(`<a href="%s"><b>%s</b></a>`, item.SourceURL, item.Title),
	}
	return strings.Join(out, "\n")
}

// Message renders the full notification body: header, blank line, escaped
// content.
func Message(item *domain.Item) string {
	out := []string{
		timestampLine(item),
		fmt.Sprintf(`<a href="%s"><b>%s</b></a>`, item.SourceURL, item.Title),
		"",
		escapeBody(item.Body),
	}
	return strings.Join(out, "\n")
}

// escapeBody neutralizes HTML in the article body. Ampersands go first so the
// entities produced for < and > keep their literal ampersand intact.
func escapeBody(body string) string {
	if strings.Contains(body, "&") {
		body = strings.ReplaceAll(body, "&", "&amp")
	}
	if strings.Contains(body, "<") {
		body = strings.ReplaceAll(body, "<", "&lt")
	}
	if strings.Contains(body, ">") {
		body = strings.ReplaceAll(body, ">", "&gt")
	}
	return body
}
