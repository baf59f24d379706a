package feed

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorandp/utn-frsn-news/internal/domain"
	"github.com/gorandp/utn-frsn-news/internal/logger"
)

// Structural selectors of the listing feed.
const (
	selectorEntry      = "article.post"
	selectorPagination = "nav > div > a.page-numbers"
)

type listingPage struct {
	links []domain.DiscoveredLink
	doc   *goquery.Document
}

// parseListing extracts the article entries of one listing page. Entries
// without a link are skipped with a warning; they carry nothing to fetch.
func parseListing(body []byte, log logger.Logger) (listingPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return listingPage{}, fmt.Errorf("parse html: %w", err)
	}

	var links []domain.DiscoveredLink
	doc.Find(selectorEntry).Each(func(i int, entry *goquery.Selection) {
		href, ok := entry.Find("a").First().Attr("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			log.WarnObj("listing entry without URL", "entry_index", i)
			return
		}
		photo, _ := entry.Find("img").First().Attr("src")
		links = append(links, domain.DiscoveredLink{
			SourceURL: href,
			PhotoURL:  strings.TrimSpace(photo),
		})
	})

	return listingPage{links: links, doc: doc}, nil
}

// parseLastPage reads the total page count from the pagination controls. The
// second-to-last page-number anchor holds the final page; the last one is the
// "next" arrow. A listing without that structure is a fatal parse error, not
// an invitation to paginate blindly.
func parseLastPage(doc *goquery.Document) (int, error) {
	anchors := doc.Find(selectorPagination)
	if anchors.Length() < 2 {
		return 0, fmt.Errorf("pagination links not found")
	}
	text := strings.TrimSpace(anchors.Eq(anchors.Length() - 2).Text())
	last, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("pagination page count %q: %w", text, err)
	}
	if last < 1 {
		return 0, fmt.Errorf("pagination page count %d out of range", last)
	}
	return last, nil
}
