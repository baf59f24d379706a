package feed

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorandp/utn-frsn-news/internal/domain"
	"github.com/gorandp/utn-frsn-news/internal/logger"
	"github.com/gorandp/utn-frsn-news/pkg/httpclient"
	"golang.org/x/time/rate"
)

// Crawler walks the paginated listing feed and collects article links until
// it reaches content the store has already seen.
type Crawler struct {
	client     httpclient.Client
	pageURL    string
	stopWindow int
	pageBatch  int
	limiter    *rate.Limiter
	log        logger.Logger
}

// Options tunes the crawl behavior.
type Options struct {
	// PageURL is the listing URL template with a %d page placeholder.
	PageURL string
	// StopWindow is the number of most-recently gathered links excluded from
	// the early-stop check, a safety margin against listing reordering near
	// the crawl boundary.
	StopWindow int
	// PageBatch is how many pages beyond the first are fetched concurrently
	// before the stop condition is re-checked.
	PageBatch int
	// Throttle spaces out page request launches.
	Throttle time.Duration
}

// NewCrawler builds a crawler over the given HTTP client.
func NewCrawler(client httpclient.Client, opts Options, log logger.Logger) *Crawler {
	if log == nil {
		log = logger.NopLogger{}
	}
	if opts.PageBatch <= 0 {
		opts.PageBatch = 5
	}
	if opts.StopWindow < 0 {
		opts.StopWindow = 0
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Throttle > 0 {
		limiter = rate.NewLimiter(rate.Every(opts.Throttle), 1)
	}
	return &Crawler{
		client:     client,
		pageURL:    opts.PageURL,
		stopWindow: opts.StopWindow,
		pageBatch:  opts.PageBatch,
		limiter:    limiter,
		log:        log,
	}
}

// Discover crawls the listing and returns links newer than knownLatestURL,
// ordered oldest first. An empty knownLatestURL crawls the whole listing.
// Any page fetch or parse error aborts the call; partial results are never
// returned, so callers must tolerate a full retry.
func (c *Crawler) Discover(ctx context.Context, knownLatestURL string) ([]domain.DiscoveredLink, error) {
	first, err := c.fetchPage(ctx, 1)
	if err != nil {
		return nil, err
	}
	lastPage, err := parseLastPage(first.doc)
	if err != nil {
		return nil, fmt.Errorf("page 1: %w", err)
	}

	links := first.links
	c.log.InfoObj("feed crawl started", "feed_meta", map[string]any{
		"last_page":    lastPage,
		"first_page":   len(links),
		"known_latest": knownLatestURL,
	})
	if len(links) == 0 {
		return nil, nil
	}

	if !c.stopReached(links, knownLatestURL) {
		page := 2
		for page <= lastPage {
			end := page + c.pageBatch - 1
			if end > lastPage {
				end = lastPage
			}
			batch, exhausted, err := c.fetchRange(ctx, page, end)
			if err != nil {
				return nil, err
			}
			links = append(links, batch...)
			if exhausted || c.stopReached(links, knownLatestURL) {
				break
			}
			page = end + 1
		}
	}

	fresh := finalize(links, knownLatestURL)
	c.log.InfoObj("feed crawl completed", "feed_result", map[string]any{
		"gathered": len(links),
		"fresh":    len(fresh),
	})
	return fresh, nil
}

// stopReached reports whether the known URL appears among the gathered links,
// ignoring the trailing stop window.
func (c *Crawler) stopReached(links []domain.DiscoveredLink, known string) bool {
	if known == "" {
		return false
	}
	cut := len(links) - c.stopWindow
	if cut <= 0 {
		return false
	}
	for _, l := range links[:cut] {
		if l.SourceURL == known {
			return true
		}
	}
	return false
}

// fetchRange fetches pages [from, to] concurrently, spacing launches with the
// throttle limiter, and returns their links in page order. A page with zero
// entries ends pagination: later pages in the range are dropped and exhausted
// is reported.
func (c *Crawler) fetchRange(ctx context.Context, from, to int) ([]domain.DiscoveredLink, bool, error) {
	count := to - from + 1
	results := make([]listingPage, count)
	errs := make([]error, count)

	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			wg.Wait()
			return nil, false, err
		}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.fetchPage(ctx, from+i)
		}(i)
	}
	wg.Wait()

	var links []domain.DiscoveredLink
	for i := 0; i < count; i++ {
		if errs[i] != nil {
			return nil, false, errs[i]
		}
		if len(results[i].links) == 0 {
			return links, true, nil
		}
		links = append(links, results[i].links...)
	}
	return links, false, nil
}

func (c *Crawler) fetchPage(ctx context.Context, page int) (listingPage, error) {
	url := fmt.Sprintf(c.pageURL, page)
	resp, err := c.client.Get(ctx, url, nil)
	if err != nil {
		return listingPage{}, fmt.Errorf("fetch listing page %d: %w", page, err)
	}
	if resp.StatusCode() != 200 {
		return listingPage{}, fmt.Errorf("listing page %d returned status %d", page, resp.StatusCode())
	}
	parsed, err := parseListing(resp.Body(), c.log)
	if err != nil {
		return listingPage{}, fmt.Errorf("parse listing page %d: %w", page, err)
	}
	return parsed, nil
}

// finalize cuts the gathered list at the known URL so only strictly newer
// links remain, then reverses into oldest-first order.
func finalize(links []domain.DiscoveredLink, known string) []domain.DiscoveredLink {
	if known != "" {
		for i, l := range links {
			if l.SourceURL == known {
				links = links[:i]
				break
			}
		}
	}
	out := make([]domain.DiscoveredLink, 0, len(links))
	for i := len(links) - 1; i >= 0; i-- {
		out = append(out, links[i])
	}
	return out
}
