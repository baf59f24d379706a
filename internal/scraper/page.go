package scraper

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Structural selectors of the article detail page.
const (
	selectorTitle     = "h1"
	selectorBody      = "div.entry-content"
	selectorTimestamp = "time.entry-date"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

type articlePage struct {
	title  string
	body   string
	origin *time.Time
}

// parseArticle extracts the title, body, and optional publish timestamp from
// a detail page. Missing title or body structure is a fatal parse error;
// a missing timestamp only means the page carries no reliable publish time.
func parseArticle(raw []byte) (articlePage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return articlePage{}, fmt.Errorf("parse html: %w", err)
	}

	title := doc.Find(selectorTitle).First()
	if title.Length() == 0 {
		return articlePage{}, fmt.Errorf("title element not found")
	}
	body := doc.Find(selectorBody).First()
	if body.Length() == 0 {
		return articlePage{}, fmt.Errorf("content element not found")
	}

	page := articlePage{
		title: strings.TrimSpace(title.Text()),
		body:  strings.TrimSpace(strings.ReplaceAll(body.Text(), "\n", "\n\n")),
	}

	if attr, ok := doc.Find(selectorTimestamp).First().Attr("datetime"); ok {
		ts, err := parseTimestamp(strings.TrimSpace(attr))
		if err != nil {
			return articlePage{}, err
		}
		page.origin = &ts
	}

	return page, nil
}

func parseTimestamp(value string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("publish timestamp %q not recognized", value)
}
