package source

import (
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/finpulse/extract"
	"github.com/use-agent/finpulse/fingerprint"
	"github.com/use-agent/finpulse/models"
	"github.com/use-agent/finpulse/ticker"
)

// draft is the source-specific part of an item; newItem derives the rest.
type draft struct {
	URL         string
	Title       string
	Author      string
	Content     string
	PublishedAt time.Time
	Metadata    map[string]string
}

// newItem fills the derived fields of a ScrapedItem. Tickers are detected
// over title and content together.
func newItem(source string, d draft, now time.Time) models.ScrapedItem {
	content := extract.Collapse(d.Content)
	title := extract.Collapse(d.Title)
	text := strings.TrimSpace(title + " " + content)

	meta := d.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	mentions := 0
	for _, n := range ticker.Mentions(text) {
		mentions += n
	}
	meta[models.MetaMentionCount] = strconv.Itoa(mentions)

	return models.ScrapedItem{
		Source:             source,
		URL:                d.URL,
		Title:              title,
		Author:             d.Author,
		Content:            content,
		Tickers:            ticker.Detect(text),
		PublishedAt:        d.PublishedAt,
		ExtractedAt:        now,
		WordCount:          len(strings.Fields(content)),
		ReadingTimeMinutes: models.ReadingTime(content),
		Fingerprint:        fingerprint.Of(content),
		Metadata:           meta,
	}
}
