package models

import (
	"math"
	"strings"
	"time"
)

// wordsPerMinute is the reading speed used for ReadingTimeMinutes.
const wordsPerMinute = 200

// Metadata keys written by the bundled sources. Values are opaque to the
// pipeline; the persistence side decides what to keep.
const (
	MetaPostID            = "post_id"
	MetaSubreddit         = "subreddit"
	MetaScore             = "score"
	MetaNumComments       = "num_comments"
	MetaFlair             = "flair"
	MetaPostType          = "post_type"
	MetaContainsPositions = "contains_positions"
	MetaMentionCount      = "mention_count"
	MetaSiteName          = "site_name"
	MetaExcerpt           = "excerpt"
)

// ScrapedItem is one successfully fetched and parsed unit of content.
// It is built once by a source and not modified afterwards.
type ScrapedItem struct {
	// Source is the identifier of the source that produced the item.
	Source string `json:"source"`

	// URL is the canonical location of the item; the persistence side
	// deduplicates on it (or on MetaPostID when present).
	URL string `json:"url"`

	Title   string `json:"title"`
	Author  string `json:"author,omitempty"`
	Content string `json:"content"`

	// Tickers is sorted, upper-case, and free of stop-list words.
	Tickers []string `json:"tickers"`

	PublishedAt time.Time `json:"published_at,omitempty"`
	ExtractedAt time.Time `json:"extracted_at"`

	WordCount          int     `json:"word_count"`
	ReadingTimeMinutes float64 `json:"reading_time_minutes"`

	// Fingerprint is a SimHash of Content for near-duplicate detection.
	Fingerprint uint64 `json:"fingerprint"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// ReadingTime returns the estimated reading time in minutes for text,
// rounded to one decimal place.
func ReadingTime(text string) float64 {
	words := len(strings.Fields(text))
	return math.Round(float64(words)/wordsPerMinute*10) / 10
}
