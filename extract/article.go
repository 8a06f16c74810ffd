package extract

import (
	"log/slog"
	nurl "net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// minContentLength is the minimum extracted text length (in characters) for
// readability output to be trusted. Shorter output falls back to PlainText.
const minContentLength = 50

// Article is the main content of a page.
type Article struct {
	Title       string
	Byline      string
	Excerpt     string
	SiteName    string
	Language    string
	PublishedAt time.Time
	// HTML is the cleaned main-content markup.
	HTML string
	// Text is whitespace-collapsed plain text of HTML.
	Text string
	// Readable is false when readability failed and Text came from the
	// whole document.
	Readable bool
}

// ExtractArticle runs Mozilla Readability on markup. It never fails: when
// readability errors or finds too little content, the whole document's
// plain text is returned with Readable=false.
func ExtractArticle(markup, sourceURL string) Article {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Warn("readability: invalid source URL, falling back to plain text",
			"url", sourceURL, "error", err,
		)
		return fallbackArticle(markup)
	}

	article, err := readability.FromReader(strings.NewReader(markup), parsedURL)
	if err != nil {
		slog.Warn("readability: extraction failed, falling back to plain text",
			"url", sourceURL, "error", err,
		)
		return fallbackArticle(markup)
	}

	text := Collapse(article.TextContent)
	if len(text) < minContentLength {
		slog.Debug("readability: extracted content too short, falling back to plain text",
			"url", sourceURL, "length", len(text),
		)
		fb := fallbackArticle(markup)
		fb.Title = firstNonEmpty(article.Title, fb.Title)
		return fb
	}

	out := Article{
		Title:    firstNonEmpty(Collapse(article.Title), Title(markup)),
		Byline:   Collapse(article.Byline),
		Excerpt:  Collapse(article.Excerpt),
		SiteName: article.SiteName,
		Language: article.Language,
		HTML:     article.Content,
		Text:     text,
		Readable: true,
	}
	if article.PublishedTime != nil {
		out.PublishedAt = article.PublishedTime.UTC()
	}
	return out
}

func fallbackArticle(markup string) Article {
	return Article{
		Title: Title(markup),
		HTML:  markup,
		Text:  PlainText(markup),
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
