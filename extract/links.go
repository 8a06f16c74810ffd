package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Link is an absolute http(s) link found in a document.
type Link struct {
	Href     string `json:"href"`
	Text     string `json:"text"`
	Internal bool   `json:"internal"`
}

// Links returns the deduplicated http(s) links inside elements matching
// scope (the whole document when scope is empty), resolved against base.
func Links(markup, base, scope string) []Link {
	links := []Link{}

	baseURL, err := url.Parse(base)
	if err != nil {
		return links
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return links
	}

	root := doc.Selection
	if scope != "" {
		root = doc.Find(scope)
	}

	seen := make(map[string]struct{})
	root.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" {
			return
		}
		resolved, err := baseURL.Parse(href)
		if err != nil {
			return
		}
		// skips javascript:, mailto:, tel: and the like
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		resolved.Fragment = ""
		abs := resolved.String()
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}

		links = append(links, Link{
			Href:     abs,
			Text:     Collapse(s.Text()),
			Internal: strings.EqualFold(resolved.Host, baseURL.Host),
		})
	})

	return links
}
