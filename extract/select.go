package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Select returns the concatenated outer HTML of every element matching the
// CSS selector. When nothing matches, markup is returned unchanged so callers
// still have something to extract from.
func Select(markup, selector string) (string, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return "", err
	}

	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return "", err
	}

	matches := cascadia.QueryAll(doc, sel)
	if len(matches) == 0 {
		return markup, nil
	}

	var buf bytes.Buffer
	for _, node := range matches {
		if err := html.Render(&buf, node); err != nil {
			return "", err
		}
	}
	return buf.String(), nil
}

// Filter removes elements matching any exclude selector, then keeps only
// elements matching the include selectors. Empty slices leave markup as is.
func Filter(markup string, include, exclude []string) string {
	if len(include) == 0 && len(exclude) == 0 {
		return markup
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return markup
	}

	for _, selector := range exclude {
		doc.Find(selector).Remove()
	}

	if len(include) > 0 {
		matches := doc.Find(strings.Join(include, ", "))
		if matches.Length() > 0 {
			var buf strings.Builder
			matches.Each(func(_ int, s *goquery.Selection) {
				if h, err := goquery.OuterHtml(s); err == nil {
					buf.WriteString(h)
				}
			})
			return buf.String()
		}
	}

	out, err := doc.Html()
	if err != nil {
		return markup
	}
	return out
}
