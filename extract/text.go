// Package extract turns fetched markup into text the rest of the pipeline
// can score: plain text, titles, readability articles, CSS selections,
// markdown and links.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// boilerplate elements never contribute article text.
const boilerplate = "script, style, nav, footer, aside"

// PlainText strips markup and boilerplate elements and collapses whitespace.
// Input that is not HTML is treated as a text node. PlainText never fails.
func PlainText(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return Collapse(markup)
	}
	return plainTextOf(doc.Selection)
}

func plainTextOf(sel *goquery.Selection) string {
	sel.Find(boilerplate).Remove()
	return Collapse(sel.Text())
}

// Collapse normalizes whitespace: each line is trimmed, lines are split on
// runs of two spaces, and the non-empty fragments are joined with single
// spaces. Collapse(Collapse(s)) == Collapse(s).
func Collapse(text string) string {
	var b strings.Builder
	for _, line := range splitLines(text) {
		for _, phrase := range strings.Split(strings.TrimSpace(line), "  ") {
			phrase = strings.TrimSpace(phrase)
			if phrase == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(phrase)
		}
	}
	return b.String()
}

// splitLines splits on every Unicode line boundary, not just '\n'.
func splitLines(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		switch r {
		case '\n', '\r', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
			return true
		}
		return false
	})
}
