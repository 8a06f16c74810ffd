// Package ticker finds stock ticker symbols in free text.
//
// Detection is a heuristic: it favors precision on explicit forms ($AAPL,
// NASDAQ:MSFT, "TSLA stock") and does not try to find every mention.
package ticker

import (
	"regexp"
	"sort"
	"strings"
)

// MaxLen is the longest symbol the detector reports.
const MaxLen = 5

var (
	// dollarTag matches cashtags such as $AAPL.
	dollarTag = regexp.MustCompile(`\$([A-Z]{1,5})`)
	// stockSuffix matches a bare token followed by the word STOCK.
	stockSuffix = regexp.MustCompile(`\b([A-Z]{1,5})\s+STOCK`)
	// exchangePrefix matches NASDAQ:MSFT and NYSE:IBM.
	exchangePrefix = regexp.MustCompile(`\b(?:NASDAQ|NYSE):([A-Z]{1,5})`)

	patterns = []*regexp.Regexp{dollarTag, stockSuffix, exchangePrefix}
)

// stopWords are common English words that look like symbols once upper-cased.
var stopWords = map[string]struct{}{
	"THE": {}, "AND": {}, "FOR": {}, "ARE": {}, "BUT": {}, "NOT": {}, "YOU": {},
	"ALL": {}, "CAN": {}, "HER": {}, "WAS": {}, "ONE": {}, "OUR": {}, "OUT": {},
	"DAY": {}, "GET": {}, "HAS": {}, "HIM": {}, "HIS": {}, "HOW": {}, "ITS": {},
	"MAY": {}, "NEW": {}, "NOW": {}, "OLD": {}, "SEE": {}, "TWO": {}, "WHO": {},
	"BOY": {}, "DID": {}, "LET": {}, "PUT": {}, "SAY": {}, "SHE": {}, "TOO": {},
	"USE": {},
}

// IsStopWord reports whether sym is on the stop-list.
func IsStopWord(sym string) bool {
	_, ok := stopWords[strings.ToUpper(sym)]
	return ok
}

// Detect returns the sorted, deduplicated ticker symbols mentioned in text.
// The result is never nil.
func Detect(text string) []string {
	counts := Mentions(text)
	out := make([]string, 0, len(counts))
	for sym := range counts {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Mentions counts how often each symbol is mentioned across all patterns.
// A cashtag that is also followed by "stock" counts once per pattern match.
func Mentions(text string) map[string]int {
	counts := make(map[string]int)
	if text == "" {
		return counts
	}
	upper := strings.ToUpper(text)
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(upper, -1) {
			sym := m[1]
			if !valid(sym) {
				continue
			}
			counts[sym]++
		}
	}
	return counts
}

func valid(sym string) bool {
	if len(sym) == 0 || len(sym) > MaxLen {
		return false
	}
	_, stop := stopWords[sym]
	return !stop
}
