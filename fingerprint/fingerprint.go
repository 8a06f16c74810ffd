// Package fingerprint computes SimHash fingerprints of item content so
// near-duplicate articles (syndicated wire stories, reposts) can be spotted.
package fingerprint

import (
	"hash/fnv"
	"math/bits"
	"strings"
	"sync"
	"unicode"
)

// DefaultThreshold is the Hamming distance at or below which two
// fingerprints are considered near-duplicates.
const DefaultThreshold = 3

// Of computes a 64-bit SimHash of text. Words are case-folded and stripped
// of surrounding punctuation; adjacent word pairs are hashed alongside
// single words so word order contributes. Empty text fingerprints to 0.
func Of(text string) uint64 {
	words := normalize(text)
	if len(words) == 0 {
		return 0
	}

	var vector [64]int
	add := func(feature string) {
		h := fnv.New64a()
		h.Write([]byte(feature))
		hash := h.Sum64()
		for i := 0; i < 64; i++ {
			if hash&(1<<uint(i)) != 0 {
				vector[i]++
			} else {
				vector[i]--
			}
		}
	}

	for i, w := range words {
		add(w)
		if i > 0 {
			add(words[i-1] + " " + w)
		}
	}

	var fp uint64
	for i := 0; i < 64; i++ {
		if vector[i] > 0 {
			fp |= 1 << uint(i)
		}
	}
	return fp
}

func normalize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool { return unicode.IsPunct(r) || unicode.IsSymbol(r) })
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether a and b are within threshold bits of each other.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}

// Index remembers fingerprints seen during a run. It is a linear scan,
// which is fine for the few thousand items a run produces.
type Index struct {
	threshold int

	mu   sync.Mutex
	seen []uint64
}

// NewIndex returns an empty index. threshold <= 0 uses DefaultThreshold.
func NewIndex(threshold int) *Index {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Index{threshold: threshold}
}

// Seen reports whether fp is a near-duplicate of an indexed fingerprint and
// adds it when it is not. A zero fingerprint is never a duplicate.
func (x *Index) Seen(fp uint64) bool {
	if fp == 0 {
		return false
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, s := range x.seen {
		if Similar(s, fp, x.threshold) {
			return true
		}
	}
	x.seen = append(x.seen, fp)
	return false
}

// Len returns the number of distinct fingerprints indexed.
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()
	return len(x.seen)
}
