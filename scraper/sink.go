package scraper

import (
	"context"
	"log/slog"
	"sync"

	"github.com/use-agent/finpulse/models"
)

// Sink receives every item a run produces. It is the hand-off point to the
// persistence side, which owns identity and deduplication by URL or post id.
// Put may be called from several goroutines at once.
type Sink interface {
	Put(ctx context.Context, item models.ScoredItem) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, item models.ScoredItem) error

func (f SinkFunc) Put(ctx context.Context, item models.ScoredItem) error { return f(ctx, item) }

// LogSink logs one line per item.
type LogSink struct {
	Logger *slog.Logger
}

func (s LogSink) Put(_ context.Context, item models.ScoredItem) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"source", item.Item.Source,
		"url", item.Item.URL,
		"title", item.Item.Title,
		"tickers", item.Item.Tickers,
		"words", item.Item.WordCount,
	}
	for _, r := range item.Sentiment {
		attrs = append(attrs, r.Model, string(r.Label))
	}
	logger.Info("item", attrs...)
	return nil
}

// MemorySink keeps every item in memory.
type MemorySink struct {
	mu    sync.Mutex
	items []models.ScoredItem
}

func (s *MemorySink) Put(_ context.Context, item models.ScoredItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, item)
	return nil
}

// Items returns a copy of the collected items in arrival order.
func (s *MemorySink) Items() []models.ScoredItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ScoredItem, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of collected items.
func (s *MemorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
