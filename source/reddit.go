package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/finpulse/fetch"
	"github.com/use-agent/finpulse/models"
)

const (
	defaultRedditBase = "https://www.reddit.com"
	defaultRedditSort = "hot"
	redditPageLimit   = 100
)

// Reddit post types.
const (
	PostText  = "text"
	PostLink  = "link"
	PostImage = "image"
	PostVideo = "video"
)

// positionPattern flags posts that talk about holding or trading positions.
var positionPattern = regexp.MustCompile(`(?i)\b(calls?|puts?|shares|positions?|bought|sold|holding|yolo|\d+c|\d+p)\b`)

var redditSorts = map[string]bool{"hot": true, "new": true, "top": true, "rising": true}

// Reddit reads posts from subreddit listing JSON.
type Reddit struct {
	cfg  Config
	deps Deps
	base string
}

// NewReddit validates cfg and returns a Reddit source.
func NewReddit(cfg Config, deps Deps) (Source, error) {
	if len(cfg.Subreddits) == 0 {
		return nil, fmt.Errorf("source %s: reddit needs at least one subreddit", cfg.Name)
	}
	if cfg.Sort == "" {
		cfg.Sort = defaultRedditSort
	}
	if !redditSorts[cfg.Sort] {
		return nil, fmt.Errorf("source %s: unsupported sort %q", cfg.Name, cfg.Sort)
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultRedditBase
	}
	return &Reddit{cfg: cfg, deps: deps, base: strings.TrimRight(base, "/")}, nil
}

func (r *Reddit) Name() string { return r.cfg.Name }

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Score       int     `json:"score"`
	UpvoteRatio float64 `json:"upvote_ratio"`
	NumComments int     `json:"num_comments"`
	Flair       string  `json:"link_flair_text"`
	CreatedUTC  float64 `json:"created_utc"`
	Permalink   string  `json:"permalink"`
	URL         string  `json:"url"`
	IsSelf      bool    `json:"is_self"`
	IsVideo     bool    `json:"is_video"`
	PostHint    string  `json:"post_hint"`
	Stickied    bool    `json:"stickied"`
}

func (p redditPost) postType() string {
	switch {
	case p.IsSelf:
		return PostText
	case p.IsVideo || strings.HasSuffix(p.PostHint, "video"):
		return PostVideo
	case p.PostHint == "image":
		return PostImage
	default:
		return PostLink
	}
}

func (r *Reddit) Scrape(ctx context.Context, f *fetch.Fetcher, emit Emit) error {
	limit := redditPageLimit
	if r.cfg.MaxItems > 0 && r.cfg.MaxItems < limit {
		limit = r.cfg.MaxItems
	}

	emitted, ok := 0, 0
	for _, sub := range r.cfg.Subreddits {
		if ctx.Err() != nil || limitReached(emitted, r.cfg.MaxItems) {
			break
		}
		posts, err := r.listing(ctx, f, sub, limit)
		if err != nil {
			r.deps.Logger.Warn("skipping subreddit", "subreddit", sub, "error", err)
			continue
		}
		ok++
		for _, p := range posts {
			if limitReached(emitted, r.cfg.MaxItems) {
				break
			}
			if p.Stickied {
				continue
			}
			if err := emit(r.item(p)); err != nil {
				return err
			}
			emitted++
		}
	}
	if ok == 0 && ctx.Err() == nil {
		return fmt.Errorf("source %s: %w", r.cfg.Name, ErrNoItems)
	}
	return ctx.Err()
}

func (r *Reddit) listing(ctx context.Context, f *fetch.Fetcher, sub string, limit int) ([]redditPost, error) {
	res := f.Fetch(ctx, &fetch.Request{
		URL:     fmt.Sprintf("%s/r/%s/%s.json", r.base, url.PathEscape(sub), r.cfg.Sort),
		Query:   url.Values{"limit": {strconv.Itoa(limit)}, "raw_json": {"1"}},
		Headers: map[string]string{"Accept": "application/json"},
	})
	if !res.OK {
		return nil, fmt.Errorf("%s", res.Reason)
	}
	var listing redditListing
	if err := json.Unmarshal(res.Body, &listing); err != nil {
		return nil, fmt.Errorf("decode listing: %w", err)
	}
	posts := make([]redditPost, 0, len(listing.Data.Children))
	for _, c := range listing.Data.Children {
		posts = append(posts, c.Data)
	}
	return posts, nil
}

func (r *Reddit) item(p redditPost) models.ScrapedItem {
	meta := map[string]string{
		models.MetaPostID:            p.ID,
		models.MetaSubreddit:         p.Subreddit,
		models.MetaScore:             strconv.Itoa(p.Score),
		models.MetaNumComments:       strconv.Itoa(p.NumComments),
		models.MetaPostType:          p.postType(),
		models.MetaContainsPositions: strconv.FormatBool(positionPattern.MatchString(p.Title + " " + p.Selftext)),
	}
	if p.Flair != "" {
		meta[models.MetaFlair] = p.Flair
	}

	link := p.URL
	if p.Permalink != "" {
		link = r.base + p.Permalink
	}
	var published time.Time
	if p.CreatedUTC > 0 {
		published = time.Unix(int64(p.CreatedUTC), 0).UTC()
	}
	return newItem(r.cfg.Name, draft{
		URL:         link,
		Title:       p.Title,
		Author:      p.Author,
		Content:     p.Selftext,
		PublishedAt: published,
		Metadata:    meta,
	}, r.deps.Clock.Now())
}
