package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/finpulse/fetch"
	"github.com/use-agent/finpulse/models"
)

var testNow = time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC)

func testDeps() Deps {
	return Deps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:  clockwork.NewFakeClockAt(testNow),
	}
}

func testFetcher() *fetch.Fetcher {
	return fetch.New(fetch.Options{
		NoDelay:     true,
		NoRetry:     true,
		Timeout:     5 * time.Second,
		BackoffBase: time.Millisecond,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func collect(t *testing.T, s Source, f *fetch.Fetcher) ([]models.ScrapedItem, error) {
	t.Helper()
	var items []models.ScrapedItem
	err := s.Scrape(context.Background(), f, func(it models.ScrapedItem) error {
		items = append(items, it)
		return nil
	})
	return items, err
}

func articlePage(title, body string) string {
	return fmt.Sprintf(`<html><head><title>%s</title></head><body>
<nav>Home | Markets</nav>
<article><h1>%s</h1><p>%s</p></article>
<footer>Copyright</footer></body></html>`, title, title, body)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{KindListing, KindNewsAPI, KindPages, KindReddit}, r.Kinds())

	_, err := r.Build(Config{Name: "x", Kind: "rss"}, Deps{})
	assert.Error(t, err)

	_, err = r.Build(Config{Kind: KindPages, URLs: []string{"http://a"}}, Deps{})
	assert.Error(t, err, "name is required")

	s, err := r.Build(Config{Name: "wire", Kind: KindPages, URLs: []string{"http://a"}}, Deps{})
	require.NoError(t, err)
	assert.Equal(t, "wire", s.Name())
}

func TestConstructors_Validate(t *testing.T) {
	_, err := NewPages(Config{Name: "p"}, testDeps())
	assert.Error(t, err)
	_, err = NewListing(Config{Name: "l", URLs: []string{"http://a"}, LinkPattern: "("}, testDeps())
	assert.Error(t, err)
	_, err = NewReddit(Config{Name: "r"}, testDeps())
	assert.Error(t, err)
	_, err = NewReddit(Config{Name: "r", Subreddits: []string{"stocks"}, Sort: "best"}, testDeps())
	assert.Error(t, err)
	_, err = NewNewsAPI(Config{Name: "n", Query: "AAPL"}, testDeps())
	assert.Error(t, err, "api key required")
}

func TestPages_Scrape(t *testing.T) {
	body := "Apple shares rallied after strong earnings. Analysts said $AAPL and NASDAQ:MSFT both look strong into the next quarter."
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, articlePage("Apple beats", body))
	}))
	defer srv.Close()

	s, err := NewPages(Config{Name: "wire", URLs: []string{srv.URL + "/missing", srv.URL + "/a"}}, testDeps())
	require.NoError(t, err)

	items, err := collect(t, s, testFetcher())
	require.NoError(t, err)
	require.Len(t, items, 1)

	it := items[0]
	assert.Equal(t, "wire", it.Source)
	assert.Equal(t, srv.URL+"/a", it.URL)
	assert.Contains(t, it.Content, "Apple shares rallied")
	assert.Equal(t, []string{"AAPL", "MSFT"}, it.Tickers)
	assert.Equal(t, testNow, it.ExtractedAt)
	assert.NotZero(t, it.WordCount)
	assert.NotZero(t, it.Fingerprint)
	assert.Equal(t, "2", it.Metadata[models.MetaMentionCount])
}

func TestPages_ContentSelector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html><head><title>Tesla</title></head><body>
<div class="story">Tesla deliveries topped estimates.</div>
<div class="ad">Buy now</div></body></html>`)
	}))
	defer srv.Close()

	s, err := NewPages(Config{Name: "wire", URLs: []string{srv.URL}, ContentSelector: ".story"}, testDeps())
	require.NoError(t, err)

	items, err := collect(t, s, testFetcher())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Tesla", items[0].Title)
	assert.Equal(t, "Tesla deliveries topped estimates.", items[0].Content)
}

func TestPages_AllFailed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	s, err := NewPages(Config{Name: "wire", URLs: []string{srv.URL}}, testDeps())
	require.NoError(t, err)

	_, err = collect(t, s, testFetcher())
	assert.ErrorIs(t, err, ErrNoItems)
}

func TestPages_EmitErrorStops(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, articlePage("Oil", "Oil prices slipped."))
	}))
	defer srv.Close()

	s, err := NewPages(Config{Name: "wire", URLs: []string{srv.URL + "/1", srv.URL + "/2"}}, testDeps())
	require.NoError(t, err)

	stop := errors.New("stop")
	calls := 0
	err = s.Scrape(context.Background(), testFetcher(), func(models.ScrapedItem) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestListing_Scrape(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/news", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html><body>
<ul class="headlines">
  <li><a href="/story/1">One</a></li>
  <li><a href="/story/2">Two</a></li>
  <li><a href="/story/broken">Broken</a></li>
  <li><a href="/story/1#comments">Dup</a></li>
</ul>
<a href="/about">About</a>
<a href="https://elsewhere.example/story/9">External</a>
</body></html>`)
	})
	mux.HandleFunc("/story/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "broken") {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = io.WriteString(w, articlePage("Story "+r.URL.Path, "Nvidia stock climbed as $NVDA demand held up."))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s, err := NewListing(Config{
		Name:         "news",
		URLs:         []string{srv.URL + "/news"},
		LinkSelector: ".headlines",
		LinkPattern:  `/story/`,
	}, testDeps())
	require.NoError(t, err)

	items, err := collect(t, s, testFetcher())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, srv.URL+"/story/1", items[0].URL)
	assert.Equal(t, srv.URL+"/story/2", items[1].URL)
	assert.Equal(t, []string{"NVDA"}, items[0].Tickers)
}

func TestListing_MaxItems(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			_, _ = io.WriteString(w, `<a href="/a">a</a><a href="/b">b</a><a href="/c">c</a>`)
			return
		}
		_, _ = io.WriteString(w, articlePage("Item", "Markets were quiet today."))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s, err := NewListing(Config{Name: "news", URLs: []string{srv.URL + "/"}, MaxItems: 2}, testDeps())
	require.NoError(t, err)

	items, err := collect(t, s, testFetcher())
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

const redditJSON = `{"data":{"children":[
 {"data":{"id":"p1","title":"YOLO on $TSLA 300c","selftext":"Bought 10 calls before earnings","author":"degen","subreddit":"wallstreetbets","score":420,"num_comments":69,"link_flair_text":"YOLO","created_utc":1772460000,"permalink":"/r/wallstreetbets/comments/p1/yolo/","is_self":true}},
 {"data":{"id":"p0","title":"Daily thread","selftext":"","stickied":true,"is_self":true}},
 {"data":{"id":"p2","title":"Chart of SPY","author":"ta","subreddit":"wallstreetbets","score":5,"num_comments":1,"created_utc":1772460100,"permalink":"/r/wallstreetbets/comments/p2/chart/","url":"https://i.redd.it/x.png","post_hint":"image"}}
]}}`

func TestReddit_Scrape(t *testing.T) {
	var gotPath, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, redditJSON)
	}))
	defer srv.Close()

	s, err := NewReddit(Config{
		Name:       "wsb",
		Subreddits: []string{"wallstreetbets"},
		Sort:       "new",
		BaseURL:    srv.URL,
		MaxItems:   10,
	}, testDeps())
	require.NoError(t, err)

	items, err := collect(t, s, testFetcher())
	require.NoError(t, err)
	assert.Equal(t, "/r/wallstreetbets/new.json", gotPath)
	assert.Equal(t, "10", gotLimit)
	require.Len(t, items, 2, "stickied posts are skipped")

	yolo := items[0]
	assert.Equal(t, srv.URL+"/r/wallstreetbets/comments/p1/yolo/", yolo.URL)
	assert.Equal(t, []string{"TSLA"}, yolo.Tickers)
	assert.Equal(t, "p1", yolo.Metadata[models.MetaPostID])
	assert.Equal(t, "420", yolo.Metadata[models.MetaScore])
	assert.Equal(t, "69", yolo.Metadata[models.MetaNumComments])
	assert.Equal(t, "YOLO", yolo.Metadata[models.MetaFlair])
	assert.Equal(t, PostText, yolo.Metadata[models.MetaPostType])
	assert.Equal(t, "true", yolo.Metadata[models.MetaContainsPositions])
	assert.Equal(t, time.Unix(1772460000, 0).UTC(), yolo.PublishedAt)

	chart := items[1]
	assert.Equal(t, PostImage, chart.Metadata[models.MetaPostType])
	assert.Equal(t, "false", chart.Metadata[models.MetaContainsPositions])
	_, hasFlair := chart.Metadata[models.MetaFlair]
	assert.False(t, hasFlair)
}

func TestReddit_BadJSONSkipsSubreddit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "/r/broken/") {
			_, _ = io.WriteString(w, "<html>not json</html>")
			return
		}
		_, _ = io.WriteString(w, redditJSON)
	}))
	defer srv.Close()

	s, err := NewReddit(Config{Name: "wsb", Subreddits: []string{"broken", "stocks"}, BaseURL: srv.URL}, testDeps())
	require.NoError(t, err)

	items, err := collect(t, s, testFetcher())
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestNewsAPI_Scrape(t *testing.T) {
	var gotKey, gotQuery, gotSize string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotQuery = r.URL.Query().Get("q")
		gotSize = r.URL.Query().Get("pageSize")
		_, _ = io.WriteString(w, `{"status":"ok","totalResults":2,"articles":[
 {"source":{"id":"reuters","name":"Reuters"},"author":"Jane Roe","title":"Microsoft cloud growth beats forecasts","description":"Azure grew 25%.","url":"https://reuters.example/msft","publishedAt":"2026-03-01T12:00:00Z","content":"Microsoft (MSFT) said Azure revenue grew 25%."},
 {"source":{"name":"Blog"},"title":"","url":"https://blog.example/x"}
]}`)
	}))
	defer srv.Close()

	s, err := NewNewsAPI(Config{Name: "news", Query: "microsoft", APIKey: "k", BaseURL: srv.URL, MaxItems: 5}, testDeps())
	require.NoError(t, err)

	items, err := collect(t, s, testFetcher())
	require.NoError(t, err)
	assert.Equal(t, "k", gotKey)
	assert.Equal(t, "microsoft", gotQuery)
	assert.Equal(t, "5", gotSize)
	require.Len(t, items, 1)
	assert.Equal(t, "Reuters", items[0].Metadata[models.MetaSiteName])
	assert.Equal(t, "Jane Roe", items[0].Author)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), items[0].PublishedAt)
}

func TestNewsAPI_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"error","code":"apiKeyInvalid","message":"bad key"}`)
	}))
	defer srv.Close()

	s, err := NewNewsAPI(Config{Name: "news", Query: "x", APIKey: "k", BaseURL: srv.URL}, testDeps())
	require.NoError(t, err)

	_, err = collect(t, s, testFetcher())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "apiKeyInvalid")
}
