package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/finpulse/cache"
	"github.com/use-agent/finpulse/extract"
	"github.com/use-agent/finpulse/fetch"
	"github.com/use-agent/finpulse/models"
	"github.com/use-agent/finpulse/ticker"
)

var errSource = errors.New("exactly one of url and html is required")

// Extract returns a handler for POST /api/v1/extract.
//
// Flow:
//  1. Parse and validate the ExtractRequest, apply defaults.
//  2. Fetch the URL (cached and collapsed per URL) or take the inline HTML.
//  3. Narrow by selector, extract with readability or raw text.
//  4. Detect tickers, optionally score, assemble the response.
func Extract(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		clock := d.clock()
		start := clock.Now()

		var req models.ExtractRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err)
			return
		}
		if (req.URL == "") == (req.HTML == "") {
			invalidInput(c, errSource)
			return
		}
		req.Defaults()

		resp := models.ExtractResponse{Success: true, URL: req.URL, Format: req.OutputFormat}
		markup, base := req.HTML, req.URL

		if req.URL != "" {
			fetchStart := clock.Now()
			res, status := d.fetchPage(c.Request.Context(), req.URL, req.Render, time.Duration(req.MaxAge)*time.Second)
			resp.Timing.FetchMs = clock.Since(fetchStart).Milliseconds()
			resp.CacheStatus = status
			resp.StatusCode = res.StatusCode
			if !res.OK {
				respondError(c, models.NewPipelineError(models.ErrCodeFetchFailed, res.Reason, nil))
				return
			}
			resp.FinalURL = res.FinalURL
			if res.FinalURL != "" {
				base = res.FinalURL
			}
			markup = res.Text()
		}

		extractStart := clock.Now()
		page := markup
		if req.Selector != "" {
			selected, err := extract.Select(markup, req.Selector)
			if err != nil {
				invalidInput(c, err)
				return
			}
			markup = selected
		}

		var body, text string
		switch req.ExtractMode {
		case "raw":
			resp.Title = extract.Title(page)
			body, text = markup, extract.PlainText(markup)
		default:
			art := extract.ExtractArticle(markup, base)
			resp.Title, resp.Byline, resp.SiteName = art.Title, art.Byline, art.SiteName
			body, text = art.HTML, art.Text
		}

		switch req.OutputFormat {
		case "markdown":
			md, err := extract.Markdown(body, base)
			if err != nil {
				respondError(c, err)
				return
			}
			resp.Content = md
		case "html":
			resp.Content = body
		default:
			resp.Content = text
		}
		resp.Timing.ExtractMs = clock.Since(extractStart).Milliseconds()

		resp.WordCount = len(strings.Fields(text))
		resp.ReadingTimeMinutes = models.ReadingTime(text)
		resp.Tickers = ticker.Detect(resp.Title + "\n" + text)

		if req.Score {
			res, err := d.Scorer.Analyze(strings.TrimSpace(resp.Title+". "+text), req.Model)
			if err != nil {
				respondError(c, err)
				return
			}
			resp.Sentiment = []models.SentimentResult{res}
		}

		resp.Timing.TotalMs = clock.Since(start).Milliseconds()
		c.JSON(http.StatusOK, resp)
	}
}

// fetchPage returns the page for url and its cache status. Concurrent
// requests for the same page share one fetch. A zero maxAge bypasses the
// cache.
func (d *Deps) fetchPage(ctx context.Context, url string, render bool, maxAge time.Duration) (*fetch.Result, string) {
	key := cache.Key("page", url, strconv.FormatBool(render))
	status := "bypass"
	if d.Pages != nil && maxAge > 0 {
		if res, ok := d.Pages.GetWithin(key, maxAge); ok {
			return res, "hit"
		}
		status = "miss"
	}

	v, _, _ := d.group.Do(key, func() (any, error) {
		res := d.Fetchers.Fetch(ctx, &fetch.Request{URL: url, Render: render})
		if res.OK && d.Pages != nil {
			d.Pages.Set(key, res)
		}
		return res, nil
	})
	return v.(*fetch.Result), status
}
