// Command finpulse-mcp exposes the FinPulse API as MCP tools over stdio.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/finpulse/models"
)

// runJob mirrors handler.RunJob without pulling the server packages in.
type runJob struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error"`
	Report *struct {
		RunID         string `json:"run_id"`
		Items         int    `json:"items"`
		Duplicates    int    `json:"duplicates"`
		SourcesFailed int    `json:"sources_failed"`
		Sources       []struct {
			Name       string `json:"name"`
			Duplicates int    `json:"duplicates"`
			Error      string `json:"error"`
			Stats      struct {
				ItemsProduced  int `json:"items_produced"`
				RequestsFailed int `json:"requests_failed"`
			} `json:"stats"`
		} `json:"sources"`
	} `json:"report"`
}

// client talks to a running FinPulse API.
type client struct {
	http   *http.Client
	apiURL string
	apiKey string
}

func main() {
	apiURL := os.Getenv("FINPULSE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	c := &client{
		http:   &http.Client{Timeout: 120 * time.Second},
		apiURL: strings.TrimRight(apiURL, "/"),
		// optional: the API may run without auth
		apiKey: os.Getenv("FINPULSE_API_KEY"),
	}

	s := server.NewMCPServer(
		"finpulse",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	s.AddTool(mcp.NewTool("analyze_sentiment",
		mcp.WithDescription("Score the sentiment of financial text. Returns a compound score in [-1, 1], positive/negative/neutral shares and a label."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The text to analyze"),
		),
		mcp.WithString("model",
			mcp.Description("Sentiment model name, e.g. 'vader' (default) or 'textblob'"),
		),
		mcp.WithBoolean("all",
			mcp.Description("Score with every registered model"),
		),
	), c.handleSentiment)

	s.AddTool(mcp.NewTool("detect_tickers",
		mcp.WithDescription("Find stock ticker symbols ($AAPL, NASDAQ:MSFT, 'TSLA stock') in text and count their mentions."),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The text to scan"),
		),
	), c.handleTickers)

	s.AddTool(mcp.NewTool("extract_text",
		mcp.WithDescription("Fetch a web page and return its main text with detected tickers, optionally scored for sentiment."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the page"),
		),
		mcp.WithString("output_format",
			mcp.Description("Output format: 'text' (default), 'markdown' or 'html'"),
			mcp.Enum("text", "markdown", "html"),
		),
		mcp.WithString("extract_mode",
			mcp.Description("'readability' (default, main article only) or 'raw' (whole page)"),
			mcp.Enum("readability", "raw"),
		),
		mcp.WithBoolean("score",
			mcp.Description("Add a sentiment score for the extracted text"),
		),
	), c.handleExtract)

	s.AddTool(mcp.NewTool("run_sources",
		mcp.WithDescription("Run the configured ingestion sources once and wait for the run report."),
		mcp.WithString("source",
			mcp.Description("Run only this configured source; empty runs all"),
		),
	), c.handleRun)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// do sends a request to the API and decodes a successful body into out.
// Non-2xx responses are turned into errors carrying the API error code.
func (c *client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var apiErr models.ErrorResponse
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != nil {
			return fmt.Errorf("[%s] %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("API returned %d", resp.StatusCode)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *client) handleSentiment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text is required"), nil
	}
	payload := models.SentimentRequest{
		Text:  text,
		Model: request.GetString("model", ""),
		All:   request.GetBool("all", false),
	}

	var resp models.SentimentResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/sentiment", payload, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	for _, r := range resp.Results {
		fmt.Fprintf(&sb, "%s: %s (compound %.3f, pos %.2f / neg %.2f / neu %.2f, confidence %.2f)\n",
			r.Model, r.Label, r.Compound, r.Positive, r.Negative, r.Neutral, r.Confidence)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *client) handleTickers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text is required"), nil
	}

	var resp models.TickerResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/tickers", models.TickerRequest{Text: text}, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(resp.Tickers) == 0 {
		return mcp.NewToolResultText("No tickers found."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d tickers:\n", len(resp.Tickers))
	for _, t := range resp.Tickers {
		fmt.Fprintf(&sb, "%s (%d)\n", t, resp.Mentions[t])
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *client) handleExtract(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url is required"), nil
	}
	payload := models.ExtractRequest{
		URL:          url,
		OutputFormat: request.GetString("output_format", ""),
		ExtractMode:  request.GetString("extract_mode", ""),
		Score:        request.GetBool("score", false),
	}

	var resp models.ExtractResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/extract", payload, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Title: %s\nSource: %s\n", resp.Title, firstNonEmpty(resp.FinalURL, resp.URL))
	if len(resp.Tickers) > 0 {
		fmt.Fprintf(&sb, "Tickers: %s\n", strings.Join(resp.Tickers, ", "))
	}
	for _, r := range resp.Sentiment {
		fmt.Fprintf(&sb, "Sentiment (%s): %s, compound %.3f\n", r.Model, r.Label, r.Compound)
	}
	sb.WriteString("\n")
	sb.WriteString(resp.Content)
	fmt.Fprintf(&sb, "\n\n---\nWords: %d (%.1f min read)", resp.WordCount, resp.ReadingTimeMinutes)
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *client) handleRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	payload := models.RunRequest{Source: request.GetString("source", "")}

	var job runJob
	if err := c.do(ctx, http.MethodPost, "/api/v1/runs", payload, &job); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	done, err := c.pollRun(ctx, job.ID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("polling run failed: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Run %s: %s\n", done.ID, done.Status)
	if done.Error != "" {
		fmt.Fprintf(&sb, "Error: %s\n", done.Error)
	}
	if r := done.Report; r != nil {
		fmt.Fprintf(&sb, "Items: %d, duplicates: %d, failed sources: %d\n\n", r.Items, r.Duplicates, r.SourcesFailed)
		for _, src := range r.Sources {
			if src.Error != "" {
				fmt.Fprintf(&sb, "--- %s: FAILED: %s ---\n", src.Name, src.Error)
				continue
			}
			fmt.Fprintf(&sb, "--- %s: %d items, %d failed requests ---\n", src.Name, src.Stats.ItemsProduced, src.Stats.RequestsFailed)
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// pollRun polls the run until it leaves the running state or ctx ends.
func (c *client) pollRun(ctx context.Context, id string) (*runJob, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
		var job runJob
		if err := c.do(ctx, http.MethodGet, "/api/v1/runs/"+id, nil, &job); err != nil {
			return nil, err
		}
		if job.Status != "running" {
			return &job, nil
		}
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
