package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/finpulse/source"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "finpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(PathEnv, "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.Fetch.Delay)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "vader", cfg.Sentiment.DefaultModel)
	assert.Equal(t, "polarity", cfg.Sentiment.Models["textblob"])
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Run.Dedup)
	assert.Empty(t, cfg.Sources)
}

const fileBody = `
fetch:
  delay: 2s
  max_retries: 5
log:
  level: debug
sentiment:
  score: [vader, textblob]
run:
  interval: 15m
sources:
  - name: wsb
    kind: reddit
    subreddits: [wallstreetbets, stocks]
    sort: new
    max_items: 50
  - name: headlines
    kind: newsapi
    query: earnings
  - name: wire
    kind: listing
    urls: ["https://news.example/markets"]
    link_pattern: "/markets/"
    delay: 3s
`

func TestLoad_FileOverlay(t *testing.T) {
	t.Setenv(PathEnv, writeFile(t, fileBody))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Fetch.Delay)
	assert.Equal(t, 5, cfg.Fetch.MaxRetries)
	// untouched keys keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 15*time.Minute, cfg.Run.Interval)
	assert.Equal(t, []string{"vader", "textblob"}, cfg.Sentiment.Score)

	require.Len(t, cfg.Sources, 3)
	assert.Equal(t, source.KindReddit, cfg.Sources[0].Kind)
	assert.Equal(t, []string{"wallstreetbets", "stocks"}, cfg.Sources[0].Subreddits)
	assert.Equal(t, 50, cfg.Sources[0].MaxItems)
	assert.Equal(t, 3*time.Second, cfg.Sources[2].Delay)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv(PathEnv, writeFile(t, fileBody))
	t.Setenv("FINPULSE_REQUEST_DELAY", "0.5")
	t.Setenv("FINPULSE_MAX_RETRIES", "1")
	t.Setenv("FINPULSE_LOG_LEVEL", "warn")
	t.Setenv("FINPULSE_NEWSAPI_KEY", "secret")
	t.Setenv("FINPULSE_MODELS", "vader=lexicon, pattern=polarity, broken")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, cfg.Fetch.Delay)
	assert.Equal(t, 1, cfg.Fetch.MaxRetries)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "secret", cfg.Sources[1].APIKey)
	assert.Empty(t, cfg.Sources[0].APIKey)
	assert.Equal(t, map[string]string{"vader": "lexicon", "pattern": "polarity"}, cfg.Sentiment.Models)
}

func TestLoad_InvalidEnvKeepsValue(t *testing.T) {
	t.Setenv(PathEnv, "")
	t.Setenv("FINPULSE_MAX_RETRIES", "many")
	t.Setenv("FINPULSE_REQUEST_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Fetch.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Fetch.Timeout)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv(PathEnv, filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("bad yaml", func(t *testing.T) {
		t.Setenv(PathEnv, writeFile(t, "fetch: [unclosed"))
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("unknown default model", func(t *testing.T) {
		t.Setenv(PathEnv, "")
		t.Setenv("FINPULSE_DEFAULT_MODEL", "finbert")
		_, err := Load()
		assert.ErrorContains(t, err, "finbert")
	})
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	cfg.Fetch.MaxRetries = -1
	cfg.Log.Format = "xml"
	cfg.Auth.Enabled = true
	cfg.Fetch.Escalate = true
	cfg.Sources = []source.Config{{Name: "a"}, {Name: "a"}, {}}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"server.port", "max_retries", "log.format", "escalate", "api key", "duplicate", "name is required"} {
		assert.ErrorContains(t, err, want)
	}
}
