package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/use-agent/finpulse/source"
)

// PathEnv names the optional YAML file that is applied before the
// environment. Environment variables always win over the file.
const PathEnv = "FINPULSE_CONFIG"

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Fetch     FetchConfig     `yaml:"fetch"`
	Browser   BrowserConfig   `yaml:"browser"`
	Sentiment SentimentConfig `yaml:"sentiment"`
	Run       RunConfig       `yaml:"run"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Cache     CacheConfig     `yaml:"cache"`
	Log       LogConfig       `yaml:"log"`
	Webhook   WebhookConfig   `yaml:"webhook"`

	// Sources can only come from the file.
	Sources []source.Config `yaml:"sources"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"` // default: "0.0.0.0"
	Port int    `yaml:"port"` // default: 8080
	Mode string `yaml:"mode"` // "debug", "release", "test"; default: "release"
}

// FetchConfig holds the fetcher tunables shared by every source.
type FetchConfig struct {
	Delay      time.Duration `yaml:"delay"`       // default: 1s
	MaxRetries int           `yaml:"max_retries"` // default: 3
	Timeout    time.Duration `yaml:"timeout"`     // default: 30s
	UserAgent  string        `yaml:"user_agent"`

	// ChromeTLS dials HTTPS with a Chrome TLS fingerprint.
	ChromeTLS bool   `yaml:"chrome_tls"`
	Proxy     string `yaml:"proxy"`

	// Escalate retries blocked or script-only pages in the browser and
	// keeps routing that host through it for a day. Needs browser.enabled.
	Escalate bool `yaml:"escalate"`
}

// BrowserConfig controls the optional headless renderer used by sources
// with render: true.
type BrowserConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Headless  bool     `yaml:"headless"`  // default: true
	MaxPages  int      `yaml:"max_pages"` // default: 4
	NoSandbox bool     `yaml:"no_sandbox"`
	Bin       string   `yaml:"bin"`
	Block     []string `yaml:"block"` // default: Image, Stylesheet, Font, Media
	BlockAds  bool     `yaml:"block_ads"`
	Stealth   bool     `yaml:"stealth"`
}

// SentimentConfig selects the sentiment models.
type SentimentConfig struct {
	DefaultModel string `yaml:"default_model"` // default: "vader"
	// Models maps a model name to its kind ("lexicon" or "polarity").
	Models map[string]string `yaml:"models"`
	// Score lists the models a run scores every item with; empty uses the
	// default model.
	Score []string `yaml:"score"`
}

// RunConfig controls batch runs.
type RunConfig struct {
	// Interval schedules repeated runs in serve mode; zero disables them.
	Interval       time.Duration `yaml:"interval"`
	Parallelism    int           `yaml:"parallelism"`
	Dedup          bool          `yaml:"dedup"` // default: true
	DedupThreshold int           `yaml:"dedup_threshold"`
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	Enabled bool     `yaml:"enabled"` // default: false
	APIKeys []string `yaml:"api_keys"`
}

// RateLimitConfig controls per-key rate limiting of the API.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"` // default: 5
	Burst             int     `yaml:"burst"`               // default: 10
}

// CacheConfig controls the analysis result cache.
type CacheConfig struct {
	MaxEntries int           `yaml:"max_entries"` // default: 1000
	TTL        time.Duration `yaml:"ttl"`         // default: 10m
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "json" or "text"; default: "json"
}

// WebhookConfig enables signed run notifications.
type WebhookConfig struct {
	URL    string `yaml:"url"`
	Secret string `yaml:"secret"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080, Mode: "release"},
		Fetch: FetchConfig{
			Delay:      time.Second,
			MaxRetries: 3,
			Timeout:    30 * time.Second,
		},
		Browser: BrowserConfig{
			Headless: true,
			MaxPages: 4,
			Block:    []string{"Image", "Stylesheet", "Font", "Media"},
		},
		Sentiment: SentimentConfig{
			DefaultModel: "vader",
			Models:       map[string]string{"vader": "lexicon", "textblob": "polarity"},
		},
		Run:       RunConfig{Dedup: true},
		RateLimit: RateLimitConfig{RequestsPerSecond: 5, Burst: 10},
		Cache:     CacheConfig{MaxEntries: 1000, TTL: 10 * time.Minute},
		Log:       LogConfig{Level: "info", Format: "json"},
	}
}

// Load builds the configuration from defaults, the YAML file named by
// FINPULSE_CONFIG (if set), then FINPULSE_* environment variables.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv(PathEnv); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// mergeFile decodes path over cfg. Keys missing from the file keep their
// current values.
func (c *Config) mergeFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, c); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Server.Host = envOr("FINPULSE_HOST", c.Server.Host)
	c.Server.Port = envIntOr("FINPULSE_PORT", c.Server.Port)
	c.Server.Mode = envOr("FINPULSE_MODE", c.Server.Mode)

	c.Fetch.Delay = envDurationOr("FINPULSE_REQUEST_DELAY", c.Fetch.Delay)
	c.Fetch.MaxRetries = envIntOr("FINPULSE_MAX_RETRIES", c.Fetch.MaxRetries)
	c.Fetch.Timeout = envDurationOr("FINPULSE_REQUEST_TIMEOUT", c.Fetch.Timeout)
	c.Fetch.UserAgent = envOr("FINPULSE_USER_AGENT", c.Fetch.UserAgent)
	c.Fetch.ChromeTLS = envBoolOr("FINPULSE_CHROME_TLS", c.Fetch.ChromeTLS)
	c.Fetch.Proxy = envOr("FINPULSE_PROXY", c.Fetch.Proxy)
	c.Fetch.Escalate = envBoolOr("FINPULSE_ESCALATE", c.Fetch.Escalate)

	c.Browser.Enabled = envBoolOr("FINPULSE_BROWSER", c.Browser.Enabled)
	c.Browser.Headless = envBoolOr("FINPULSE_HEADLESS", c.Browser.Headless)
	c.Browser.MaxPages = envIntOr("FINPULSE_MAX_PAGES", c.Browser.MaxPages)
	c.Browser.NoSandbox = envBoolOr("FINPULSE_NO_SANDBOX", c.Browser.NoSandbox)
	c.Browser.Bin = envOr("FINPULSE_BROWSER_BIN", c.Browser.Bin)
	c.Browser.Block = envSliceOr("FINPULSE_BLOCKED_RESOURCES", c.Browser.Block)

	c.Sentiment.DefaultModel = envOr("FINPULSE_DEFAULT_MODEL", c.Sentiment.DefaultModel)
	c.Sentiment.Models = envMapOr("FINPULSE_MODELS", c.Sentiment.Models)
	c.Sentiment.Score = envSliceOr("FINPULSE_SCORE_MODELS", c.Sentiment.Score)

	c.Run.Interval = envDurationOr("FINPULSE_RUN_INTERVAL", c.Run.Interval)
	c.Run.Parallelism = envIntOr("FINPULSE_RUN_PARALLELISM", c.Run.Parallelism)
	c.Run.Dedup = envBoolOr("FINPULSE_DEDUP", c.Run.Dedup)

	c.Auth.Enabled = envBoolOr("FINPULSE_AUTH_ENABLED", c.Auth.Enabled)
	c.Auth.APIKeys = envSliceOr("FINPULSE_API_KEYS", c.Auth.APIKeys)
	c.RateLimit.RequestsPerSecond = envFloatOr("FINPULSE_RATE_RPS", c.RateLimit.RequestsPerSecond)
	c.RateLimit.Burst = envIntOr("FINPULSE_RATE_BURST", c.RateLimit.Burst)

	c.Cache.MaxEntries = envIntOr("FINPULSE_CACHE_MAX_ENTRIES", c.Cache.MaxEntries)
	c.Cache.TTL = envDurationOr("FINPULSE_CACHE_TTL", c.Cache.TTL)

	c.Log.Level = envOr("FINPULSE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOr("FINPULSE_LOG_FORMAT", c.Log.Format)

	c.Webhook.URL = envOr("FINPULSE_WEBHOOK_URL", c.Webhook.URL)
	c.Webhook.Secret = envOr("FINPULSE_WEBHOOK_SECRET", c.Webhook.Secret)

	// Keeps API keys out of the config file.
	if key := os.Getenv("FINPULSE_NEWSAPI_KEY"); key != "" {
		for i := range c.Sources {
			if c.Sources[i].Kind == source.KindNewsAPI && c.Sources[i].APIKey == "" {
				c.Sources[i].APIKey = key
			}
		}
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Fetch.Delay < 0 {
		errs = append(errs, fmt.Errorf("fetch.delay must not be negative"))
	}
	if c.Fetch.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("fetch.max_retries must not be negative"))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch.timeout must be positive"))
	}
	if _, ok := c.Sentiment.Models[c.Sentiment.DefaultModel]; !ok {
		errs = append(errs, fmt.Errorf("sentiment.default_model %q is not in sentiment.models", c.Sentiment.DefaultModel))
	}
	if c.Run.Interval < 0 {
		errs = append(errs, fmt.Errorf("run.interval must not be negative"))
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format %q must be json or text", c.Log.Format))
	}
	if c.Fetch.Escalate && !c.Browser.Enabled {
		errs = append(errs, fmt.Errorf("fetch.escalate requires browser.enabled"))
	}
	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 {
		errs = append(errs, fmt.Errorf("auth.enabled requires at least one api key"))
	}
	names := map[string]bool{}
	for i, s := range c.Sources {
		if s.Name == "" {
			errs = append(errs, fmt.Errorf("sources[%d]: name is required", i))
		} else if names[s.Name] {
			errs = append(errs, fmt.Errorf("sources[%d]: duplicate name %q", i, s.Name))
		}
		names[s.Name] = true
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}
