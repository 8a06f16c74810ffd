// Package notify posts signed run events to a webhook endpoint.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/use-agent/finpulse/retry"
)

// SignatureHeader carries "sha256=<hex HMAC of the body>".
const SignatureHeader = "X-FinPulse-Signature"

// Event types.
const (
	EventRunCompleted = "run.completed"
	EventRunFailed    = "run.failed"
)

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	RunID     string `json:"run_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// Notifier delivers events to one endpoint. A Notifier with an empty URL
// drops every event.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	logger *slog.Logger
	policy retry.Policy
}

// New creates a Notifier. Async deliveries retry up to three times with
// backoff starting at one second.
func New(url, secret string, logger *slog.Logger, clock clockwork.Clock) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With("component", "notify"),
		policy: retry.Policy{
			MaxAttempts:    4,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
			Clock:          clock,
		},
	}
}

// Enabled reports whether a webhook URL is configured.
func (n *Notifier) Enabled() bool { return n != nil && n.url != "" }

// Deliver sends event synchronously.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "FinPulse-Webhook/1.0")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("notify: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notify: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverAsync sends event in the background with retries. The returned
// channel receives the final error (nil on success) and is then closed.
func (n *Notifier) DeliverAsync(event *Event) <-chan error {
	done := make(chan error, 1)
	if !n.Enabled() {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		p := n.policy
		p.OnRetry = func(attempt int, err error, backoff time.Duration) {
			n.logger.Warn("webhook delivery failed",
				"url", n.url, "event", event.Type, "run_id", event.RunID,
				"attempt", attempt, "retry_in", backoff, "error", err)
		}
		err := retry.DoVoid(context.Background(), p,
			func(error) retry.Action { return retry.Retry },
			func(int) error {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return n.Deliver(ctx, event)
			})
		if err != nil {
			n.logger.Error("webhook delivery exhausted all retries",
				"url", n.url, "event", event.Type, "run_id", event.RunID, "error", err)
		} else {
			n.logger.Info("webhook delivered",
				"url", n.url, "event", event.Type, "run_id", event.RunID)
		}
		done <- err
	}()
	return done
}

// Sign returns the signature header value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header value in constant time.
func Verify(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
