// Package webhook posts anchor and verification events to configured HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// EventType names an event a hook can subscribe to.
type EventType string

const (
	EventAnchorPublished EventType = "anchor.published"
	EventAnchorDuplicate EventType = "anchor.duplicate"
	EventAnchorRejected  EventType = "anchor.rejected"
	EventAnchorFailed    EventType = "anchor.failed"
	EventVerifyMatch     EventType = "verify.match"
	EventVerifyMismatch  EventType = "verify.mismatch"
	EventVerifyPending   EventType = "verify.pending"
	EventVerifyError     EventType = "verify.error"

	// EventAll subscribes a hook to every event.
	EventAll EventType = "*"
)

// Event is the JSON payload posted to a hook.
type Event struct {
	Event      EventType `json:"event"`
	Timestamp  string    `json:"timestamp"`
	RunID      string    `json:"run_id,omitempty"`
	Project    string    `json:"project"`
	Network    string    `json:"network,omitempty"`
	OnchainID  uint64    `json:"onchain_id,omitempty"`
	CommitHash string    `json:"commit_hash,omitempty"`
	TxHash     string    `json:"tx_hash,omitempty"`
	TxURL      string    `json:"tx_url,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// HookConfig is one endpoint. An empty Events list receives every event.
type HookConfig struct {
	URL    string      `mapstructure:"url" yaml:"url" validate:"required,url"`
	Secret string      `mapstructure:"secret" yaml:"secret,omitempty"`
	Events []EventType `mapstructure:"events" yaml:"events,omitempty" validate:"dive,oneof=* anchor.published anchor.duplicate anchor.rejected anchor.failed verify.match verify.mismatch verify.pending verify.error"`
}

// Matches reports whether the hook subscribes to event.
func (h HookConfig) Matches(event EventType) bool {
	if len(h.Events) == 0 {
		return true
	}
	for _, e := range h.Events {
		if e == event || e == EventAll {
			return true
		}
	}
	return false
}

// Client sends events synchronously, retrying failed deliveries.
type Client struct {
	hooks      []HookConfig
	http       *http.Client
	maxRetries int
	retryDelay time.Duration
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRetries sets how often a failed delivery is retried and the pause between attempts.
func WithRetries(n int, delay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = n
		c.retryDelay = delay
	}
}

// NewClient creates a client for hooks.
func NewClient(hooks []HookConfig, opts ...Option) *Client {
	c := &Client{
		hooks:      hooks,
		http:       &http.Client{Timeout: 10 * time.Second},
		maxRetries: 2,
		retryDelay: time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether any hook is configured.
func (c *Client) Enabled() bool {
	return c != nil && len(c.hooks) > 0
}

// Send posts event to every matching hook. All hooks are attempted; the
// returned error joins the failures.
func (c *Client) Send(ctx context.Context, event Event) error {
	if !c.Enabled() {
		return nil
	}
	if event.Timestamp == "" {
		event.Timestamp = c.now().UTC().Format(time.RFC3339)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	var errs []error
	for _, hook := range c.hooks {
		if !hook.Matches(event.Event) {
			continue
		}
		if err := c.deliver(ctx, hook, event.Event, payload); err != nil {
			errs = append(errs, fmt.Errorf("webhook %s: %w", hook.URL, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Client) deliver(ctx context.Context, hook HookConfig, event EventType, payload []byte) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "gitgood-webhook/1")
		req.Header.Set("X-Gitgood-Event", string(event))
		if hook.Secret != "" {
			req.Header.Set("X-Gitgood-Signature", Sign(payload, hook.Secret))
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("post: %w", err)
			continue
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}
		lastErr = fmt.Errorf("http %d: %s", resp.StatusCode, bytes.TrimSpace(body))
		// client errors are not retried
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			break
		}
	}
	return lastErr
}

// Sign returns the HMAC-SHA256 signature header value for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
