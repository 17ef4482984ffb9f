package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Oracle request shaping limits.
const (
	MinCandidates    = 20  // Lower clamp for max candidates sent to the oracle
	MaxCandidates    = 200 // Upper clamp for max candidates sent to the oracle
	MaxSummaryLength = 280 // Summaries are truncated before transmission
	MaxTags          = 8   // At most this many tags per record
	MaxReasons       = 3   // Oracle reasons beyond this are dropped
)

// ErrOracleUnavailable is returned for every oracle failure mode: transport
// errors, exhausted retries, timeouts, and malformed responses. Callers
// treat it as "no oracle result this cycle" and fall back to heuristics.
var ErrOracleUnavailable = errors.New("reranking oracle unavailable")

// Item is the compact record sent to the oracle for one candidate.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
	Summary     string    `json:"summary,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
}

// Result is one reranked entry returned by the oracle.
type Result struct {
	ID      string   `json:"id"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons,omitempty"`
}

// response is the strict JSON shape the oracle must return.
type response struct {
	Top []Result `json:"top"`
}

// request is the payload sent to the oracle.
type request struct {
	Items []Item `json:"items"`
	TopK  int    `json:"top_k"`
}

// Client calls the reranking oracle over HTTP with bounded retries.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	policy     *RetryPolicy
	metrics    *Metrics
	logger     *slog.Logger
}

// ClientConfig holds configuration for the oracle client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration // Per-attempt HTTP timeout; default 10s
	Policy  *RetryPolicy
	Metrics *Metrics
	Logger  *slog.Logger
}

// NewClient creates an oracle client. BaseURL is required.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("reranker base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Policy == nil {
		cfg.Policy = NewRetryPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		policy:     cfg.Policy,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}, nil
}

// TruncateItem applies the compact-record limits to an item in place.
func TruncateItem(item Item) Item {
	if len(item.Summary) > MaxSummaryLength {
		item.Summary = item.Summary[:MaxSummaryLength]
	}
	if len(item.Tags) > MaxTags {
		item.Tags = item.Tags[:MaxTags]
	}
	return item
}

// ClampCandidateCount clamps the configured oracle batch size to [20, 200].
func ClampCandidateCount(n int) int {
	if n < MinCandidates {
		return MinCandidates
	}
	if n > MaxCandidates {
		return MaxCandidates
	}
	return n
}

// Rerank sends items to the oracle and returns up to topK results with
// scores clamped to [0,1] and reasons capped at MaxReasons. Any failure
// (transport, retry exhaustion, cancellation, malformed JSON) returns
// ErrOracleUnavailable; this call never returns a partial error the caller
// must interpret. Cancellation propagates immediately and is not retried.
func (c *Client) Rerank(ctx context.Context, items []Item, topK int) ([]Result, error) {
	if len(items) == 0 || topK <= 0 {
		return nil, nil
	}

	compact := make([]Item, len(items))
	for i, item := range items {
		compact[i] = TruncateItem(item)
	}

	body, err := json.Marshal(request{Items: compact, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrOracleUnavailable, err)
	}

	start := time.Now()
	results, err := c.doWithRetries(ctx, body)
	if c.metrics != nil {
		c.metrics.ObserveCallDuration(time.Since(start).Seconds())
		if err != nil {
			c.metrics.IncFallbacks()
		} else {
			c.metrics.IncCalls()
		}
	}
	if err != nil {
		return nil, err
	}

	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		if results[i].Score < 0 {
			results[i].Score = 0
		}
		if results[i].Score > 1 {
			results[i].Score = 1
		}
		if len(results[i].Reasons) > MaxReasons {
			results[i].Reasons = results[i].Reasons[:MaxReasons]
		}
	}
	return results, nil
}

// doWithRetries runs the HTTP call with the retry policy applied to 429/5xx.
func (c *Client) doWithRetries(ctx context.Context, body []byte) ([]Result, error) {
	var lastErr error

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.policy.Delay(attempt - 1)
			c.logger.Debug("retrying oracle call",
				"attempt", attempt,
				"delay", delay)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, ctx.Err())
			case <-time.After(delay):
			}
			if c.metrics != nil {
				c.metrics.IncRetries()
			}
		}

		results, retryable, err := c.doOnce(ctx, body)
		if err == nil {
			return results, nil
		}
		lastErr = err

		// Cancellation is never retried.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, ctx.Err())
		}
		if !retryable {
			break
		}
	}

	c.logger.Warn("oracle call failed, falling back to heuristic order",
		"error", lastErr)
	return nil, fmt.Errorf("%w: %v", ErrOracleUnavailable, lastErr)
}

// doOnce performs a single oracle HTTP call. The second return value
// reports whether the failure qualifies for a retry.
func (c *Client) doOnce(ctx context.Context, body []byte) ([]Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, Retryable(resp.StatusCode), fmt.Errorf("oracle returned status %d", resp.StatusCode)
	}

	var parsed response
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		// Malformed JSON is treated identically to unavailability.
		return nil, false, fmt.Errorf("malformed oracle response: %v", err)
	}

	// Drop entries without an id; an all-junk response is malformed.
	usable := parsed.Top[:0]
	for _, r := range parsed.Top {
		if r.ID != "" {
			usable = append(usable, r)
		}
	}
	if len(parsed.Top) > 0 && len(usable) == 0 {
		return nil, false, errors.New("oracle response contained no usable entries")
	}
	return usable, false, nil
}
