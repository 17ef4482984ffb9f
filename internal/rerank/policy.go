// Package rerank provides the adapter for the external importance-reranking
// oracle. The oracle is a fail-soft dependency: every failure mode collapses
// to "return nothing" and the engine falls back to heuristic ordering.
package rerank

import (
	"math/rand"
	"sync"
	"time"
)

// Default retry policy values for the oracle HTTP call.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 250 * time.Millisecond
	DefaultFactor      = 2.0
	DefaultJitter      = 0.2 // ±20% of the computed delay
)

// RetryPolicy computes per-attempt backoff delays with jitter. Only HTTP
// 429 and 5xx responses are retried; everything else is one-shot.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
	Jitter      float64

	mu  sync.Mutex
	rng *rand.Rand // protected by mu
}

// NewRetryPolicy creates a retry policy with the default attempt budget.
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		Factor:      DefaultFactor,
		Jitter:      DefaultJitter,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// WithSeed replaces the jitter source, for deterministic tests.
func (p *RetryPolicy) WithSeed(seed int64) *RetryPolicy {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rng = rand.New(rand.NewSource(seed))
	return p
}

// Delay returns the backoff before the given retry. attempt is 1-indexed:
// Delay(1) is the pause after the first failed attempt. The result is the
// exponential base delay scaled by a random factor in [1-Jitter, 1+Jitter].
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(p.BaseDelay)
	for i := 1; i < attempt; i++ {
		delay *= p.Factor
	}

	p.mu.Lock()
	scale := 1 + p.Jitter*(2*p.rng.Float64()-1)
	p.mu.Unlock()

	return time.Duration(delay * scale)
}

// Retryable reports whether an HTTP status code qualifies for a retry.
func Retryable(statusCode int) bool {
	return statusCode == 429 || statusCode >= 500
}
