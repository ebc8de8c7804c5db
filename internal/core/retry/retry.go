// Package retry implements the exponential-backoff-with-jitter retry policy
// shared by the Embedding (C6) and LLM (C14) provider interfaces (spec
// §4.6/§4.14: "retries transient failures ... up to N attempts"), wrapped in
// a circuit breaker grounded on NISHADDEVENDRA-chatbot-backend's go.mod
// inclusion of github.com/sony/gobreaker.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"
)

// Classifier reports whether err is transient (rate limit, 5xx, network) and
// therefore worth retrying, as opposed to auth/invalid-input failures that
// must surface immediately (spec §4.6).
type Classifier func(err error) bool

// Policy configures attempt count and initial backoff; it is built directly
// from ConcurrencyConfig.EmbedRetryMax / EmbedRetryDelay (spec §6), and is
// reused unmodified for C14 ("retries transient failures like C6").
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Classify     Classifier
}

// NewBreaker builds a gobreaker.CircuitBreaker for a named outbound
// dependency (embedding, vector store, or LLM provider), tripping after five
// consecutive failures and probing again after 30s.
func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
}

// Do executes fn under breaker, retrying transient failures up to
// p.MaxAttempts times with exponential backoff and full jitter. A
// non-transient error (per p.Classify) or context cancellation returns
// immediately without further attempts.
func Do(ctx context.Context, breaker *gobreaker.CircuitBreaker, p Policy, fn func() error) error {
	var lastErr error
	delay := p.InitialDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, err := breaker.Execute(func() (any, error) {
			return nil, fn()
		})
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			// The circuit itself is open; still counts as a transient
			// condition worth retrying with backoff.
		} else if p.Classify != nil && !p.Classify(err) {
			return err
		}

		if attempt == maxAttempts-1 {
			break
		}
		if err := sleepWithJitter(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}
	return lastErr
}

func sleepWithJitter(ctx context.Context, d time.Duration) error {
	jittered := time.Duration(rand.Int63n(int64(d) + 1))
	timer := time.NewTimer(jittered)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
