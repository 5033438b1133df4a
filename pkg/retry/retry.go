// Package retry runs transient operations under an exponential
// backoff budget.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// Config shapes the backoff schedule. The zero value disables
// retrying.
type Config struct {
	Enabled      bool
	MaxAttempts  int           // retries after the first call
	InitialDelay time.Duration // wait before the first retry
	MaxDelay     time.Duration // ceiling for any single wait
	Multiplier   float64       // growth factor per retry, typically 2.0
	Jitter       bool          // spread delays to avoid reconnect stampedes
	NonRetryable []error       // sentinels that abort at once, matched with errors.Is
}

func DefaultConfig() Config {
	return Config{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// Retry runs fn under the cfg backoff schedule.
func Retry(ctx context.Context, cfg Config, fn func() error) error {
	_, err := RetryWithResult(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// RetryWithResult runs fn until it succeeds, a non-retryable error
// comes back, the context ends, or the budget of one initial call plus
// MaxAttempts retries is spent.
func RetryWithResult[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	var zero T
	if !cfg.Enabled {
		return fn()
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("retry aborted: %w", err)
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if nonRetryable(cfg, err) {
			return zero, fmt.Errorf("non-retryable: %w", err)
		}
		if attempt == cfg.MaxAttempts {
			return zero, fmt.Errorf("giving up after %d attempts: %w", attempt+1, err)
		}

		select {
		case <-time.After(calculateDelay(cfg, attempt)):
		case <-ctx.Done():
			return zero, fmt.Errorf("retry aborted during backoff: %w", ctx.Err())
		}
	}
}

// calculateDelay grows InitialDelay by Multiplier per attempt, capped
// at MaxDelay, with an optional +/-25% jitter band.
func calculateDelay(cfg Config, attempt int) time.Duration {
	raw := float64(cfg.InitialDelay) * math.Pow(cfg.Multiplier, float64(attempt))

	d := cfg.MaxDelay
	if raw < float64(cfg.MaxDelay) {
		d = time.Duration(raw)
	}
	if !cfg.Jitter {
		return d
	}

	band := d / 4
	if band <= 0 {
		return d
	}
	return d - band + time.Duration(rand.Int63n(int64(2*band)+1))
}

func nonRetryable(cfg Config, err error) bool {
	for _, target := range cfg.NonRetryable {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
