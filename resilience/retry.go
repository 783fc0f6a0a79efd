package resilience

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetryConfig bounds the retry loop: up to MaxRetries retries after the first
// attempt, with delay BaseDelay * 2^(attempt-1) between attempts.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Do runs fn, retrying retryable failures with exponential backoff.
// Non-retryable failures abort immediately. Each failed attempt is logged
// with its number and classified reason.
func Do(ctx context.Context, log *zap.Logger, op string, cfg RetryConfig, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries+1; attempt++ {
		if err := fn(ctx); err != nil {
			lastErr = err
			reason := Classify(err)
			if !Retryable(err) {
				log.Warn("call failed, not retryable",
					zap.String("op", op),
					zap.Int("attempt", attempt),
					zap.String("reason", string(reason)),
					zap.Error(err))
				return err
			}
			if attempt == cfg.MaxRetries+1 {
				break
			}
			backoff := cfg.BaseDelay * time.Duration(1<<uint(attempt-1))
			log.Warn("call failed, retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.String("reason", string(reason)),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("all %d attempts exhausted for %s: %w", cfg.MaxRetries+1, op, lastErr)
}
