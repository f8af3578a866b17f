// Package util has small helpers shared across packages.
package util

import (
	"math/rand/v2"
	"time"
)

// Backoff returns exponential backoff with jitter for the given retry attempt.
// Base delay is doubled each attempt, capped at 30 seconds, with random jitter
// of -25% to +25%.
func Backoff(baseDelay time.Duration, attempt int) time.Duration {
	if baseDelay <= 0 || attempt <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	half := int64(backoff) / 2
	if half <= 0 {
		return backoff
	}
	jitter := time.Duration(rand.Int64N(half)) - backoff/4
	return backoff + jitter
}
