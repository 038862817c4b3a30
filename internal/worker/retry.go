package worker

import (
	"time"

	"github.com/bennetthilberg/risk-scoring-pipeline/internal/config"
)

// RetryPolicy is the exponential backoff schedule applied to events that
// fail with a transient error: delay(i) = baseDelay * 2^i, attempt counting
// from zero.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultRetryPolicy mirrors the worker's default configuration: three
// retries at a 100ms base delay, waiting 100ms, 200ms and 400ms before them.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, BaseDelay: 100 * time.Millisecond}

// LoadRetryPolicy reads MAX_RETRIES and RETRY_BASE_DELAY_MS, falling back to
// DefaultRetryPolicy's values.
func LoadRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: config.GetEnvInt("MAX_RETRIES", DefaultRetryPolicy.MaxRetries),
		BaseDelay: time.Duration(
			config.GetEnvInt("RETRY_BASE_DELAY_MS", int(DefaultRetryPolicy.BaseDelay/time.Millisecond)),
		) * time.Millisecond,
	}
}

// ShouldRetry reports whether attempt (zero-indexed, the attempt that just
// failed) is still within the policy's retry budget.
func (p RetryPolicy) ShouldRetry(attempt int) bool {
	return attempt < p.MaxRetries
}

// BackoffFor returns the delay to wait before reattempting after attempt has
// failed.
func (p RetryPolicy) BackoffFor(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := p.BaseDelay

	for i := 0; i < attempt; i++ {
		delay *= 2
	}

	return delay
}
