package telegram

import (
	"errors"
	"fmt"
	"time"
)

// RateLimitError means Telegram asked us to back off for a given duration.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("telegram rate limited, retry after %s: %s", e.RetryAfter, e.Message)
}

// IsRetryable returns true.
func (e *RateLimitError) IsRetryable() bool { return true }

// PermanentError means retrying will not help: blocked bot, unknown chat,
// bad token, malformed message.
type PermanentError struct {
	Code    int
	Message string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
}

// IsRetryable returns false.
func (e *PermanentError) IsRetryable() bool { return false }

// RetryableError covers transient server-side failures.
type RetryableError struct {
	Code    int
	Message string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("telegram error %d: %s", e.Code, e.Message)
}

// IsRetryable returns true.
func (e *RetryableError) IsRetryable() bool { return true }

// IsRetryable reports whether an error carries a retryable classification.
// Unclassified errors are not retried.
func IsRetryable(err error) bool {
	type retryable interface {
		IsRetryable() bool
	}
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return false
}

// GetRetryAfter extracts the rate-limit hint, or zero for other errors.
func GetRetryAfter(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}
