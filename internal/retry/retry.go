// Package retry wraps remote mutations in an exponential-backoff policy.
// Classification is binary: an error is either retryable (network, timeout,
// rate limit) or terminal (validation, configuration, unsupported
// operation), and the check happens before any retry is spent so a terminal
// error aborts on the first attempt regardless of budget.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"google.golang.org/api/googleapi"
)

type Options struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// OnRetry is an observation hook invoked once per retry with the error
	// and the 1-indexed attempt number. It never affects control flow.
	OnRetry func(err error, attempt int)
}

// DefaultOptions mirrors the policy applied to every remote mutation.
func DefaultOptions() Options {
	return Options{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
	}
}

// Do runs op, retrying retryable failures with exponential backoff capped at
// MaxDelay. Exhausting the budget returns the last error unchanged, so the
// caller still sees its classification.
func Do[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts Options) (T, error) {
	var zero T

	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 10 * time.Second
	}

	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if opts.OnRetry != nil {
				opts.OnRetry(lastErr, attempt)
			}
			if err := sleep(ctx, backoffDelay(opts, attempt-1)); err != nil {
				return zero, err
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}
		if !IsRetryable(err) {
			return zero, err
		}
		lastErr = err
	}

	return zero, lastErr
}

// backoffDelay computes min(initial * 2^attempt, max); attempt is 0-indexed
// before the first retry.
func backoffDelay(opts Options, attempt int) time.Duration {
	delay := opts.InitialDelay << attempt
	if delay > opts.MaxDelay || delay <= 0 {
		return opts.MaxDelay
	}
	return delay
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type classifiedError struct {
	err       error
	retryable bool
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Retryable marks err as retryable regardless of its shape.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, retryable: true}
}

// Terminal marks err as non-retryable regardless of its shape.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{err: err, retryable: false}
}

// Terminalf is shorthand for Terminal(fmt.Errorf(...)).
func Terminalf(format string, args ...any) error {
	return Terminal(fmt.Errorf(format, args...))
}

// IsRetryable classifies err. Explicit marks win; otherwise network errors,
// timeouts, and rate-limit / server-side HTTP statuses are retryable and
// everything else is terminal.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.retryable
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.Code)
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return retryableStatus(httpErr.StatusCode)
	}

	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// HTTPError carries a remote HTTP failure with enough structure for
// classification. The Notion client returns these instead of flattened
// message strings so substring matching never decides a retry.
type HTTPError struct {
	StatusCode int
	Code       string // remote error code, e.g. "rate_limited", "validation_error"
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("remote error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("remote error %d: %s", e.StatusCode, e.Message)
}

// IsUnsupportedRecord reports whether err means the target record type
// forbids the attempted write, such as stamping metadata on a
// provider-generated synthetic event. The calendar API signals this with a
// structured error reason rather than a message string, so classification
// stays stable across API versions.
func IsUnsupportedRecord(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		for _, item := range apiErr.Errors {
			switch item.Reason {
			case "eventTypeRestriction", "forbiddenForEventType":
				return true
			}
		}
	}
	return false
}

// IsNotFound reports whether err is a 404/410 from either remote, the signal
// the reconciler uses for its archived-target fallback.
func IsNotFound(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusNotFound || httpErr.StatusCode == http.StatusGone
	}
	return false
}
