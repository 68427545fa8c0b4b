package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy configures transport-level retries of a single vendor call.
// It is independent of the validation attempt budget carried by
// ChatRequest.MaxRetries.
type RetryPolicy struct {
	MaxRetries   int           // retries after the first attempt (0 = none)
	InitialDelay time.Duration // first backoff interval
	MaxDelay     time.Duration // cap on the backoff interval
	Timeout      time.Duration // per-attempt timeout (0 = none)
}

// DefaultRetryPolicy matches the retry defaults of the vendor SDKs.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Timeout:      2 * time.Minute,
	}
}

// Retry runs op until it succeeds, fails with a non-retryable error, or the
// policy's retries are used up. The last error is returned unwrapped.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if policy.InitialDelay > 0 {
		b.InitialInterval = policy.InitialDelay
	}
	if policy.MaxDelay > 0 {
		b.MaxInterval = policy.MaxDelay
	}

	tries := uint(1)
	if policy.MaxRetries > 0 {
		tries += uint(policy.MaxRetries)
	}

	return backoff.Retry(ctx, func() (T, error) {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if policy.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		}
		defer cancel()

		v, err := op(attemptCtx)
		if err != nil && !IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(tries))
}

// IsRetryable reports whether err is worth another attempt. Errors that carry
// an HTTP status (via an HTTPStatus() int method) are classified by status;
// everything else falls back to inspecting the message.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var status interface{ HTTPStatus() int }
	if errors.As(err, &status) {
		code := status.HTTPStatus()
		if code == http.StatusTooManyRequests {
			return !isDailyLimit(err.Error())
		}
		return code == http.StatusRequestTimeout || code >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	errStr := err.Error()

	if strings.Contains(errStr, "429") || strings.Contains(errStr, "Too Many Requests") {
		return !isDailyLimit(errStr)
	}

	for _, code := range []int{
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	} {
		if strings.Contains(errStr, strconv.Itoa(code)) || strings.Contains(errStr, http.StatusText(code)) {
			return true
		}
	}

	for _, code := range []string{"400", "401", "403", "404"} {
		if strings.Contains(errStr, code) {
			return false
		}
	}

	// Unknown errors: retry, the call is idempotent.
	return true
}

// Daily token quotas won't reset within any backoff window.
func isDailyLimit(msg string) bool {
	return strings.Contains(msg, "tokens per day") || strings.Contains(msg, "TPD")
}
