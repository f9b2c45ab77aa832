package opensearch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// RetryPolicy bounds retries of transient transport failures.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy is used when a cluster configures none.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, Backoff: 200 * time.Millisecond}

type attemptFunc func(ctx context.Context, attempt int) ([]byte, error)

func invokeWithRetry(ctx context.Context, policy RetryPolicy, fn attemptFunc) ([]byte, int, error) {
	normalized := normalizeRetryPolicy(policy)
	var lastErr error

	for attempt := 1; attempt <= normalized.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, attempt, err
		}

		body, err := fn(ctx, attempt)
		if err == nil {
			return body, attempt, nil
		}
		lastErr = err
		if attempt == normalized.MaxAttempts || !isRetryable(ctx, err) {
			return nil, attempt, err
		}

		wait := backoffDuration(normalized, attempt)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, attempt, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, normalized.MaxAttempts, lastErr
}

func normalizeRetryPolicy(policy RetryPolicy) RetryPolicy {
	out := policy
	if out.MaxAttempts <= 0 {
		out.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if out.Backoff < 0 {
		out.Backoff = 0
	}
	return out
}

func backoffDuration(policy RetryPolicy, attempt int) time.Duration {
	if policy.Backoff <= 0 || attempt <= 0 {
		return 0
	}
	return policy.Backoff * time.Duration(attempt)
}

func isRetryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	var osErr *Error
	if errors.As(err, &osErr) {
		switch osErr.Status {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
