// Package retry runs provider calls under a bounded exponential backoff that
// only retries errors whose message looks transient.
package retry

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// transientMarkers are matched against the lowercased error message.
var transientMarkers = []string{"500", "xhr", "proxyunarycall", "retry"}

// Policy configures Do. The zero value is not useful; start from Default.
type Policy struct {
	// Retries is the number of extra attempts after the first one.
	Retries int
	// BaseDelay is multiplied by 2^attempt before each retry.
	BaseDelay time.Duration
	// Retryable decides whether an error is worth another attempt.
	// Nil means IsTransient.
	Retryable func(error) bool
	// OnRetry is called before sleeping ahead of a retry.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Default is two retries (three attempts) starting at 400ms.
func Default() Policy {
	return Policy{Retries: 2, BaseDelay: 400 * time.Millisecond}
}

// IsTransient reports whether err carries one of the known transient markers.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range transientMarkers {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Delay returns the wait before retry number attempt (0-based).
func (p Policy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(1<<attempt)
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// retry budget is spent. The last error is returned unchanged.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context) (T, error)) (T, error) {
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var zero T
	for attempt := 0; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if attempt >= p.Retries || !retryable(err) {
			return zero, err
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}
		slog.Warn("retrying after transient error", "attempt", attempt+1, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
}
