package senders

import (
	"fmt"
	"time"
)

// SendError is the terminal failure of a webhook send. Status carries the last
// HTTP status observed (0 for pure network failures). Permanent marks the
// classes that were never worth retrying.
type SendError struct {
	Status    int
	Permanent bool
	Err       error
}

func (e *SendError) Error() string {
	kind := "transient"
	if e.Permanent {
		kind = "permanent"
	}
	if e.Status != 0 {
		return fmt.Sprintf("webhook send failed (%s, status %d): %v", kind, e.Status, e.Err)
	}
	return fmt.Sprintf("webhook send failed (%s): %v", kind, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// attemptOutcome is one HTTP round trip's result as seen by the policy.
// status is 0 when the request never produced a response.
type attemptOutcome struct {
	status     int
	retryAfter time.Duration // parsed Retry-After, 0 when absent
	err        error
}

func (o attemptOutcome) ok() bool {
	return o.err == nil && o.status >= 200 && o.status < 300
}

func (o attemptOutcome) permanent() bool {
	switch o.status {
	case 401, 403, 404:
		return true
	}
	return false
}

type decision struct {
	retry bool
	delay time.Duration
}

// retryPolicy is a pure function from (attempt, outcome) to a decision: retry
// after a delay, or give up. It knows nothing about HTTP clients.
type retryPolicy struct {
	maxAttempts       int
	backoff           []time.Duration
	rateLimitFallback time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		maxAttempts:       3,
		backoff:           []time.Duration{1 * time.Second, 2 * time.Second},
		rateLimitFallback: 5 * time.Second,
	}
}

// decide classifies the outcome of attempt n (1-based). Permanent statuses
// bail immediately. 429 waits out Retry-After (5s fallback) but still costs an
// attempt. Everything else non-2xx, and network errors, are transient and
// follow the exponential backoff schedule until the budget runs out.
func (p retryPolicy) decide(attempt int, o attemptOutcome) decision {
	if o.permanent() {
		return decision{retry: false}
	}
	if attempt >= p.maxAttempts {
		return decision{retry: false}
	}
	if o.status == 429 {
		delay := o.retryAfter
		if delay <= 0 {
			delay = p.rateLimitFallback
		}
		return decision{retry: true, delay: delay}
	}
	idx := attempt - 1
	if idx >= len(p.backoff) {
		idx = len(p.backoff) - 1
	}
	return decision{retry: true, delay: p.backoff[idx]}
}
