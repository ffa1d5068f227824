package senders

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/carlmjohnson/requests"
)

type discordSender struct {
	base
	limiters *LimiterRegistry
	policy   retryPolicy
}

// Send posts a message to one webhook. It first waits for a token from the
// per-URL bucket, then drives the retry policy over up to maxAttempts HTTP
// round trips. Returns nil on 2xx, otherwise a *SendError carrying the last
// observed status.
func (s *discordSender) Send(ctx context.Context, webhookURL string, msg *WebhookMessage) error {
	msg.Clamp()

	if err := s.limiters.Get(webhookURL).Wait(ctx); err != nil {
		return &SendError{Err: fmt.Errorf("rate limiter wait: %w", err)}
	}

	var last attemptOutcome
	for attempt := 1; ; attempt++ {
		last = s.post(ctx, webhookURL, msg)
		if last.ok() {
			return nil
		}

		d := s.policy.decide(attempt, last)
		if !d.retry {
			break
		}

		s.log.Sugar().Infow("Webhook send retrying",
			"attempt", attempt, "status", last.status, "delay", d.delay.String())
		select {
		case <-time.After(d.delay):
		case <-ctx.Done():
			return &SendError{Status: last.status, Err: ctx.Err()}
		}
	}

	err := last.err
	if err == nil {
		err = fmt.Errorf("unexpected status %d", last.status)
	}
	return &SendError{Status: last.status, Permanent: last.permanent(), Err: err}
}

func (s *discordSender) post(ctx context.Context, webhookURL string, msg *WebhookMessage) attemptOutcome {
	var out attemptOutcome
	err := requests.URL(webhookURL).
		Transport(s.transport).
		BodyJSON(msg).
		AddValidator(func(resp *http.Response) error {
			out.status = resp.StatusCode
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if secs, err := strconv.Atoi(ra); err == nil {
					out.retryAfter = time.Duration(secs) * time.Second
				}
			}
			return nil
		}).
		Fetch(ctx)
	if err != nil {
		out.err = err
		return out
	}
	if out.status < 200 || out.status >= 300 {
		out.err = fmt.Errorf("webhook returned status %d", out.status)
	}
	return out
}
