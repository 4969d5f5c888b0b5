package services

import (
	"context"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"
)

// retryPolicy bounds how often a transaction that lost a race is re-run.
type retryPolicy struct {
	attempts int
	backoff  time.Duration
}

var defaultRetryPolicy = retryPolicy{attempts: 3, backoff: 20 * time.Millisecond}

func (p retryPolicy) run(ctx context.Context, log logger.Logger, op string, fn func() error) error {
	return withRetry(ctx, p.attempts, p.backoff, log, op, fn)
}

// withRetry runs fn until it succeeds, fails terminally, or attempts run out. Only
// domain.IsRetryable errors are retried; the last error is returned as is.
func withRetry(ctx context.Context, attempts int, backoff time.Duration, log logger.Logger, op string, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil || !domain.IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		log.Debug("Retrying operation", "op", op, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff * time.Duration(attempt)):
		}
	}
	return err
}

// publishChange announces a committed change. The write already happened, so a failed
// publish is logged and not returned.
func publishChange(ctx context.Context, pub domain.EventPublisher, log logger.Logger, event *domain.ChangeEvent) {
	if pub == nil {
		return
	}
	if err := pub.PublishChange(ctx, event); err != nil {
		log.Error("Failed to publish change", "type", event.Type, "entity_id", event.EntityID, "error", err)
	}
}
