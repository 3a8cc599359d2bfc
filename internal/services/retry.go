package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const maxCallRetries = 2

// retryable wraps a provider HTTP call with exponential backoff. Client
// errors (4xx) are permanent; network failures and 5xx responses retry.
func retryable(ctx context.Context, logger *slog.Logger, provider string, call func() error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := call()
		if err != nil && attempt <= maxCallRetries {
			logger.Warn("Provider call failed, retrying",
				"provider", provider, "attempt", attempt, "error", err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(policy, maxCallRetries), ctx))
}

// permanentStatus marks an HTTP error response as retryable or permanent.
func permanentStatus(status int, body []byte) error {
	err := fmt.Errorf("API request failed with status %d: %s", status, string(body))
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		return backoff.Permanent(err)
	}
	return err
}
