package github

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	gh "github.com/google/go-github/v82/github"
)

// defaultBackOff retries rate-limited calls until they succeed or the context
// ends. Primary limits reset hourly, so the interval grows to a few minutes.
func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 2 * time.Second
	b.MaxInterval = 5 * time.Minute
	b.MaxElapsedTime = 0
	return b
}

// call runs a go-github request, retrying only on rate-limit errors. Any other
// error is returned as-is on the first attempt.
func call[T any](ctx context.Context, c *Client, endpoint string, fn func() (T, *gh.Response, error)) (T, *gh.Response, error) {
	var result T
	var resp *gh.Response

	operation := func() error {
		var err error
		result, resp, err = fn()
		if err == nil {
			return nil
		}

		if isRateLimited(err) {
			slog.Warn("github rate limited, backing off", "endpoint", endpoint, "error", err)
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(operation, backoff.WithContext(c.newBackOff(), ctx))
	return result, resp, err
}

func isRateLimited(err error) bool {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	return errors.As(err, &rateErr) || errors.As(err, &abuseErr)
}
