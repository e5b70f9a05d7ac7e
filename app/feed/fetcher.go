package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

const maxFeedSize = 10 << 20

// StatusError is a non-200 response from a feed server.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
}

// Fetcher downloads feed documents with bounded retries.
type Fetcher struct {
	client    *http.Client
	userAgent string
	attempts  uint
	delay     time.Duration
}

func NewFetcher(client *http.Client, userAgent string) *Fetcher {
	return &Fetcher{
		client:    client,
		userAgent: userAgent,
		attempts:  3,
		delay:     time.Second,
	}
}

// WithRetry overrides the retry policy.
func (f *Fetcher) WithRetry(attempts uint, delay time.Duration) *Fetcher {
	f.attempts = attempts
	f.delay = delay
	return f
}

// Fetch GETs url. Client errors (4xx) are not retried.
func (f *Fetcher) Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	var (
		data    []byte
		lastErr error
	)

	err := retry.Do(
		func() error {
			body, err := f.fetchOnce(ctx, url, timeout)
			if err != nil {
				lastErr = err
				return err
			}
			data = body
			return nil
		},
		retry.Attempts(f.attempts),
		retry.Delay(f.delay),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(f.delay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			slog.Warn("Retrying feed fetch after error", "url", url, "attempt", n, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests
			}
			return true
		}),
	)
	if err != nil {
		if lastErr != nil && ctx.Err() == nil {
			return nil, lastErr
		}
		return nil, err
	}

	return data, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, retry.Unrecoverable(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
