package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const maxBlobSize = 1 << 20

// BlobSource returns the raw feed response for a YYMMDD date.
type BlobSource interface {
	Fetch(ctx context.Context, date string) (string, error)
}

// Fetcher downloads puzzle blobs from the feed, retrying transient failures
// with exponential backoff.
type Fetcher struct {
	client         *http.Client
	baseURL        string
	maxRetries     int
	initialBackoff time.Duration
	logger         *zap.Logger
}

// NewFetcher creates a fetcher for cfg.
func NewFetcher(cfg FeedConfig, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client:         &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:        cfg.BaseURL,
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		logger:         logger,
	}
}

func (f *Fetcher) backoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.initialBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 64 * f.initialBackoff
	b.MaxElapsedTime = 0
	b.Reset()

	retries := f.maxRetries - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx)
}

// Fetch downloads the blob for date. Server errors and transport failures are
// retried up to the configured number of attempts; client errors are not.
// The returned error wraps ErrFetch, or ErrInvalidDate for a bad date.
func (f *Fetcher) Fetch(ctx context.Context, date string) (string, error) {
	if _, err := ParseFeedDate(date); err != nil {
		return "", err
	}

	u, err := url.Parse(f.baseURL)
	if err != nil {
		return "", fmt.Errorf("%w: base url: %v", ErrFetch, err)
	}
	q := u.Query()
	q.Set("date", date)
	u.RawQuery = q.Encode()

	var body string
	attempt := 0
	op := func() error {
		attempt++
		b, err := f.get(ctx, u.String())
		if err != nil {
			return err
		}
		body = b
		return nil
	}
	notify := func(err error, wait time.Duration) {
		f.logger.Warn("feed request failed, retrying",
			zap.String("date", date),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	if err := backoff.RetryNotify(op, f.backoff(ctx), notify); err != nil {
		return "", fmt.Errorf("%w: date %s after %d attempt(s): %w", ErrFetch, date, attempt, err)
	}
	f.logger.Debug("feed blob fetched", zap.String("date", date), zap.Int("bytes", len(body)))
	return body, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", backoff.Permanent(err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBlobSize))
		statusErr := &StatusError{Code: resp.StatusCode}
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return "", statusErr
		}
		return "", backoff.Permanent(statusErr)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobSize))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(data), nil
}

// IsStatus reports whether err carries a feed StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
