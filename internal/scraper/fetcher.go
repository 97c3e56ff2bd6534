package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned when the origin answers 404 for a price file.
// It means no data was ever published for that key, which is terminal:
// the retry policy must not re-attempt it.
var ErrNotFound = errors.New("price file not published (404)")

// StatusError is a non-2xx, non-404 response. It is retryable.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d fetching %s", e.Code, e.URL)
}

// Fetcher downloads SP files over HTTP with a per-request timeout.
type Fetcher struct {
	client *http.Client
	logger *logrus.Logger
}

// NewFetcher creates a Fetcher whose requests time out after timeout.
func NewFetcher(timeout time.Duration, logger *logrus.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Fetch issues a single GET and classifies the response. A 404 yields
// ErrNotFound, any other non-2xx status a *StatusError, transport and
// timeout failures the wrapped transport error. On success it returns
// the raw body; parsing is the caller's concern.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	f.logger.Infof("Fetching %s", url)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", url, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, URL: url}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}
