package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ErrBodyTooLarge is returned when a page exceeds the configured body cap.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// StatusError reports a non-success HTTP status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to fetch URL %s: status code %d", e.URL, e.StatusCode)
}

// Page is the raw markup of one fetched URL.
type Page struct {
	URL        string    // Requested URL
	FinalURL   string    // URL after redirects
	StatusCode int       // HTTP status
	HTML       string    // Response body
	FetchedAt  time.Time // When the response was read
}

// Fetcher issues one GET per page with its own timeout budget.
type Fetcher struct {
	HTTPClient   *http.Client
	UserAgent    string
	MaxBodyBytes int64 // zero disables the cap
}

// NewFetcher creates a fetcher whose requests time out after timeout.
func NewFetcher(timeout time.Duration, userAgent string, maxBodyBytes int64) *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		UserAgent:    userAgent,
		MaxBodyBytes: maxBodyBytes,
	}
}

// Fetch retrieves url. Transport failures, timeouts and non-2xx statuses are
// returned as errors; a *StatusError carries the status code.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	client := f.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if f.MaxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, f.MaxBodyBytes+1)
	}
	bodyBytes, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body from %s: %w", url, err)
	}
	if f.MaxBodyBytes > 0 && int64(len(bodyBytes)) > f.MaxBodyBytes {
		return nil, fmt.Errorf("failed to read response body from %s: %w", url, ErrBodyTooLarge)
	}

	return &Page{
		URL:        url,
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		HTML:       string(bodyBytes),
		FetchedAt:  time.Now().UTC(),
	}, nil
}

// ReadFile loads saved markup from disk, for offline classification.
func ReadFile(path string) (*Page, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read markup file %s: %w", path, err)
	}
	return &Page{
		URL:        "file://" + path,
		FinalURL:   "file://" + path,
		StatusCode: http.StatusOK,
		HTML:       string(content),
		FetchedAt:  time.Now().UTC(),
	}, nil
}
