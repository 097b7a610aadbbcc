package modules

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	merrors "moduletsx/pkg/errors"
)

// HTTPFetcher fetches http and https URLs. Transport errors and 5xx
// responses are retried with exponential backoff, other non-2xx responses
// fail immediately.
type HTTPFetcher struct {
	name     string
	client   *http.Client
	retries  uint64
	priority int
	header   http.Header
}

// NewHTTPFetcher creates a fetcher with the given request timeout and retry count
func NewHTTPFetcher(timeout time.Duration, retries int) *HTTPFetcher {
	if retries < 0 {
		retries = 0
	}
	return &HTTPFetcher{
		name:     "HTTP",
		client:   &http.Client{Timeout: timeout},
		retries:  uint64(retries),
		priority: 200, // Network is the last resort
		header:   make(http.Header),
	}
}

// WithClient replaces the HTTP client
func (f *HTTPFetcher) WithClient(client *http.Client) *HTTPFetcher {
	f.client = client
	return f
}

// SetHeader adds a header to every request, e.g. for authentication
func (f *HTTPFetcher) SetHeader(key, value string) {
	f.header.Set(key, value)
}

// Name returns the fetcher name
func (f *HTTPFetcher) Name() string {
	return f.name
}

// Priority returns the fetcher priority
func (f *HTTPFetcher) Priority() int {
	return f.priority
}

// CanFetch returns true for http and https URLs
func (f *HTTPFetcher) CanFetch(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

// Fetch performs a GET request for url and returns the response body
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (string, error) {
	policy := backoff.WithContext(backoff.WithMaxRetries(newBackOff(), f.retries), ctx)

	body, err := backoff.RetryWithData(func() (string, error) {
		return f.fetchOnce(ctx, url)
	}, policy)
	if err != nil {
		if _, ok := err.(*merrors.NetworkError); ok {
			return "", err
		}
		return "", (&merrors.NetworkError{URL: url, Msg: err.Error()}).CausedBy(err)
	}
	return body, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", backoff.Permanent((&merrors.NetworkError{URL: url, Msg: "invalid request"}).CausedBy(err))
	}
	for key, values := range f.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", (&merrors.NetworkError{URL: url, Msg: "request failed"}).CausedBy(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		netErr := &merrors.NetworkError{URL: url, StatusCode: resp.StatusCode, Msg: http.StatusText(resp.StatusCode)}
		if resp.StatusCode >= 500 {
			return "", netErr
		}
		return "", backoff.Permanent(netErr)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", (&merrors.NetworkError{URL: url, StatusCode: resp.StatusCode, Msg: "reading body"}).CausedBy(err)
	}
	return string(data), nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// String implements fmt.Stringer for logging
func (f *HTTPFetcher) String() string {
	return fmt.Sprintf("%s(timeout=%s, retries=%d)", f.name, f.client.Timeout, f.retries)
}
