// Package fetch retrieves arbitrary bytes from asset URLs. It is the
// primitive every resolution tier builds on: a browser-spoofed GET with
// an explicit timeout and typed failure classification, so callers can
// treat any failure as "this asset is unavailable" and keep going.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/tikrelay/tikrelay/internal/config"
	"github.com/tikrelay/tikrelay/internal/domain"
)

// ErrorKind classifies a fetch failure.
type ErrorKind string

const (
	KindTimeout ErrorKind = "timeout"
	KindStatus  ErrorKind = "status"
	KindNetwork ErrorKind = "network"
)

// Error is a typed fetch failure. It is always recovered locally by the
// caller; a failed asset is skipped, never fatal for the resolution.
type Error struct {
	Kind   ErrorKind
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Status)
	case KindTimeout:
		return fmt.Sprintf("fetch %s: timed out", e.URL)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Client fetches assets over HTTP with browser-like headers. Some
// origins reject default client identifiers, so a real User-Agent and
// an origin-appropriate Referer are always set.
type Client struct {
	http      *http.Client
	userAgent string
	referer   string
	logger    *slog.Logger
}

// NewClient creates a new asset fetcher.
func NewClient(cfg config.DownloadConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		userAgent: cfg.UserAgent,
		referer:   cfg.Referer,
		logger:    logger,
	}
}

// Fetch retrieves the full body at url.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, err := c.open(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, c.classify(url, err)
	}
	return data, nil
}

// FetchFile retrieves url and writes the body to dest. On any failure
// the partial file is removed so no request leaves residue behind.
func (c *Client) FetchFile(ctx context.Context, url, dest string) error {
	body, err := c.open(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	f, err := os.Create(dest)
	if err != nil {
		return &Error{Kind: KindNetwork, URL: url, Err: err}
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(dest)
		return c.classify(url, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dest)
		return &Error{Kind: KindNetwork, URL: url, Err: err}
	}
	return nil
}

func (c *Client) open(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, URL: url, Err: err}
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	if c.referer != "" {
		req.Header.Set("Referer", c.referer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.classify(url, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		resp.Body.Close()
		return nil, &Error{Kind: KindStatus, URL: url, Status: resp.StatusCode, Err: domain.ErrRateLimited}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &Error{Kind: KindStatus, URL: url, Status: resp.StatusCode}
	}

	return resp.Body, nil
}

func (c *Client) classify(url string, err error) error {
	var netErr interface{ Timeout() bool }
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	case errors.As(err, &netErr) && netErr.Timeout():
		return &Error{Kind: KindTimeout, URL: url, Err: err}
	default:
		return &Error{Kind: KindNetwork, URL: url, Err: err}
	}
}

// Timeout returns the fetch timeout in effect, for callers that need to
// bound surrounding work consistently.
func (c *Client) Timeout() time.Duration {
	return c.http.Timeout
}
