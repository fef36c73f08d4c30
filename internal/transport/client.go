package transport

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/criticalup/criticalup/internal/corelog"
	"github.com/criticalup/criticalup/internal/errs"
)

const (
	// maxRetries bounds the retry budget for a single fetch (spec §4.3
	// step 3): up to maxRetries retries follow the first attempt, so a
	// fetch makes at most four requests.
	maxRetries = 3

	// requestTimeout is a single ceiling on each whole request, from
	// connect through reading the body, per spec §4.3 step 4 ("design
	// target ~90s"); there are no separate connect or idle timeouts.
	requestTimeout = 90 * time.Second
)

// Client fetches catalog documents and package archives through the
// content-addressed Cache, applying HTTP conditional revalidation, retry
// with jittered backoff, bearer-token auth, and an offline mode that refuses
// all network I/O.
type Client struct {
	http    *http.Client
	cache   *Cache
	token   string
	offline bool
	log     corelog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token attached to upstream requests.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithOffline puts the client into offline mode: it never performs network
// I/O and resolves exclusively from cache.
func WithOffline(offline bool) Option {
	return func(c *Client) { c.offline = offline }
}

// WithLogger attaches a logger; defaults to a no-op logger.
func WithLogger(l corelog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// NewClient builds a Client backed by cache.
func NewClient(cache *Cache, opts ...Option) *Client {
	c := &Client{
		http:  &http.Client{Timeout: requestTimeout},
		cache: cache,
		log:   corelog.Noop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves the bytes at url under the given cache category, honoring
// conditional revalidation and offline mode. It returns the payload; it
// does not report whether the payload came from cache.
func (c *Client) Fetch(ctx context.Context, cat Category, url string) ([]byte, error) {
	entry, hit, err := c.cache.Get(cat, url)
	if err != nil {
		return nil, err
	}

	if c.offline {
		if !hit {
			return nil, errs.New(errs.Transport, "offline-cache-miss", "not in offline cache: "+url)
		}
		// Revalidation is skipped; stale entries are used as-is.
		return entry.Payload, nil
	}

	return c.fetchWithRetry(ctx, cat, url, entry, hit)
}

func (c *Client) fetchWithRetry(ctx context.Context, cat Category, url string, cached *Entry, hit bool) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, errs.Wrap(errs.Transport, "network-error", "context cancelled", ctx.Err())
		}
		if attempt > 0 {
			if err := sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		payload, err := c.fetchOnce(ctx, cat, url, cached, hit)
		if err == nil {
			return payload, nil
		}
		if errs.Is(err, errs.Authentication) {
			// 401/403 surface immediately with no retry, per spec §4.3.
			return nil, err
		}
		lastErr = err
	}
	return nil, errs.Wrap(errs.Transport, "network-error", "download failed after retries", lastErr)
}

func (c *Client) fetchOnce(ctx context.Context, cat Category, url string, cached *Entry, hit bool) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.Transport, "network-error", "build request", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if hit {
		if cached.Sidecar.ETag != "" {
			req.Header.Set("If-None-Match", cached.Sidecar.ETag)
		} else if cached.Sidecar.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.Sidecar.LastModified)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.Transport, "network-error", "execute request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		c.log.Debug("cache revalidated", "url", url)
		return cached.Payload, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, errs.New(errs.Authentication, "unauthorized", "missing or invalid credentials for "+url)
	case resp.StatusCode == http.StatusForbidden:
		return nil, errs.New(errs.Authentication, "unauthorized", "not authorized to fetch "+url)
	case resp.StatusCode >= 400:
		return nil, errs.Newf(errs.Transport, "http-error", "unexpected status %d fetching %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.Transport, "network-error", "read response body", err)
	}

	sum := sha256.Sum256(body)
	sc := Sidecar{
		URL:          url,
		ETag:         resp.Header.Get("ETag"),
		LastModified: resp.Header.Get("Last-Modified"),
		SHA256:       hex.EncodeToString(sum[:]),
	}
	if err := c.cache.Put(cat, url, body, sc); err != nil {
		return nil, err
	}
	return body, nil
}

// sleepBackoff waits an exponentially growing, jittered interval before a
// retry attempt: 1<<(attempt-1) seconds (1s, 2s, 4s for attempts 1-3) with
// up to 250ms of jitter added so concurrent package downloads don't retry in
// lockstep.
func sleepBackoff(ctx context.Context, attempt int) error {
	base := time.Duration(1<<uint(attempt-1)) * time.Second
	jitter := time.Duration(rand.Intn(250)) * time.Millisecond
	select {
	case <-time.After(base + jitter):
		return nil
	case <-ctx.Done():
		return errs.Wrap(errs.Transport, "network-error", "context cancelled during backoff", ctx.Err())
	}
}
