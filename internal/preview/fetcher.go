package preview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultMaxBytes = 2 << 20
	userAgent       = "workflow-preview/1.0"
)

var (
	ErrTooLarge        = errors.New("page exceeds size limit")
	ErrRedirectBlocked = errors.New("redirect to a host outside the allowlist")
)

const maxRedirects = 5

// UpstreamError is a non-retryable response from the previewed site.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Status)
}

// RetryPolicy doubles the delay after each failed attempt.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

type Page struct {
	URL         string
	ContentType string
	Body        []byte
}

type Fetcher struct {
	client   *http.Client
	retry    RetryPolicy
	maxBytes int64
	log      *slog.Logger
}

func NewFetcher(timeout time.Duration, retry RetryPolicy, maxBytes int64, log *slog.Logger) *Fetcher {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 3
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Fetcher{
		client:   &http.Client{Timeout: timeout},
		retry:    retry,
		maxBytes: maxBytes,
		log:      log,
	}
}

// WithRedirectCheck rejects redirects whose target allow refuses.
func (f *Fetcher) WithRedirectCheck(allow func(ctx context.Context, target *url.URL) bool) *Fetcher {
	f.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errors.New("too many redirects")
		}
		if !allow(req.Context(), req.URL) {
			return ErrRedirectBlocked
		}
		return nil
	}
	return f
}

// Fetch downloads pageURL, retrying transport errors and 5xx responses.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (Page, error) {
	var lastErr error
	delay := f.retry.BaseDelay

	for attempt := 1; attempt <= f.retry.MaxAttempts; attempt++ {
		page, err := f.fetchOnce(ctx, pageURL)
		if err == nil {
			return page, nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			return Page{}, err
		}
		if attempt < f.retry.MaxAttempts {
			f.log.Warn("preview fetch: retrying",
				slog.String("url", pageURL),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return Page{}, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return Page{}, fmt.Errorf("fetch %s failed after %d attempts: %w", pageURL, f.retry.MaxAttempts, lastErr)
}

func (f *Fetcher) fetchOnce(ctx context.Context, pageURL string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return Page{}, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Page{}, &UpstreamError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return Page{}, err
	}
	if int64(len(body)) > f.maxBytes {
		return Page{}, ErrTooLarge
	}
	return Page{
		URL:         resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func retryable(err error) bool {
	if errors.Is(err, ErrTooLarge) || errors.Is(err, ErrRedirectBlocked) || errors.Is(err, context.Canceled) {
		return false
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream.Status >= http.StatusInternalServerError || upstream.Status == http.StatusTooManyRequests
	}
	return true
}
