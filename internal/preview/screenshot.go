package preview

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/chromedp/chromedp"
)

// ObjectWriter stores captured images.
type ObjectWriter interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PublicURL(key string) string
}

// Screenshotter renders live sites in headless Chrome for portfolio
// thumbnails.
type Screenshotter struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	store       ObjectWriter
	timeout     time.Duration
	log         *slog.Logger
}

// NewScreenshotter launches a local Chrome unless remoteURL points at a
// running DevTools endpoint.
func NewScreenshotter(store ObjectWriter, remoteURL string, timeout time.Duration, log *slog.Logger) *Screenshotter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &Screenshotter{store: store, timeout: timeout, log: log}
	if remoteURL != "" {
		s.allocCtx, s.allocCancel = chromedp.NewRemoteAllocator(context.Background(), remoteURL)
		return s
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
	)
	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return s
}

// Capture screenshots pageURL at desktop size and stores it as key+".png".
func (s *Screenshotter) Capture(ctx context.Context, key, pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidURL
	}

	browserCtx, cancel := chromedp.NewContext(s.allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		s.log.Debug(fmt.Sprintf(format, args...))
	}))
	defer cancel()
	browserCtx, timeoutCancel := context.WithTimeout(browserCtx, s.timeout)
	defer timeoutCancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	start := time.Now()
	var img []byte
	if err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(1366, 768),
		chromedp.Navigate(pageURL),
		chromedp.Sleep(1500*time.Millisecond),
		chromedp.CaptureScreenshot(&img),
	); err != nil {
		return "", fmt.Errorf("capture %s: %w", pageURL, err)
	}

	objectKey := key + ".png"
	if err := s.store.Put(ctx, objectKey, bytes.NewReader(img), int64(len(img)), "image/png"); err != nil {
		return "", err
	}
	s.log.Info("preview screenshot: stored",
		slog.String("url", pageURL),
		slog.String("key", objectKey),
		slog.Int("bytes", len(img)),
		slog.Duration("duration", time.Since(start)),
	)
	return s.store.PublicURL(objectKey), nil
}

func (s *Screenshotter) Close() {
	if s.allocCancel != nil {
		s.allocCancel()
	}
}
