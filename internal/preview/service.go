package preview

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"workflow-backend/internal/cache"
)

const (
	OutcomeCacheHit = "cache_hit"
	OutcomeFetched  = "fetched"
	OutcomeBlocked  = "blocked"
	OutcomeError    = "error"
)

var (
	ErrInvalidURL     = errors.New("invalid preview url")
	ErrHostNotAllowed = errors.New("host not allowed")
	ErrNotHTML        = errors.New("preview target is not an html page")
)

// HostSource supplies hosts that may be previewed in addition to the static
// allowlist, typically the live sites of public portfolio projects.
type HostSource interface {
	LiveHosts(ctx context.Context) ([]string, error)
}

type Recorder interface {
	RecordPreviewFetch(outcome string)
}

type Config struct {
	AllowedHosts []string
	CacheTTL     time.Duration
}

type Service struct {
	fetcher  *Fetcher
	cache    cache.Cache
	ttl      time.Duration
	static   []string
	hosts    HostSource
	recorder Recorder
	log      *slog.Logger
}

func NewService(fetcher *Fetcher, store cache.Cache, hosts HostSource, cfg Config, log *slog.Logger) *Service {
	static := make([]string, 0, len(cfg.AllowedHosts))
	for _, h := range cfg.AllowedHosts {
		if h = normalizeHost(h); h != "" {
			static = append(static, h)
		}
	}
	s := &Service{
		fetcher: fetcher,
		cache:   store,
		ttl:     cfg.CacheTTL,
		static:  static,
		hosts:   hosts,
		log:     log,
	}
	fetcher.WithRedirectCheck(s.Allowed)
	return s
}

func (s *Service) WithRecorder(recorder Recorder) *Service {
	s.recorder = recorder
	return s
}

// Allowed reports whether target may be fetched. A listed host also admits
// its subdomains.
func (s *Service) Allowed(ctx context.Context, target *url.URL) bool {
	if target == nil || (target.Scheme != "http" && target.Scheme != "https") {
		return false
	}
	host := normalizeHost(target.Hostname())
	if host == "" {
		return false
	}
	if matchHost(host, s.static) {
		return true
	}
	if s.hosts == nil {
		return false
	}
	live, err := s.hosts.LiveHosts(ctx)
	if err != nil {
		s.log.Warn("preview allowlist: host source failed", slog.String("error", err.Error()))
		return false
	}
	for i := range live {
		live[i] = normalizeHost(live[i])
	}
	return matchHost(host, live)
}

// Render returns the embeddable version of rawURL and whether it came from
// cache.
func (s *Service) Render(ctx context.Context, rawURL string) ([]byte, bool, error) {
	target, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || target.Host == "" {
		return nil, false, ErrInvalidURL
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, false, ErrInvalidURL
	}
	target.Fragment = ""
	if !s.Allowed(ctx, target) {
		s.record(OutcomeBlocked)
		return nil, false, ErrHostNotAllowed
	}

	key := cacheKey(target.String())
	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warn("preview cache: read failed", slog.String("error", err.Error()))
	} else if ok {
		s.record(OutcomeCacheHit)
		return raw, true, nil
	}

	page, err := s.fetcher.Fetch(ctx, target.String())
	if err != nil {
		s.record(OutcomeError)
		return nil, false, err
	}
	if !isHTML(page.ContentType) {
		s.record(OutcomeError)
		return nil, false, ErrNotHTML
	}
	out, err := Rewrite(page.Body, page.URL)
	if err != nil {
		s.record(OutcomeError)
		return nil, false, err
	}

	if err := s.cache.Set(ctx, key, out, s.ttl); err != nil {
		s.log.Warn("preview cache: write failed", slog.String("error", err.Error()))
	}
	s.record(OutcomeFetched)
	return out, false, nil
}

func (s *Service) record(outcome string) {
	if s.recorder != nil {
		s.recorder.RecordPreviewFetch(outcome)
	}
}

func cacheKey(pageURL string) string {
	sum := sha256.Sum256([]byte(pageURL))
	return "preview:page:" + hex.EncodeToString(sum[:])
}

func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}

func matchHost(host string, allowed []string) bool {
	for _, a := range allowed {
		if a == "" {
			continue
		}
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}
