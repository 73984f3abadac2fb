package preview

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"workflow-backend/internal/middleware"
	"workflow-backend/internal/transport"
)

// sandboxPolicy gives proxied pages an opaque origin so their scripts cannot
// reach this API's cookies or storage.
const sandboxPolicy = "sandbox allow-scripts allow-forms allow-popups"

type Handler struct {
	service *Service
	log     *slog.Logger
	timeout time.Duration
}

func NewHandler(service *Service, log *slog.Logger, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Handler{service: service, log: log, timeout: timeout}
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	target := r.URL.Query().Get("url")

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	body, cached, err := h.service.Render(ctx, target)
	if err != nil {
		var upstream *UpstreamError
		switch {
		case errors.Is(err, ErrInvalidURL):
			log.Warn("preview get: invalid url", slog.String("url", target))
			transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		case errors.Is(err, ErrHostNotAllowed):
			log.Warn("preview get: host not allowed", slog.String("url", target))
			transport.WriteError(w, http.StatusForbidden, err.Error(), nil)
		case errors.Is(err, ErrNotHTML):
			log.Warn("preview get: not html", slog.String("url", target))
			transport.WriteError(w, http.StatusUnsupportedMediaType, err.Error(), nil)
		case errors.Is(err, ErrTooLarge):
			log.Warn("preview get: page too large", slog.String("url", target))
			transport.WriteError(w, http.StatusBadGateway, err.Error(), nil)
		case errors.As(err, &upstream):
			log.Warn("preview get: upstream error", slog.String("url", target), slog.Int("status", upstream.Status))
			transport.WriteError(w, http.StatusBadGateway, "upstream error", map[string]string{"status": strconv.Itoa(upstream.Status)})
		default:
			log.Error("preview get: fetch failed", slog.String("url", target), slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusBadGateway, "fetch failed", nil)
		}
		return
	}

	cacheState := "miss"
	if cached {
		cacheState = "hit"
	}
	log.Info("preview get: ok", slog.String("url", target), slog.String("cache", cacheState), slog.Int("bytes", len(body)))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", sandboxPolicy)
	w.Header().Set("X-Preview-Cache", cacheState)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return h.log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return h.log.With(slog.String("request_id", id))
	}
	return h.log
}
