package portfolio

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"workflow-backend/internal/httpx"
	"workflow-backend/internal/middleware"
	"workflow-backend/internal/transport"
	"workflow-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

// Thumbnailer renders a live site and returns the stored image URL.
type Thumbnailer interface {
	Capture(ctx context.Context, key, pageURL string) (string, error)
}

type Handler struct {
	service     *Service
	val         *validation.Validator
	log         *slog.Logger
	thumbnailer Thumbnailer
}

// NewHandler wires the portfolio routes. thumbnailer may be nil when screenshot
// capture is disabled.
func NewHandler(service *Service, val *validation.Validator, log *slog.Logger, thumbnailer Thumbnailer) *Handler {
	return &Handler{
		service:     service,
		val:         val,
		log:         log,
		thumbnailer: thumbnailer,
	}
}

func (h *Handler) PublicList(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	filter := ListFilter{Category: strings.TrimSpace(r.URL.Query().Get("category"))}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.service.ListPublic(ctx, filter)
	if err != nil {
		log.Error("portfolio public list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("portfolio public list: ok", slog.Int("count", len(items)))
	transport.WriteList(w, items)
}

func (h *Handler) PublicGetBySlug(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	slug := strings.TrimSpace(chi.URLParam(r, "slug"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	item, err := h.service.GetPublicBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("portfolio public get: not found", slog.String("slug", slug))
			transport.WriteError(w, http.StatusNotFound, "project not found", nil)
			return
		}
		log.Error("portfolio public get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("portfolio public get: ok", slog.String("slug", slug))
	transport.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 20, 100)
	if err != nil {
		log.Warn("admin portfolio list: invalid query", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	filter := ListFilter{Category: strings.TrimSpace(r.URL.Query().Get("category"))}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, total, err := h.service.ListAdmin(ctx, filter, limit, offset)
	if err != nil {
		log.Error("admin portfolio list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin portfolio list: ok", slog.Int("count", len(items)))
	transport.WritePage(w, items, limit, offset, total)
}

func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req UpsertRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin portfolio create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin portfolio create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	item, err := h.service.Create(ctx, req)
	if err != nil {
		h.writeWriteError(w, log, "admin portfolio create", "", err)
		return
	}

	log.Info("admin portfolio create: ok", slog.String("project_id", item.ID))
	transport.WriteJSON(w, http.StatusCreated, item)
}

func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		log.Warn("admin portfolio update: missing id")
		transport.WriteError(w, http.StatusBadRequest, "missing id", nil)
		return
	}

	var req UpsertRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin portfolio update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("admin portfolio update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	item, err := h.service.Update(ctx, id, req)
	if err != nil {
		h.writeWriteError(w, log, "admin portfolio update", id, err)
		return
	}

	log.Info("admin portfolio update: ok", slog.String("project_id", id))
	transport.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) AdminDelete(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.Delete(ctx, id); err != nil {
		h.writeWriteError(w, log, "admin portfolio delete", id, err)
		return
	}

	log.Info("admin portfolio delete: ok", slog.String("project_id", id))
	transport.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AdminCaptureThumbnail screenshots the project's live site and stores the
// result as its thumbnail.
func (h *Handler) AdminCaptureThumbnail(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	if h.thumbnailer == nil {
		log.Warn("admin portfolio thumbnail: capture disabled")
		transport.WriteError(w, http.StatusServiceUnavailable, "screenshot capture disabled", nil)
		return
	}
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	item, err := h.service.Get(ctx, id)
	if err != nil {
		h.writeWriteError(w, log, "admin portfolio thumbnail", id, err)
		return
	}
	if item.LiveURL == "" {
		log.Warn("admin portfolio thumbnail: missing live url", slog.String("project_id", id))
		transport.WriteError(w, http.StatusBadRequest, "project has no live url", nil)
		return
	}

	thumbURL, err := h.thumbnailer.Capture(ctx, "portfolio/"+item.Slug, item.LiveURL)
	if err != nil {
		log.Error("admin portfolio thumbnail: capture failed", slog.String("project_id", id), slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadGateway, "capture failed", nil)
		return
	}
	if err := h.service.SetThumbnail(ctx, id, thumbURL); err != nil {
		h.writeWriteError(w, log, "admin portfolio thumbnail", id, err)
		return
	}

	item.ThumbnailURL = thumbURL
	log.Info("admin portfolio thumbnail: ok", slog.String("project_id", id))
	transport.WriteJSON(w, http.StatusOK, item)
}

func (h *Handler) writeWriteError(w http.ResponseWriter, log *slog.Logger, area, id string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		log.Warn(area+": not found", slog.String("project_id", id))
		transport.WriteError(w, http.StatusNotFound, "project not found", nil)
	case errors.Is(err, ErrSlugTaken):
		log.Warn(area + ": slug taken")
		transport.WriteError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, ErrEmptySlug):
		log.Warn(area + ": empty slug")
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		log.Error(area+": database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
	}
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
