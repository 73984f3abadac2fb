package briefings

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

type Handler struct {
	service *Service
	val     *validation.Validator
	log     *slog.Logger
	// dispatch runs post-response work; notifications never block the client.
	dispatch func(func())
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		val:      val,
		log:      log,
		dispatch: func(f func()) { go f() },
	}
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req CreateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("briefing create: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("briefing create: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	briefing, err := h.service.Create(ctx, req)
	if err != nil {
		if errors.Is(err, ErrInvalidProjectType) {
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"project_type": "oneof"})
			return
		}
		log.Error("briefing create: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	h.dispatch(func() {
		notifyCtx, notifyCancel := context.WithTimeout(context.Background(), 8*time.Second)
		defer notifyCancel()
		if err := h.service.NotifyAgency(notifyCtx, briefing); err != nil {
			h.log.Warn("briefing create: agency notification failed",
				slog.String("briefing_id", briefing.ID),
				slog.String("error", err.Error()),
			)
		}
		if err := h.service.NotifyClient(notifyCtx, briefing); err != nil {
			h.log.Warn("briefing create: client confirmation failed",
				slog.String("briefing_id", briefing.ID),
				slog.String("email", briefing.Email),
				slog.String("error", err.Error()),
			)
		}
	})

	log.Info("briefing create: ok", slog.String("briefing_id", briefing.ID), slog.String("project_type", briefing.ProjectType))
	transport.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "briefing submitted",
		"id":      briefing.ID,
	})
}

func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 20, 100)
	if err != nil {
		log.Warn("admin briefings list: invalid query", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	filter := ListFilter{Status: strings.TrimSpace(r.URL.Query().Get("status"))}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, total, err := h.service.ListAdmin(ctx, filter, limit, offset)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"status": "oneof"})
			return
		}
		log.Error("admin briefings list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("admin briefings list: ok", slog.Int("count", len(items)))
	transport.WritePage(w, items, limit, offset, total)
}

func (h *Handler) AdminGetByID(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	briefing, err := h.service.GetAdminByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			log.Warn("admin briefing get: not found", slog.String("briefing_id", id))
			transport.WriteError(w, http.StatusNotFound, "briefing not found", nil)
			return
		}
		log.Error("admin briefing get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, briefing)
}

func (h *Handler) AdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	var req StatusUpdateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("admin briefing status: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("admin briefing status: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	briefing, err := h.service.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidStatus):
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"status": "oneof"})
		case errors.Is(err, ErrNotFound):
			log.Warn("admin briefing status: not found", slog.String("briefing_id", id))
			transport.WriteError(w, http.StatusNotFound, "briefing not found", nil)
		default:
			log.Error("admin briefing status: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	log.Info("admin briefing status: ok", slog.String("briefing_id", id), slog.String("status", briefing.Status))
	transport.WriteJSON(w, http.StatusOK, briefing)
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
