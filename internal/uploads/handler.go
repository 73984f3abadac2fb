package uploads

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"workflow-backend/internal/httpx"
	"workflow-backend/internal/middleware"
	"workflow-backend/internal/transport"
	"workflow-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

const multipartOverhead = 1 << 20

type Handler struct {
	service *Service
	val     *validation.Validator
	log     *slog.Logger
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{service: service, val: val, log: log}
}

// Upload accepts a single multipart "file" field.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	r.Body = http.MaxBytesReader(w, r.Body, h.service.MaxBytes()+multipartOverhead)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			log.Warn("uploads single: body too large")
			transport.WriteError(w, http.StatusRequestEntityTooLarge, ErrFileTooLarge.Error(), nil)
			return
		}
		log.Warn("uploads single: missing file", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, "missing file", nil)
		return
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	result, err := h.service.Upload(ctx, header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		h.writeServiceError(w, log, "uploads single", err)
		return
	}

	log.Info("uploads single: ok", slog.String("key", result.Key), slog.Int64("size", result.Size))
	transport.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)

	var req StartSessionRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("uploads session start: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		log.Warn("uploads session start: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	session, err := h.service.StartSession(ctx, req)
	if err != nil {
		h.writeServiceError(w, log, "uploads session start", err)
		return
	}

	log.Info("uploads session start: ok", slog.String("session_id", session.ID), slog.Int("parts", session.TotalParts))
	transport.WriteJSON(w, http.StatusCreated, session)
}

// PutPart takes the raw part bytes as the request body.
func (h *Handler) PutPart(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		log.Warn("uploads part: invalid part number")
		transport.WriteError(w, http.StatusBadRequest, ErrInvalidPart.Error(), nil)
		return
	}
	if r.ContentLength <= 0 {
		log.Warn("uploads part: missing content length")
		transport.WriteError(w, http.StatusLengthRequired, "content length required", nil)
		return
	}
	if r.ContentLength > PartSize {
		log.Warn("uploads part: too large", slog.Int64("size", r.ContentLength))
		transport.WriteError(w, http.StatusRequestEntityTooLarge, ErrPartSize.Error(), nil)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, PartSize)

	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	session, err := h.service.PutPart(ctx, id, n, r.ContentLength, r.Body)
	if err != nil {
		h.writeServiceError(w, log, "uploads part", err)
		return
	}

	log.Info("uploads part: ok", slog.String("session_id", id), slog.Int("part", n))
	transport.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	result, err := h.service.Complete(ctx, id)
	if err != nil {
		h.writeServiceError(w, log, "uploads complete", err)
		return
	}

	log.Info("uploads complete: ok", slog.String("session_id", id), slog.String("key", result.Key))
	transport.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) writeServiceError(w http.ResponseWriter, log *slog.Logger, area string, err error) {
	switch {
	case errors.Is(err, ErrFileTooLarge):
		log.Warn(area + ": file too large")
		transport.WriteError(w, http.StatusRequestEntityTooLarge, err.Error(), nil)
	case errors.Is(err, ErrEmptyFile), errors.Is(err, ErrExtensionNotAllowed),
		errors.Is(err, ErrInvalidPart), errors.Is(err, ErrPartSize):
		log.Warn(area+": rejected", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, ErrSessionNotFound):
		log.Warn(area + ": session not found")
		transport.WriteError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, ErrSessionClosed), errors.Is(err, ErrIncomplete):
		log.Warn(area+": conflict", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusConflict, err.Error(), nil)
	default:
		log.Error(area+": storage error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadGateway, "storage error", nil)
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
