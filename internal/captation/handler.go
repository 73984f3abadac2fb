package captation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"workflow-backend/internal/httpx"
	"workflow-backend/internal/middleware"
	"workflow-backend/internal/transport"
	"workflow-backend/internal/validation"

	"github.com/go-chi/chi/v5"
)

const (
	multipartOverhead = 1 << 20
	maxImportBody     = 16 << 20
)

type Handler struct {
	service *Service
	val     *validation.Validator
	log     *slog.Logger
}

func NewHandler(service *Service, val *validation.Validator, log *slog.Logger) *Handler {
	return &Handler{
		service: service,
		val:     val,
		log:     log,
	}
}

// Preview accepts the export either as a multipart "file" field or as a raw
// JSON body.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	limits := h.service.Limits()
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxBytes+multipartOverhead)

	opts := PreviewOptions{DefaultStateID: strings.TrimSpace(r.URL.Query().Get("default_state_id"))}

	var file io.Reader = r.Body
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(limits.MaxBytes); err != nil {
			log.Warn("captation preview: invalid form", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusBadRequest, "invalid form", nil)
			return
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			log.Warn("captation preview: missing file")
			transport.WriteError(w, http.StatusBadRequest, "missing file", map[string]string{"file": "required"})
			return
		}
		defer f.Close()
		file = f
		if v := strings.TrimSpace(r.FormValue("default_state_id")); v != "" {
			opts.DefaultStateID = v
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	items, err := h.service.Preview(ctx, file, opts)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case IsInputError(err):
			log.Warn("captation preview: rejected file", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		case errors.As(err, &maxErr):
			transport.WriteError(w, http.StatusRequestEntityTooLarge, ErrFileTooLarge.Error(), nil)
		default:
			log.Error("captation preview: failed", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	summary := summarizePreview(items)
	log.Info("captation preview: ok",
		slog.Int("count", len(items)),
		slog.Int("duplicates", summary["duplicates"]),
		slog.Int("errors", summary["errors"]),
	)
	transport.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items":   items,
		"summary": summary,
	})
}

func (h *Handler) StartImport(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBody)

	var req ImportRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("captation import: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("captation import: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	job, err := h.service.StartImport(ctx, req)
	if err != nil {
		log.Error("captation import: start failed", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "cache error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusAccepted, job)
}

func (h *Handler) GetImport(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	job, err := h.service.GetImport(ctx, id)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			transport.WriteError(w, http.StatusNotFound, "import not found", nil)
			return
		}
		log.Error("captation import get: cache error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "cache error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, job)
}

func (h *Handler) CancelImport(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.service.CancelImport(ctx, id); err != nil {
		switch {
		case errors.Is(err, ErrJobNotFound):
			transport.WriteError(w, http.StatusNotFound, "import not found", nil)
		case errors.Is(err, ErrJobFinished):
			transport.WriteError(w, http.StatusConflict, "import already finished", nil)
		default:
			log.Error("captation import cancel: cache error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "cache error", nil)
		}
		return
	}

	log.Info("captation import cancel: ok", slog.String("job_id", id))
	transport.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	limit, offset, err := httpx.ParseLimitOffset(r.URL.Query(), 20, 100)
	if err != nil {
		log.Warn("captation sites list: invalid query", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	q := r.URL.Query()
	filter := SiteFilter{
		Status:     q.Get("status"),
		CityID:     q.Get("city_id"),
		CategoryID: q.Get("category_id"),
		Search:     q.Get("q"),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 8*time.Second)
	defer cancel()

	items, total, err := h.service.ListSites(ctx, filter, limit, offset)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			transport.WriteError(w, http.StatusBadRequest, "invalid query", map[string]string{"status": "oneof"})
			return
		}
		log.Error("captation sites list: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	log.Info("captation sites list: ok", slog.Int("count", len(items)))
	transport.WritePage(w, items, limit, offset, total)
}

func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	site, err := h.service.GetSite(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			transport.WriteError(w, http.StatusNotFound, "site not found", nil)
			return
		}
		log.Error("captation site get: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}

	transport.WriteJSON(w, http.StatusOK, site)
}

func (h *Handler) UpdateSite(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	var req UpdateSiteRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("captation site update: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("captation site update: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	site, err := h.service.UpdateSite(ctx, id, req)
	if err != nil {
		switch {
		case errors.Is(err, ErrCategoryNotFound):
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"category_id": "exists"})
		case errors.Is(err, ErrNotFound):
			transport.WriteError(w, http.StatusNotFound, "site not found", nil)
		default:
			log.Error("captation site update: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	log.Info("captation site update: ok", slog.String("site_id", id))
	transport.WriteJSON(w, http.StatusOK, site)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	id := strings.TrimSpace(chi.URLParam(r, "id"))

	var req StatusUpdateRequest
	if err := httpx.DecodeJSON(r.Body, &req); err != nil {
		log.Warn("captation site status: invalid json")
		transport.WriteError(w, http.StatusBadRequest, "invalid json", nil)
		return
	}

	if err := h.val.Struct(req); err != nil {
		log.Warn("captation site status: validation error")
		transport.WriteError(w, http.StatusBadRequest, "validation error", httpx.ValidationDetails(h.val.ValidationErrors(err)))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	site, err := h.service.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidStatus):
			transport.WriteError(w, http.StatusBadRequest, "validation error", map[string]string{"status": "oneof"})
		case errors.Is(err, ErrNotFound):
			transport.WriteError(w, http.StatusNotFound, "site not found", nil)
		default:
			log.Error("captation site status: database error", slog.String("error", err.Error()))
			transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		}
		return
	}

	log.Info("captation site status: ok", slog.String("site_id", id), slog.String("status", site.ProposalStatus))
	transport.WriteJSON(w, http.StatusOK, site)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.service.ListCategories(ctx)
	if err != nil {
		h.logWithRequest(r).Error("captation categories: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	transport.WriteList(w, items)
}

func (h *Handler) ListStates(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.service.ListStates(ctx)
	if err != nil {
		h.logWithRequest(r).Error("captation states: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	transport.WriteList(w, items)
}

func (h *Handler) ListCities(w http.ResponseWriter, r *http.Request) {
	log := h.logWithRequest(r)
	stateID := strings.TrimSpace(chi.URLParam(r, "id"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.service.ListCities(ctx, stateID)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			transport.WriteError(w, http.StatusNotFound, "state not found", nil)
			return
		}
		log.Error("captation cities: database error", slog.String("error", err.Error()))
		transport.WriteError(w, http.StatusInternalServerError, "database error", nil)
		return
	}
	transport.WriteList(w, items)
}

func summarizePreview(items []PreviewItem) map[string]int {
	summary := map[string]int{"total": len(items), "valid": 0, "duplicates": 0, "errors": 0}
	for _, item := range items {
		switch {
		case item.Error != "":
			summary["errors"]++
		case item.IsDuplicate:
			summary["duplicates"]++
		default:
			summary["valid"]++
		}
	}
	return summary
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
