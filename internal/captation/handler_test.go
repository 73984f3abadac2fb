package captation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"workflow-backend/internal/cache"
	"workflow-backend/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(p *pipeline) http.Handler {
	tracker := NewJobTracker(cache.NewMemory(), p.importer, time.Hour, time.UTC, discardLogger())
	service := NewService(ServiceDeps{
		Refs:     p.store,
		Sites:    p.store,
		Resolver: p.resolver,
		Builder:  p.builder,
		Jobs:     tracker,
		Location: time.UTC,
	})
	h := NewHandler(service, validation.New(), discardLogger())

	r := chi.NewRouter()
	r.Post("/preview", h.Preview)
	r.Post("/imports", h.StartImport)
	r.Get("/imports/{id}", h.GetImport)
	r.Delete("/imports/{id}", h.CancelImport)
	r.Get("/sites", h.ListSites)
	r.Get("/sites/{id}", h.GetSite)
	r.Patch("/sites/{id}", h.UpdateSite)
	r.Patch("/sites/{id}/status", h.UpdateStatus)
	r.Get("/states", h.ListStates)
	r.Get("/states/{id}/cities", h.ListCities)
	r.Get("/categories", h.ListCategories)
	return r
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

func TestHandlerPreviewMultipart(t *testing.T) {
	router := newTestRouter(newPipeline())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "export.json")
	require.NoError(t, err)
	_, err = part.Write([]byte(`[{"name":"Barbearia Silva","address":"Rua A, Porto Alegre - RS"},{"name":"Loja","address":"sem estado"}]`))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/preview", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Items   []PreviewItem  `json:"items"`
		Summary map[string]int `json:"summary"`
	}
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "RS", resp.Items[0].Parsed.State)
	assert.Equal(t, 1, resp.Summary["valid"])
	assert.Equal(t, 1, resp.Summary["errors"])
}

func TestHandlerPreviewRejectsFile(t *testing.T) {
	router := newTestRouter(newPipeline())

	req := httptest.NewRequest(http.MethodPost, "/preview", strings.NewReader(`[]`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), ErrEmptyFile.Error())
}

func TestHandlerImportFlow(t *testing.T) {
	p := newPipeline()
	router := newTestRouter(p)

	payload, err := json.Marshal(ImportRequest{Items: []PreviewItem{
		validItem("Barbearia Silva", "RS", "Porto Alegre", "Barbearia"),
	}})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/imports", bytes.NewReader(payload)))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var job Job
	decodeBody(t, rec, &job)
	require.NotEmpty(t, job.ID)

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports/"+job.ID, nil))
		if rec.Code != http.StatusOK {
			return false
		}
		var polled Job
		if err := json.Unmarshal(rec.Body.Bytes(), &polled); err != nil {
			return false
		}
		return polled.Status == JobCompleted && polled.Result != nil && polled.Result.Success == 1
	}, 5*time.Second, 10*time.Millisecond)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sites?status=pending", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Items []Site `json:"items"`
		Total int64  `json:"total"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Items, 1)
	assert.Equal(t, int64(1), list.Total)

	siteID := list.Items[0].ID
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/sites/"+siteID+"/status", strings.NewReader(`{"status":"to_send"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var updated Site
	decodeBody(t, rec, &updated)
	assert.Equal(t, StatusToSend, updated.ProposalStatus)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/sites/"+siteID+"/status", strings.NewReader(`{"status":"won"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/sites/"+siteID, strings.NewReader(`{"notes":"Ligar na segunda","phone":"(51) 3333-4444"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &updated)
	assert.Equal(t, "Ligar na segunda", updated.Notes)
	assert.Equal(t, "555133334444", updated.Phone)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/imports/"+job.ID, nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerImportValidation(t *testing.T) {
	router := newTestRouter(newPipeline())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/imports", strings.NewReader(`{"items":[]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/imports/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/sites/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerTaxonomy(t *testing.T) {
	p := newPipeline()
	p.store.seedSite("RS", "Pelotas", "Loja", "")
	router := newTestRouter(p)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/states", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var states struct {
		Items []State `json:"items"`
	}
	decodeBody(t, rec, &states)
	assert.Len(t, states.Items, 27)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/states/%s/cities", "state-RS"), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Pelotas")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/states/nope/cities", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
