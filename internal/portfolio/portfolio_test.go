package portfolio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"workflow-backend/internal/cache"
	"workflow-backend/internal/validation"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type memoryRepo struct {
	mu          sync.Mutex
	items       map[string]Project
	publicReads int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[string]Project)}
}

func (m *memoryRepo) Create(ctx context.Context, item Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.items {
		if existing.Slug == item.Slug {
			return ErrSlugTaken
		}
	}
	m.items[item.ID] = item
	return nil
}

func (m *memoryRepo) Update(ctx context.Context, id string, set bson.M) (Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	item.Title = set["title"].(string)
	item.Slug = set["slug"].(string)
	item.Category = set["category"].(string)
	item.Summary = set["summary"].(string)
	item.LiveURL = set["live_url"].(string)
	item.IsPublic = set["is_public"].(bool)
	item.SortOrder = set["sort_order"].(int)
	m.items[id] = item
	return item, nil
}

func (m *memoryRepo) SetThumbnail(ctx context.Context, id, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	item.ThumbnailURL = url
	m.items[id] = item
	return nil
}

func (m *memoryRepo) Delete(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.items[id]
	delete(m.items, id)
	return ok, nil
}

func (m *memoryRepo) GetByID(ctx context.Context, id string) (Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return Project{}, ErrNotFound
	}
	return item, nil
}

func (m *memoryRepo) sorted(keep func(Project) bool) []Project {
	out := make([]Project, 0)
	for _, item := range m.items {
		if keep(item) {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Slug < out[j].Slug
	})
	return out
}

func (m *memoryRepo) ListPublic(ctx context.Context) ([]Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publicReads++
	return m.sorted(func(p Project) bool { return p.IsPublic }), nil
}

func (m *memoryRepo) ListAdmin(ctx context.Context, filter ListFilter, limit, offset int64) ([]Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sorted(func(p Project) bool { return filter.Category == "" || p.Category == filter.Category })
	if offset >= int64(len(out)) {
		return []Project{}, nil
	}
	out = out[offset:]
	if limit < int64(len(out)) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryRepo) CountAdmin(ctx context.Context, filter ListFilter) (int64, error) {
	items, _ := m.ListAdmin(ctx, filter, 1<<30, 0)
	return int64(len(items)), nil
}

type failingCache struct{}

func (failingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, errors.New("redis down")
}
func (failingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.New("redis down")
}
func (failingCache) Delete(ctx context.Context, key string) error { return errors.New("redis down") }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(repo Repository, store cache.Cache) *Service {
	return NewService(repo, store, time.Minute, time.UTC, discardLogger())
}

func boolPtr(v bool) *bool { return &v }
func intPtr(v int) *int    { return &v }

func TestCreateDerivesSlug(t *testing.T) {
	svc := newTestService(newMemoryRepo(), cache.NewMemory())

	item, err := svc.Create(context.Background(), UpsertRequest{
		Title:    "Clínica Sorriso",
		Category: "saude",
		Summary:  "Site institucional",
	})
	require.NoError(t, err)
	assert.Equal(t, "clinica-sorriso", item.Slug)
	assert.True(t, item.IsPublic)
	assert.NotEmpty(t, item.ID)

	_, err = svc.Create(context.Background(), UpsertRequest{Title: "Clinica Sorriso", Category: "saude", Summary: "x"})
	assert.ErrorIs(t, err, ErrSlugTaken)

	_, err = svc.Create(context.Background(), UpsertRequest{Title: "!!!", Category: "x", Summary: "x"})
	assert.ErrorIs(t, err, ErrEmptySlug)
}

func TestListPublicCachesAndInvalidates(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, cache.NewMemory())
	ctx := context.Background()

	_, err := svc.Create(ctx, UpsertRequest{Title: "Loja A", Category: "ecommerce", Summary: "a", SortOrder: intPtr(2)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, UpsertRequest{Title: "Escritorio B", Category: "institucional", Summary: "b", SortOrder: intPtr(1)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, UpsertRequest{Title: "Rascunho", Category: "ecommerce", Summary: "c", IsPublic: boolPtr(false)})
	require.NoError(t, err)

	items, err := svc.ListPublic(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "escritorio-b", items[0].Slug)

	filtered, err := svc.ListPublic(ctx, ListFilter{Category: "ECOMMERCE"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "loja-a", filtered[0].Slug)
	assert.Equal(t, 1, repo.publicReads)

	created, err := svc.Create(ctx, UpsertRequest{Title: "Loja C", Category: "ecommerce", Summary: "c", SortOrder: intPtr(3)})
	require.NoError(t, err)
	items, err = svc.ListPublic(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, 2, repo.publicReads)

	require.NoError(t, svc.Delete(ctx, created.ID))
	items, err = svc.ListPublic(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 3, repo.publicReads)
}

func TestListPublicSurvivesCacheOutage(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, failingCache{})
	ctx := context.Background()

	_, err := svc.Create(ctx, UpsertRequest{Title: "Loja A", Category: "ecommerce", Summary: "a"})
	require.NoError(t, err)

	items, err := svc.ListPublic(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestLiveHosts(t *testing.T) {
	svc := newTestService(newMemoryRepo(), cache.NewMemory())
	ctx := context.Background()
	for _, req := range []UpsertRequest{
		{Title: "A", Category: "x", Summary: "x", LiveURL: "https://Loja-A.com.br/home"},
		{Title: "B", Category: "x", Summary: "x", LiveURL: "https://loja-a.com.br/outra"},
		{Title: "C", Category: "x", Summary: "x"},
		{Title: "D", Category: "x", Summary: "x", LiveURL: "https://privado.dev", IsPublic: boolPtr(false)},
	} {
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}

	hosts, err := svc.LiveHosts(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"loja-a.com.br"}, hosts)
}

type fakeThumbnailer struct {
	key, url string
	err      error
}

func (f *fakeThumbnailer) Capture(ctx context.Context, key, pageURL string) (string, error) {
	f.key, f.url = key, pageURL
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.workflow.dev/" + key + ".png", nil
}

func newRouter(svc *Service, thumb Thumbnailer) http.Handler {
	h := NewHandler(svc, validation.New(), discardLogger(), thumb)
	r := chi.NewRouter()
	r.Get("/portfolio", h.PublicList)
	r.Get("/portfolio/{slug}", h.PublicGetBySlug)
	r.Get("/admin/portfolio", h.AdminList)
	r.Post("/admin/portfolio", h.AdminCreate)
	r.Put("/admin/portfolio/{id}", h.AdminUpdate)
	r.Delete("/admin/portfolio/{id}", h.AdminDelete)
	r.Post("/admin/portfolio/{id}/thumbnail", h.AdminCaptureThumbnail)
	return r
}

func TestHandlerCreateAndConflict(t *testing.T) {
	router := newRouter(newTestService(newMemoryRepo(), cache.NewMemory()), nil)
	body := `{"title":"Pet Shop Amigo","category":"pet","summary":"Landing page","live_url":"https://petamigo.com.br"}`

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/portfolio", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"slug":"pet-shop-amigo"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/portfolio", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/portfolio", strings.NewReader(`{"title":"x","category":"x","summary":"x","slug":"Not A Slug"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "slug")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/admin/portfolio/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerCaptureThumbnail(t *testing.T) {
	svc := newTestService(newMemoryRepo(), cache.NewMemory())
	item, err := svc.Create(context.Background(), UpsertRequest{
		Title: "Pet Shop Amigo", Category: "pet", Summary: "x", LiveURL: "https://petamigo.com.br",
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	newRouter(svc, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/portfolio/"+item.ID+"/thumbnail", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	thumb := &fakeThumbnailer{}
	rec = httptest.NewRecorder()
	newRouter(svc, thumb).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/portfolio/"+item.ID+"/thumbnail", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "portfolio/pet-shop-amigo", thumb.key)
	assert.Equal(t, "https://petamigo.com.br", thumb.url)

	stored, err := svc.Get(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.workflow.dev/portfolio/pet-shop-amigo.png", stored.ThumbnailURL)

	rec = httptest.NewRecorder()
	newRouter(svc, &fakeThumbnailer{err: errors.New("chrome crashed")}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/portfolio/"+item.ID+"/thumbnail", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandlerPublicGetBySlug(t *testing.T) {
	svc := newTestService(newMemoryRepo(), cache.NewMemory())
	_, err := svc.Create(context.Background(), UpsertRequest{Title: "Pet Shop Amigo", Category: "pet", Summary: "x"})
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), UpsertRequest{Title: "Rascunho", Category: "pet", Summary: "x", IsPublic: boolPtr(false)})
	require.NoError(t, err)
	router := newRouter(svc, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/portfolio/pet-shop-amigo", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"title":"Pet Shop Amigo"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/portfolio/rascunho", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
