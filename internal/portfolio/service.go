package portfolio

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"workflow-backend/internal/cache"
	"workflow-backend/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrNotFound  = errors.New("project not found")
	ErrSlugTaken = errors.New("slug already in use")
	ErrEmptySlug = errors.New("title does not produce a slug")
)

const publicListKey = "portfolio:public"

type Service struct {
	repo     Repository
	cache    cache.Cache
	ttl      time.Duration
	location *time.Location
	log      *slog.Logger
}

func NewService(repo Repository, store cache.Cache, ttl time.Duration, location *time.Location, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		cache:    store,
		ttl:      ttl,
		location: location,
		log:      log,
	}
}

func (s *Service) Create(ctx context.Context, req UpsertRequest) (Project, error) {
	slug, err := slugFor(req)
	if err != nil {
		return Project{}, err
	}
	now := time.Now().In(s.location)
	item := Project{
		ID:           primitive.NewObjectID().Hex(),
		Title:        strings.TrimSpace(req.Title),
		Slug:         slug,
		Category:     strings.TrimSpace(req.Category),
		Summary:      strings.TrimSpace(req.Summary),
		LiveURL:      strings.TrimSpace(req.LiveURL),
		ThumbnailURL: strings.TrimSpace(req.ThumbnailURL),
		IsPublic:     isPublic(req),
		SortOrder:    sortOrder(req),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return Project{}, err
	}
	s.invalidate(ctx)
	return item, nil
}

func (s *Service) Update(ctx context.Context, id string, req UpsertRequest) (Project, error) {
	slug, err := slugFor(req)
	if err != nil {
		return Project{}, err
	}
	set := bson.M{
		"title":         strings.TrimSpace(req.Title),
		"slug":          slug,
		"category":      strings.TrimSpace(req.Category),
		"summary":       strings.TrimSpace(req.Summary),
		"live_url":      strings.TrimSpace(req.LiveURL),
		"thumbnail_url": strings.TrimSpace(req.ThumbnailURL),
		"is_public":     isPublic(req),
		"sort_order":    sortOrder(req),
		"updated_at":    time.Now().In(s.location),
	}
	updated, err := s.repo.Update(ctx, strings.TrimSpace(id), set)
	if err != nil {
		return Project{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

func (s *Service) SetThumbnail(ctx context.Context, id, thumbnailURL string) error {
	if err := s.repo.SetThumbnail(ctx, strings.TrimSpace(id), thumbnailURL); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	deleted, err := s.repo.Delete(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (Project, error) {
	return s.repo.GetByID(ctx, strings.TrimSpace(id))
}

// ListPublic serves the public portfolio from cache. A cache failure falls
// through to the database.
func (s *Service) ListPublic(ctx context.Context, filter ListFilter) ([]Project, error) {
	var items []Project
	ok, err := cache.GetJSON(ctx, s.cache, publicListKey, &items)
	if err != nil {
		s.log.Warn("portfolio cache: read failed", slog.String("error", err.Error()))
	}
	if !ok {
		items, err = s.repo.ListPublic(ctx)
		if err != nil {
			return nil, err
		}
		if err := cache.SetJSON(ctx, s.cache, publicListKey, items, s.ttl); err != nil {
			s.log.Warn("portfolio cache: write failed", slog.String("error", err.Error()))
		}
	}

	category := strings.TrimSpace(filter.Category)
	if category == "" {
		return items, nil
	}
	out := make([]Project, 0, len(items))
	for _, item := range items {
		if strings.EqualFold(item.Category, category) {
			out = append(out, item)
		}
	}
	return out, nil
}

// GetPublicBySlug looks the project up in the cached public list.
func (s *Service) GetPublicBySlug(ctx context.Context, slug string) (Project, error) {
	items, err := s.ListPublic(ctx, ListFilter{})
	if err != nil {
		return Project{}, err
	}
	slug = strings.ToLower(strings.TrimSpace(slug))
	for _, item := range items {
		if item.Slug == slug {
			return item, nil
		}
	}
	return Project{}, ErrNotFound
}

func (s *Service) ListAdmin(ctx context.Context, filter ListFilter, limit, offset int64) ([]Project, int64, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	items, err := s.repo.ListAdmin(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.repo.CountAdmin(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// LiveHosts returns the hostnames of every public project's live site.
func (s *Service) LiveHosts(ctx context.Context) ([]string, error) {
	items, err := s.ListPublic(ctx, ListFilter{})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(items))
	hosts := make([]string, 0, len(items))
	for _, item := range items {
		u, err := url.Parse(item.LiveURL)
		if err != nil || u.Hostname() == "" {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if _, ok := seen[host]; ok {
			continue
		}
		seen[host] = struct{}{}
		hosts = append(hosts, host)
	}
	return hosts, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, publicListKey); err != nil {
		s.log.Warn("portfolio cache: invalidate failed", slog.String("error", err.Error()))
	}
}

func slugFor(req UpsertRequest) (string, error) {
	slug := strings.TrimSpace(req.Slug)
	if slug == "" {
		slug = utils.Slugify(req.Title)
	}
	if slug == "" {
		return "", ErrEmptySlug
	}
	return slug, nil
}

func isPublic(req UpsertRequest) bool {
	if req.IsPublic != nil {
		return *req.IsPublic
	}
	return true
}

func sortOrder(req UpsertRequest) int {
	if req.SortOrder != nil {
		return *req.SortOrder
	}
	return 0
}
