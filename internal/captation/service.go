package captation

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

var (
	ErrInvalidStatus    = errors.New("invalid status")
	ErrCategoryNotFound = errors.New("category not found")
)

// Service is the captation back-office: file preview, background imports and
// the lead CRM.
type Service struct {
	refs     ReferenceRepository
	sites    SiteRepository
	resolver *Resolver
	builder  *PreviewBuilder
	jobs     *JobTracker
	limits   InputLimits
	defaults ImportOptions
	location *time.Location
}

type ServiceDeps struct {
	Refs     ReferenceRepository
	Sites    SiteRepository
	Resolver *Resolver
	Builder  *PreviewBuilder
	Jobs     *JobTracker
	Limits   InputLimits
	Defaults ImportOptions
	Location *time.Location
}

func NewService(deps ServiceDeps) *Service {
	return &Service{
		refs:     deps.Refs,
		sites:    deps.Sites,
		resolver: deps.Resolver,
		builder:  deps.Builder,
		jobs:     deps.Jobs,
		limits:   deps.Limits.withDefaults(),
		defaults: deps.Defaults,
		location: deps.Location,
	}
}

func (s *Service) Limits() InputLimits {
	return s.limits
}

// Preview validates an uploaded export and builds its preview items.
func (s *Service) Preview(ctx context.Context, file io.Reader, opts PreviewOptions) ([]PreviewItem, error) {
	entries, err := ParseListingFile(file, s.limits)
	if err != nil {
		return nil, err
	}
	return s.builder.Build(ctx, entries, opts)
}

func (s *Service) StartImport(ctx context.Context, req ImportRequest) (Job, error) {
	opts := s.defaults
	opts.DefaultCategoryID = strings.TrimSpace(req.DefaultCategoryID)
	return s.jobs.Start(ctx, req.Items, opts)
}

func (s *Service) GetImport(ctx context.Context, id string) (Job, error) {
	return s.jobs.Get(ctx, strings.TrimSpace(id))
}

func (s *Service) CancelImport(ctx context.Context, id string) error {
	return s.jobs.Cancel(ctx, strings.TrimSpace(id))
}

func (s *Service) ListSites(ctx context.Context, filter SiteFilter, limit, offset int64) ([]Site, int64, error) {
	filter.Status = strings.ToLower(strings.TrimSpace(filter.Status))
	filter.CityID = strings.TrimSpace(filter.CityID)
	filter.CategoryID = strings.TrimSpace(filter.CategoryID)
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Status != "" && !IsValidStatus(filter.Status) {
		return nil, 0, ErrInvalidStatus
	}

	items, err := s.sites.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.sites.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *Service) GetSite(ctx context.Context, id string) (Site, error) {
	return s.sites.GetByID(ctx, strings.TrimSpace(id))
}

func (s *Service) UpdateStatus(ctx context.Context, id, status string) (Site, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !IsValidStatus(status) {
		return Site{}, ErrInvalidStatus
	}
	return s.sites.Update(ctx, strings.TrimSpace(id), SiteUpdate{
		ProposalStatus: &status,
		UpdatedAt:      nowIn(s.location),
	})
}

func (s *Service) UpdateSite(ctx context.Context, id string, req UpdateSiteRequest) (Site, error) {
	update := SiteUpdate{UpdatedAt: nowIn(s.location)}
	if req.Phone != nil {
		phone := NormalizePhone(*req.Phone)
		update.Phone = &phone
	}
	if req.WebsiteURL != nil {
		v := strings.TrimSpace(*req.WebsiteURL)
		update.WebsiteURL = &v
	}
	if req.ContactLink != nil {
		v := strings.TrimSpace(*req.ContactLink)
		update.ContactLink = &v
	}
	if req.Notes != nil {
		v := strings.TrimSpace(*req.Notes)
		update.Notes = &v
	}
	if req.CategoryID != nil {
		categoryID := strings.TrimSpace(*req.CategoryID)
		if _, err := s.refs.FindCategoryByID(ctx, categoryID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return Site{}, ErrCategoryNotFound
			}
			return Site{}, err
		}
		update.CategoryID = &categoryID
	}
	return s.sites.Update(ctx, strings.TrimSpace(id), update)
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	return s.refs.ListCategories(ctx)
}

func (s *Service) ListStates(ctx context.Context) ([]State, error) {
	return s.refs.ListStates(ctx)
}

func (s *Service) ListCities(ctx context.Context, stateID string) ([]City, error) {
	state, err := s.resolver.StateByID(ctx, stateID)
	if err != nil {
		return nil, err
	}
	return s.refs.ListCities(ctx, state.ID)
}
