package captation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// memoryStore is an in-memory ReferenceRepository and SiteRepository with the
// same uniqueness rules as the Mongo indexes.
type memoryStore struct {
	mu         sync.Mutex
	seq        int
	states     map[string]State
	cities     map[string]City
	categories map[string]Category
	sites      []Site

	insertErr    map[string]error
	panicOn      map[string]bool
	lookupErr    error
	inserts      int
	cityCreates  int
	beforeInsert func(site Site)
	// afterPhoneLookup runs once the phone check has read the store.
	afterPhoneLookup func()
}

func newMemoryStore() *memoryStore {
	s := &memoryStore{
		states:     make(map[string]State),
		cities:     make(map[string]City),
		categories: make(map[string]Category),
		insertErr:  make(map[string]error),
		panicOn:    make(map[string]bool),
	}
	for code, name := range StateCodes() {
		s.states[code] = State{ID: "state-" + code, Name: name, Abbreviation: code}
	}
	return s
}

func (s *memoryStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *memoryStore) FindStateByAbbreviation(ctx context.Context, abbreviation string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[abbreviation]; ok {
		return st, nil
	}
	return State{}, ErrNotFound
}

func (s *memoryStore) FindStateByID(ctx context.Context, id string) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.states {
		if st.ID == id {
			return st, nil
		}
	}
	return State{}, ErrNotFound
}

func (s *memoryStore) ListStates(ctx context.Context) ([]State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]State, 0, len(s.states))
	for _, st := range s.states {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Abbreviation < out[j].Abbreviation })
	return out, nil
}

func (s *memoryStore) FindCity(ctx context.Context, stateID, nameKey string) (City, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return City{}, s.lookupErr
	}
	if c, ok := s.cities[stateID+"|"+nameKey]; ok {
		return c, nil
	}
	return City{}, ErrNotFound
}

func (s *memoryStore) GetOrCreateCity(ctx context.Context, city City) (City, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := city.StateID + "|" + city.NameKey
	if c, ok := s.cities[key]; ok {
		return c, nil
	}
	city.ID = s.nextID("city")
	s.cities[key] = city
	s.cityCreates++
	return city, nil
}

func (s *memoryStore) ListCities(ctx context.Context, stateID string) ([]City, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]City, 0)
	for _, c := range s.cities {
		if c.StateID == stateID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NameKey < out[j].NameKey })
	return out, nil
}

func (s *memoryStore) FindCategoryByID(ctx context.Context, id string) (Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.ID == id {
			return c, nil
		}
	}
	return Category{}, ErrNotFound
}

func (s *memoryStore) GetOrCreateCategory(ctx context.Context, category Category) (Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.categories[category.NameKey]; ok {
		return c, nil
	}
	category.ID = s.nextID("category")
	s.categories[category.NameKey] = category
	return category, nil
}

func (s *memoryStore) ListCategories(ctx context.Context) ([]Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NameKey < out[j].NameKey })
	return out, nil
}

func (s *memoryStore) ExistsByName(ctx context.Context, cityID, nameKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return false, s.lookupErr
	}
	for _, site := range s.sites {
		if site.CityID == cityID && site.NameKey == nameKey {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) ExistsByPhoneSuffix(ctx context.Context, cityID, suffix string) (bool, error) {
	found, err := s.phoneSuffixStored(cityID, suffix)
	if s.afterPhoneLookup != nil {
		s.afterPhoneLookup()
	}
	return found, err
}

func (s *memoryStore) phoneSuffixStored(cityID, suffix string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lookupErr != nil {
		return false, s.lookupErr
	}
	for _, site := range s.sites {
		if site.CityID == cityID && site.Phone != "" && strings.Contains(site.Phone, suffix) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryStore) Insert(ctx context.Context, site Site) error {
	if s.beforeInsert != nil {
		s.beforeInsert(site)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicOn[site.CompanyName] {
		panic("boom")
	}
	if err := s.insertErr[site.CompanyName]; err != nil {
		return err
	}
	for _, existing := range s.sites {
		if existing.CityID == site.CityID && existing.NameKey == site.NameKey {
			return ErrDuplicateSite
		}
	}
	s.sites = append(s.sites, site)
	s.inserts++
	return nil
}

func (s *memoryStore) List(ctx context.Context, filter SiteFilter, limit, offset int64) ([]Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Site, 0)
	for _, site := range s.sites {
		if filter.Status != "" && site.ProposalStatus != filter.Status {
			continue
		}
		if filter.CityID != "" && site.CityID != filter.CityID {
			continue
		}
		out = append(out, site)
	}
	if offset >= int64(len(out)) {
		return []Site{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < int64(len(out)) {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) Count(ctx context.Context, filter SiteFilter) (int64, error) {
	items, err := s.List(ctx, filter, 0, 0)
	return int64(len(items)), err
}

func (s *memoryStore) GetByID(ctx context.Context, id string) (Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, site := range s.sites {
		if site.ID == id {
			return site, nil
		}
	}
	return Site{}, ErrNotFound
}

func (s *memoryStore) Update(ctx context.Context, id string, update SiteUpdate) (Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.sites {
		if s.sites[i].ID != id {
			continue
		}
		site := &s.sites[i]
		if update.ProposalStatus != nil {
			site.ProposalStatus = *update.ProposalStatus
		}
		if update.Phone != nil {
			site.Phone = *update.Phone
		}
		if update.WebsiteURL != nil {
			site.WebsiteURL = *update.WebsiteURL
		}
		if update.ContactLink != nil {
			site.ContactLink = *update.ContactLink
		}
		if update.Notes != nil {
			site.Notes = *update.Notes
		}
		if update.CategoryID != nil {
			site.CategoryID = *update.CategoryID
		}
		site.UpdatedAt = update.UpdatedAt
		return *site, nil
	}
	return Site{}, ErrNotFound
}

func (s *memoryStore) siteCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sites)
}

// seedSite stores a lead in the given city, creating the city if needed.
func (s *memoryStore) seedSite(stateCode, cityName, companyName, phone string) Site {
	city, _ := s.GetOrCreateCity(context.Background(), City{
		Name:    cityName,
		NameKey: NameKey(cityName),
		StateID: "state-" + stateCode,
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	site := Site{
		ID:             s.nextID("site"),
		CompanyName:    companyName,
		NameKey:        NameKey(companyName),
		CityID:         city.ID,
		Phone:          phone,
		ProposalStatus: StatusPending,
		CreatedAt:      time.Now(),
	}
	s.sites = append(s.sites, site)
	return site
}

var errStoreDown = errors.New("connection refused")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type pipeline struct {
	store    *memoryStore
	resolver *Resolver
	detector *Detector
	builder  *PreviewBuilder
	importer *Importer
}

func newPipeline() *pipeline {
	store := newMemoryStore()
	resolver := NewResolver(store, time.UTC)
	resolver.pick = func(int) int { return 0 }
	detector := NewDetector(store)
	log := discardLogger()
	return &pipeline{
		store:    store,
		resolver: resolver,
		detector: detector,
		builder:  NewPreviewBuilder(resolver, detector, log),
		importer: NewImporter(resolver, detector, store, time.UTC, log),
	}
}
