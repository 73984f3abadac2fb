package captation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

var (
	ErrStateNotFound = errors.New("state not found")
	ErrEmptyName     = errors.New("empty name")
)

var categoryPalette = []string{
	"#3B82F6",
	"#10B981",
	"#F59E0B",
	"#EF4444",
	"#8B5CF6",
	"#EC4899",
	"#14B8A6",
	"#F97316",
	"#6366F1",
	"#84CC16",
}

// Resolver maps free-text labels to taxonomy rows, creating cities and
// categories on first use. States are reference data and are only read.
type Resolver struct {
	repo     ReferenceRepository
	location *time.Location
	pick     func(n int) int

	mu     sync.RWMutex
	states map[string]State
}

func NewResolver(repo ReferenceRepository, location *time.Location) *Resolver {
	return &Resolver{
		repo:     repo,
		location: location,
		pick:     rand.IntN,
		states:   make(map[string]State),
	}
}

func (r *Resolver) ResolveStateByAbbreviation(ctx context.Context, code string) (State, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !IsValidUF(code) {
		return State{}, ErrStateNotFound
	}

	r.mu.RLock()
	state, ok := r.states[code]
	r.mu.RUnlock()
	if ok {
		return state, nil
	}

	state, err := r.repo.FindStateByAbbreviation(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return State{}, ErrStateNotFound
		}
		return State{}, err
	}

	r.mu.Lock()
	r.states[code] = state
	r.mu.Unlock()
	return state, nil
}

func (r *Resolver) StateByID(ctx context.Context, id string) (State, error) {
	state, err := r.repo.FindStateByID(ctx, strings.TrimSpace(id))
	if errors.Is(err, ErrNotFound) {
		return State{}, ErrStateNotFound
	}
	return state, err
}

// LookupCity finds an existing city without creating it.
func (r *Resolver) LookupCity(ctx context.Context, name, stateID string) (City, error) {
	key := NameKey(name)
	if key == "" {
		return City{}, ErrEmptyName
	}
	return r.repo.FindCity(ctx, stateID, key)
}

func (r *Resolver) ResolveCity(ctx context.Context, name, stateID string) (City, error) {
	name = strings.Join(strings.Fields(name), " ")
	key := NameKey(name)
	if key == "" || stateID == "" {
		return City{}, ErrEmptyName
	}
	return r.repo.GetOrCreateCity(ctx, City{
		Name:      name,
		NameKey:   key,
		StateID:   stateID,
		CreatedAt: nowIn(r.location),
	})
}

func (r *Resolver) ResolveCategory(ctx context.Context, label string) (Category, error) {
	label = strings.Join(strings.Fields(label), " ")
	key := NameKey(label)
	if key == "" {
		return Category{}, ErrEmptyName
	}
	return r.repo.GetOrCreateCategory(ctx, Category{
		Name:        label,
		NameKey:     key,
		Description: fmt.Sprintf("Categoria %s criada automaticamente na importação", label),
		Color:       categoryPalette[r.pick(len(categoryPalette))],
		CreatedAt:   nowIn(r.location),
	})
}

func (r *Resolver) CategoryByID(ctx context.Context, id string) (Category, error) {
	return r.repo.FindCategoryByID(ctx, strings.TrimSpace(id))
}
