package captation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

const (
	UnidentifiedCity = "Cidade não identificada"

	msgMissingName     = "Nome da empresa não informado"
	msgStateUnresolved = "Estado não identificado no endereço"
)

type PreviewOptions struct {
	DefaultStateID string
}

// PreviewBuilder turns listing entries into preview items. It only reads
// from the store.
type PreviewBuilder struct {
	resolver *Resolver
	detector *Detector
	log      *slog.Logger
}

func NewPreviewBuilder(resolver *Resolver, detector *Detector, log *slog.Logger) *PreviewBuilder {
	return &PreviewBuilder{
		resolver: resolver,
		detector: detector,
		log:      log,
	}
}

// Build returns one preview item per entry, in input order. The only error
// it returns is a context cancellation; store failures downgrade a single
// item's duplicate check.
func (b *PreviewBuilder) Build(ctx context.Context, entries []ListingEntry, opts PreviewOptions) ([]PreviewItem, error) {
	var defaultState *State
	if id := strings.TrimSpace(opts.DefaultStateID); id != "" {
		state, err := b.resolver.StateByID(ctx, id)
		switch {
		case err == nil:
			defaultState = &state
		case errors.Is(err, ErrStateNotFound):
			b.log.Warn("captation preview: default state not found", slog.String("state_id", id))
		default:
			return nil, fmt.Errorf("load default state: %w", err)
		}
	}

	items := make([]PreviewItem, 0, len(entries))
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		items = append(items, b.buildItem(ctx, i, entry, defaultState))
	}
	return items, nil
}

func (b *PreviewBuilder) buildItem(ctx context.Context, index int, entry ListingEntry, defaultState *State) PreviewItem {
	phoneSource := entry.PhoneUnformatted
	if strings.TrimSpace(phoneSource) == "" {
		phoneSource = entry.Phone
	}
	website, contact := classifyWebsite(entry.Website)

	item := PreviewItem{
		Index:    index,
		Original: entry,
		Parsed: ParsedFields{
			CompanyName:        strings.Join(strings.Fields(entry.Name), " "),
			Phone:              NormalizePhone(phoneSource),
			WebsiteURL:         website,
			ContactLink:        contact,
			Category:           strings.TrimSpace(entry.Category),
			Notes:              buildNotes(entry),
			GoogleRating:       entry.Rating,
			GoogleReviewsCount: entry.ReviewsCount,
			GoogleMapsURL:      strings.TrimSpace(entry.URL),
		},
	}

	cityResolved := false
	if addr := ParseAddress(entry.Address); addr != nil {
		item.Parsed.State = addr.StateAbbreviation
		item.Parsed.City = addr.City
		cityResolved = addr.City != ""
		if !cityResolved {
			item.Parsed.City = UnidentifiedCity
		}
	} else if defaultState != nil {
		item.Parsed.State = defaultState.Abbreviation
		item.Parsed.City = UnidentifiedCity
	}

	switch {
	case item.Parsed.CompanyName == "":
		item.Error = msgMissingName
	case item.Parsed.State == "":
		item.Error = msgStateUnresolved
	}

	if item.Error == "" && cityResolved {
		dup, err := b.checkDuplicate(ctx, item.Parsed)
		if err != nil {
			b.log.Warn("captation preview: duplicate check failed",
				slog.Int("index", index),
				slog.String("company", item.Parsed.CompanyName),
				slog.String("error", err.Error()),
			)
		}
		item.IsDuplicate = dup
	}
	return item
}

// checkDuplicate only consults existing rows; an unknown city cannot hold a
// duplicate.
func (b *PreviewBuilder) checkDuplicate(ctx context.Context, parsed ParsedFields) (bool, error) {
	state, err := b.resolver.ResolveStateByAbbreviation(ctx, parsed.State)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return false, nil
		}
		return false, err
	}
	city, err := b.resolver.LookupCity(ctx, parsed.City, state.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrEmptyName) {
			return false, nil
		}
		return false, err
	}
	return b.detector.IsDuplicate(ctx, parsed.CompanyName, city.ID, parsed.Phone)
}

func buildNotes(entry ListingEntry) string {
	var parts []string
	if addr := strings.TrimSpace(entry.Address); addr != "" {
		parts = append(parts, "Endereço: "+addr)
	}
	if phone := strings.TrimSpace(entry.Phone); phone != "" {
		parts = append(parts, "Telefone original: "+phone)
	}
	if at := strings.TrimSpace(entry.ScrapedAt); at != "" {
		parts = append(parts, "Coletado em: "+at)
	}
	return strings.Join(parts, "\n")
}
