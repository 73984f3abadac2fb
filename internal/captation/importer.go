package captation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultBatchSize = 50
	DefaultWorkers   = 5

	OutcomeSuccess   = "success"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"

	msgStateNotFound   = "Estado não encontrado"
	msgCityFailed      = "Não foi possível criar a cidade"
	msgCategoryMissing = "Categoria não definida"
	msgCategoryFailed  = "Não foi possível criar a categoria"
	msgUnexpected      = "Erro inesperado"
	msgUnnamedCompany  = "(sem nome)"
)

// ProgressFunc receives the number of processed records and the total. Calls
// are serialized and processed never decreases.
type ProgressFunc func(processed, total int)

// OutcomeRecorder observes the terminal state of every imported record.
type OutcomeRecorder interface {
	RecordImportOutcome(outcome string)
}

type ImportOptions struct {
	DefaultCategoryID string
	BatchSize         int
	Workers           int
}

type ImportResult struct {
	Success       int      `json:"success"`
	Duplicates    int      `json:"duplicates"`
	Errors        int      `json:"errors"`
	ErrorMessages []string `json:"errorMessages"`
	ImportedSites []Site   `json:"importedSites"`
	Cancelled     bool     `json:"cancelled,omitempty"`
}

type recordResult struct {
	outcome string
	message string
	site    *Site
	skipped bool
}

// Importer persists approved preview items one record at a time. A failing
// record never aborts the run.
type Importer struct {
	resolver *Resolver
	detector *Detector
	sites    SiteRepository
	location *time.Location
	log      *slog.Logger
	recorder OutcomeRecorder
}

func NewImporter(resolver *Resolver, detector *Detector, sites SiteRepository, location *time.Location, log *slog.Logger) *Importer {
	return &Importer{
		resolver: resolver,
		detector: detector,
		sites:    sites,
		location: location,
		log:      log,
	}
}

// WithRecorder attaches an outcome recorder, typically metrics.
func (im *Importer) WithRecorder(recorder OutcomeRecorder) *Importer {
	im.recorder = recorder
	return im
}

// Import processes items in batches. Within a batch up to opts.Workers records
// run at once; results are merged back in input order. When ctx is cancelled
// the records not yet started are left out and Cancelled is set.
func (im *Importer) Import(ctx context.Context, items []PreviewItem, opts ImportOptions, progress ProgressFunc) ImportResult {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	total := len(items)
	result := ImportResult{
		ErrorMessages: make([]string, 0),
		ImportedSites: make([]Site, 0),
	}

	var preflagged []PreviewItem
	pending := make([]PreviewItem, 0, len(items))
	for _, item := range items {
		if item.Error != "" || item.IsDuplicate {
			preflagged = append(preflagged, item)
			continue
		}
		pending = append(pending, item)
	}

	claims := newClaimSet()
	var (
		progressMu sync.Mutex
		processed  int
	)
	report := func() {
		progressMu.Lock()
		defer progressMu.Unlock()
		processed++
		if progress != nil {
			progress(processed, total)
		}
	}

	for start := 0; start < len(pending); start += batchSize {
		end := start + batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]
		outcomes := make([]recordResult, len(batch))

		var g errgroup.Group
		g.SetLimit(workers)
		for i := range batch {
			g.Go(func() error {
				if ctx.Err() != nil {
					outcomes[i] = recordResult{skipped: true}
					return nil
				}
				outcomes[i] = im.importOne(ctx, batch[i], opts, claims)
				report()
				return nil
			})
		}
		_ = g.Wait()

		for _, out := range outcomes {
			if out.skipped {
				result.Cancelled = true
				continue
			}
			im.tally(&result, out)
		}
		if result.Cancelled {
			break
		}
	}

	for _, item := range preflagged {
		out := recordResult{outcome: OutcomeDuplicate}
		if item.Error != "" {
			out = recordResult{outcome: OutcomeError, message: recordMessage(item, item.Error)}
		}
		im.tally(&result, out)
		if !result.Cancelled {
			report()
		}
	}

	im.log.Info("captation import: finished",
		slog.Int("total", total),
		slog.Int("success", result.Success),
		slog.Int("duplicates", result.Duplicates),
		slog.Int("errors", result.Errors),
		slog.Bool("cancelled", result.Cancelled),
	)
	return result
}

func (im *Importer) tally(result *ImportResult, out recordResult) {
	switch out.outcome {
	case OutcomeSuccess:
		result.Success++
		if out.site != nil {
			result.ImportedSites = append(result.ImportedSites, *out.site)
		}
	case OutcomeDuplicate:
		result.Duplicates++
	default:
		result.Errors++
		result.ErrorMessages = append(result.ErrorMessages, out.message)
	}
	if im.recorder != nil {
		im.recorder.RecordImportOutcome(out.outcome)
	}
}

// importOne runs the per-record state machine:
// state -> city -> duplicate check -> category -> claim -> insert.
// The claim catches leads from the same run that were checked against the
// store before either was inserted.
func (im *Importer) importOne(ctx context.Context, item PreviewItem, opts ImportOptions, claims *claimSet) (out recordResult) {
	var claimed []string
	defer func() {
		if rec := recover(); rec != nil {
			claims.release(claimed)
			im.log.Error("captation import: panic",
				slog.String("company", item.Parsed.CompanyName),
				slog.Any("panic", rec),
			)
			out = recordResult{outcome: OutcomeError, message: recordMessage(item, msgUnexpected)}
		}
	}()

	fail := func(msg string, err error) recordResult {
		attrs := []any{slog.String("company", item.Parsed.CompanyName), slog.String("reason", msg)}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		im.log.Warn("captation import: record failed", attrs...)
		return recordResult{outcome: OutcomeError, message: recordMessage(item, msg)}
	}

	parsed := item.Parsed
	// Items come back from the client and may have been edited.
	parsed.Phone = NormalizePhone(parsed.Phone)

	state, err := im.resolver.ResolveStateByAbbreviation(ctx, parsed.State)
	if err != nil {
		if errors.Is(err, ErrStateNotFound) {
			return fail(fmt.Sprintf("%s (%s)", msgStateNotFound, parsed.State), nil)
		}
		return fail(msgUnexpected, err)
	}

	cityName := parsed.City
	if strings.TrimSpace(cityName) == "" {
		cityName = UnidentifiedCity
	}
	city, err := im.resolver.ResolveCity(ctx, cityName, state.ID)
	if err != nil {
		return fail(msgCityFailed, err)
	}

	dup, err := im.detector.IsDuplicate(ctx, parsed.CompanyName, city.ID, parsed.Phone)
	if err != nil {
		return fail(msgUnexpected, err)
	}
	if dup {
		return recordResult{outcome: OutcomeDuplicate}
	}

	var category Category
	switch {
	case strings.TrimSpace(parsed.Category) != "":
		category, err = im.resolver.ResolveCategory(ctx, parsed.Category)
		if err != nil {
			return fail(msgCategoryFailed, err)
		}
	case strings.TrimSpace(opts.DefaultCategoryID) != "":
		category, err = im.resolver.CategoryByID(ctx, opts.DefaultCategoryID)
		if errors.Is(err, ErrNotFound) {
			return fail(msgCategoryMissing, nil)
		}
		if err != nil {
			return fail(msgUnexpected, err)
		}
	default:
		return fail(msgCategoryMissing, nil)
	}

	now := nowIn(im.location)
	site := Site{
		ID:                 newID(),
		CompanyName:        parsed.CompanyName,
		NameKey:            NameKey(parsed.CompanyName),
		CityID:             city.ID,
		CategoryID:         category.ID,
		Phone:              parsed.Phone,
		WebsiteURL:         parsed.WebsiteURL,
		ContactLink:        parsed.ContactLink,
		Notes:              parsed.Notes,
		ProposalStatus:     StatusPending,
		GoogleRating:       parsed.GoogleRating,
		GoogleReviewsCount: parsed.GoogleReviewsCount,
		GoogleMapsURL:      parsed.GoogleMapsURL,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	keys := leadKeys(site.CompanyName, site.CityID, site.Phone)
	if !claims.claim(keys) {
		return recordResult{outcome: OutcomeDuplicate}
	}
	claimed = keys
	if err := im.sites.Insert(ctx, site); err != nil {
		claims.release(keys)
		if errors.Is(err, ErrDuplicateSite) {
			return recordResult{outcome: OutcomeDuplicate}
		}
		return fail(err.Error(), err)
	}
	return recordResult{outcome: OutcomeSuccess, site: &site}
}

func recordMessage(item PreviewItem, msg string) string {
	name := item.Parsed.CompanyName
	if name == "" {
		name = strings.TrimSpace(item.Original.Name)
	}
	if name == "" {
		name = msgUnnamedCompany
	}
	return fmt.Sprintf("%s: %s", name, msg)
}
