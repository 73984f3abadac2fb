package captation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeEntries(n int) []ListingEntry {
	faker := gofakeit.New(3)
	cities := []string{"Porto Alegre", "Canoas", "Pelotas"}
	entries := make([]ListingEntry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, ListingEntry{
			Name:             fmt.Sprintf("%s %d", faker.LastName(), i),
			Category:         []string{"Barbearia", "Padaria", "Pet Shop"}[i%3],
			Address:          fmt.Sprintf("Rua %s, %d, %s - RS, 90000-000", faker.LastName(), i+1, cities[i%len(cities)]),
			PhoneUnformatted: fmt.Sprintf("51%09d", 900000000+i),
		})
	}
	return entries
}

func validItem(name, state, city, category string) PreviewItem {
	return PreviewItem{
		Original: ListingEntry{Name: name},
		Parsed: ParsedFields{
			CompanyName: name,
			State:       state,
			City:        city,
			Category:    category,
		},
	}
}

type outcomeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *outcomeCounter) RecordImportOutcome(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = make(map[string]int)
	}
	c.counts[outcome]++
}

func TestImportIsIdempotent(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	entries := fakeEntries(12)

	items, err := p.builder.Build(ctx, entries, PreviewOptions{})
	require.NoError(t, err)

	first := p.importer.Import(ctx, items, ImportOptions{}, nil)
	assert.Equal(t, 12, first.Success)
	assert.Equal(t, 0, first.Duplicates)
	assert.Equal(t, 0, first.Errors)
	assert.Len(t, first.ImportedSites, 12)

	// Same stale preview: every record is caught by the re-check.
	second := p.importer.Import(ctx, items, ImportOptions{}, nil)
	assert.Equal(t, 0, second.Success)
	assert.Equal(t, 12, second.Duplicates)
	assert.Equal(t, 0, second.Errors)

	// Fresh preview flags everything up front.
	again, err := p.builder.Build(ctx, entries, PreviewOptions{})
	require.NoError(t, err)
	for _, item := range again {
		assert.True(t, item.IsDuplicate, item.Parsed.CompanyName)
	}
	third := p.importer.Import(ctx, again, ImportOptions{}, nil)
	assert.Equal(t, 0, third.Success)
	assert.Equal(t, 12, third.Duplicates)
	assert.Equal(t, 12, p.store.siteCount())
}

func TestImportIsolatesRecordErrors(t *testing.T) {
	p := newPipeline()
	items := make([]PreviewItem, 0, 10)
	for i := 0; i < 9; i++ {
		items = append(items, validItem(fmt.Sprintf("Loja %d", i), "RS", "Porto Alegre", "Comércio"))
	}
	items = append(items[:4], append([]PreviewItem{validItem("Loja Perdida", "ZZ", "Lugar Nenhum", "Comércio")}, items[4:]...)...)

	result := p.importer.Import(context.Background(), items, ImportOptions{}, nil)
	assert.Equal(t, 9, result.Success)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, 0, result.Duplicates)
	require.Len(t, result.ErrorMessages, 1)
	assert.Equal(t, "Loja Perdida: Estado não encontrado (ZZ)", result.ErrorMessages[0])
}

func TestImportRecordFailures(t *testing.T) {
	p := newPipeline()
	p.store.insertErr["Loja Falha"] = errors.New("violates check constraint")
	p.store.panicOn["Loja Pane"] = true

	items := []PreviewItem{
		validItem("Loja Falha", "RS", "Porto Alegre", "Comércio"),
		validItem("Loja Pane", "RS", "Porto Alegre", "Comércio"),
		validItem("Loja Sem Categoria", "RS", "Porto Alegre", ""),
		validItem("Loja Boa", "RS", "Porto Alegre", "Comércio"),
	}

	result := p.importer.Import(context.Background(), items, ImportOptions{Workers: 1}, nil)
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 3, result.Errors)
	assert.Equal(t, []string{
		"Loja Falha: violates check constraint",
		"Loja Pane: Erro inesperado",
		"Loja Sem Categoria: Categoria não definida",
	}, result.ErrorMessages)
}

func TestImportDefaultCategory(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	category, err := p.resolver.ResolveCategory(ctx, "Geral")
	require.NoError(t, err)

	items := []PreviewItem{
		validItem("Loja A", "RS", "Porto Alegre", ""),
		validItem("Loja B", "RS", "Porto Alegre", "Padaria"),
	}
	result := p.importer.Import(ctx, items, ImportOptions{DefaultCategoryID: category.ID}, nil)
	require.Equal(t, 2, result.Success)
	assert.Equal(t, category.ID, result.ImportedSites[0].CategoryID)
	assert.NotEqual(t, category.ID, result.ImportedSites[1].CategoryID)

	unknown := p.importer.Import(ctx, []PreviewItem{validItem("Loja C", "RS", "Porto Alegre", "")}, ImportOptions{DefaultCategoryID: "missing"}, nil)
	assert.Equal(t, 1, unknown.Errors)
	assert.Equal(t, []string{"Loja C: Categoria não definida"}, unknown.ErrorMessages)
}

func TestImportPlaceholderCityAndStatus(t *testing.T) {
	p := newPipeline()
	result := p.importer.Import(context.Background(), []PreviewItem{validItem("Loja", "SC", "", "Comércio")}, ImportOptions{}, nil)
	require.Equal(t, 1, result.Success)

	site := result.ImportedSites[0]
	assert.Equal(t, StatusPending, site.ProposalStatus)
	city, err := p.resolver.LookupCity(context.Background(), UnidentifiedCity, "state-SC")
	require.NoError(t, err)
	assert.Equal(t, city.ID, site.CityID)
}

func TestImportInsertConflictCountsAsDuplicate(t *testing.T) {
	p := newPipeline()
	var once sync.Once
	p.store.beforeInsert = func(site Site) {
		once.Do(func() {
			// Another import wins the race after the duplicate check.
			p.store.seedSite("RS", "Porto Alegre", site.CompanyName, "")
		})
	}

	result := p.importer.Import(context.Background(), []PreviewItem{validItem("Barbearia Silva", "RS", "Porto Alegre", "Barbearia")}, ImportOptions{}, nil)
	assert.Equal(t, 0, result.Success)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 0, result.Errors)
	assert.Equal(t, 1, p.store.siteCount())
}

func phoneItem(name, phone string) PreviewItem {
	item := validItem(name, "RS", "Porto Alegre", "Barbearia")
	item.Parsed.Phone = phone
	return item
}

func TestImportSameRunPhoneDuplicate(t *testing.T) {
	p := newPipeline()
	// Both records read the store before either is inserted.
	var checked sync.WaitGroup
	checked.Add(2)
	p.store.afterPhoneLookup = func() {
		checked.Done()
		checked.Wait()
	}

	items := []PreviewItem{
		phoneItem("Barbearia Silva", "5551999988888"),
		phoneItem("Salao Beleza Total", "51999988888"),
	}
	result := p.importer.Import(context.Background(), items, ImportOptions{}, nil)
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 0, result.Errors)
	assert.Equal(t, 1, p.store.siteCount())
}

func TestImportDuplicatesWithinOneFile(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	entries := []ListingEntry{
		{Name: "Barbearia Silva", Category: "Barbearia", Address: "Rua A, 10, Porto Alegre - RS", PhoneUnformatted: "5551999988888"},
		{Name: "Salão Beleza Total", Category: "Salão", Address: "Rua B, 20, Porto Alegre - RS", Phone: "(51) 99998-8888"},
		{Name: "BARBEARIA SILVA", Category: "Barbearia", Address: "Rua C, 30, Porto Alegre - RS", Phone: "51 99998 8888"},
		{Name: "Padaria Central", Category: "Padaria", Address: "Rua D, 40, Porto Alegre - RS", Phone: "(51) 3222-1111"},
	}

	items, err := p.builder.Build(ctx, entries, PreviewOptions{})
	require.NoError(t, err)
	for _, item := range items {
		require.Empty(t, item.Error, item.Parsed.CompanyName)
		require.False(t, item.IsDuplicate, item.Parsed.CompanyName)
	}

	result := p.importer.Import(ctx, items, ImportOptions{}, nil)
	assert.Equal(t, 2, result.Success)
	assert.Equal(t, 2, result.Duplicates)
	assert.Equal(t, 0, result.Errors)
	assert.Equal(t, 2, p.store.siteCount())
}

func TestImportRenormalizesEditedPhone(t *testing.T) {
	p := newPipeline()
	item := phoneItem("Barbearia Silva", "(51) 99998-8888")

	result := p.importer.Import(context.Background(), []PreviewItem{item}, ImportOptions{}, nil)
	require.Equal(t, 1, result.Success)
	assert.Equal(t, "5551999988888", result.ImportedSites[0].Phone)
}

func TestImportTalliesPreflaggedItems(t *testing.T) {
	p := newPipeline()
	dup := validItem("Loja Repetida", "RS", "Porto Alegre", "Comércio")
	dup.IsDuplicate = true
	bad := validItem("Loja Sem Estado", "", "", "")
	bad.Error = msgStateUnresolved

	result := p.importer.Import(context.Background(), []PreviewItem{dup, bad, validItem("Loja Nova", "RS", "Porto Alegre", "Comércio")}, ImportOptions{}, nil)
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, []string{"Loja Sem Estado: Estado não identificado no endereço"}, result.ErrorMessages)
	assert.Equal(t, 1, p.store.siteCount())
}

func TestImportProgressAndOrder(t *testing.T) {
	p := newPipeline()
	counter := &outcomeCounter{}
	p.importer.WithRecorder(counter)

	items := make([]PreviewItem, 0, 120)
	for i := 0; i < 120; i++ {
		items = append(items, validItem(fmt.Sprintf("Loja %03d", i), "RS", "Porto Alegre", "Comércio"))
	}
	items[7].Error = msgMissingName

	var calls []int
	result := p.importer.Import(context.Background(), items, ImportOptions{Workers: 8}, func(processed, total int) {
		assert.Equal(t, 120, total)
		calls = append(calls, processed)
	})

	require.Len(t, calls, 120)
	for i, processed := range calls {
		assert.Equal(t, i+1, processed)
	}
	assert.Equal(t, 119, result.Success)
	for i := 1; i < len(result.ImportedSites); i++ {
		assert.Less(t, result.ImportedSites[i-1].CompanyName, result.ImportedSites[i].CompanyName)
	}
	assert.Equal(t, 119, counter.counts[OutcomeSuccess])
	assert.Equal(t, 1, counter.counts[OutcomeError])
}

func TestImportCancellation(t *testing.T) {
	p := newPipeline()
	items := make([]PreviewItem, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, validItem(fmt.Sprintf("Loja %d", i), "RS", "Porto Alegre", "Comércio"))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	result := p.importer.Import(ctx, items, ImportOptions{BatchSize: 5, Workers: 1}, func(processed, total int) {
		if processed == 3 {
			cancel()
		}
	})

	assert.True(t, result.Cancelled)
	assert.Equal(t, 3, result.Success)
	assert.Equal(t, 3, p.store.siteCount())
}
