package captation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectorIsDuplicate(t *testing.T) {
	store := newMemoryStore()
	existing := store.seedSite("RS", "Porto Alegre", "Barbearia Silva", "5551999988888")
	other := store.seedSite("SP", "Campinas", "Padaria Central", "551933334444")
	detector := NewDetector(store)
	ctx := context.Background()

	tests := []struct {
		name    string
		company string
		cityID  string
		phone   string
		want    bool
	}{
		{"same name different case", "BARBEARIA silva", existing.CityID, "", true},
		{"same name with accents", "Barbeária Sílva", existing.CityID, "", true},
		{"phone suffix without country code", "Outra Barbearia", existing.CityID, "51999988888", true},
		{"phone suffix of local number", "Outra Barbearia", existing.CityID, "(51) 9 9998-8888", true},
		{"short phone is not matched", "Outra Barbearia", existing.CityID, "99988888", false},
		{"same name other city", "Barbearia Silva", other.CityID, "", false},
		{"different name and phone", "Salão Bela", existing.CityID, "5551333344445", false},
		{"empty city", "Barbearia Silva", "", "5551999988888", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := detector.IsDuplicate(ctx, tt.company, tt.cityID, tt.phone)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectorPropagatesStoreErrors(t *testing.T) {
	store := newMemoryStore()
	store.lookupErr = errStoreDown
	detector := NewDetector(store)

	_, err := detector.IsDuplicate(context.Background(), "Barbearia", "city-1", "")
	assert.ErrorIs(t, err, errStoreDown)
}

func TestClaimSetTakesAllOrNothing(t *testing.T) {
	claims := newClaimSet()
	first := leadKeys("Barbearia Silva", "city-1", "5551999988888")
	require.Len(t, first, 2)
	assert.True(t, claims.claim(first))

	// Different name, same phone suffix.
	second := leadKeys("Salão Bela", "city-1", "51999988888")
	assert.False(t, claims.claim(second))
	// The failed claim must not hold the new name.
	assert.True(t, claims.claim(leadKeys("Salão Bela", "city-1", "")))

	assert.True(t, claims.claim(leadKeys("Barbearia Silva", "city-2", "5551999988888")))

	claims.release(first)
	assert.True(t, claims.claim(leadKeys("barbearia silva", "city-1", "")))
	assert.Len(t, leadKeys("Loja", "city-1", "99988888"), 1)
}
