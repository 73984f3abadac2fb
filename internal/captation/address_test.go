package captation

import (
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		city    string
		state   string
	}{
		{
			name:    "dash with postal code",
			address: "Rua A, 10 - Centro, Porto Alegre - RS, 90000-000",
			city:    "Porto Alegre",
			state:   "RS",
		},
		{
			name:    "dash without postal code",
			address: "Av. Brasil, 500, Belo Horizonte - MG",
			city:    "Belo Horizonte",
			state:   "MG",
		},
		{
			name:    "slash separator",
			address: "Av. Paulista, 1000, São Paulo / SP, 01310-100",
			city:    "São Paulo",
			state:   "SP",
		},
		{
			name:    "loose state token",
			address: "Rua B, 20 - Centro, Curitiba PR",
			city:    "Curitiba",
			state:   "PR",
		},
		{
			name:    "hyphenated city",
			address: "Rua C, 1, Embu-Guaçu - SP",
			city:    "Embu-Guaçu",
			state:   "SP",
		},
		{
			name:    "state only",
			address: "- RS",
			city:    "",
			state:   "RS",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseAddress(tt.address)
			require.NotNil(t, got)
			assert.Equal(t, tt.city, got.City)
			assert.Equal(t, tt.state, got.StateAbbreviation)
			assert.Equal(t, StateName(tt.state), got.StateName)
			assert.Equal(t, tt.address, got.OriginalAddress)
		})
	}
}

func TestParseAddressNoState(t *testing.T) {
	for _, address := range []string{
		"",
		"   ",
		"endereço desconhecido",
		"Rua X, 5, Cidade - XX",
		"rua sem estado, porto alegre - rs",
	} {
		assert.Nil(t, ParseAddress(address), address)
	}
}

func TestParseAddressRoundTrip(t *testing.T) {
	faker := gofakeit.New(7)
	cities := []string{"Porto Alegre", "São Paulo", "Foz do Iguaçu", "Rio de Janeiro", "Campina Grande"}

	for code := range StateCodes() {
		for _, city := range cities {
			for _, sep := range []string{" - ", " / "} {
				address := fmt.Sprintf("Rua %s, %d, %s%s%s, %s", faker.LastName(), faker.Number(1, 9999), city, sep, code, faker.Numerify("#####-###"))
				got := ParseAddress(address)
				require.NotNil(t, got, address)
				assert.Equal(t, code, got.StateAbbreviation, address)
				assert.Equal(t, city, got.City, address)
			}
		}
	}
}

func TestStateTable(t *testing.T) {
	codes := StateCodes()
	assert.Len(t, codes, 27)
	assert.True(t, IsValidUF("DF"))
	assert.False(t, IsValidUF("XX"))
	assert.False(t, IsValidUF("rs"))
	assert.Equal(t, "Rio Grande do Sul", StateName("RS"))
}
