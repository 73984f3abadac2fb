package captation

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listingJSON(t *testing.T, n int) string {
	t.Helper()
	entries := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, map[string]any{"name": fmt.Sprintf("Loja %d", i)})
	}
	raw, err := json.Marshal(entries)
	require.NoError(t, err)
	return string(raw)
}

func TestParseListingFile(t *testing.T) {
	body := `[
		{"name": "Barbearia Silva", "categoryName": "Barbearia", "address": "Rua A, Porto Alegre - RS",
		 "phone": "(51) 9999-8888", "phoneUnformatted": 5199998888, "totalScore": 4.5, "reviewsCount": "12",
		 "website": "https://barbearia.com.br", "url": "https://maps.example.com/1", "scrapedAt": "2026-03-01"},
		{"name": "Padaria", "rating": "4,2", "extra": {"nested": true}}
	]`

	entries, err := ParseListingFile(strings.NewReader(body), InputLimits{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0]
	assert.Equal(t, "Barbearia Silva", first.Name)
	assert.Equal(t, "Barbearia", first.Category)
	assert.Equal(t, "5199998888", first.PhoneUnformatted)
	require.NotNil(t, first.Rating)
	assert.Equal(t, 4.5, *first.Rating)
	require.NotNil(t, first.ReviewsCount)
	assert.Equal(t, 12, *first.ReviewsCount)

	require.NotNil(t, entries[1].Rating)
	assert.Equal(t, 4.2, *entries[1].Rating)
	assert.Nil(t, entries[1].ReviewsCount)
}

func TestParseListingFileRejects(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		limits InputLimits
		want   error
	}{
		{"invalid json", `[{"name": }`, InputLimits{}, ErrInvalidJSON},
		{"object instead of array", `{"name": "Loja"}`, InputLimits{}, ErrNotArray},
		{"empty array", `[]`, InputLimits{}, ErrEmptyFile},
		{"first entry without name", `[{"title": "Loja"}, {"name": "Outra"}]`, InputLimits{}, ErrMissingName},
		{"first entry with numeric name", `[{"name": 10}]`, InputLimits{}, ErrMissingName},
		{"first entry not an object", `["Loja", {"name": "Outra"}]`, InputLimits{}, ErrMissingName},
		{"later entry not an object", `[{"name": "Loja"}, "x"]`, InputLimits{}, ErrInvalidEntry},
		{"later entry null", `[{"name": "Loja"}, null]`, InputLimits{}, ErrInvalidEntry},
		{"too many entries", listingJSON(t, 501), InputLimits{}, ErrTooManyEntries},
		{"too large", listingJSON(t, 50), InputLimits{MaxBytes: 100}, ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseListingFile(strings.NewReader(tt.body), tt.limits)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, IsInputError(err))
		})
	}
}

func TestParseListingFileAcceptsLimit(t *testing.T) {
	entries, err := ParseListingFile(strings.NewReader(listingJSON(t, 500)), InputLimits{})
	require.NoError(t, err)
	assert.Len(t, entries, 500)
}

func TestParseListingFileNamesBadEntry(t *testing.T) {
	_, err := ParseListingFile(strings.NewReader(`[{"name": "Loja"}, {"name": "Outra"}, 42]`), InputLimits{})
	require.ErrorIs(t, err, ErrInvalidEntry)
	assert.NotErrorIs(t, err, ErrNotArray)
	assert.Contains(t, err.Error(), "posição 3")
}
