package captation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	DefaultMaxFileBytes = 5 << 20
	DefaultMaxEntries   = 500
)

var (
	ErrFileTooLarge   = errors.New("arquivo excede o tamanho máximo permitido")
	ErrInvalidJSON    = errors.New("arquivo não é um JSON válido")
	ErrNotArray       = errors.New("o JSON deve ser uma lista de estabelecimentos")
	ErrEmptyFile      = errors.New("a lista de estabelecimentos está vazia")
	ErrMissingName    = errors.New("o primeiro item não possui o campo \"name\"")
	ErrTooManyEntries = errors.New("quantidade de estabelecimentos excede o limite")
	ErrInvalidEntry   = errors.New("item da lista não é um objeto")
)

// IsInputError reports whether err is a file-level rejection.
func IsInputError(err error) bool {
	for _, target := range []error{ErrFileTooLarge, ErrInvalidJSON, ErrNotArray, ErrEmptyFile, ErrMissingName, ErrTooManyEntries, ErrInvalidEntry} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type InputLimits struct {
	MaxBytes   int64
	MaxEntries int
}

func (l InputLimits) withDefaults() InputLimits {
	if l.MaxBytes <= 0 {
		l.MaxBytes = DefaultMaxFileBytes
	}
	if l.MaxEntries <= 0 {
		l.MaxEntries = DefaultMaxEntries
	}
	return l
}

// ParseListingFile validates an uploaded export and decodes its entries. The
// whole file is rejected on the first violated precondition.
func ParseListingFile(r io.Reader, limits InputLimits) ([]ListingEntry, error) {
	limits = limits.withDefaults()

	data, err := io.ReadAll(io.LimitReader(r, limits.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read listing file: %w", err)
	}
	if int64(len(data)) > limits.MaxBytes {
		return nil, fmt.Errorf("%w (%d MB)", ErrFileTooLarge, limits.MaxBytes>>20)
	}

	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, ErrNotArray
	}
	if len(raw) == 0 {
		return nil, ErrEmptyFile
	}
	first, ok := decodeObject(raw[0])
	if !ok {
		return nil, ErrMissingName
	}
	if name, ok := first["name"].(string); !ok || strings.TrimSpace(name) == "" {
		return nil, ErrMissingName
	}
	if len(raw) > limits.MaxEntries {
		return nil, fmt.Errorf("%w (%d > %d)", ErrTooManyEntries, len(raw), limits.MaxEntries)
	}

	entries := make([]ListingEntry, 0, len(raw))
	entries = append(entries, entryFromFields(first))
	for i, elem := range raw[1:] {
		fields, ok := decodeObject(elem)
		if !ok {
			// Positions are 1-based for the admin reading the message.
			return nil, fmt.Errorf("%w (posição %d)", ErrInvalidEntry, i+2)
		}
		entries = append(entries, entryFromFields(fields))
	}
	return entries, nil
}

func decodeObject(elem json.RawMessage) (map[string]any, bool) {
	var fields map[string]any
	if err := json.Unmarshal(elem, &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

// entryFromFields reads an untrusted object, tolerating numbers where strings
// are expected and the other way round.
func entryFromFields(fields map[string]any) ListingEntry {
	entry := ListingEntry{
		Name:             stringField(fields, "name"),
		Category:         stringField(fields, "category", "categoryName"),
		Address:          stringField(fields, "address"),
		Phone:            stringField(fields, "phone"),
		PhoneUnformatted: stringField(fields, "phoneUnformatted"),
		Website:          stringField(fields, "website"),
		URL:              stringField(fields, "url"),
		ScrapedAt:        stringField(fields, "scrapedAt"),
	}
	if v, ok := numberField(fields, "rating", "totalScore"); ok {
		entry.Rating = &v
	}
	if v, ok := numberField(fields, "reviewsCount"); ok && v >= 0 {
		n := int(math.Round(v))
		entry.ReviewsCount = &n
	}
	return entry
}

func stringField(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := fields[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func numberField(fields map[string]any, keys ...string) (float64, bool) {
	for _, key := range keys {
		switch v := fields[key].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), ",", "."), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
