package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxJSONBody bounds every JSON request body. The largest legitimate payload
// is a captation import of a full preview.
const MaxJSONBody = 8 << 20

var ErrBodyTooLarge = errors.New("request body too large")

// DecodeJSON decodes exactly one JSON object, rejecting unknown fields and
// trailing data.
func DecodeJSON(body io.Reader, v interface{}) error {
	limited := &io.LimitedReader{R: body, N: MaxJSONBody + 1}
	dec := json.NewDecoder(limited)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if limited.N <= 0 {
			return ErrBodyTooLarge
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if limited.N <= 0 {
			return ErrBodyTooLarge
		}
		return errors.New("body must contain a single JSON object")
	}
	return nil
}

// ValidationDetails maps each failing field to its rule, with the rule
// parameter when there is one ("max=200").
func ValidationDetails(errs validator.ValidationErrors) map[string]string {
	if len(errs) == 0 {
		return nil
	}
	details := make(map[string]string, len(errs))
	for _, err := range errs {
		rule := err.Tag()
		if p := err.Param(); p != "" {
			rule += "=" + p
		}
		details[fieldPath(err.Namespace())] = rule
	}
	return details
}

// fieldPath drops the root struct name: "ImportRequest.items[3].place_id"
// becomes "items[3].place_id".
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func ParseLimitOffset(values url.Values, defaultLimit, maxLimit int64) (int64, int64, error) {
	limit := defaultLimit
	offset := int64(0)

	rawLimit := strings.TrimSpace(values.Get("limit"))
	if rawLimit != "" {
		parsed, err := strconv.ParseInt(rawLimit, 10, 64)
		if err != nil || parsed <= 0 {
			return 0, 0, errors.New("invalid limit")
		}
		limit = parsed
	}

	rawOffset := strings.TrimSpace(values.Get("offset"))
	if rawOffset != "" {
		parsed, err := strconv.ParseInt(rawOffset, 10, 64)
		if err != nil || parsed < 0 {
			return 0, 0, errors.New("invalid offset")
		}
		offset = parsed
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	return limit, offset, nil
}
