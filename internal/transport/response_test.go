package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, http.StatusBadRequest, "validation error", map[string]string{"phone": "phone_br"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"validation error","details":{"phone":"phone_br"}}`, rec.Body.String())
}

func TestWritePageNilItems(t *testing.T) {
	rec := httptest.NewRecorder()
	WritePage[string](rec, nil, 20, 40, 41)
	assert.JSONEq(t, `{"items":[],"limit":20,"offset":40,"total":41}`, rec.Body.String())
}

func TestWriteList(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteList(rec, []int{1, 2})
	assert.JSONEq(t, `{"items":[1,2]}`, rec.Body.String())
}
