package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"inventoryapi/internal/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("get item: %w", apperr.ErrNotFound), http.StatusNotFound},
		{apperr.ErrConflict, http.StatusConflict},
		{apperr.ErrAlreadyConnected, http.StatusConflict},
		{apperr.ErrItemMissing, http.StatusUnprocessableEntity},
		{apperr.ErrLocationMissing, http.StatusUnprocessableEntity},
		{apperr.ErrBothMissing, http.StatusUnprocessableEntity},
		{apperr.ErrInvalidInput, http.StatusBadRequest},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/inventory_item/1", nil)

	Error(rec, req, zap.NewNop(), errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestReadJSON(t *testing.T) {
	var dst struct {
		SKU string `json:"sku"`
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"sku":"A"}`))
	require.NoError(t, ReadJSON(rec, req, &dst))
	assert.Equal(t, "A", dst.SKU)

	for _, body := range []string{``, `{"sku":`, `{"sku":1}`, `{"other":"x"}`, `{"sku":"A"}{"sku":"B"}`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		err := ReadJSON(httptest.NewRecorder(), req, &dst)
		require.Error(t, err, body)
		assert.True(t, errors.Is(err, apperr.ErrInvalidInput), body)
	}
}
