package location_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"inventoryapi/internal/apperr"
	"inventoryapi/internal/location"
	"inventoryapi/internal/memstore"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newService() location.Service {
	return location.NewService(memstore.New().Locations(), nil, zap.NewNop(), func() time.Time { return fixedNow })
}

func warehouse() location.Fields {
	return location.Fields{
		Name:     "Main warehouse",
		Address1: "1 Dock Road",
		City:     "Leeds",
		Zip:      "LS1",
		Province: "West Yorkshire",
		Country:  "United Kingdom",
	}
}

func TestCreateLocation(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	created, err := svc.CreateLocation(ctx, 10, warehouse())
	require.NoError(t, err)
	assert.True(t, created.Active)
	assert.Equal(t, fixedNow, created.CreatedAt)
	assert.Nil(t, created.UpdatedAt)

	_, err = svc.CreateLocation(ctx, 10, location.Fields{Address1: "elsewhere", Country: "FR"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	got, err := svc.GetLocation(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Main warehouse", got.Name)
}

func TestListAndDeleteLocations(t *testing.T) {
	svc := newService()
	ctx := context.Background()

	for _, id := range []int64{20, 10} {
		_, err := svc.CreateLocation(ctx, id, warehouse())
		require.NoError(t, err)
	}

	all, err := svc.ListLocations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(10), all[0].ID)

	n, err := svc.DeleteLocation(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = svc.DeleteLocation(ctx, 10)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = svc.GetLocation(ctx, 10)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestFieldsValidate(t *testing.T) {
	assert.Nil(t, warehouse().Validate())

	problems := location.Fields{Name: "x"}.Validate()
	assert.Contains(t, problems, "address1")
	assert.Contains(t, problems, "country")
}

func TestHandler(t *testing.T) {
	r := chi.NewRouter()
	location.NewHandler(newService(), zap.NewNop()).Routes(r)

	serve := func(method, target, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
		return rec
	}

	rec := serve(http.MethodPost, "/location", `{"id":10,"name":"Shop","address1":"2 High St","city":"York","zip":"YO1","province":"North Yorkshire","country":"United Kingdom","phone":"01904"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = serve(http.MethodPost, "/location", `{"id":11,"name":"No address"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(http.MethodGet, "/location/retrieve", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Locations []location.Location `json:"locations"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Locations, 1)
	require.NotNil(t, listed.Locations[0].Phone)
	assert.Equal(t, "01904", *listed.Locations[0].Phone)

	rec = serve(http.MethodGet, "/location/12", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(http.MethodDelete, "/location/10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted_count":1}`, rec.Body.String())
}
