package handler

import (
	"bytes"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rescue/internal/respondant/models"
	"rescue/internal/respondant/service"
	"rescue/internal/respondant/store"
	"rescue/pkg/testutil"
)

func newRespondantRouter(t *testing.T) http.Handler {
	t.Helper()
	svc, err := service.New(store.NewInMemory())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	r := chi.NewRouter()
	New(svc, logger).Register(r)
	return r
}

func profileBody(first string, lon, lat, radius float64) map[string]any {
	return map[string]any{
		"firstName":            first,
		"lastName":             "Muster",
		"phone":                "+41 79 000 00 00",
		"location":             map[string]any{"type": "Point", "coordinates": []float64{lon, lat}},
		"radius":               radius,
		"certificate_validity": true,
	}
}

func TestCreateAndFetchRespondant(t *testing.T) {
	router := newRespondantRouter(t)

	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/respondants", profileBody("Anna", 6.66, 46.83, 500)))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	created := testutil.UnmarshalResponse[models.Respondant](t, rr)
	require.False(t, created.ID.IsNil())
	assert.Equal(t, []float64{6.66, 46.83}, created.Location.Coordinates)
	assert.Equal(t, 500.0, created.Radius)
	assert.True(t, created.CertificateValidity)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/respondants/"+created.ID.String()))
	testutil.AssertStatusOK(t, rr)
	fetched := testutil.UnmarshalResponse[models.Respondant](t, rr)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "Anna", fetched.FirstName)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/respondants"))
	testutil.AssertStatusOK(t, rr)
	all := testutil.UnmarshalResponse[[]models.Respondant](t, rr)
	assert.Len(t, *all, 1)
}

func TestCreateRespondantValidation(t *testing.T) {
	router := newRespondantRouter(t)

	t.Run("missing radius and location", func(t *testing.T) {
		body := profileBody("Anna", 0, 0, 0)
		delete(body, "radius")
		delete(body, "location")

		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/respondants", body))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "validation_error")
		fields := testutil.FieldErrors(t, rr)
		assert.Contains(t, fields, "radius")
		assert.Contains(t, fields, "location")
		assert.NotContains(t, fields, "location.type")
	})

	t.Run("negative radius and short name", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/respondants", profileBody("A", 6.66, 46.83, -1)))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		fields := testutil.FieldErrors(t, rr)
		assert.Contains(t, fields, "radius")
		assert.Contains(t, fields, "firstName")
	})

	t.Run("latitude out of range", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/respondants", profileBody("Anna", 6.66, 95, 10)))
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
		fields := testutil.FieldErrors(t, rr)
		assert.Contains(t, fields, "location.coordinates")
	})

	t.Run("malformed json", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewRequestWithBody(t, http.MethodPost, "/respondants", "{"))
		testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
	})
}

func TestUpdateRespondant(t *testing.T) {
	router := newRespondantRouter(t)
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/respondants", profileBody("Anna", 6.66, 46.83, 500)))
	created := testutil.UnmarshalResponse[models.Respondant](t, rr)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPut, "/respondants/"+created.ID.String(), profileBody("Anna", 6.7, 46.9, 2000)))
	testutil.AssertStatusOK(t, rr)
	updated := testutil.UnmarshalResponse[models.Respondant](t, rr)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, 2000.0, updated.Radius)
	assert.Equal(t, []float64{6.7, 46.9}, updated.Location.Coordinates)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPut, "/respondants/"+uuid.NewString(), profileBody("Anna", 6.7, 46.9, 2000)))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}

func TestDeleteRespondant(t *testing.T) {
	router := newRespondantRouter(t)
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/respondants", profileBody("Anna", 6.66, 46.83, 500)))
	created := testutil.UnmarshalResponse[models.Respondant](t, rr)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodDelete, "/respondants/"+created.ID.String()))
	testutil.AssertStatusOK(t, rr)
	removed := testutil.UnmarshalResponse[models.Respondant](t, rr)
	assert.Equal(t, created.ID, removed.ID)

	rr = testutil.DoRequest(router, testutil.NewRequest(t, http.MethodDelete, "/respondants/"+created.ID.String()))
	testutil.AssertStatusAndError(t, rr, http.StatusNotFound, "not_found")
}

func TestInvalidRespondantID(t *testing.T) {
	router := newRespondantRouter(t)
	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/respondants/not-a-uuid"))
	testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "invalid_input")
}
