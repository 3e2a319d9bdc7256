package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carplateapi/carplate-go/internal/conf"
	"github.com/carplateapi/carplate-go/internal/datastore"
	"github.com/carplateapi/carplate-go/internal/imageresolver"
	"github.com/carplateapi/carplate-go/internal/jobqueue"
	"github.com/carplateapi/carplate-go/internal/observability"
	"github.com/carplateapi/carplate-go/internal/registry"
)

// stubSource returns a fixed image for every model.
type stubSource struct{}

func (s *stubSource) Fetch(ctx context.Context, model string) (*imageresolver.CarImage, error) {
	return &imageresolver.CarImage{URL: "http://img.test/car.jpg", Data: []byte("img"), Ext: "jpg"}, nil
}

func (s *stubSource) Name() string { return "stub" }

func newTestController(t *testing.T) *Controller {
	t.Helper()

	settings := &conf.Settings{}
	settings.WebServer.Port = "8080"
	settings.Output.SQLite.Enabled = true
	settings.Output.SQLite.Path = filepath.Join(t.TempDir(), "test.db")
	settings.Images.CacheDir = t.TempDir()
	settings.Images.DefaultImage = "404.jpg"

	store := datastore.New(settings)
	require.NotNil(t, store)
	require.NoError(t, store.Open())
	t.Cleanup(func() { _ = store.Close() })

	resolver, err := imageresolver.New(settings, &stubSource{}, nil)
	require.NoError(t, err)

	queue := jobqueue.NewJobQueueWithOptions(10, time.Hour)
	queue.Start()
	t.Cleanup(func() { _ = queue.StopWithTimeout(5 * time.Second) })

	metrics, err := observability.NewMetrics()
	require.NoError(t, err)

	reg := registry.New(store, resolver, queue, metrics.Registry)
	return New(settings, reg, metrics)
}

func doRequest(c *Controller, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}
	rec := httptest.NewRecorder()
	c.Echo.ServeHTTP(rec, req)
	return rec
}

func createRegistration(t *testing.T, c *Controller, plate, owner, model string) datastore.Registration {
	t.Helper()

	body := fmt.Sprintf(`{"plate": %q, "owner": %q, "car_model": %q}`, plate, owner, model)
	rec := doRequest(c, http.MethodPost, "/api/v1/registrations", body)
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	var reg datastore.Registration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	return reg
}

func TestCreateRegistration(t *testing.T) {
	c := newTestController(t)

	reg := createRegistration(t, c, "ab123", "john doe", "volvo 240")
	assert.Equal(t, "AB123", reg.Plate)
	assert.Equal(t, "John Doe", reg.Owner)
	assert.Equal(t, "VOLVO 240", reg.CarModel)
	assert.True(t, reg.NeedsImage)
	assert.NotZero(t, reg.ID)
}

func TestCreateIgnoresClientImageFields(t *testing.T) {
	c := newTestController(t)

	body := `{"plate": "ab123", "owner": "john doe", "car_model": "volvo 240", "image": "evil.jpg", "needs_image": false}`
	rec := doRequest(c, http.MethodPost, "/api/v1/registrations", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var reg datastore.Registration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	assert.Empty(t, reg.ImageRef)
	assert.True(t, reg.NeedsImage)
}

func TestCreateInvalidPlate(t *testing.T) {
	c := newTestController(t)

	rec := doRequest(c, http.MethodPost, "/api/v1/registrations",
		`{"plate": "nope!", "owner": "john doe", "car_model": "volvo 240"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, http.StatusBadRequest, errResp.Code)
	assert.NotEmpty(t, errResp.CorrelationID)
}

func TestCreateDuplicatePlate(t *testing.T) {
	c := newTestController(t)

	createRegistration(t, c, "AB123", "john doe", "volvo 240")

	rec := doRequest(c, http.MethodPost, "/api/v1/registrations",
		`{"plate": "ab123", "owner": "jane doe", "car_model": "saab 900"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetRegistration(t *testing.T) {
	c := newTestController(t)
	reg := createRegistration(t, c, "AB123", "john doe", "volvo 240")

	rec := doRequest(c, http.MethodGet, fmt.Sprintf("/api/v1/registrations/%d", reg.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got datastore.Registration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, reg.ID, got.ID)
}

func TestGetRegistrationUnknownID(t *testing.T) {
	c := newTestController(t)

	rec := doRequest(c, http.MethodGet, "/api/v1/registrations/999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRegistrationBadID(t *testing.T) {
	c := newTestController(t)

	rec := doRequest(c, http.MethodGet, "/api/v1/registrations/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateRegistration(t *testing.T) {
	c := newTestController(t)
	reg := createRegistration(t, c, "AB123", "john doe", "volvo 240")

	rec := doRequest(c, http.MethodPut, fmt.Sprintf("/api/v1/registrations/%d", reg.ID),
		`{"plate": "ab123", "owner": "jane doe", "car_model": "volvo 240"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got datastore.Registration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Jane Doe", got.Owner)
}

func TestDeleteRegistration(t *testing.T) {
	c := newTestController(t)
	reg := createRegistration(t, c, "AB123", "john doe", "volvo 240")

	rec := doRequest(c, http.MethodDelete, fmt.Sprintf("/api/v1/registrations/%d", reg.ID), "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(c, http.MethodGet, fmt.Sprintf("/api/v1/registrations/%d", reg.ID), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetRegistrationByPlateCaseInsensitive(t *testing.T) {
	c := newTestController(t)
	createRegistration(t, c, "AB123", "john doe", "volvo 240")

	rec := doRequest(c, http.MethodGet, "/api/v1/registrations/plate/ab123", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got datastore.Registration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "AB123", got.Plate)
}

func TestUpdateRegistrationByPlate(t *testing.T) {
	c := newTestController(t)
	createRegistration(t, c, "AB123", "john doe", "volvo 240")

	rec := doRequest(c, http.MethodPut, "/api/v1/registrations/plate/ab123",
		`{"plate": "ab123", "owner": "jane doe", "car_model": "volvo 240"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got datastore.Registration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Jane Doe", got.Owner)
}

func TestDeleteRegistrationByPlate(t *testing.T) {
	c := newTestController(t)
	createRegistration(t, c, "AB123", "john doe", "volvo 240")

	rec := doRequest(c, http.MethodDelete, "/api/v1/registrations/plate/AB123", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(c, http.MethodGet, "/api/v1/registrations/plate/AB123", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRegistrations(t *testing.T) {
	c := newTestController(t)
	createRegistration(t, c, "AB123", "john doe", "volvo 240")
	createRegistration(t, c, "CD456", "jane doe", "saab 900")

	t.Run("all", func(t *testing.T) {
		rec := doRequest(c, http.MethodGet, "/api/v1/registrations", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var regs []datastore.Registration
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &regs))
		assert.Len(t, regs, 2)
	})

	t.Run("filter by plate", func(t *testing.T) {
		rec := doRequest(c, http.MethodGet, "/api/v1/registrations?plate=ab123", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var regs []datastore.Registration
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &regs))
		require.Len(t, regs, 1)
		assert.Equal(t, "AB123", regs[0].Plate)
	})

	t.Run("substring search", func(t *testing.T) {
		rec := doRequest(c, http.MethodGet, "/api/v1/registrations?search=cd", "")
		require.Equal(t, http.StatusOK, rec.Code)

		var regs []datastore.Registration
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &regs))
		require.Len(t, regs, 1)
		assert.Equal(t, "CD456", regs[0].Plate)
	})
}

func TestHealthz(t *testing.T) {
	c := newTestController(t)

	rec := doRequest(c, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	c := newTestController(t)

	rec := doRequest(c, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "registry_registrations_created_total")
}

func TestServeImage(t *testing.T) {
	c := newTestController(t)

	imagePath := filepath.Join(c.Settings.Images.CacheDir, "VOLVO_240.jpg")
	require.NoError(t, os.WriteFile(imagePath, []byte("image-bytes"), 0o644))

	rec := doRequest(c, http.MethodGet, "/api/v1/media/images/VOLVO_240.jpg", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image-bytes", rec.Body.String())
}

func TestServeImageUnknown(t *testing.T) {
	c := newTestController(t)

	rec := doRequest(c, http.MethodGet, "/api/v1/media/images/MISSING.jpg", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServeImageRejectsTraversal(t *testing.T) {
	c := newTestController(t)

	rec := doRequest(c, http.MethodGet, "/api/v1/media/images/..%2Fsecret.txt", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
