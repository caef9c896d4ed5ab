package entity

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	repository "github.com/Ramsey-B/fern/internal/repositories/entity"
	service "github.com/Ramsey-B/fern/internal/services/entity"
	"github.com/Ramsey-B/fern/pkg/blobstore/memory"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
)

func newTestServer(t *testing.T, svc *service.Service) *echo.Echo {
	t.Helper()

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	NewHandler(svc, logger).Register(e.Group("/api/v1/entities"))
	return e
}

func newEntityService(t *testing.T) *service.Service {
	t.Helper()

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	repo := repository.NewRepository(memory.New(), models.GenericFactory, repository.Config{Namespaces: []string{"entities"}}, logger)
	return service.NewService(repo, models.GenericFactory, events.NewEmitter(nil, logger), "entities", logger)
}

func doRequest(t *testing.T, e *echo.Echo, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	reqBody := bytes.NewBuffer(nil)
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reqBody = bytes.NewBuffer(data)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestEntityAPI_OpaquePayload(t *testing.T) {
	e := newTestServer(t, newEntityService(t))

	rec := doRequest(t, e, http.MethodPost, "/api/v1/entities", map[string]any{
		"id": "e1",
		"data": map[string]any{
			"anything": []any{float64(1), "two", nil},
			"nested":   map[string]any{"a": float64(1)},
		},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("ETag"))
	assert.Equal(t, "/api/v1/entities/e1", rec.Header().Get("Location"))

	var created Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ETag)

	// PATCH deep-merges: nested maps merge, arrays replace wholesale.
	rec = doRequest(t, e, http.MethodPatch, "/api/v1/entities/e1", map[string]any{
		"anything": []any{"replaced"},
		"nested":   map[string]any{"b": float64(2)},
	}, map[string]string{"If-Match": created.ETag})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var patched Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patched))
	assert.Equal(t, map[string]any{
		"anything": []any{"replaced"},
		"nested":   map[string]any{"a": float64(1), "b": float64(2)},
	}, patched.Data)
	assert.NotEqual(t, created.ETag, patched.ETag)
}

func TestEntityAPI_NonObjectPayload(t *testing.T) {
	e := newTestServer(t, newEntityService(t))

	// Generic entities accept any JSON value, not just objects.
	rec := doRequest(t, e, http.MethodPut, "/api/v1/entities/scalar", "just a string", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doRequest(t, e, http.MethodGet, "/api/v1/entities/scalar", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "just a string", resp.Data)
}

func TestEntityAPI_ServiceUnavailable(t *testing.T) {
	// No explicit service and no container in the request context.
	e := newTestServer(t, nil)

	rec := doRequest(t, e, http.MethodGet, "/api/v1/entities/e1", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

// Registers the default container the way main does; runs after the
// unavailable case above since the container is process-global.
func TestEntityAPI_ResolvesServiceFromContainer(t *testing.T) {
	container, err := ectoinject.NewDIDefaultContainer()
	require.NoError(t, err)
	svc := newEntityService(t)
	require.NoError(t, ectoinject.RegisterInstance[*service.GenericService](container, &service.GenericService{Service: svc}))

	// No explicit service; every request resolves it from the container.
	e := newTestServer(t, nil)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/entities", map[string]any{
		"id":   "di-1",
		"data": map[string]any{"x": float64(1)},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(t, e, http.MethodGet, "/api/v1/entities/di-1", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
