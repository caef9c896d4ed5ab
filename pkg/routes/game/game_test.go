package game

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

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

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()

	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	repo := repository.NewRepository(memory.New(), models.GameFactory, repository.Config{Namespaces: []string{"games"}}, logger)
	svc := service.NewService(repo, models.GameFactory, events.NewEmitter(nil, logger), "games", logger)

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	NewHandler(svc, logger).Register(e.Group("/api/v1/games"))
	return e
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

func decodeGame(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestGameAPI_RoundAndMoveFlow(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/games", map[string]any{
		"id": "g1", "type": "chess", "usersIds": []string{"u1", "u2"},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	created := decodeGame(t, rec)
	assert.Equal(t, "chess", created.Type)
	assert.Empty(t, created.Rounds)
	assert.False(t, created.IsFinished)

	// Add a round.
	rec = doRequest(t, e, http.MethodPost, "/api/v1/games/g1/rounds", map[string]any{"id": "r1"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	withRound := decodeGame(t, rec)
	require.Len(t, withRound.Rounds, 1)
	assert.NotEqual(t, created.ETag, withRound.ETag)

	// Add a move to it.
	rec = doRequest(t, e, http.MethodPost, "/api/v1/games/g1/rounds/r1/moves", map[string]any{
		"id": "m1", "userId": "u1", "value": 10, "valueDecorated": "ten",
	}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	withMove := decodeGame(t, rec)
	require.Len(t, withMove.Rounds[0].Moves, 1)
	assert.Equal(t, "u1", withMove.Rounds[0].Moves[0].UserID)

	// Finish the round; further moves are rejected.
	rec = doRequest(t, e, http.MethodPost, "/api/v1/games/g1/rounds/r1/finish", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeGame(t, rec).Rounds[0].IsFinished)

	rec = doRequest(t, e, http.MethodPost, "/api/v1/games/g1/rounds/r1/moves", map[string]any{
		"id": "m2", "userId": "u2", "value": 3,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Finish the game; further rounds and a second finish are rejected.
	rec = doRequest(t, e, http.MethodPost, "/api/v1/games/g1/finish", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeGame(t, rec).IsFinished)

	rec = doRequest(t, e, http.MethodPost, "/api/v1/games/g1/rounds", map[string]any{"id": "r2"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, e, http.MethodPost, "/api/v1/games/g1/finish", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGameAPI_ActionsHonorIfMatch(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/games", map[string]any{
		"id": "g1", "type": "chess", "usersIds": []string{"u1"},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	etag1 := decodeGame(t, rec).ETag

	rec = doRequest(t, e, http.MethodPost, "/api/v1/games/g1/rounds", map[string]any{"id": "r1"}, map[string]string{"If-Match": etag1})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Stale version → 412 without applying the action.
	rec = doRequest(t, e, http.MethodPost, "/api/v1/games/g1/rounds", map[string]any{"id": "r2"}, map[string]string{"If-Match": etag1})
	assert.Equal(t, http.StatusPreconditionFailed, rec.Code)

	rec = doRequest(t, e, http.MethodGet, "/api/v1/games/g1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeGame(t, rec).Rounds, 1)
}

func TestGameAPI_CreateValidation(t *testing.T) {
	e := newTestServer(t)

	rec := doRequest(t, e, http.MethodPost, "/api/v1/games", map[string]any{
		"id": "g1", "type": "chess", "usersIds": []string{},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, e, http.MethodPost, "/api/v1/games", map[string]any{
		"id": "g1", "type": "chess", "usersIds": []string{"u1", "u1"},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(t, e, http.MethodPost, "/api/v1/games/ghost/rounds", map[string]any{"id": "r1"}, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
