// Package game exposes the game endpoints: CRUD plus the round/move actions
// that drive the one-way finish state machine. Every action is a
// read-transform-write through the entity service, gated on If-Match (or on
// the etag observed by the read when the client omits it).
package game

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	service "github.com/Ramsey-B/fern/internal/services/entity"
	"github.com/Ramsey-B/fern/pkg/models"
)

var validate = validator.New()

// Handler handles the game endpoints.
type Handler struct {
	service *service.Service
	logger  ectologger.Logger
	now     func() time.Time
}

// NewHandler creates a new game handler.
func NewHandler(svc *service.Service, logger ectologger.Logger) *Handler {
	return &Handler{
		service: svc,
		logger:  logger,
		now:     time.Now,
	}
}

// Register registers the game routes.
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.HEAD("/:id", h.GetMetadata)
	g.PUT("/:id", h.Replace)
	g.PATCH("/:id", h.Merge)
	g.DELETE("/:id", h.Delete)

	g.POST("/:id/rounds", h.AddRound)
	g.POST("/:id/rounds/:roundId/moves", h.AddMove)
	g.POST("/:id/rounds/:roundId/finish", h.FinishRound)
	g.POST("/:id/finish", h.Finish)
}

// requireService prefers the explicitly provided service (useful for tests)
// and falls back to DI-from-context, the standard pattern elsewhere.
func (h *Handler) requireService(c echo.Context) (*service.Service, error) {
	if h != nil && h.service != nil {
		return h.service, nil
	}

	ctx := c.Request().Context()
	_, svc, err := ectoinject.GetContext[*service.GameService](ctx)
	if err != nil || svc == nil {
		return nil, httperror.NewHTTPError(http.StatusServiceUnavailable, "game service unavailable")
	}
	return svc.Service, nil
}

// CreateRequest is the request body for creating a game.
type CreateRequest struct {
	ID       string   `json:"id" validate:"required"`
	Type     string   `json:"type" validate:"required,min=1,max=100"`
	UsersIDs []string `json:"usersIds" validate:"required,min=1,max=10,unique"`
}

// ReplaceRequest is the request body for replacing a game.
type ReplaceRequest struct {
	Type       string         `json:"type" validate:"required,min=1,max=100"`
	UsersIDs   []string       `json:"usersIds" validate:"required,min=1,max=10,unique"`
	Rounds     []models.Round `json:"rounds"`
	IsFinished bool           `json:"isFinished"`
}

// RoundRequest is the request body for adding a round.
type RoundRequest struct {
	ID   string     `json:"id" validate:"required"`
	Time *time.Time `json:"time,omitempty"`
}

// MoveRequest is the request body for adding a move.
type MoveRequest struct {
	ID             string     `json:"id" validate:"required"`
	UserID         string     `json:"userId" validate:"required"`
	Value          float64    `json:"value"`
	ValueDecorated string     `json:"valueDecorated"`
	Time           *time.Time `json:"time,omitempty"`
}

// Response is the flat representation of a game.
type Response struct {
	ID         string           `json:"id"`
	Type       string           `json:"type"`
	UsersIDs   []string         `json:"usersIds"`
	Rounds     []models.Round   `json:"rounds"`
	IsFinished bool             `json:"isFinished"`
	ETag       string           `json:"etag,omitempty"`
	Metadata   *models.Metadata `json:"metadata,omitempty"`
}

// ListResponse is one page of game refs.
type ListResponse struct {
	Items      []ListItem `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// ListItem is a listing entry: the id plus its version metadata.
type ListItem struct {
	ID       string          `json:"id"`
	Metadata models.Metadata `json:"metadata"`
}

// List returns a page of game refs.
func (h *Handler) List(c echo.Context) error {
	ctx := c.Request().Context()

	limit, err := parseLimit(c)
	if err != nil {
		return err
	}

	svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	page, err := svc.List(ctx, c.QueryParam("prefix"), limit, c.QueryParam("cursor"))
	if err != nil {
		return err
	}

	resp := ListResponse{Items: make([]ListItem, 0, len(page.Refs)), NextCursor: page.NextCursor}
	for _, ref := range page.Refs {
		resp.Items = append(resp.Items, ListItem{ID: ref.ID, Metadata: ref.Metadata})
	}
	return c.JSON(http.StatusOK, resp)
}

// Create stores a new game with no rounds. Create-only by default.
func (h *Handler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	data := map[string]any{
		"type":       req.Type,
		"usersIds":   toAnySlice(req.UsersIDs),
		"rounds":     []any{},
		"isFinished": false,
	}
	svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	e, err := svc.Create(ctx, req.ID, data, c.Request().Header.Get("If-None-Match"))
	if err != nil {
		return err
	}

	setETagHeader(c, e.ETag())
	c.Response().Header().Set("Location", c.Request().URL.Path+"/"+e.ID())
	return c.JSON(http.StatusCreated, toResponse(e))
}

// Get returns the game, honoring If-None-Match.
func (h *Handler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	e, err := svc.Get(ctx, c.Param("id"), c.Request().Header.Get("If-None-Match"))
	if err != nil {
		return err
	}

	setETagHeader(c, e.ETag())
	return c.JSON(http.StatusOK, toResponse(e))
}

// GetMetadata answers HEAD with the version headers and no body.
func (h *Handler) GetMetadata(c echo.Context) error {
	ctx := c.Request().Context()

	svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	meta, err := svc.GetMetadata(ctx, c.Param("id"))
	if err != nil {
		return err
	}

	setETagHeader(c, meta.ETag)
	return c.NoContent(http.StatusOK)
}

// Replace stores the full game payload, creating it when absent and no
// If-Match was sent.
func (h *Handler) Replace(c echo.Context) error {
	ctx := c.Request().Context()

	var req ReplaceRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	data, err := toGameData(req)
	if err != nil {
		return err
	}
	svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	e, err := svc.Replace(ctx, c.Param("id"), data, c.Request().Header.Get("If-Match"))
	if err != nil {
		return err
	}

	setETagHeader(c, e.ETag())
	return c.JSON(http.StatusOK, toResponse(e))
}

// Merge applies a partial update; the body holds any subset of the game
// fields. Schema validation happens in the domain after the merge.
func (h *Handler) Merge(c echo.Context) error {
	ctx := c.Request().Context()

	var partial map[string]any
	if err := json.NewDecoder(c.Request().Body).Decode(&partial); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	delete(partial, "id")

	svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	e, err := svc.Merge(ctx, c.Param("id"), partial, c.Request().Header.Get("If-Match"))
	if err != nil {
		return err
	}

	setETagHeader(c, e.ETag())
	return c.JSON(http.StatusOK, toResponse(e))
}

// Delete removes the game, honoring If-Match.
func (h *Handler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	if err := svc.Delete(ctx, c.Param("id"), c.Request().Header.Get("If-Match")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// AddRound appends a round to an open game.
func (h *Handler) AddRound(c echo.Context) error {
	var req RoundRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	round := models.Round{ID: req.ID, Moves: []models.Move{}, Time: h.timeOrNow(req.Time)}
	return h.transform(c, func(g *models.GameEntity) (*models.GameEntity, error) {
		return g.AddRound(round)
	})
}

// AddMove appends a move to an open round of an open game.
func (h *Handler) AddMove(c echo.Context) error {
	var req MoveRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	move := models.Move{
		ID:             req.ID,
		UserID:         req.UserID,
		Value:          req.Value,
		ValueDecorated: req.ValueDecorated,
		Time:           h.timeOrNow(req.Time),
	}
	roundID := c.Param("roundId")
	return h.transform(c, func(g *models.GameEntity) (*models.GameEntity, error) {
		return g.AddMoveToRound(roundID, move)
	})
}

// FinishRound marks a round finished; finishing twice is an error.
func (h *Handler) FinishRound(c echo.Context) error {
	roundID := c.Param("roundId")
	return h.transform(c, func(g *models.GameEntity) (*models.GameEntity, error) {
		return g.FinishRound(roundID)
	})
}

// Finish marks the game finished; finishing twice is an error.
func (h *Handler) Finish(c echo.Context) error {
	return h.transform(c, func(g *models.GameEntity) (*models.GameEntity, error) {
		return g.Finish()
	})
}

func (h *Handler) transform(c echo.Context, fn func(*models.GameEntity) (*models.GameEntity, error)) error {
	ctx := c.Request().Context()

	svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	e, err := svc.Transform(ctx, c.Param("id"), c.Request().Header.Get("If-Match"), func(e models.Entity) (models.Entity, error) {
		g, ok := e.(*models.GameEntity)
		if !ok {
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "stored entity is not a game")
		}
		return fn(g)
	})
	if err != nil {
		return err
	}

	setETagHeader(c, e.ETag())
	return c.JSON(http.StatusOK, toResponse(e))
}

func (h *Handler) timeOrNow(t *time.Time) time.Time {
	if t != nil {
		return *t
	}
	return h.now().UTC()
}

func toResponse(e models.Entity) Response {
	resp := Response{
		ID:       e.ID(),
		ETag:     e.ETag(),
		Metadata: e.Metadata(),
	}
	if g, ok := e.(*models.GameEntity); ok {
		resp.Type = g.Type()
		resp.UsersIDs = g.UsersIDs()
		resp.Rounds = g.Rounds()
		resp.IsFinished = g.IsFinished()
	}
	if resp.Rounds == nil {
		resp.Rounds = []models.Round{}
	}
	return resp
}

// toGameData re-encodes the typed request into the generic JSON document the
// domain validates and stores.
func toGameData(req ReplaceRequest) (any, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "invalid game payload")
	}
	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "invalid game payload")
	}
	return data, nil
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func parseLimit(c echo.Context) (int, error) {
	limit := 100
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return 0, httperror.NewHTTPError(http.StatusBadRequest, "limit must be an integer")
	}
	if limit <= 0 || limit > 1000 {
		return 0, httperror.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 1000")
	}
	return limit, nil
}

func setETagHeader(c echo.Context, etag string) {
	if etag != "" {
		c.Response().Header().Set("ETag", `"`+etag+`"`)
	}
}
