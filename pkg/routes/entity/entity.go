// Package entity exposes the generic entity CRUD endpoints. The payload is
// opaque JSON; the only structure the API imposes is the id grammar and the
// optimistic-concurrency headers.
package entity

import (
	"encoding/json"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	service "github.com/Ramsey-B/fern/internal/services/entity"
	"github.com/Ramsey-B/fern/pkg/models"
)

var validate = validator.New()

// Handler handles the generic entity endpoints.
type Handler struct {
	service *service.Service
	logger  ectologger.Logger
}

// NewHandler creates a new generic entity handler.
func NewHandler(svc *service.Service, logger ectologger.Logger) *Handler {
	return &Handler{
		service: svc,
		logger:  logger,
	}
}

// Register registers the entity routes.
func (h *Handler) Register(g *echo.Group) {
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/:id", h.Get)
	g.HEAD("/:id", h.GetMetadata)
	g.PUT("/:id", h.Replace)
	g.PATCH("/:id", h.Merge)
	g.DELETE("/:id", h.Delete)
}

// requireService prefers the explicitly provided service (useful for tests)
// and falls back to DI-from-context, the standard pattern elsewhere.
func (h *Handler) requireService(c echo.Context) (*service.Service, error) {
	if h != nil && h.service != nil {
		return h.service, nil
	}

	ctx := c.Request().Context()
	_, svc, err := ectoinject.GetContext[*service.GenericService](ctx)
	if err != nil || svc == nil {
		return nil, httperror.NewHTTPError(http.StatusServiceUnavailable, "entity service unavailable")
	}
	return svc.Service, nil
}

// CreateRequest is the request body for creating a generic entity.
type CreateRequest struct {
	ID   string `json:"id" validate:"required"`
	Data any    `json:"data"`
}

// Response is the representation of a generic entity.
type Response struct {
	ID       string           `json:"id"`
	Data     any              `json:"data"`
	ETag     string           `json:"etag,omitempty"`
	Metadata *models.Metadata `json:"metadata,omitempty"`
}

// ListResponse is one page of entity refs.
type ListResponse struct {
	Items      []ListItem `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// ListItem is a listing entry: the id plus its version metadata.
type ListItem struct {
	ID       string          `json:"id"`
	Metadata models.Metadata `json:"metadata"`
}

// List returns a page of entity refs.
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

// Create stores a new entity. Create-only by default; forwards an explicit
// If-None-Match when the client sends one.
func (h *Handler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	e, err := svc.Create(ctx, req.ID, req.Data, c.Request().Header.Get("If-None-Match"))
	if err != nil {
		return err
	}

	setEntityHeaders(c, e)
	c.Response().Header().Set("Location", c.Request().URL.Path+"/"+e.ID())
	return c.JSON(http.StatusCreated, toResponse(e))
}

// Get returns the entity, honoring If-None-Match.
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

	setEntityHeaders(c, e)
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

	c.Response().Header().Set("ETag", quoteETag(meta.ETag))
	return c.NoContent(http.StatusOK)
}

// Replace stores the full payload, creating the entity when absent and no
// If-Match was sent.
func (h *Handler) Replace(c echo.Context) error {
	ctx := c.Request().Context()

	data, err := decodeBody(c)
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

	setEntityHeaders(c, e)
	return c.JSON(http.StatusOK, toResponse(e))
}

// Merge deep-merges the partial payload into the stored entity.
func (h *Handler) Merge(c echo.Context) error {
	ctx := c.Request().Context()

	data, err := decodeBody(c)
	if err != nil {
		return err
	}

	svc, err := h.requireService(c)
	if err != nil {
		return err
	}

	e, err := svc.Merge(ctx, c.Param("id"), data, c.Request().Header.Get("If-Match"))
	if err != nil {
		return err
	}

	setEntityHeaders(c, e)
	return c.JSON(http.StatusOK, toResponse(e))
}

// Delete removes the entity, honoring If-Match.
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

func toResponse(e models.Entity) Response {
	return Response{
		ID:       e.ID(),
		Data:     e.Data(),
		ETag:     e.ETag(),
		Metadata: e.Metadata(),
	}
}

func decodeBody(c echo.Context) (any, error) {
	var data any
	if err := json.NewDecoder(c.Request().Body).Decode(&data); err != nil {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "invalid JSON body")
	}
	return data, nil
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

func setEntityHeaders(c echo.Context, e models.Entity) {
	if e.ETag() != "" {
		c.Response().Header().Set("ETag", quoteETag(e.ETag()))
	}
}

func quoteETag(etag string) string {
	return `"` + etag + `"`
}
