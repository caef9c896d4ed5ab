package middleware

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	fernctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/errs"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ContentTypeProblemJSON is the RFC 7807 media type.
const ContentTypeProblemJSON = "application/problem+json"

// Problem is an RFC 7807 error body.
type Problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	Field     string `json:"field,omitempty"`
	ETag      string `json:"etag,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// Error renders every error surfaced by a handler as a problem+json body.
// Domain outcomes (not-found, conflict, precondition) are request-level
// results and logged at info; everything unclassified is a system fault.
func Error(logger ectologger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		ctx := c.Request().Context()
		if c.Response().Committed {
			return
		}

		problem := Problem{
			Type:      "about:blank",
			Title:     "Internal Server Error",
			Status:    http.StatusInternalServerError,
			Instance:  c.Request().URL.Path,
			RequestID: fernctx.GetRequestID(ctx),
			TraceID:   tracing.GetTraceID(ctx),
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			problem.Status = he.Code
			if msg, ok := he.Message.(string); ok {
				problem.Detail = msg
			}
		}

		if httperror.IsHTTPError(err) {
			problem.Status = httperror.GetStatusCode(err)
			problem.Detail = err.Error()
		}

		var domainErr *errs.Error
		if errors.As(err, &domainErr) {
			problem.Status = domainErr.StatusCode()
			problem.Type = "urn:fern:error:" + string(domainErr.Kind)
			problem.Detail = domainErr.Message
			problem.Field = domainErr.Field
			problem.ETag = domainErr.ETag

			// A matched conditional read is a valid branch, not an error body.
			if domainErr.Kind == errs.KindNotModified {
				c.Response().Header().Set("ETag", `"`+domainErr.ETag+`"`)
				_ = c.NoContent(http.StatusNotModified)
				return
			}
		}

		problem.Title = http.StatusText(problem.Status)

		if problem.Status >= http.StatusInternalServerError {
			logger.WithContext(ctx).WithError(err).Error("api is returning an error")
		} else {
			logger.WithContext(ctx).WithError(err).WithField("status", problem.Status).Info("request failed")
		}

		c.Response().Header().Set(echo.HeaderContentType, ContentTypeProblemJSON)
		_ = c.JSON(problem.Status, problem)
	}
}
