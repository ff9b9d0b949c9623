package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/apperror"
	"github.com/pageza/foodgram/backend/internal/logging"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/storage"
	"github.com/pageza/foodgram/backend/internal/types"
)

const msgNotFound = "Not found."

// writeError maps service errors onto HTTP responses.
func writeError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		switch {
		case errors.Is(err, apperror.ErrValidation):
			c.JSON(http.StatusBadRequest, middleware.ErrorResponse{Error: "validation_error", Message: appErr.Message, Fields: appErr.Fields})
			return
		case errors.Is(err, apperror.ErrConflict):
			c.JSON(http.StatusBadRequest, middleware.ErrorResponse{Error: "conflict", Message: appErr.Message})
			return
		case errors.Is(err, apperror.ErrNotFound):
			c.JSON(http.StatusNotFound, middleware.ErrorResponse{Error: "not_found", Message: appErr.Message})
			return
		case errors.Is(err, apperror.ErrUnauthorized):
			c.JSON(http.StatusUnauthorized, middleware.ErrorResponse{Error: "unauthorized", Message: appErr.Message})
			return
		case errors.Is(err, apperror.ErrForbidden):
			c.JSON(http.StatusForbidden, middleware.ErrorResponse{Error: "forbidden", Message: appErr.Message})
			return
		}
	}

	if errors.Is(err, storage.ErrUnavailable) {
		logging.Ctx(c.Request.Context()).Warn().Err(err).Msg("image storage unavailable")
		c.JSON(http.StatusServiceUnavailable, middleware.ErrorResponse{Error: "service_unavailable", Message: "Image storage is temporarily unavailable."})
		return
	}

	logging.Ctx(c.Request.Context()).Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
	c.JSON(http.StatusInternalServerError, middleware.ErrorResponse{Error: "internal_error", Message: "Internal server error."})
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, middleware.ErrorResponse{Error: "not_found", Message: msgNotFound})
}

func badJSON(c *gin.Context) {
	writeError(c, apperror.ValidationFailed("non_field_errors", "Invalid JSON."))
}

// pathID parses the :id parameter. Anything but a positive integer is a 404.
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		notFound(c)
		return 0, false
	}
	return uint(id), true
}

// pager reads page/limit query parameters and builds list envelopes.
type pager struct {
	cfg       config.PaginationConfig
	publicURL string
}

// parse returns the requested page. An invalid page number is a 404 while a
// bad limit falls back to the default.
func (p pager) parse(c *gin.Context) (service.Page, bool) {
	page := service.Page{Number: 1, Limit: p.cfg.DefaultLimit}
	if raw := c.Query("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusNotFound, middleware.ErrorResponse{Error: "not_found", Message: "Invalid page."})
			return page, false
		}
		page.Number = n
	}
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page.Limit = min(n, p.cfg.MaxLimit)
		}
	}
	return page, true
}

// respond writes the envelope, or a 404 when the page is past the end.
func respond[T any](p pager, c *gin.Context, page service.Page, results []T, count int64) {
	if page.Number > 1 && int64(page.Offset()) >= count {
		c.JSON(http.StatusNotFound, middleware.ErrorResponse{Error: "not_found", Message: "Invalid page."})
		return
	}
	if results == nil {
		results = []T{}
	}
	body := types.Page[T]{Count: count, Results: results}
	if int64(page.Offset()+len(results)) < count {
		body.Next = p.link(c, page.Number+1)
	}
	if page.Number > 1 {
		body.Previous = p.link(c, page.Number-1)
	}
	c.JSON(http.StatusOK, body)
}

func (p pager) link(c *gin.Context, number int) *string {
	q := c.Request.URL.Query()
	if number == 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(number))
	}
	u := url.URL{Path: c.Request.URL.Path, RawQuery: q.Encode()}
	s := baseURL(c, p.publicURL) + u.String()
	return &s
}

// baseURL is the scheme and host clients reach us on. A forwarded proto only
// overrides the scheme when it names http or https.
func baseURL(c *gin.Context, publicURL string) string {
	if publicURL != "" {
		return strings.TrimRight(publicURL, "/")
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	proto, _, _ := strings.Cut(c.GetHeader("X-Forwarded-Proto"), ",")
	switch proto = strings.ToLower(strings.TrimSpace(proto)); proto {
	case "http", "https":
		scheme = proto
	}
	return scheme + "://" + c.Request.Host
}
