package handler // declare the package name; contains HTTP handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-library-api/internal/apperr"
)

// Health reports whether the service can reach MySQL through the request's
// leased connection.
func Health(c echo.Context) error {
	l, err := lease(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := l.PingContext(ctx); err != nil {
		return &apperr.Error{Kind: apperr.QueryFailure, Status: http.StatusServiceUnavailable, Msg: "database unavailable", Err: err}
	}
	return c.String(http.StatusOK, "ok")
}
