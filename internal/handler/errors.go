package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-library-api/internal/apperr"
	"github.com/iliyamo/movie-library-api/internal/database"
	"github.com/iliyamo/movie-library-api/internal/logging"
	"github.com/iliyamo/movie-library-api/internal/middleware"
	"github.com/iliyamo/movie-library-api/internal/model"
	"github.com/iliyamo/movie-library-api/internal/utils"
)

// ErrorHandler is the echo HTTPErrorHandler.  Every failure leaves as a JSON
// envelope; the cause is logged and never echoed to the client.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	log := logging.FromContext(c.Request().Context())

	status := http.StatusInternalServerError
	msg := "Internal server error"
	var he *echo.HTTPError
	if ae, ok := apperr.As(err); ok {
		status, msg = ae.Status, ae.Msg
		if ae.IsClientError() {
			log.Warn("request rejected", "kind", string(ae.Kind), "err", err)
		} else {
			log.Error("request failed", "kind", string(ae.Kind), "err", err)
		}
	} else if errors.As(err, &he) {
		status = he.Code
		if s, ok := he.Message.(string); ok {
			msg = s
		} else {
			msg = http.StatusText(he.Code)
		}
		if status >= http.StatusInternalServerError {
			log.Error("request failed", "err", err)
		}
	} else {
		log.Error("request failed", "err", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, model.Fail(msg))
	}
	if err != nil {
		log.Error("write error response", "err", err)
	}
}

// lease returns the request's database connection.  Its absence means the
// route was mounted outside DBLease, which is a wiring bug.
func lease(c echo.Context) (*database.Lease, error) {
	l, ok := middleware.LeaseFrom(c)
	if !ok {
		return nil, apperr.New(apperr.Internal, "Internal server error", errors.New("no database lease on request"))
	}
	return l, nil
}

// identity returns the authenticated claims or an error for routes mounted
// outside JWTAuth.
func identity(c echo.Context) (*utils.Claims, error) {
	cl, ok := middleware.ClaimsFrom(c)
	if !ok || cl.Email == "" {
		return nil, apperr.New(apperr.Internal, "Internal server error", fmt.Errorf("no identity on %s", c.Path()))
	}
	return cl, nil
}
