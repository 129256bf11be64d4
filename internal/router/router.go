package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/movie-library-api/internal/database"
	"github.com/iliyamo/movie-library-api/internal/handler"
	"github.com/iliyamo/movie-library-api/internal/middleware"
)

// Deps is everything the HTTP surface is built from.
type Deps struct {
	Logger      *slog.Logger
	Pool        database.Pool
	Lease       middleware.LeaseOptions
	Verifier    middleware.Verifier
	OnReject    middleware.RejectionHook // nil logs a jwt-error warning
	RateLimit   echo.MiddlewareFunc      // nil disables rate limiting
	Cache       *middleware.UserCache    // nil disables response caching
	CORSOrigins []string
	Auth        *handler.AuthHandler
	Library     *handler.LibraryHandler
}

// New builds the Echo instance.  The global chain, outermost first, is:
// request ID, request logger, panic recovery, CORS.  The DB connection lease
// is mounted per route so the credential rate limiter can run before it and
// throttled requests never check out a connection.  Recovery sits outside
// the lease so a panicking handler still releases its connection before the
// panic is turned into a 500.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: middleware.NewRequestID}))
	e.Use(middleware.RequestLogger(d.Logger))
	e.Use(echomw.RecoverWithConfig(echomw.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			d.Logger.Error("panic recovered", "err", err, "stack", string(stack))
			return err
		},
	}))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: origins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	}))

	lease := middleware.DBLease(d.Pool, d.Lease)
	RegisterRoutes(e, lease)
	RegisterAuth(e, d.Auth, d.RateLimit, lease)
	RegisterLibrary(e, d.Library, d.Auth, lease, middleware.JWTAuth(d.Verifier, d.OnReject), d.Cache)
	return e
}

// RegisterRoutes registers routes that do not require authentication and are
// not credential endpoints.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, lease echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health, lease)
}

// RegisterAuth registers the public credential endpoints.  Each of these
// handlers generates a token; the optional limiter guards them against
// brute force and runs before the lease.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, limiter, lease echo.MiddlewareFunc) {
	var mws []echo.MiddlewareFunc
	if limiter != nil {
		mws = append(mws, limiter)
	}
	mws = append(mws, lease)
	e.POST("/register", a.Register, mws...)
	e.POST("/log-in", a.Login, mws...)
}

// RegisterLibrary registers routes that require a valid bearer token.  The
// lease wraps the auth gate and everything after it.  Both run per route
// rather than on a prefix-less group so unknown paths still answer 404
// instead of 401.
func RegisterLibrary(e *echo.Echo, l *handler.LibraryHandler, a *handler.AuthHandler, lease, auth echo.MiddlewareFunc, cache *middleware.UserCache) {
	e.GET("/me", a.Me, lease, auth)
	e.GET("/user-library", l.List, lease, auth, cache.Middleware())
	e.PUT("/save", l.Save, lease, auth)
	e.DELETE("/delete-movie/:imdbID", l.Delete, lease, auth)
}
