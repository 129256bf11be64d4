package middleware

import (
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oklog/ulid/v2"

	"github.com/iliyamo/movie-library-api/internal/logging"
)

// NewRequestID generates request IDs for echo's RequestID middleware.
func NewRequestID() string {
	return ulid.Make().String()
}

// RequestLogger attaches a request-scoped logger (req_id, method, path,
// remote address) to the request context and logs one line per request.
// Errors returned by the chain are rendered here so the logged status is the
// one the client saw.
func RequestLogger(base *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			if reqID == "" {
				reqID = req.Header.Get(echo.HeaderXRequestID)
			}
			logger := base.With(
				"req_id", reqID,
				"method", req.Method,
				"path", req.URL.Path,
				"remote_addr", c.RealIP(),
			)
			c.SetRequest(req.WithContext(logging.WithContext(req.Context(), logger)))

			if err := next(c); err != nil {
				c.Error(err)
			}

			logger.Info("http_request",
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
				"user_agent", req.UserAgent(),
			)
			return nil
		}
	}
}
