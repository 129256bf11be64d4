package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-library-api/internal/apperr"
	"github.com/iliyamo/movie-library-api/internal/database"
	"github.com/iliyamo/movie-library-api/internal/logging"
)

// LeaseKey is the echo context key holding the request's *database.Lease.
const LeaseKey = "db"

// LeaseOptions configures DBLease.
type LeaseOptions struct {
	Session        database.Session
	AcquireTimeout time.Duration
}

// DBLease checks out one connection per request, applies the session
// settings, exposes it to the rest of the chain and returns it to the pool
// when the chain is done, whether it returned normally, returned an error
// or panicked.  When the pool is exhausted the request fails with 503 and no
// handler runs.
func DBLease(pool database.Pool, opts LeaseOptions) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx := req.Context()
			log := logging.FromContext(ctx)

			start := time.Now()
			lease, err := database.Acquire(ctx, pool, opts.AcquireTimeout, opts.Session)
			if err != nil {
				switch {
				case errors.Is(err, database.ErrPoolExhausted):
					return apperr.New(apperr.PoolExhaustion, "Service unavailable, please try again", err)
				case errors.Is(err, context.Canceled):
					return apperr.New(apperr.RequestCanceled, "Request canceled", err)
				}
				return apperr.New(apperr.QueryFailure, "Error, please try again", err)
			}
			defer func() {
				if rerr := lease.Release(); rerr != nil {
					log.Error("release db connection", "err", rerr)
				}
			}()
			log.Debug("db connection leased", "wait_ms", time.Since(start).Milliseconds())

			c.SetRequest(req.WithContext(database.WithLease(ctx, lease)))
			c.Set(LeaseKey, lease)
			return next(c)
		}
	}
}

// LeaseFrom returns the connection leased for this request.
func LeaseFrom(c echo.Context) (*database.Lease, bool) {
	if l, ok := c.Get(LeaseKey).(*database.Lease); ok && l != nil {
		return l, true
	}
	return database.FromContext(c.Request().Context())
}
