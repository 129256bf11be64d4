package middleware

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-library-api/internal/utils"
)

// ClaimsKey is the echo context key holding the authenticated *utils.Claims.
const ClaimsKey = "claims"

type claimsCtxKey struct{}

func setClaims(c echo.Context, claims *utils.Claims) {
	c.Set(ClaimsKey, claims)
	r := c.Request()
	c.SetRequest(r.WithContext(context.WithValue(r.Context(), claimsCtxKey{}, claims)))
}

// ClaimsFrom returns the identity JWTAuth attached to the request.
func ClaimsFrom(c echo.Context) (*utils.Claims, bool) {
	if cl, ok := c.Get(ClaimsKey).(*utils.Claims); ok && cl != nil {
		return cl, true
	}
	return ClaimsFromContext(c.Request().Context())
}

// ClaimsFromContext is ClaimsFrom for code that only has a context.
func ClaimsFromContext(ctx context.Context) (*utils.Claims, bool) {
	cl, ok := ctx.Value(claimsCtxKey{}).(*utils.Claims)
	return cl, ok && cl != nil
}

// userID returns the authenticated email, or "guest" when the request is
// anonymous.
func userID(c echo.Context) string {
	if cl, ok := ClaimsFrom(c); ok && cl.Email != "" {
		return cl.Email
	}
	return "guest"
}
