package middleware // middleware holds the request lifecycle middleware shared by all routes

import (
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/movie-library-api/internal/apperr"
	"github.com/iliyamo/movie-library-api/internal/logging"
	"github.com/iliyamo/movie-library-api/internal/model"
	"github.com/iliyamo/movie-library-api/internal/utils"
)

// BearerScheme is the only Authorization scheme accepted.  The match is
// exact and case-sensitive.
const BearerScheme = "Bearer"

// Verifier decodes a raw bearer token.  *utils.TokenCodec implements it.
type Verifier interface {
	Verify(raw string) (*utils.Claims, error)
}

// RejectionHook observes every rejected request.  It runs before the 401 is
// written and never changes the response.
type RejectionHook func(c echo.Context, rej *apperr.Error)

// LogRejection is the default hook: it emits a "jwt-error" warning on the
// request logger.
func LogRejection(c echo.Context, rej *apperr.Error) {
	logging.FromContext(c.Request().Context()).Warn("jwt-error",
		"kind", string(rej.Kind),
		"status", rej.Status,
		"err", rej.Error(),
	)
}

// JWTAuth returns an Echo middleware that validates a Bearer token and
// stores the decoded claims for downstream handlers (see ClaimsFrom).
// Missing headers, foreign schemes, expired and invalid tokens are answered
// with a 401 envelope and the handler does not run.  Any other verifier
// failure is returned as an error so it surfaces as a 500.
func JWTAuth(v Verifier, onReject RejectionHook) echo.MiddlewareFunc {
	if onReject == nil {
		onReject = LogRejection
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := authenticate(c.Request().Header.Get(echo.HeaderAuthorization), v)
			if err != nil {
				rej, ok := apperr.As(err)
				if !ok {
					return fmt.Errorf("verify bearer token: %w", err)
				}
				onReject(c, rej)
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, challenge(rej))
				return c.JSON(rej.Status, model.Fail(rej.Msg))
			}

			setClaims(c, claims)
			return next(c)
		}
	}
}

// challenge builds the WWW-Authenticate value (RFC 6750 section 3).  A
// request without bearer credentials gets a bare challenge; only a token that
// was presented and refused carries an error code.
func challenge(rej *apperr.Error) string {
	switch rej.Kind {
	case apperr.AuthTokenExpired, apperr.AuthTokenInvalid:
		return BearerScheme + ` error="invalid_token", error_description="` + rej.Msg + `"`
	default:
		return BearerScheme
	}
}

// authenticate walks header check, scheme check and token verification.
func authenticate(header string, v Verifier) (*utils.Claims, error) {
	if header == "" {
		return nil, apperr.New(apperr.AuthMissingHeader, "Invalid authorization", nil)
	}
	scheme, token, _ := strings.Cut(header, " ")
	if scheme != BearerScheme {
		return nil, apperr.New(apperr.AuthInvalidScheme, "Invalid authorization", nil)
	}

	claims, err := v.Verify(strings.TrimSpace(token))
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, utils.ErrTokenExpired):
		return nil, apperr.New(apperr.AuthTokenExpired, "jwt expired", err)
	case errors.Is(err, utils.ErrTokenInvalid):
		return nil, apperr.New(apperr.AuthTokenInvalid, "invalid token", err)
	default:
		return nil, err
	}
}
