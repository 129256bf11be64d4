package utils // package utils provides the token codec and password hashing

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultRole is the role claim stamped on every token issued at log-in.
const DefaultRole = 4

var (
	// ErrTokenExpired is returned by Verify when the token's exp is in the past.
	ErrTokenExpired = errors.New("jwt expired")
	// ErrTokenInvalid covers every other decode or signature failure.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrNoSecret means the codec was built without a signing key.
	ErrNoSecret = errors.New("jwt signing secret is empty")
)

// Claims is the identity embedded in a bearer token.
type Claims struct {
	UserID    uint64 `json:"userId"`
	Email     string `json:"email"`
	FirstName string `json:"fname,omitempty"`
	LastName  string `json:"lname,omitempty"`
	Role      int    `json:"role"`
	jwt.RegisteredClaims
}

// TokenCodec signs and verifies HS256 tokens with a server-held secret.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec builds a codec. ttl is the lifetime given to issued tokens.
func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock returns a copy of the codec that reads time from now. Used to
// mint tokens that are already expired.
func (tc *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *tc
	cp.now = now
	return &cp
}

// Issue signs claims with an expiry of now+ttl and returns the token string
// together with that expiry.
func (tc *TokenCodec) Issue(c Claims) (string, time.Time, error) {
	if len(tc.secret) == 0 {
		return "", time.Time{}, ErrNoSecret
	}
	now := tc.now().UTC()
	exp := now.Add(tc.ttl)
	c.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(c.UserID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := t.SignedString(tc.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify decodes raw, checks its signature and expiry, and returns the
// claims. Failures are ErrTokenExpired or ErrTokenInvalid; anything else is
// a server-side problem.
func (tc *TokenCodec) Verify(raw string) (*Claims, error) {
	if len(tc.secret) == 0 {
		return nil, ErrNoSecret
	}
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (interface{}, error) { return tc.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tc.now),
	)
	switch {
	case err == nil && tok.Valid:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
	case err == nil:
		return nil, ErrTokenInvalid
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
}
