package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{PoolExhaustion, http.StatusServiceUnavailable},
		{AuthMissingHeader, http.StatusUnauthorized},
		{AuthInvalidScheme, http.StatusUnauthorized},
		{AuthTokenExpired, http.StatusUnauthorized},
		{AuthTokenInvalid, http.StatusUnauthorized},
		{CredentialMismatch, http.StatusUnauthorized},
		{HashingFailure, http.StatusInternalServerError},
		{QueryFailure, http.StatusInternalServerError},
		{RequestCanceled, StatusClientClosedRequest},
		{Internal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.kind))
		})
	}
}

func TestAsThroughWrapping(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := fmt.Errorf("lease: %w", New(PoolExhaustion, "Service unavailable", cause))

	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, PoolExhaustion, e.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, e.Status)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsKind(err, PoolExhaustion))
	assert.False(t, IsKind(err, QueryFailure))
	assert.False(t, e.IsClientError())
}

func TestErrorMessageOmitsNilCause(t *testing.T) {
	e := New(AuthMissingHeader, "Invalid authorization", nil)
	assert.Equal(t, "auth_missing_header: Invalid authorization", e.Error())
	assert.True(t, e.IsClientError())
}
