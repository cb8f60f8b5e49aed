package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaxonomyConstructors(t *testing.T) {
	cases := []struct {
		name string
		err  *GatewayError
		kind Kind
		code int
	}{
		{"unknown provider", NewUnknownProviderError("drive-x"), KindUnknownProvider, http.StatusNotFound},
		{"duplicate provider", NewDuplicateProviderError("drive-x"), KindDuplicateProvider, http.StatusConflict},
		{"no credential", NewNoCredentialError(), KindNoCredential, http.StatusUnauthorized},
		{"credential scope", NewCredentialScopeError("drive-x", "acct-1"), KindNoCredential, http.StatusForbidden},
		{"credential expired", NewCredentialExpiredError("drive-x", "acct-1"), KindCredentialExpired, http.StatusUnauthorized},
		{"credential refresh", NewCredentialRefreshError("drive-x", errors.New("boom")), KindCredentialRefresh, http.StatusBadGateway},
		{"entity not found", NewEntityNotFoundError("drive-x", "/a/b"), KindEntityNotFound, http.StatusNotFound},
		{"entity too large", NewEntityTooLargeError("drive-x", 2048, 1024), KindEntityTooLarge, http.StatusRequestEntityTooLarge},
		{"provider protocol", NewProviderProtocolError("drive-x", errors.New("bad json")), KindProviderProtocol, http.StatusBadGateway},
		{"validation", NewValidationError("bad input"), KindValidation, http.StatusBadRequest},
		{"internal", NewInternalError("oops"), KindInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.kind, tc.err.Kind)
			assert.Equal(t, tc.code, tc.err.HTTPCode)
			assert.Equal(t, tc.kind, KindOf(tc.err))
			assert.Equal(t, tc.code, HTTPCode(tc.err))
		})
	}
}

func TestWrapPassesTaxonomyErrorsThrough(t *testing.T) {
	original := NewEntityNotFoundError("drive-x", "/report.pdf")
	wrapped := Wrap(original, "drive-x")
	assert.Same(t, original, wrapped)
}

func TestWrapConvertsUncategorizedToProtocol(t *testing.T) {
	raw := errors.New("connection reset by peer")
	wrapped := Wrap(raw, "drive-x")

	assert.Equal(t, KindProviderProtocol, wrapped.Kind)
	assert.Equal(t, "drive-x", wrapped.Provider)
	assert.ErrorIs(t, wrapped, raw)
}

func TestWrapUnwrapsNestedTaxonomyError(t *testing.T) {
	inner := NewCredentialExpiredError("drive-x", "acct-1")
	outer := fmt.Errorf("acquire failed: %w", inner)

	wrapped := Wrap(outer, "drive-x")
	assert.Equal(t, KindCredentialExpired, wrapped.Kind)
}

func TestErrorUnwrapChain(t *testing.T) {
	cause := errors.New("timeout")
	err := NewCredentialRefreshError("drive-x", cause)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "timeout")
}

func TestHelpers(t *testing.T) {
	assert.True(t, IsNotFound(NewUnknownProviderError("x")))
	assert.True(t, IsNotFound(NewEntityNotFoundError("x", "/p")))
	assert.False(t, IsNotFound(NewValidationError("v")))

	assert.True(t, IsCredentialFailure(NewNoCredentialError()))
	assert.True(t, IsCredentialFailure(NewCredentialExpiredError("x", "a")))
	assert.True(t, IsCredentialFailure(NewCredentialRefreshError("x", errors.New("e"))))
	assert.False(t, IsCredentialFailure(NewEntityNotFoundError("x", "/p")))

	assert.True(t, IsDuplicateProvider(NewDuplicateProviderError("x")))
	assert.True(t, IsEntityTooLarge(NewEntityTooLargeError("x", 2, 1)))
	assert.True(t, IsProtocol(NewProviderProtocolError("x", nil)))
}

func TestHTTPCodeForUnknownError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPCode(errors.New("anything")))
}

func TestWithDetail(t *testing.T) {
	err := NewValidationError("bad path").WithDetail("path", "/x").WithDetail("reason", "empty")
	assert.Equal(t, "/x", err.Details["path"])
	assert.Equal(t, "empty", err.Details["reason"])
}
