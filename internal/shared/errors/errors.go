package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a gateway failure. Two branches: failures about talking
// to a provider (credential, refresh, protocol) and failures about the
// requested entity (not found, too large).
type Kind string

const (
	KindUnknownProvider   Kind = "UNKNOWN_PROVIDER"
	KindDuplicateProvider Kind = "DUPLICATE_PROVIDER"
	KindNoCredential      Kind = "NO_CREDENTIAL"
	KindCredentialExpired Kind = "CREDENTIAL_EXPIRED"
	KindCredentialRefresh Kind = "CREDENTIAL_REFRESH"
	KindEntityNotFound    Kind = "ENTITY_NOT_FOUND"
	KindEntityTooLarge    Kind = "ENTITY_TOO_LARGE"
	KindProviderProtocol  Kind = "PROVIDER_PROTOCOL"
	KindValidation        Kind = "VALIDATION_ERROR"
	KindInternal          Kind = "INTERNAL_ERROR"
)

// Common sentinel errors
var (
	ErrUnknownProvider   = errors.New("unknown provider")
	ErrDuplicateProvider = errors.New("provider already registered")
	ErrNoCredential      = errors.New("no credential found")
	ErrCredentialExpired = errors.New("credential expired")
	ErrEntityNotFound    = errors.New("entity not found")
	ErrEntityTooLarge    = errors.New("entity exceeds provider size limit")
)

// GatewayError is the single root failure type for the gateway. Every
// component raises only from this taxonomy; drivers must translate backend
// errors into one of its kinds before returning.
type GatewayError struct {
	Kind     Kind                   `json:"kind"`
	Message  string                 `json:"message"`
	Provider string                 `json:"provider,omitempty"`
	HTTPCode int                    `json:"-"`
	Details  map[string]interface{} `json:"details,omitempty"`
	Cause    error                  `json:"-"`
}

// Error implements the error interface
func (e *GatewayError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// New creates a gateway error with an explicit kind
func New(kind Kind, message string, httpCode int) *GatewayError {
	return &GatewayError{
		Kind:     kind,
		Message:  message,
		HTTPCode: httpCode,
		Details:  make(map[string]interface{}),
	}
}

// WithCause adds the underlying cause
func (e *GatewayError) WithCause(cause error) *GatewayError {
	e.Cause = cause
	return e
}

// WithProvider tags the error with the backend it came from
func (e *GatewayError) WithProvider(provider string) *GatewayError {
	e.Provider = provider
	return e
}

// WithDetail adds a detail field
func (e *GatewayError) WithDetail(key string, value interface{}) *GatewayError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Taxonomy constructors

// NewUnknownProviderError reports a registry lookup of an unregistered short name.
func NewUnknownProviderError(shortName string) *GatewayError {
	return New(KindUnknownProvider, fmt.Sprintf("provider %q is not registered", shortName), http.StatusNotFound).
		WithProvider(shortName).WithCause(ErrUnknownProvider)
}

// NewDuplicateProviderError reports registration under an already-used short name.
// Fatal at startup.
func NewDuplicateProviderError(shortName string) *GatewayError {
	return New(KindDuplicateProvider, fmt.Sprintf("provider %q is already registered", shortName), http.StatusConflict).
		WithProvider(shortName).WithCause(ErrDuplicateProvider)
}

// NewNoCredentialError reports that no auth resolver yielded a credential.
func NewNoCredentialError() *GatewayError {
	return New(KindNoCredential, "no credential found for request", http.StatusUnauthorized).
		WithCause(ErrNoCredential)
}

// NewCredentialScopeError reports a resolved credential that does not cover
// the account named by the request.
func NewCredentialScopeError(provider, accountID string) *GatewayError {
	return New(KindNoCredential, "credential does not cover the requested account", http.StatusForbidden).
		WithProvider(provider).WithDetail("account_id", accountID).WithCause(ErrNoCredential)
}

// NewCredentialExpiredError reports a token past expiry with no refresh path.
// The caller must re-authenticate out of band.
func NewCredentialExpiredError(provider, accountID string) *GatewayError {
	return New(KindCredentialExpired, "credential expired and no refresh token is available", http.StatusUnauthorized).
		WithProvider(provider).WithDetail("account_id", accountID).WithCause(ErrCredentialExpired)
}

// NewCredentialRefreshError reports a failed backend refresh call, carrying
// the provider-reported cause. Surfaced to all callers waiting on the refresh.
func NewCredentialRefreshError(provider string, cause error) *GatewayError {
	return New(KindCredentialRefresh, "credential refresh failed", http.StatusBadGateway).
		WithProvider(provider).WithCause(cause)
}

// NewEntityNotFoundError reports a missing remote file or folder.
func NewEntityNotFoundError(provider, path string) *GatewayError {
	return New(KindEntityNotFound, fmt.Sprintf("entity %q not found", path), http.StatusNotFound).
		WithProvider(provider).WithDetail("path", path).WithCause(ErrEntityNotFound)
}

// NewEntityTooLargeError reports an upload exceeding the provider's declared
// maximum. Raised before any transfer is attempted.
func NewEntityTooLargeError(provider string, size, maxSize int64) *GatewayError {
	return New(KindEntityTooLarge, "entity exceeds provider upload limit", http.StatusRequestEntityTooLarge).
		WithProvider(provider).
		WithDetail("size", size).
		WithDetail("max_size", maxSize).
		WithCause(ErrEntityTooLarge)
}

// NewProviderProtocolError reports a malformed or unexpected backend response.
// Logged with backend identity; never retried by the core.
func NewProviderProtocolError(provider string, cause error) *GatewayError {
	return New(KindProviderProtocol, "unexpected response from provider", http.StatusBadGateway).
		WithProvider(provider).WithCause(cause)
}

// NewValidationError reports invalid caller input.
func NewValidationError(message string) *GatewayError {
	return New(KindValidation, message, http.StatusBadRequest)
}

// NewInternalError reports an unclassified gateway failure.
func NewInternalError(message string) *GatewayError {
	return New(KindInternal, message, http.StatusInternalServerError)
}

// Wrap converts an arbitrary error into a GatewayError. Errors already in the
// taxonomy pass through unchanged; anything uncategorized that crossed a
// driver boundary is a protocol error by definition.
func Wrap(err error, provider string) *GatewayError {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return NewProviderProtocolError(provider, err)
}

// KindOf returns the taxonomy kind of an error, or KindInternal for errors
// outside the taxonomy.
func KindOf(err error) Kind {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return KindInternal
}

// IsNotFound checks for registry or entity not-found failures
func IsNotFound(err error) bool {
	switch KindOf(err) {
	case KindUnknownProvider, KindEntityNotFound:
		return true
	}
	return errors.Is(err, ErrEntityNotFound) || errors.Is(err, ErrUnknownProvider)
}

// IsCredentialFailure checks for any failure on the credential branch
func IsCredentialFailure(err error) bool {
	switch KindOf(err) {
	case KindNoCredential, KindCredentialExpired, KindCredentialRefresh:
		return true
	}
	return errors.Is(err, ErrNoCredential) || errors.Is(err, ErrCredentialExpired)
}

// IsDuplicateProvider checks for a duplicate registration failure
func IsDuplicateProvider(err error) bool {
	return KindOf(err) == KindDuplicateProvider || errors.Is(err, ErrDuplicateProvider)
}

// IsEntityTooLarge checks for an upload size failure
func IsEntityTooLarge(err error) bool {
	return KindOf(err) == KindEntityTooLarge || errors.Is(err, ErrEntityTooLarge)
}

// IsProtocol checks for a malformed-backend-response failure
func IsProtocol(err error) bool {
	return KindOf(err) == KindProviderProtocol
}

// HTTPCode maps an error to the status code the gateway surface should emit.
func HTTPCode(err error) int {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) && gwErr.HTTPCode != 0 {
		return gwErr.HTTPCode
	}
	return http.StatusInternalServerError
}
