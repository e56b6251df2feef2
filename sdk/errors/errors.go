package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// CodeAlreadyAssigned is the structured code the backend sends when a
// conversation has already been claimed by another user.
const CodeAlreadyAssigned = "CONVERSATION_ALREADY_ASSIGNED"

// legacyAlreadyAssignedPhrase is matched against free-text error payloads from
// backends that do not send CodeAlreadyAssigned yet.
const legacyAlreadyAssignedPhrase = "already assigned"

// ErrAlreadyAssigned is matched by errors.Is for claim attempts that lost the
// race to another user.
var ErrAlreadyAssigned = stderrors.New("conversation already assigned")

// ErrMissingOrganization is returned when a write is attempted without an
// organization id.
var ErrMissingOrganization = stderrors.New("organization id is required")

// APIError represents an error from the API
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Code       string `json:"code"`
	Details    string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("API error (%d): %s - %s", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrAlreadyAssigned) match API errors that describe
// the claim race, and compares sentinel API errors by status code.
func (e *APIError) Is(target error) bool {
	if target == ErrAlreadyAssigned {
		return e.alreadyAssigned()
	}
	if t, ok := target.(*APIError); ok {
		return t.StatusCode == e.StatusCode && (t.Code == "" || t.Code == e.Code)
	}
	return false
}

func (e *APIError) alreadyAssigned() bool {
	if e.Code == CodeAlreadyAssigned {
		return true
	}
	// legacy fallback
	for _, s := range []string{e.Message, e.Details} {
		if strings.Contains(strings.ToLower(s), legacyAlreadyAssignedPhrase) {
			return true
		}
	}
	return false
}

// NewAPIError creates a new API error
func NewAPIError(statusCode int, message, code, details string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
		Details:    details,
	}
}

// Common error types
var (
	// ErrUnauthorized represents a 401 Unauthorized error
	ErrUnauthorized = &APIError{
		StatusCode: http.StatusUnauthorized,
		Message:    "Unauthorized",
		Code:       "UNAUTHORIZED",
	}

	// ErrForbidden represents a 403 Forbidden error
	ErrForbidden = &APIError{
		StatusCode: http.StatusForbidden,
		Message:    "Forbidden",
		Code:       "FORBIDDEN",
	}

	// ErrNotFound represents a 404 Not Found error
	ErrNotFound = &APIError{
		StatusCode: http.StatusNotFound,
		Message:    "Resource not found",
		Code:       "NOT_FOUND",
	}

	// ErrConflict represents a 409 Conflict error
	ErrConflict = &APIError{
		StatusCode: http.StatusConflict,
		Message:    "Conflict",
		Code:       "CONFLICT",
	}

	// ErrInternalServer represents a 500 Internal Server Error
	ErrInternalServer = &APIError{
		StatusCode: http.StatusInternalServerError,
		Message:    "Internal server error",
		Code:       "INTERNAL_SERVER_ERROR",
	}

	// ErrRateLimited represents a 429 Too Many Requests error
	ErrRateLimited = &APIError{
		StatusCode: http.StatusTooManyRequests,
		Message:    "Rate limit exceeded",
		Code:       "RATE_LIMITED",
	}
)

// AsAPIError unwraps err to an *APIError
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsAPIError checks if an error is an API error
func IsAPIError(err error) bool {
	_, ok := AsAPIError(err)
	return ok
}

func hasStatus(err error, status int) bool {
	if apiErr, ok := AsAPIError(err); ok {
		return apiErr.StatusCode == status
	}
	return false
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsConflict checks if an error is a 409 conflict, e.g. a duplicate HITL
// type name within an organization
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

// IsBadRequest checks if an error is a 400, e.g. users without the HITL role
func IsBadRequest(err error) bool {
	return hasStatus(err, http.StatusBadRequest)
}

// IsUnauthorized checks if an error is an unauthorized error
func IsUnauthorized(err error) bool {
	return hasStatus(err, http.StatusUnauthorized)
}

// IsForbidden checks if an error is a forbidden error
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

// IsRateLimited checks if an error is a rate limit error
func IsRateLimited(err error) bool {
	return hasStatus(err, http.StatusTooManyRequests)
}

// IsAlreadyAssigned reports whether a claim failed because another user got
// the conversation first
func IsAlreadyAssigned(err error) bool {
	return stderrors.Is(err, ErrAlreadyAssigned)
}

// IsNetworkError checks if the request never produced an HTTP response
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return stderrors.As(err, &netErr)
}

// NetworkError represents a network-related error
type NetworkError struct {
	Operation string `json:"operation"`
	URL       string `json:"url"`
	Err       error  `json:"error"`
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s to %s: %v", e.Operation, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Field, e.Message)
}

// AuthError is returned when credentials could not be prepared for a
// request, e.g. a failed token refresh. No request was sent.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// IsAuthError checks if the request was stopped before sending because
// credentials were unusable
func IsAuthError(err error) bool {
	var authErr *AuthError
	return stderrors.As(err, &authErr)
}
