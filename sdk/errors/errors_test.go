package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicates(t *testing.T) {
	conflict := NewAPIError(http.StatusConflict, "name taken", "", "")
	badRequest := NewAPIError(http.StatusBadRequest, "users lack role", "", "")
	wrapped := fmt.Errorf("create: %w", conflict)

	assert.True(t, IsConflict(conflict))
	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsConflict(badRequest))
	assert.True(t, IsBadRequest(badRequest))
	assert.True(t, IsNotFound(ErrNotFound))
	assert.True(t, IsUnauthorized(ErrUnauthorized))
	assert.True(t, IsForbidden(ErrForbidden))
	assert.True(t, IsRateLimited(ErrRateLimited))
	assert.False(t, IsAPIError(stderrors.New("plain")))
}

func TestAlreadyAssigned(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"structured code", NewAPIError(http.StatusBadRequest, "taken", CodeAlreadyAssigned, ""), true},
		{"legacy message", NewAPIError(http.StatusBadRequest, "Conversation already assigned to Jane", "", ""), true},
		{"legacy details, mixed case", NewAPIError(http.StatusBadRequest, "Bad Request", "", "This conversation is Already Assigned"), true},
		{"wrapped sentinel", fmt.Errorf("%w: %w", ErrAlreadyAssigned, ErrConflict), true},
		{"generic failure", NewAPIError(http.StatusInternalServerError, "db down", "", ""), false},
		{"network", &NetworkError{Operation: "POST", URL: "x", Err: stderrors.New("refused")}, false},
		{"nil", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAlreadyAssigned(tt.err))
		})
	}
}

func TestNetworkError(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := fmt.Errorf("list: %w", &NetworkError{Operation: "GET", URL: "http://x/y", Err: cause})
	assert.True(t, IsNetworkError(err))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "GET")
}

func TestAPIErrorMessage(t *testing.T) {
	assert.Equal(t, "API error (409): name taken", NewAPIError(409, "name taken", "", "").Error())
	assert.Equal(t, "API error (400): bad - more", NewAPIError(400, "bad", "", "more").Error())
}
