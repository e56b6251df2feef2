package auth

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// AuthMethod represents different authentication methods
type AuthMethod int

const (
	// AuthMethodNone sends no credentials
	AuthMethodNone AuthMethod = iota - 1
	// AuthMethodAPIKey uses API key authentication
	AuthMethodAPIKey
	// AuthMethodJWT uses JWT token authentication
	AuthMethodJWT
)

// ErrRefreshUnavailable is returned by Refresh when there is no refresh
// token or no way to exchange it. Callers keep sending the current token and
// let the server decide.
var ErrRefreshUnavailable = errors.New("token refresh is not configured")

// RefreshFunc exchanges a refresh token for a new token pair
type RefreshFunc func(refreshToken string) (token, newRefreshToken string, expiresAt time.Time, err error)

// Authenticator interface for different auth methods
type Authenticator interface {
	// GetAuthHeader returns the authorization header value
	GetAuthHeader() string
	// IsExpired checks if the authentication is expired
	IsExpired() bool
	// Refresh refreshes the authentication if possible
	Refresh() error
	// Type returns the authentication method type
	Type() AuthMethod
}

// APIKeyAuth implements API key authentication
type APIKeyAuth struct {
	APIKey string
	Header string // Default: "X-API-Key"
}

// NewAPIKeyAuth creates a new API key authenticator
func NewAPIKeyAuth(apiKey string) *APIKeyAuth {
	return &APIKeyAuth{
		APIKey: apiKey,
		Header: "X-API-Key",
	}
}

// GetAuthHeader returns the API key header
func (a *APIKeyAuth) GetAuthHeader() string {
	return a.APIKey
}

// IsExpired always returns false for API keys
func (a *APIKeyAuth) IsExpired() bool {
	return false
}

// Refresh is not applicable for API keys
func (a *APIKeyAuth) Refresh() error {
	return nil
}

// Type returns the authentication method type
func (a *APIKeyAuth) Type() AuthMethod {
	return AuthMethodAPIKey
}

// JWTAuth implements JWT bearer authentication. It is safe for concurrent
// use; the realtime connection and REST calls share one instance.
type JWTAuth struct {
	mu           sync.RWMutex
	token        string
	refreshToken string
	expiresAt    time.Time
	refresh      RefreshFunc
}

// NewJWTAuth creates a new JWT authenticator
func NewJWTAuth(token, refreshToken string, expiresAt time.Time) *JWTAuth {
	return &JWTAuth{
		token:        token,
		refreshToken: refreshToken,
		expiresAt:    expiresAt,
	}
}

// NewJWTAuthFromToken creates a JWT authenticator whose expiry is read from
// the token's exp claim. Tokens without exp never expire client side.
func NewJWTAuthFromToken(token, refreshToken string) (*JWTAuth, error) {
	expiresAt, err := tokenExpiry(token)
	if err != nil {
		return nil, err
	}
	return NewJWTAuth(token, refreshToken, expiresAt), nil
}

func tokenExpiry(token string) (time.Time, error) {
	claims, err := ParseClaims(token)
	if err != nil {
		return time.Time{}, err
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, nil
	}
	return claims.ExpiresAt.Time, nil
}

// SetRefreshFunc installs the exchange used by Refresh
func (a *JWTAuth) SetRefreshFunc(fn RefreshFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refresh = fn
}

// HasRefreshFunc reports whether an exchange is installed
func (a *JWTAuth) HasRefreshFunc() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.refresh != nil
}

// Token returns the current access token
func (a *JWTAuth) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

// GetAuthHeader returns the JWT token in Bearer format
func (a *JWTAuth) GetAuthHeader() string {
	return fmt.Sprintf("Bearer %s", a.Token())
}

// IsExpired checks if the JWT token is expired
func (a *JWTAuth) IsExpired() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.expiredLocked()
}

func (a *JWTAuth) expiredLocked() bool {
	if a.expiresAt.IsZero() {
		return false
	}
	return time.Now().After(a.expiresAt.Add(-1 * time.Minute)) // 1 minute buffer
}

// Refresh exchanges the refresh token for a new pair. Concurrent callers
// share one exchange: whoever gets the lock second finds a fresh token and
// returns. Without a refresh token or exchange it returns
// ErrRefreshUnavailable and leaves the token untouched.
func (a *JWTAuth) Refresh() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.refresh == nil || a.refreshToken == "" {
		return ErrRefreshUnavailable
	}
	if !a.expiredLocked() {
		return nil
	}

	token, refreshToken, expiresAt, err := a.refresh(a.refreshToken)
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	if expiresAt.IsZero() {
		if exp, err := tokenExpiry(token); err == nil {
			expiresAt = exp
		}
	}
	if refreshToken == "" {
		refreshToken = a.refreshToken
	}

	a.token = token
	a.refreshToken = refreshToken
	a.expiresAt = expiresAt
	return nil
}

// Type returns the authentication method type
func (a *JWTAuth) Type() AuthMethod {
	return AuthMethodJWT
}

// NoAuth represents no authentication
type NoAuth struct{}

// NewNoAuth creates a new no-auth authenticator
func NewNoAuth() *NoAuth {
	return &NoAuth{}
}

// GetAuthHeader returns empty string
func (a *NoAuth) GetAuthHeader() string {
	return ""
}

// IsExpired always returns false
func (a *NoAuth) IsExpired() bool {
	return false
}

// Refresh is not applicable
func (a *NoAuth) Refresh() error {
	return nil
}

// Type returns AuthMethodNone
func (a *NoAuth) Type() AuthMethod {
	return AuthMethodNone
}
