package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

func signedToken(t *testing.T, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestAuthenticators(t *testing.T) {
	t.Run("API key", func(t *testing.T) {
		a := NewAPIKeyAuth("key-123")
		assert.Equal(t, "key-123", a.GetAuthHeader())
		assert.False(t, a.IsExpired())
		assert.Equal(t, AuthMethodAPIKey, a.Type())
	})

	t.Run("JWT without expiry never expires", func(t *testing.T) {
		a := NewJWTAuth("tok", "", time.Time{})
		assert.False(t, a.IsExpired())
		assert.Equal(t, "Bearer tok", a.GetAuthHeader())
	})

	t.Run("JWT within the one minute buffer is expired", func(t *testing.T) {
		a := NewJWTAuth("tok", "", time.Now().Add(30*time.Second))
		assert.True(t, a.IsExpired())
	})

	t.Run("JWT refresh swaps the token pair", func(t *testing.T) {
		a := NewJWTAuth("old", "r1", time.Now().Add(-time.Hour))
		a.SetRefreshFunc(func(refreshToken string) (string, string, time.Time, error) {
			assert.Equal(t, "r1", refreshToken)
			return "new", "r2", time.Now().Add(time.Hour), nil
		})
		require.NoError(t, a.Refresh())
		assert.Equal(t, "new", a.Token())
		assert.False(t, a.IsExpired())
	})

	t.Run("JWT refresh reads expiry from the new token", func(t *testing.T) {
		exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
		fresh := signedToken(t, Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)}})

		a := NewJWTAuth("old", "r1", time.Now().Add(-time.Hour))
		a.SetRefreshFunc(func(string) (string, string, time.Time, error) {
			return fresh, "", time.Time{}, nil
		})
		require.NoError(t, a.Refresh())
		assert.Equal(t, fresh, a.Token())
		assert.False(t, a.IsExpired())
	})

	t.Run("JWT refresh skips a token that is still fresh", func(t *testing.T) {
		calls := 0
		a := NewJWTAuth("tok", "r1", time.Now().Add(time.Hour))
		a.SetRefreshFunc(func(string) (string, string, time.Time, error) {
			calls++
			return "new", "r2", time.Now().Add(time.Hour), nil
		})
		require.NoError(t, a.Refresh())
		assert.Zero(t, calls)
		assert.Equal(t, "tok", a.Token())
	})

	t.Run("JWT refresh failure keeps the old token", func(t *testing.T) {
		a := NewJWTAuth("old", "r1", time.Now().Add(-time.Hour))
		a.SetRefreshFunc(func(string) (string, string, time.Time, error) {
			return "", "", time.Time{}, errors.New("boom")
		})
		err := a.Refresh()
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrRefreshUnavailable)
		assert.Equal(t, "old", a.Token())
	})

	t.Run("JWT refresh without func or refresh token", func(t *testing.T) {
		assert.ErrorIs(t, NewJWTAuth("t", "r", time.Now()).Refresh(), ErrRefreshUnavailable)

		a := NewJWTAuth("t", "", time.Now())
		a.SetRefreshFunc(func(string) (string, string, time.Time, error) {
			t.Fatal("exchange called without a refresh token")
			return "", "", time.Time{}, nil
		})
		assert.ErrorIs(t, a.Refresh(), ErrRefreshUnavailable)
		assert.Equal(t, "t", a.Token())
	})

	t.Run("No auth", func(t *testing.T) {
		a := NewNoAuth()
		assert.Empty(t, a.GetAuthHeader())
		assert.Equal(t, AuthMethodNone, a.Type())
	})
}

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	token := signedToken(t, Claims{
		UserID: 42,
		Email:  "agent@example.com",
		Memberships: []types.Membership{
			{OrganizationID: 5, Role: types.RoleHitl},
			{OrganizationID: 7, Role: types.RoleOwner},
		},
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
	})

	t.Run("reads memberships", func(t *testing.T) {
		memberships, err := MembershipsFromToken(token)
		require.NoError(t, err)
		assert.Equal(t, []types.Membership{
			{OrganizationID: 5, Role: types.RoleHitl},
			{OrganizationID: 7, Role: types.RoleOwner},
		}, memberships)
	})

	t.Run("expiry comes from the token", func(t *testing.T) {
		a, err := NewJWTAuthFromToken(token, "refresh")
		require.NoError(t, err)
		assert.False(t, a.IsExpired())
		assert.Equal(t, token, a.Token())
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := ParseClaims("not-a-jwt")
		assert.ErrorIs(t, err, ErrInvalidToken)
		_, err = ParseClaims("")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
