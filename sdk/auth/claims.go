package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims are the access token claims the client reads. The server verifies
// the signature; the client only inspects the payload.
type Claims struct {
	UserID      int64              `json:"user_id"`
	Email       string             `json:"email"`
	Memberships []types.Membership `json:"orgs,omitempty"`
	jwt.RegisteredClaims
}

// ParseClaims decodes the claims of a JWT without verifying its signature
func ParseClaims(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// MembershipsFromToken returns the organization roles carried in the token's
// orgs claim
func MembershipsFromToken(token string) ([]types.Membership, error) {
	claims, err := ParseClaims(token)
	if err != nil {
		return nil, err
	}
	return claims.Memberships, nil
}
