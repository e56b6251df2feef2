// Package sdk provides a Go client for the HITL (human-in-the-loop) API of
// the support platform.
//
// The SDK covers the remote contracts the HITL client relies on:
//   - HITL type management (list, get, create, update, delete, assign users)
//   - Conversation hand-off (claim, reassign)
//   - Caller organization memberships
//
// Basic usage:
//
//	client := sdk.NewClientWithAPIKey("https://support.example.com/api/v1", "your-api-key")
//	hitlTypes, err := client.HitlTypes.List(ctx, orgID)
//
// Authentication methods:
//
//	// API Key (recommended for server-to-server)
//	client := sdk.NewClientWithAPIKey(baseURL, apiKey)
//
//	// JWT Token
//	client := sdk.NewClientWithJWT(baseURL, token, refreshToken, expiresAt)
//
//	// Custom authentication
//	auth := sdk.NewJWTAuth(token, refreshToken, expiresAt)
//	client := sdk.NewClient(&sdk.Config{
//		BaseURL: baseURL,
//		Auth:    auth,
//	})
package sdk

import (
	"time"

	"github.com/gotrs-io/gotrs-hitl/sdk/auth"
	"github.com/gotrs-io/gotrs-hitl/sdk/client"
)

// Client represents the HITL API client
type Client = client.Client

// Config represents client configuration
type Config = client.Config

// NewClient creates a new API client with custom configuration
func NewClient(config *Config) *Client {
	return client.NewClient(config)
}

// NewClientWithAPIKey creates a new client with API key authentication
func NewClientWithAPIKey(baseURL, apiKey string) *Client {
	return client.NewClientWithAPIKey(baseURL, apiKey)
}

// NewClientWithJWT creates a new client with JWT authentication
func NewClientWithJWT(baseURL, token, refreshToken string, expiresAt time.Time) *Client {
	return client.NewClientWithJWT(baseURL, token, refreshToken, expiresAt)
}

// Authentication helpers
var (
	// NewAPIKeyAuth creates a new API key authenticator
	NewAPIKeyAuth = auth.NewAPIKeyAuth

	// NewJWTAuth creates a new JWT authenticator
	NewJWTAuth = auth.NewJWTAuth

	// NewJWTAuthFromToken creates a JWT authenticator that reads expiry from the token
	NewJWTAuthFromToken = auth.NewJWTAuthFromToken

	// NewNoAuth creates a new no-auth authenticator
	NewNoAuth = auth.NewNoAuth
)

// Version information
const (
	// Version is the current SDK version
	Version = "1.0.0"

	// UserAgent is the default user agent string
	UserAgent = "gotrs-hitl/" + Version
)
