package client

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/gotrs-io/gotrs-hitl/sdk/auth"
	"github.com/gotrs-io/gotrs-hitl/sdk/errors"
)

// Client represents the HITL API client
type Client struct {
	// httpClient retries transport failures; writeClient never does, so a
	// claim is sent at most once per call.
	httpClient  *resty.Client
	writeClient *resty.Client
	baseURL     string
	auth        auth.Authenticator
	userAgent   string
	timeout     time.Duration

	// Service clients
	HitlTypes     *HitlTypesService
	Conversations *ConversationsService
	Users         *UsersService
	Auth          *AuthService
}

// skipAuthKey marks request contexts that must go out without credentials
type skipAuthKey struct{}

// Config represents client configuration
type Config struct {
	BaseURL    string
	Auth       auth.Authenticator
	UserAgent  string
	Timeout    time.Duration
	RetryCount int
	Debug      bool
	// HTTPClient overrides the transport, mostly for tests
	HTTPClient *http.Client
}

// NewClient creates a new HITL API client
func NewClient(config *Config) *Client {
	if config.UserAgent == "" {
		config.UserAgent = "gotrs-hitl/1.0.0"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.RetryCount == 0 {
		config.RetryCount = 3
	}
	if config.RetryCount < 0 {
		config.RetryCount = 0
	}

	client := &Client{
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
		auth:      config.Auth,
		userAgent: config.UserAgent,
		timeout:   config.Timeout,
	}
	client.httpClient = client.newResty(config, config.RetryCount)
	client.writeClient = client.newResty(config, 0)

	// Initialize service clients
	client.HitlTypes = &HitlTypesService{client: client}
	client.Conversations = &ConversationsService{client: client}
	client.Users = &UsersService{client: client}
	client.Auth = &AuthService{client: client}

	// JWTs refresh through the backend unless the caller brought an exchange
	if jwtAuth, ok := config.Auth.(*auth.JWTAuth); ok && !jwtAuth.HasRefreshFunc() {
		jwtAuth.SetRefreshFunc(client.refreshToken)
	}

	return client
}

// refreshToken is the auth.RefreshFunc backed by AuthService.Refresh
func (c *Client) refreshToken(refreshToken string) (string, string, time.Time, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	resp, err := c.Auth.Refresh(ctx, refreshToken)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return resp.Token, resp.RefreshToken, resp.ExpiresAt, nil
}

func (c *Client) newResty(config *Config, retries int) *resty.Client {
	var r *resty.Client
	if config.HTTPClient != nil {
		r = resty.NewWithClient(config.HTTPClient)
	} else {
		r = resty.New()
	}
	r.SetBaseURL(c.baseURL).
		SetTimeout(config.Timeout).
		SetRetryCount(retries).
		SetHeader("User-Agent", config.UserAgent).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json")

	if config.Debug {
		r.SetDebug(true)
	}

	// Set up authentication middleware
	r.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return c.setAuth(req)
	})
	return r
}

// NewClientWithAPIKey creates a new client with API key authentication
func NewClientWithAPIKey(baseURL, apiKey string) *Client {
	return NewClient(&Config{
		BaseURL: baseURL,
		Auth:    auth.NewAPIKeyAuth(apiKey),
	})
}

// NewClientWithJWT creates a new client with JWT authentication
func NewClientWithJWT(baseURL, token, refreshToken string, expiresAt time.Time) *Client {
	return NewClient(&Config{
		BaseURL: baseURL,
		Auth:    auth.NewJWTAuth(token, refreshToken, expiresAt),
	})
}

// BaseURL returns the API root the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Authenticator returns the configured authenticator, possibly nil
func (c *Client) Authenticator() auth.Authenticator {
	return c.auth
}

// AuthHeader returns the credential headers for the next request,
// refreshing an expiring token first. The realtime connection calls it on
// every dial so reconnects never reuse a stale token.
func (c *Client) AuthHeader() (http.Header, error) {
	header := http.Header{}
	if c.auth == nil {
		return header, nil
	}

	if c.auth.IsExpired() {
		err := c.auth.Refresh()
		if err != nil && !stderrors.Is(err, auth.ErrRefreshUnavailable) {
			return nil, &errors.AuthError{Err: err}
		}
	}

	value := c.auth.GetAuthHeader()
	if value == "" {
		return header, nil
	}
	switch c.auth.Type() {
	case auth.AuthMethodAPIKey:
		header.Set("X-API-Key", value)
	case auth.AuthMethodJWT:
		header.Set("Authorization", value)
	}
	return header, nil
}

// setAuth sets authentication headers on requests
func (c *Client) setAuth(req *resty.Request) error {
	if skip, _ := req.Context().Value(skipAuthKey{}).(bool); skip {
		return nil
	}
	header, err := c.AuthHeader()
	if err != nil {
		return err
	}
	for key := range header {
		req.SetHeader(key, header.Get(key))
	}
	return nil
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, c.httpClient, http.MethodGet, path, nil, result)
}

// Post performs a POST request
func (c *Client) Post(ctx context.Context, path string, body interface{}, result interface{}) error {
	return c.do(ctx, c.writeClient, http.MethodPost, path, body, result)
}

// Patch performs a PATCH request
func (c *Client) Patch(ctx context.Context, path string, body interface{}, result interface{}) error {
	return c.do(ctx, c.writeClient, http.MethodPatch, path, body, result)
}

// Delete performs a DELETE request
func (c *Client) Delete(ctx context.Context, path string, result interface{}) error {
	return c.do(ctx, c.writeClient, http.MethodDelete, path, nil, result)
}

func (c *Client) do(ctx context.Context, hc *resty.Client, method, path string, body, result interface{}) error {
	req := hc.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if errors.IsAuthError(err) {
		return err
	}
	if err != nil {
		return &errors.NetworkError{
			Operation: method,
			URL:       c.baseURL + path,
			Err:       err,
		}
	}

	if !resp.IsSuccess() {
		return parseError(resp.StatusCode(), resp.Body())
	}

	return decodeResult(resp.StatusCode(), resp.Body(), result)
}

// envelope is the subset of the standard response the client inspects
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message json.RawMessage `json:"message"`
	Code    string          `json:"code"`
}

// decodeResult unwraps {"success":true,"data":...} envelopes and decodes
// bare JSON bodies as-is
func decodeResult(status int, body []byte, result interface{}) error {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil
	}

	if body[0] == '{' {
		var env envelope
		if err := json.Unmarshal(body, &env); err == nil && env.Success != nil {
			if !*env.Success {
				return errors.NewAPIError(status, firstNonEmpty(env.Error, messageText(env.Message), "request failed"), env.Code, messageText(env.Message))
			}
			if result == nil || len(env.Data) == 0 || string(env.Data) == "null" {
				return nil
			}
			if err := json.Unmarshal(env.Data, result); err != nil {
				return fmt.Errorf("failed to decode response data: %w", err)
			}
			return nil
		}
	}

	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseError builds an APIError from a non-2xx response. Both the standard
// envelope and {"statusCode","message","error"} bodies are understood.
func parseError(status int, body []byte) error {
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil {
		msg := messageText(env.Message)
		if msg != "" || env.Error != "" || env.Code != "" {
			return errors.NewAPIError(status, firstNonEmpty(msg, env.Error, http.StatusText(status)), env.Code, detailText(env.Error, msg))
		}
	}

	// Fallback to status code based errors
	switch status {
	case http.StatusUnauthorized:
		return errors.ErrUnauthorized
	case http.StatusForbidden:
		return errors.ErrForbidden
	case http.StatusNotFound:
		return errors.ErrNotFound
	case http.StatusConflict:
		return errors.ErrConflict
	case http.StatusTooManyRequests:
		return errors.ErrRateLimited
	case http.StatusInternalServerError:
		return errors.ErrInternalServer
	default:
		return errors.NewAPIError(status, "Unknown error", "", string(body))
	}
}

// messageText accepts a message that is either a string or a list of strings
func messageText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return strings.Join(list, "; ")
	}
	return ""
}

func detailText(errText, msg string) string {
	if errText == msg {
		return ""
	}
	return errText
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Ping checks if the API is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.Get(ctx, "/health", nil)
}
