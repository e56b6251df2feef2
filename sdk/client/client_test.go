package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/gotrs-hitl/sdk/auth"
	"github.com/gotrs-io/gotrs-hitl/sdk/errors"
	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(&Config{
		BaseURL:    srv.URL,
		Auth:       auth.NewAPIKeyAuth("test-key"),
		Timeout:    2 * time.Second,
		RetryCount: -1,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestHitlTypesService(t *testing.T) {
	ctx := context.Background()

	t.Run("List unwraps the envelope and sends the API key", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/organizations/5/hitl-types", r.URL.Path)
			assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"success": true,
				"data": []map[string]interface{}{
					{"id": 1, "name": "Billing", "organization_id": 5},
					{"id": 2, "name": "Escalation", "organization_id": 5, "userHitlTypes": []map[string]interface{}{{"id": 9, "user_id": 3}}},
				},
			})
		})

		list, err := c.HitlTypes.List(ctx, 5)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "Billing", list[0].Name)
		assert.Equal(t, types.HitlTypeInactive, list[0].Status())
		assert.Equal(t, types.HitlTypeActive, list[1].Status())
	})

	t.Run("List decodes bare arrays", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, []map[string]interface{}{{"id": 1, "name": "Billing"}})
		})
		list, err := c.HitlTypes.List(ctx, 5)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("missing organization never reaches the server", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Fatalf("unexpected request %s", r.URL.Path)
		})
		_, err := c.HitlTypes.Create(ctx, 0, &types.HitlTypeCreateRequest{Name: "x"})
		assert.ErrorIs(t, err, errors.ErrMissingOrganization)
	})

	t.Run("Create conflict is a 409 API error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"name":"billing","description":"dup"}`, string(body))
			writeJSON(w, http.StatusConflict, map[string]interface{}{
				"statusCode": 409,
				"message":    "HITL type with this name already exists",
				"error":      "Conflict",
			})
		})

		created, err := c.HitlTypes.Create(ctx, 5, &types.HitlTypeCreateRequest{Name: "billing", Description: "dup"})
		assert.Nil(t, created)
		require.Error(t, err)
		assert.True(t, errors.IsConflict(err))
		apiErr, ok := errors.AsAPIError(err)
		require.True(t, ok)
		assert.Equal(t, "HITL type with this name already exists", apiErr.Message)
	})

	t.Run("Update uses PATCH with only the set fields", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPatch, r.Method)
			assert.Equal(t, "/organizations/5/hitl-types/3", r.URL.Path)
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"description":"new"}`, string(body))
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": map[string]interface{}{"id": 3, "name": "Billing", "description": "new"}})
		})
		desc := "new"
		updated, err := c.HitlTypes.Update(ctx, 5, 3, &types.HitlTypeUpdateRequest{Description: &desc})
		require.NoError(t, err)
		assert.Equal(t, "new", updated.Description)
	})

	t.Run("AssignUsers role mismatch is a 400", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/organizations/5/hitl-types/3/users", r.URL.Path)
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"userIds":[7,8]}`, string(body))
			writeJSON(w, http.StatusBadRequest, map[string]interface{}{"success": false, "error": "Users must have HITL role"})
		})
		err := c.HitlTypes.AssignUsers(ctx, 5, 3, []int64{7, 8})
		assert.True(t, errors.IsBadRequest(err))
	})

	t.Run("RemoveUser and Delete", func(t *testing.T) {
		var paths []string
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			paths = append(paths, r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		})
		require.NoError(t, c.HitlTypes.RemoveUser(ctx, 5, 3, 7))
		require.NoError(t, c.HitlTypes.Delete(ctx, 5, 3))
		assert.Equal(t, []string{"/organizations/5/hitl-types/3/users/7", "/organizations/5/hitl-types/3"}, paths)
	})

	t.Run("envelope with success false on 200 is an error", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "error": "nope"})
		})
		_, err := c.HitlTypes.Get(ctx, 5, 1)
		assert.True(t, errors.IsAPIError(err))
	})
}

func TestNetworkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL, RetryCount: -1, Timeout: time.Second})
	_, err := c.HitlTypes.List(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, errors.IsNetworkError(err))
	assert.False(t, errors.IsAPIError(err))
}

func TestConversationsService(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name            string
		status          int
		body            interface{}
		alreadyAssigned bool
		wantErr         bool
	}{
		{name: "claimed", status: http.StatusOK, body: map[string]interface{}{"success": true}},
		{name: "structured code", status: http.StatusBadRequest, body: map[string]interface{}{"message": "taken", "code": errors.CodeAlreadyAssigned}, alreadyAssigned: true, wantErr: true},
		{name: "legacy phrase", status: http.StatusBadRequest, body: map[string]interface{}{"message": "Conversation is already assigned to another user"}, alreadyAssigned: true, wantErr: true},
		{name: "bare conflict", status: http.StatusConflict, body: map[string]interface{}{"message": "Conflict"}, alreadyAssigned: true, wantErr: true},
		{name: "server error", status: http.StatusInternalServerError, body: map[string]interface{}{"message": "db down"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/conversations/conv-1/assign-hitl", r.URL.Path)
				writeJSON(w, tt.status, tt.body)
			})
			err := c.Conversations.AssignHitl(ctx, "conv-1")
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.alreadyAssigned, errors.IsAlreadyAssigned(err))
		})
	}

	t.Run("reassign sends the target user", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/conversations/42/reassign-hitl", r.URL.Path)
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"userId":9}`, string(body))
			w.WriteHeader(http.StatusOK)
		})
		assert.NoError(t, c.Conversations.ReassignHitl(ctx, "42", 9))
	})
}

func TestUsersMemberships(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me/organizations", r.URL.Path)
		writeJSON(w, http.StatusOK, []map[string]interface{}{{"organization_id": 5, "role": "HITL"}})
	})
	memberships, err := c.Users.Memberships(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.Membership{{OrganizationID: 5, Role: types.RoleHitl}}, memberships)
}

func TestJWTHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer abc", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewClientWithJWT(srv.URL, "abc", "", time.Now().Add(time.Hour))
	assert.NoError(t, c.Ping(context.Background()))
}

func tokenExpiringIn(t *testing.T, d time.Duration) string {
	t.Helper()
	claims := auth.Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(d))}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestJWTRefresh(t *testing.T) {
	ctx := context.Background()
	listBody := []map[string]interface{}{{"id": 1, "name": "Billing", "organization_id": 5}}

	t.Run("near expiry token is refreshed through the backend", func(t *testing.T) {
		stale := tokenExpiringIn(t, 30*time.Second)
		fresh := tokenExpiringIn(t, time.Hour)
		var refreshes int32

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/auth/refresh":
				atomic.AddInt32(&refreshes, 1)
				assert.Empty(t, r.Header.Get("Authorization"))
				body, _ := io.ReadAll(r.Body)
				assert.JSONEq(t, `{"refresh_token":"refresh-1"}`, string(body))
				writeJSON(w, http.StatusOK, map[string]interface{}{"token": fresh, "refresh_token": "refresh-2"})
			case "/organizations/5/hitl-types":
				assert.Equal(t, "Bearer "+fresh, r.Header.Get("Authorization"))
				writeJSON(w, http.StatusOK, listBody)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer srv.Close()

		jwtAuth, err := auth.NewJWTAuthFromToken(stale, "refresh-1")
		require.NoError(t, err)
		c := NewClient(&Config{BaseURL: srv.URL, Auth: jwtAuth, RetryCount: -1, Timeout: 2 * time.Second})

		list, err := c.HitlTypes.List(ctx, 5)
		require.NoError(t, err)
		assert.Len(t, list, 1)
		_, err = c.HitlTypes.List(ctx, 5)
		require.NoError(t, err)

		assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))
		assert.Equal(t, fresh, jwtAuth.Token())
		assert.False(t, jwtAuth.IsExpired())
	})

	t.Run("without a refresh token the current token is still sent", func(t *testing.T) {
		stale := tokenExpiringIn(t, 30*time.Second)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.NotEqual(t, "/auth/refresh", r.URL.Path)
			assert.Equal(t, "Bearer "+stale, r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, listBody)
		}))
		defer srv.Close()

		jwtAuth, err := auth.NewJWTAuthFromToken(stale, "")
		require.NoError(t, err)
		c := NewClient(&Config{BaseURL: srv.URL, Auth: jwtAuth, RetryCount: -1, Timeout: 2 * time.Second})

		list, err := c.HitlTypes.List(ctx, 5)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("a rejected refresh is an auth error, not a network error", func(t *testing.T) {
		var listed int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/auth/refresh" {
				writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"message": "refresh token revoked"})
				return
			}
			atomic.AddInt32(&listed, 1)
			writeJSON(w, http.StatusOK, listBody)
		}))
		defer srv.Close()

		jwtAuth, err := auth.NewJWTAuthFromToken(tokenExpiringIn(t, 30*time.Second), "refresh-1")
		require.NoError(t, err)
		c := NewClient(&Config{BaseURL: srv.URL, Auth: jwtAuth, RetryCount: -1, Timeout: 2 * time.Second})

		_, err = c.HitlTypes.List(ctx, 5)
		require.Error(t, err)
		assert.True(t, errors.IsAuthError(err))
		assert.False(t, errors.IsNetworkError(err))
		assert.True(t, errors.IsUnauthorized(err))
		assert.Zero(t, atomic.LoadInt32(&listed))
	})

	t.Run("AuthHeader picks the header for the method", func(t *testing.T) {
		h, err := NewClientWithAPIKey("http://example.com", "k").AuthHeader()
		require.NoError(t, err)
		assert.Equal(t, "k", h.Get("X-API-Key"))

		h, err = NewClientWithJWT("http://example.com", "abc", "", time.Time{}).AuthHeader()
		require.NoError(t, err)
		assert.Equal(t, "Bearer abc", h.Get("Authorization"))
	})
}
