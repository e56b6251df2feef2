package client

import (
	"context"
	"fmt"
	"net/url"

	"github.com/gotrs-io/gotrs-hitl/sdk/errors"
	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

// ConversationsService handles conversation hand-off operations
type ConversationsService struct {
	client *Client
}

func conversationPath(id types.ConversationID, action string) string {
	return fmt.Sprintf("/conversations/%s/%s", url.PathEscape(id.String()), action)
}

// AssignHitl claims the conversation for the calling user. When another user
// holds it already the returned error matches errors.ErrAlreadyAssigned.
func (s *ConversationsService) AssignHitl(ctx context.Context, id types.ConversationID) error {
	return claimError(s.client.Post(ctx, conversationPath(id, "assign-hitl"), nil, nil))
}

// ReassignHitl hands the conversation to another HITL user
func (s *ConversationsService) ReassignHitl(ctx context.Context, id types.ConversationID, userID int64) error {
	return claimError(s.client.Post(ctx, conversationPath(id, "reassign-hitl"), &types.ReassignRequest{UserID: userID}, nil))
}

// claimError tags a bare 409 from the claim endpoints as the assignment race
func claimError(err error) error {
	if err == nil || errors.IsAlreadyAssigned(err) {
		return err
	}
	if errors.IsConflict(err) {
		return fmt.Errorf("%w: %w", errors.ErrAlreadyAssigned, err)
	}
	return err
}

// UsersService handles user-related API operations
type UsersService struct {
	client *Client
}

// Memberships retrieves the organization roles of the calling user
func (s *UsersService) Memberships(ctx context.Context) ([]types.Membership, error) {
	var result []types.Membership
	err := s.client.Get(ctx, "/users/me/organizations", &result)
	return result, err
}

// AuthService handles token operations
type AuthService struct {
	client *Client
}

// Refresh exchanges refreshToken for a new token pair. The call itself is
// sent without credentials.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*types.AuthTokenResponse, error) {
	var result types.AuthTokenResponse
	ctx = context.WithValue(ctx, skipAuthKey{}, true)
	if err := s.client.Post(ctx, "/auth/refresh", &types.AuthRefreshRequest{RefreshToken: refreshToken}, &result); err != nil {
		return nil, err
	}
	if result.Token == "" {
		return nil, fmt.Errorf("refresh response carried no token")
	}
	return &result, nil
}
