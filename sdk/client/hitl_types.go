package client

import (
	"context"
	"fmt"

	"github.com/gotrs-io/gotrs-hitl/sdk/errors"
	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

// HitlTypesService handles HITL type API operations. Every call is scoped
// by organization id.
type HitlTypesService struct {
	client *Client
}

func hitlTypesPath(orgID int64) string {
	return fmt.Sprintf("/organizations/%d/hitl-types", orgID)
}

func hitlTypePath(orgID, typeID int64) string {
	return fmt.Sprintf("/organizations/%d/hitl-types/%d", orgID, typeID)
}

func requireOrg(orgID int64) error {
	if orgID <= 0 {
		return errors.ErrMissingOrganization
	}
	return nil
}

// List retrieves the HITL types of an organization
func (s *HitlTypesService) List(ctx context.Context, orgID int64) ([]types.HitlType, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	var result []types.HitlType
	err := s.client.Get(ctx, hitlTypesPath(orgID), &result)
	return result, err
}

// Get retrieves a specific HITL type by ID
func (s *HitlTypesService) Get(ctx context.Context, orgID, typeID int64) (*types.HitlType, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	var result types.HitlType
	if err := s.client.Get(ctx, hitlTypePath(orgID, typeID), &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Create creates a new HITL type. A name that collides case-insensitively
// with an existing type yields a 409 (see errors.IsConflict).
func (s *HitlTypesService) Create(ctx context.Context, orgID int64, request *types.HitlTypeCreateRequest) (*types.HitlType, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	var result types.HitlType
	if err := s.client.Post(ctx, hitlTypesPath(orgID), request, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Update applies a partial update to a HITL type
func (s *HitlTypesService) Update(ctx context.Context, orgID, typeID int64, request *types.HitlTypeUpdateRequest) (*types.HitlType, error) {
	if err := requireOrg(orgID); err != nil {
		return nil, err
	}
	var result types.HitlType
	if err := s.client.Patch(ctx, hitlTypePath(orgID, typeID), request, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Delete soft-deletes a HITL type
func (s *HitlTypesService) Delete(ctx context.Context, orgID, typeID int64) error {
	if err := requireOrg(orgID); err != nil {
		return err
	}
	return s.client.Delete(ctx, hitlTypePath(orgID, typeID), nil)
}

// AssignUsers binds users to a HITL type. Users without the HITL
// organization role make the server answer 400 (see errors.IsBadRequest).
func (s *HitlTypesService) AssignUsers(ctx context.Context, orgID, typeID int64, userIDs []int64) error {
	if err := requireOrg(orgID); err != nil {
		return err
	}
	path := hitlTypePath(orgID, typeID) + "/users"
	return s.client.Post(ctx, path, &types.AssignUsersRequest{UserIDs: userIDs}, nil)
}

// RemoveUser unbinds one user from a HITL type
func (s *HitlTypesService) RemoveUser(ctx context.Context, orgID, typeID, userID int64) error {
	if err := requireOrg(orgID); err != nil {
		return err
	}
	path := fmt.Sprintf("%s/users/%d", hitlTypePath(orgID, typeID), userID)
	return s.client.Delete(ctx, path, nil)
}
