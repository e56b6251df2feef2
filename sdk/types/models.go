package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// OrganizationRole is a role a user holds inside one organization
type OrganizationRole string

const (
	RoleSuperAdmin OrganizationRole = "SUPERADMIN"
	RoleOwner      OrganizationRole = "OWNER"
	RoleHitl       OrganizationRole = "HITL"
	RoleUser       OrganizationRole = "USER"
)

// Membership binds the caller to a role in an organization. A caller may
// hold several memberships for the same organization.
type Membership struct {
	OrganizationID int64            `json:"organization_id"`
	Role           OrganizationRole `json:"role"`
}

// UserSummary is the denormalized user embedded in HITL resources
type UserSummary struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// DisplayName returns the best available human name for the user
func (u UserSummary) DisplayName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

// HitlTypeStatus is derived from the number of assignments
type HitlTypeStatus string

const (
	HitlTypeActive   HitlTypeStatus = "ACTIVE"
	HitlTypeInactive HitlTypeStatus = "INACTIVE"
)

// HitlType is a named category of human intervention within an organization
type HitlType struct {
	ID             int64                `json:"id"`
	Name           string               `json:"name"`
	Description    string               `json:"description"`
	OrganizationID int64                `json:"organization_id"`
	CreatedBy      int64                `json:"created_by"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
	DeletedAt      *time.Time           `json:"deleted_at,omitempty"`
	Creator        *UserSummary         `json:"creator,omitempty"`
	UserHitlTypes  []HitlUserAssignment `json:"userHitlTypes,omitempty"`
}

// Status is ACTIVE iff at least one user is assigned to the type
func (t HitlType) Status() HitlTypeStatus {
	if len(t.UserHitlTypes) > 0 {
		return HitlTypeActive
	}
	return HitlTypeInactive
}

// IsDeleted reports whether the type carries a soft-delete marker
func (t HitlType) IsDeleted() bool {
	return t.DeletedAt != nil
}

// AssignedUsers returns the users bound to the type, in assignment order
func (t HitlType) AssignedUsers() []UserSummary {
	users := make([]UserSummary, 0, len(t.UserHitlTypes))
	for _, a := range t.UserHitlTypes {
		if a.User != nil {
			users = append(users, *a.User)
		}
	}
	return users
}

// HitlUserAssignment binds a user to a HitlType within an organization
type HitlUserAssignment struct {
	ID             int64        `json:"id"`
	UserID         int64        `json:"user_id"`
	HitlTypeID     int64        `json:"hitl_type_id"`
	OrganizationID int64        `json:"organization_id"`
	CreatedAt      time.Time    `json:"created_at"`
	User           *UserSummary `json:"user,omitempty"`
}

// HitlTypeCreateRequest represents a request to create a HitlType
type HitlTypeCreateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HitlTypeUpdateRequest represents a partial update of a HitlType
type HitlTypeUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// AssignUsersRequest represents a request to bind users to a HitlType
type AssignUsersRequest struct {
	UserIDs []int64 `json:"userIds"`
}

// ReassignRequest represents a request to hand a conversation to another user
type ReassignRequest struct {
	UserID int64 `json:"userId"`
}

// AuthRefreshRequest exchanges a refresh token for a new token pair
type AuthRefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthTokenResponse is the token pair returned by the refresh endpoint.
// ExpiresAt may be zero, in which case the token's exp claim applies.
type AuthTokenResponse struct {
	Token        string    `json:"token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// ConversationID identifies a conversation. The live channel sends it either
// as a JSON string or a JSON number.
type ConversationID string

// UnmarshalJSON accepts both string and numeric ids
func (c *ConversationID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = ConversationID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("conversation id must be a string or number: %w", err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("conversation id must be an integer: %s", n)
	}
	*c = ConversationID(n.String())
	return nil
}

func (c ConversationID) String() string {
	return string(c)
}

// HitlNotification is a client-side record of an inbound HITL event. It is
// never persisted remotely.
type HitlNotification struct {
	ID             string         `json:"id"`
	Type           string         `json:"type"`
	Message        string         `json:"message"`
	ConversationID ConversationID `json:"conversationId"`
	HitlType       string         `json:"hitlType,omitempty"`
	Timestamp      time.Time      `json:"timestamp"`
	Read           bool           `json:"read"`
}

// AssignmentAction is the action carried by an assignment-updated event
type AssignmentAction string

const (
	AssignmentAssigned AssignmentAction = "assigned"
	AssignmentRemoved  AssignmentAction = "removed"
)

// APIResponse represents the standard API envelope
type APIResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Code       string `json:"code"`
	StatusCode int    `json:"statusCode"`
}
