// Package permissions derives a caller's HITL capabilities from the
// organization roles already resident on the client. Resolution is pure and
// synchronous; nothing here fetches or expires.
package permissions

import (
	"slices"
	"sync"

	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

type Capability string

const (
	CapabilityManageHitlTypes   Capability = "hitl:types:manage"
	CapabilityReceiveHitlEvents Capability = "hitl:notifications:receive"
)

// roleCapabilities is the role table. SUPERADMIN is handled separately and
// satisfies every check.
var roleCapabilities = map[types.OrganizationRole][]Capability{
	types.RoleOwner: {CapabilityManageHitlTypes, CapabilityReceiveHitlEvents},
	types.RoleHitl:  {CapabilityReceiveHitlEvents},
	types.RoleUser:  nil,
}

// rolePrecedence orders roles for EffectiveRole, strongest first
var rolePrecedence = []types.OrganizationRole{
	types.RoleSuperAdmin,
	types.RoleOwner,
	types.RoleHitl,
	types.RoleUser,
}

// Snapshot is the derived permission set for one organization
type Snapshot struct {
	OrganizationID              int64 `json:"organizationId"`
	CanManageHitlTypes          bool  `json:"canManageHitlTypes"`
	CanReceiveHitlNotifications bool  `json:"canReceiveHitlNotifications"`
}

// HasAccessToHitlSystem is true when either capability is granted
func (s Snapshot) HasAccessToHitlSystem() bool {
	return s.CanManageHitlTypes || s.CanReceiveHitlNotifications
}

// RolesIn returns the caller's roles in orgID, in membership order
func RolesIn(orgID int64, memberships []types.Membership) []types.OrganizationRole {
	var roles []types.OrganizationRole
	for _, m := range memberships {
		if m.OrganizationID == orgID && !slices.Contains(roles, m.Role) {
			roles = append(roles, m.Role)
		}
	}
	return roles
}

// HasCapability reports whether any of roles grants c
func HasCapability(roles []types.OrganizationRole, c Capability) bool {
	for _, r := range roles {
		if r == types.RoleSuperAdmin {
			return true
		}
		if slices.Contains(roleCapabilities[r], c) {
			return true
		}
	}
	return false
}

// Resolve computes the snapshot for orgID. A missing organization or no
// roles in it yields an all-false snapshot.
func Resolve(orgID int64, memberships []types.Membership) Snapshot {
	snap := Snapshot{OrganizationID: orgID}
	if orgID <= 0 {
		return snap
	}
	roles := RolesIn(orgID, memberships)
	if len(roles) == 0 {
		return snap
	}
	snap.CanManageHitlTypes = HasCapability(roles, CapabilityManageHitlTypes)
	snap.CanReceiveHitlNotifications = HasCapability(roles, CapabilityReceiveHitlEvents)
	return snap
}

// EffectiveRole picks the strongest role the caller holds in orgID, or ""
// when there is none
func EffectiveRole(orgID int64, memberships []types.Membership) types.OrganizationRole {
	roles := RolesIn(orgID, memberships)
	for _, r := range rolePrecedence {
		if slices.Contains(roles, r) {
			return r
		}
	}
	if len(roles) > 0 {
		return roles[0]
	}
	return ""
}

// Resolver memoizes Resolve. It recomputes only when the organization id or
// the shape of the membership list changes.
type Resolver struct {
	mu          sync.Mutex
	valid       bool
	orgID       int64
	memberships []types.Membership
	snapshot    Snapshot
	computed    int
}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Get returns the snapshot for orgID and memberships, reusing the previous
// result when neither changed
func (r *Resolver) Get(orgID int64, memberships []types.Membership) Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.valid && r.orgID == orgID && slices.Equal(r.memberships, memberships) {
		return r.snapshot
	}

	r.orgID = orgID
	r.memberships = slices.Clone(memberships)
	r.snapshot = Resolve(orgID, memberships)
	r.valid = true
	r.computed++
	return r.snapshot
}

// Computations reports how many times the snapshot was recomputed
func (r *Resolver) Computations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.computed
}
