// Package repository is the UI-facing access layer for HITL types. It never
// returns errors to its callers: every failure becomes an alert plus a safe
// zero value (empty list, nil, false).
package repository

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/gotrs-io/gotrs-hitl/internal/alerts"
	"github.com/gotrs-io/gotrs-hitl/internal/cache"
	"github.com/gotrs-io/gotrs-hitl/internal/metrics"
	"github.com/gotrs-io/gotrs-hitl/sdk/errors"
	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

// User-facing messages
const (
	MsgLoadFailed      = "Failed to load HITL types"
	MsgLoadOneFailed   = "Failed to load HITL type"
	MsgCreateFailed    = "Failed to create HITL type"
	MsgUpdateFailed    = "Failed to update HITL type"
	MsgDeleteFailed    = "Failed to delete HITL type"
	MsgAssignFailed    = "Failed to assign users to HITL type"
	MsgRemoveFailed    = "Failed to remove user from HITL type"
	MsgNameConflict    = "A HITL type with this name already exists"
	MsgRoleMismatch    = "One or more users do not have the HITL role in this organization"
	MsgNoOrganization  = "No organization selected"
	MsgNameRequired    = "HITL type name is required"
	MsgNoUsers         = "Select at least one user to assign"
	MsgCreated         = "HITL type created"
	MsgUpdated         = "HITL type updated"
	MsgDeleted         = "HITL type deleted"
	MsgUsersAssigned   = "Users assigned to HITL type"
	MsgUserRemoved     = "User removed from HITL type"
	titleHitlTypes     = "HITL types"
	kindConflict       = "conflict"
	kindRoleMismatch   = "role_mismatch"
	kindValidation     = "validation"
	kindTransport      = "transport"
	kindServer         = "server"
	kindMissingContext = "missing_organization"
)

// lookupTimeout bounds a shared TypeNames request, which outlives the
// caller that started it
const lookupTimeout = 10 * time.Second

// HitlTypeAPI is the remote contract the repository consumes; the SDK's
// HitlTypesService satisfies it
type HitlTypeAPI interface {
	List(ctx context.Context, orgID int64) ([]types.HitlType, error)
	Get(ctx context.Context, orgID, typeID int64) (*types.HitlType, error)
	Create(ctx context.Context, orgID int64, request *types.HitlTypeCreateRequest) (*types.HitlType, error)
	Update(ctx context.Context, orgID, typeID int64, request *types.HitlTypeUpdateRequest) (*types.HitlType, error)
	Delete(ctx context.Context, orgID, typeID int64) error
	AssignUsers(ctx context.Context, orgID, typeID int64, userIDs []int64) error
	RemoveUser(ctx context.Context, orgID, typeID, userID int64) error
}

// HitlTypes is the soft-failing HITL type repository
type HitlTypes struct {
	api     HitlTypeAPI
	alerts  alerts.Sink
	index   cache.TypeIndex
	log     *zap.Logger
	metrics *metrics.Metrics
	lookups singleflight.Group
}

// Option configures optional collaborators
type Option func(*HitlTypes)

// WithIndex keeps the last known type names for TypeNames to fall back on
// when the server is unreachable
func WithIndex(idx cache.TypeIndex) Option {
	return func(r *HitlTypes) { r.index = idx }
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(r *HitlTypes) {
		if log != nil {
			r.log = log
		}
	}
}

// WithMetrics records failures
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *HitlTypes) { r.metrics = m }
}

// NewHitlTypes builds a repository emitting its alerts to sink
func NewHitlTypes(api HitlTypeAPI, sink alerts.Sink, opts ...Option) *HitlTypes {
	r := &HitlTypes{
		api:    api,
		alerts: alerts.OrDiscard(sink),
		log:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *HitlTypes) emit(ctx context.Context, sev alerts.Severity, msg string) {
	r.alerts.Emit(ctx, alerts.New(sev, titleHitlTypes, msg))
}

// fail classifies err, records it and emits the matching alert
func (r *HitlTypes) fail(ctx context.Context, op string, err error, generic string, specific map[string]string) {
	kind := kindServer
	switch {
	case errors.IsConflict(err):
		kind = kindConflict
	case errors.IsBadRequest(err) && op == "assign":
		kind = kindRoleMismatch
	case errors.IsBadRequest(err):
		kind = kindValidation
	case errors.IsNetworkError(err), !errors.IsAPIError(err):
		kind = kindTransport
	}

	msg := generic
	if m, ok := specific[kind]; ok {
		msg = m
	}

	r.metrics.RepositoryFailure(op, kind)
	r.log.Warn("hitl type repository call failed",
		zap.String("operation", op), zap.String("kind", kind), zap.Error(err))
	r.emit(ctx, alerts.SeverityError, msg)
}

// missingOrganization aborts a write that has no organization id
func (r *HitlTypes) missingOrganization(ctx context.Context, op string) {
	r.metrics.RepositoryFailure(op, kindMissingContext)
	r.log.Error("hitl type write attempted without organization", zap.String("operation", op))
	alert := alerts.New(alerts.SeverityError, titleHitlTypes, MsgNoOrganization)
	alert.Blocking = true
	r.alerts.Emit(ctx, alert)
}

func (r *HitlTypes) invalidate(ctx context.Context, orgID int64) {
	if r.index == nil {
		return
	}
	if err := r.index.Invalidate(ctx, orgID); err != nil {
		r.log.Warn("failed to invalidate hitl type index", zap.Int64("organization_id", orgID), zap.Error(err))
	}
}

// ListTypes returns the organization's HITL types, or an empty list on any
// failure
func (r *HitlTypes) ListTypes(ctx context.Context, orgID int64) []types.HitlType {
	if orgID <= 0 {
		return []types.HitlType{}
	}
	list, err := r.api.List(ctx, orgID)
	if err != nil {
		r.fail(ctx, "list", err, MsgLoadFailed, nil)
		return []types.HitlType{}
	}
	if list == nil {
		list = []types.HitlType{}
	}
	r.storeNames(ctx, orgID, list)
	return list
}

// GetType returns one HITL type, or nil on any failure
func (r *HitlTypes) GetType(ctx context.Context, orgID, typeID int64) *types.HitlType {
	if orgID <= 0 {
		return nil
	}
	t, err := r.api.Get(ctx, orgID, typeID)
	if err != nil {
		r.fail(ctx, "get", err, MsgLoadOneFailed, nil)
		return nil
	}
	return t
}

// CreateType creates a HITL type. A case-insensitive name collision is
// reported with MsgNameConflict; nil is returned on any failure.
func (r *HitlTypes) CreateType(ctx context.Context, orgID int64, name, description string) *types.HitlType {
	if orgID <= 0 {
		r.missingOrganization(ctx, "create")
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		r.emit(ctx, alerts.SeverityError, MsgNameRequired)
		return nil
	}

	created, err := r.api.Create(ctx, orgID, &types.HitlTypeCreateRequest{Name: name, Description: description})
	if err != nil {
		r.fail(ctx, "create", err, MsgCreateFailed, map[string]string{kindConflict: MsgNameConflict})
		return nil
	}
	r.invalidate(ctx, orgID)
	r.emit(ctx, alerts.SeveritySuccess, MsgCreated)
	return created
}

// UpdateType applies a partial update with the same conflict reporting as
// CreateType
func (r *HitlTypes) UpdateType(ctx context.Context, orgID, typeID int64, update types.HitlTypeUpdateRequest) *types.HitlType {
	if orgID <= 0 {
		r.missingOrganization(ctx, "update")
		return nil
	}
	if update.Name != nil {
		trimmed := strings.TrimSpace(*update.Name)
		if trimmed == "" {
			r.emit(ctx, alerts.SeverityError, MsgNameRequired)
			return nil
		}
		update.Name = &trimmed
	}

	updated, err := r.api.Update(ctx, orgID, typeID, &update)
	if err != nil {
		r.fail(ctx, "update", err, MsgUpdateFailed, map[string]string{kindConflict: MsgNameConflict})
		return nil
	}
	r.invalidate(ctx, orgID)
	r.emit(ctx, alerts.SeveritySuccess, MsgUpdated)
	return updated
}

// DeleteType soft-deletes a HITL type. Confirmation is the caller's job.
func (r *HitlTypes) DeleteType(ctx context.Context, orgID, typeID int64) bool {
	if orgID <= 0 {
		r.missingOrganization(ctx, "delete")
		return false
	}
	if err := r.api.Delete(ctx, orgID, typeID); err != nil {
		r.fail(ctx, "delete", err, MsgDeleteFailed, nil)
		return false
	}
	r.invalidate(ctx, orgID)
	r.emit(ctx, alerts.SeveritySuccess, MsgDeleted)
	return true
}

// AssignUsers binds users to a HITL type. Users lacking the HITL role are
// reported with MsgRoleMismatch.
func (r *HitlTypes) AssignUsers(ctx context.Context, orgID, typeID int64, userIDs []int64) bool {
	if orgID <= 0 {
		r.missingOrganization(ctx, "assign")
		return false
	}
	if len(userIDs) == 0 {
		r.emit(ctx, alerts.SeverityWarning, MsgNoUsers)
		return false
	}
	if err := r.api.AssignUsers(ctx, orgID, typeID, userIDs); err != nil {
		r.fail(ctx, "assign", err, MsgAssignFailed, map[string]string{kindRoleMismatch: MsgRoleMismatch})
		return false
	}
	r.emit(ctx, alerts.SeveritySuccess, MsgUsersAssigned)
	return true
}

// RemoveUser unbinds a user from a HITL type
func (r *HitlTypes) RemoveUser(ctx context.Context, orgID, typeID, userID int64) bool {
	if orgID <= 0 {
		r.missingOrganization(ctx, "remove_user")
		return false
	}
	if err := r.api.RemoveUser(ctx, orgID, typeID, userID); err != nil {
		r.fail(ctx, "remove_user", err, MsgRemoveFailed, nil)
		return false
	}
	r.emit(ctx, alerts.SeveritySuccess, MsgUserRemoved)
	return true
}

// TypeNames returns the names of the organization's current HITL types for
// tag recognition. Every call asks the server; concurrent calls for one
// organization share a request that is not tied to any single caller's
// context. The index only answers when the server cannot. Unlike ListTypes
// it is quiet: failures are returned, not alerted.
func (r *HitlTypes) TypeNames(ctx context.Context, orgID int64) ([]string, error) {
	if orgID <= 0 {
		return nil, errors.ErrMissingOrganization
	}

	ch := r.lookups.DoChan(strconv.FormatInt(orgID, 10), func() (interface{}, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		list, err := r.api.List(lookupCtx, orgID)
		if err != nil {
			return nil, err
		}
		return r.storeNames(lookupCtx, orgID, list), nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}
	if res.Err == nil {
		return res.Val.([]string), nil
	}

	r.metrics.RepositoryFailure("lookup", kindTransport)
	if names, ok := r.cachedNames(ctx, orgID); ok {
		r.log.Warn("hitl type lookup failed, using cached names",
			zap.Int64("organization_id", orgID), zap.Error(res.Err))
		return names, nil
	}
	return nil, res.Err
}

func (r *HitlTypes) cachedNames(ctx context.Context, orgID int64) ([]string, bool) {
	if r.index == nil {
		return nil, false
	}
	names, ok, err := r.index.Names(ctx, orgID)
	if err != nil {
		r.log.Warn("hitl type index read failed", zap.Int64("organization_id", orgID), zap.Error(err))
		return nil, false
	}
	return names, ok
}

func (r *HitlTypes) storeNames(ctx context.Context, orgID int64, list []types.HitlType) []string {
	names := make([]string, 0, len(list))
	for _, t := range list {
		if !t.IsDeleted() {
			names = append(names, t.Name)
		}
	}
	if r.index != nil {
		if err := r.index.Store(ctx, orgID, names); err != nil {
			r.log.Warn("hitl type index write failed", zap.Int64("organization_id", orgID), zap.Error(err))
		}
	}
	return names
}
