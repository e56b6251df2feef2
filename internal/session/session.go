// Package session ties the caller's organization context to the HITL
// components: the permission snapshot decides whether the notification
// listener is bound, and the caller's effective role decides whether
// notifications are offered for claiming.
package session

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/gotrs-io/gotrs-hitl/internal/assignment"
	"github.com/gotrs-io/gotrs-hitl/internal/notifications"
	"github.com/gotrs-io/gotrs-hitl/internal/permissions"
	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

// Options configures a Session
type Options struct {
	Listener    notifications.ListenerOptions
	Coordinator *assignment.Coordinator
	Logger      *zap.Logger
}

// Session is the per-user HITL context
type Session struct {
	resolver    *permissions.Resolver
	listener    *notifications.Listener
	coordinator *assignment.Coordinator
	log         *zap.Logger

	mu          sync.Mutex
	orgID       int64
	memberships []types.Membership
	conn        notifications.Subscriber
}

func New(opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		resolver:    permissions.NewResolver(),
		coordinator: opts.Coordinator,
		log:         log.With(zap.String("component", "session")),
	}

	lopts := opts.Listener
	if lopts.Logger == nil {
		lopts.Logger = log
	}
	if s.coordinator != nil {
		lopts.Offerer = s
	}
	s.listener = notifications.NewListener(lopts)
	return s
}

// Listener exposes the notification log operations
func (s *Session) Listener() *notifications.Listener {
	return s.listener
}

// Coordinator returns the claim coordinator, or nil when claiming is off
func (s *Session) Coordinator() *assignment.Coordinator {
	return s.coordinator
}

// SetConnection attaches or, with nil, removes the live channel
func (s *Session) SetConnection(conn notifications.Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = conn
	s.reconcileLocked()
}

// SetOrganization switches the active organization. The old binding is
// removed before the new one is registered.
func (s *Session) SetOrganization(orgID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if orgID == s.orgID {
		return
	}
	s.log.Info("organization changed", zap.Int64("from", s.orgID), zap.Int64("to", orgID))
	s.orgID = orgID
	s.reconcileLocked()
}

// SetMemberships replaces the caller's organization roles
func (s *Session) SetMemberships(memberships []types.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slices.Equal(s.memberships, memberships) {
		return
	}
	s.memberships = slices.Clone(memberships)
	s.reconcileLocked()
}

func (s *Session) OrganizationID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orgID
}

func (s *Session) Memberships() []types.Membership {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.memberships)
}

// Permissions returns the memoized permission snapshot for the active
// organization
func (s *Session) Permissions() permissions.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolver.Get(s.orgID, s.memberships)
}

// EffectiveRole is the caller's strongest role in the active organization
func (s *Session) EffectiveRole() types.OrganizationRole {
	s.mu.Lock()
	defer s.mu.Unlock()
	return permissions.EffectiveRole(s.orgID, s.memberships)
}

// OfferClaim forwards a notification to the coordinator with the caller's
// current role. Notifications from an organization that is no longer active
// are dropped.
func (s *Session) OfferClaim(ctx context.Context, orgID int64, n types.HitlNotification) {
	s.mu.Lock()
	current := s.orgID
	role := permissions.EffectiveRole(orgID, s.memberships)
	s.mu.Unlock()

	if s.coordinator == nil || orgID != current {
		return
	}
	decision := s.coordinator.Offer(ctx, assignment.Request{
		Message:        n.Message,
		ConversationID: n.ConversationID,
		Role:           role,
		OrganizationID: orgID,
	})
	s.log.Debug("claim offer", zap.String("conversation_id", n.ConversationID.String()), zap.String("decision", string(decision)))
}

// Claim claims a conversation through the coordinator
func (s *Session) Claim(ctx context.Context, id types.ConversationID) assignment.Outcome {
	if s.coordinator == nil {
		return assignment.OutcomeFailed
	}
	return s.coordinator.HandleAutoAssignment(ctx, id)
}

// Close detaches the listener and waits for in-flight offers
func (s *Session) Close() {
	s.listener.Detach()
	s.listener.Wait()
}

func (s *Session) reconcileLocked() {
	snap := s.resolver.Get(s.orgID, s.memberships)
	if s.conn != nil && snap.CanReceiveHitlNotifications {
		s.listener.Bind(s.conn, s.orgID)
		return
	}
	if s.listener.Bound() != 0 {
		s.log.Info("hitl notifications inactive",
			zap.Int64("organization_id", s.orgID),
			zap.Bool("connected", s.conn != nil),
			zap.Bool("can_receive", snap.CanReceiveHitlNotifications))
	}
	s.listener.Detach()
}
