// Package assignment decides when a HITL user is offered a one-click claim of
// a conversation, and performs the claim once the user confirms.
package assignment

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/gotrs-io/gotrs-hitl/internal/alerts"
	"github.com/gotrs-io/gotrs-hitl/internal/metrics"
	"github.com/gotrs-io/gotrs-hitl/sdk/errors"
	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

// Decision is the result of offering a notification to the coordinator
type Decision string

const (
	DecisionNotApplicable Decision = "not_applicable"
	DecisionNoTag         Decision = "no_tag"
	DecisionUnrecognized  Decision = "unrecognized"
	DecisionDiscarded     Decision = "discarded"
	DecisionOffered       Decision = "offered"
)

// Outcome is the result of a claim attempt
type Outcome string

const (
	OutcomeSuccess         Outcome = "success"
	OutcomeAlreadyAssigned Outcome = "already_assigned"
	OutcomeFailed          Outcome = "failed"
	OutcomeInFlight        Outcome = "in_flight"
)

const (
	titleOffer          = "HITL request"
	titleClaim          = "Conversation assignment"
	MsgClaimed          = "Conversation assigned to you"
	MsgAlreadyAssigned  = "This conversation has already been assigned to someone else"
	MsgClaimFailed      = "Failed to assign conversation"
	MsgNoConversationID = "No conversation selected"
)

var tagPattern = regexp.MustCompile(`^\[([^\]]+)\]`)

// ExtractHitlType returns the name in a leading bracketed tag, e.g.
// "Billing" for "[Billing] customer needs refund"
func ExtractHitlType(message string) (string, bool) {
	m := tagPattern.FindStringSubmatch(message)
	if m == nil {
		return "", false
	}
	name := strings.TrimSpace(m[1])
	return name, name != ""
}

// MatchesHitlType reports whether name equals one of names under Unicode
// case folding. The empty name never matches.
func MatchesHitlType(name string, names []string) bool {
	if name == "" {
		return false
	}
	fold := cases.Fold()
	want := fold.String(name)
	for _, n := range names {
		if fold.String(n) == want {
			return true
		}
	}
	return false
}

// TypeLookup lists the names of an organization's HITL types
type TypeLookup interface {
	TypeNames(ctx context.Context, orgID int64) ([]string, error)
}

// ConversationClaimer is the claim endpoint
type ConversationClaimer interface {
	AssignHitl(ctx context.Context, id types.ConversationID) error
}

// Request carries one notification and the caller context it arrived in
type Request struct {
	Message        string
	ConversationID types.ConversationID
	Role           types.OrganizationRole
	OrganizationID int64
}

// Coordinator offers and executes conversation claims
type Coordinator struct {
	lookup  TypeLookup
	claims  ConversationClaimer
	alerts  alerts.Sink
	log     *zap.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	inFlight map[types.ConversationID]struct{}
}

func NewCoordinator(lookup TypeLookup, claims ConversationClaimer, sink alerts.Sink, log *zap.Logger, m *metrics.Metrics) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		lookup:   lookup,
		claims:   claims,
		alerts:   alerts.OrDiscard(sink),
		log:      log.With(zap.String("component", "assignment")),
		metrics:  m,
		inFlight: make(map[types.ConversationID]struct{}),
	}
}

// VerifyHitlTypeExists checks name against the organization's current HITL
// types. Lookup failures count as not found.
func (c *Coordinator) VerifyHitlTypeExists(ctx context.Context, orgID int64, name string) bool {
	if name == "" {
		return false
	}
	names, err := c.lookup.TypeNames(ctx, orgID)
	if err != nil {
		c.log.Warn("hitl type lookup failed", zap.Int64("organization_id", orgID), zap.Error(err))
		return false
	}
	return MatchesHitlType(name, names)
}

// Offer runs the claim-offer checks for req and, when they all pass, emits
// a warning alert whose action claims the conversation. It never claims by
// itself. Offers whose ctx ends during the type lookup are discarded.
func (c *Coordinator) Offer(ctx context.Context, req Request) Decision {
	if req.Role != types.RoleHitl || req.OrganizationID <= 0 {
		return DecisionNotApplicable
	}
	name, ok := ExtractHitlType(req.Message)
	if !ok {
		return DecisionNoTag
	}
	if !c.VerifyHitlTypeExists(ctx, req.OrganizationID, name) {
		c.log.Debug("ignoring unrecognized hitl type", zap.String("hitl_type", name))
		return DecisionUnrecognized
	}
	if ctx.Err() != nil {
		return DecisionDiscarded
	}

	c.alerts.Emit(ctx, alerts.New(alerts.SeverityWarning, titleOffer+": "+name, req.Message).WithAction(alerts.Action{
		Kind:           alerts.ActionClaim,
		ConversationID: req.ConversationID,
		OrganizationID: req.OrganizationID,
		HitlType:       name,
	}))
	return DecisionOffered
}

// HandleAutoAssignment claims the conversation for the caller. Losing the
// race to another user is reported as info, not as an error. A second claim
// of the same conversation while the first is outstanding sends nothing.
func (c *Coordinator) HandleAutoAssignment(ctx context.Context, id types.ConversationID) Outcome {
	if id == "" {
		c.emit(ctx, alerts.SeverityError, MsgNoConversationID)
		c.metrics.Claim(string(OutcomeFailed))
		return OutcomeFailed
	}

	c.mu.Lock()
	if _, busy := c.inFlight[id]; busy {
		c.mu.Unlock()
		c.metrics.Claim(string(OutcomeInFlight))
		return OutcomeInFlight
	}
	c.inFlight[id] = struct{}{}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inFlight, id)
		c.mu.Unlock()
	}()

	outcome := OutcomeSuccess
	err := c.claims.AssignHitl(ctx, id)
	switch {
	case err == nil:
		c.log.Info("conversation claimed", zap.String("conversation_id", id.String()))
		c.emit(ctx, alerts.SeveritySuccess, MsgClaimed)
	case errors.IsAlreadyAssigned(err):
		outcome = OutcomeAlreadyAssigned
		c.log.Info("conversation already assigned", zap.String("conversation_id", id.String()))
		c.emit(ctx, alerts.SeverityInfo, MsgAlreadyAssigned)
	default:
		outcome = OutcomeFailed
		c.log.Warn("conversation claim failed", zap.String("conversation_id", id.String()), zap.Error(err))
		c.emit(ctx, alerts.SeverityError, MsgClaimFailed)
	}
	c.metrics.Claim(string(outcome))
	return outcome
}

// ClaimConversation lets the coordinator serve claim actions from
// alerts.Dispatcher
func (c *Coordinator) ClaimConversation(ctx context.Context, id types.ConversationID) string {
	return string(c.HandleAutoAssignment(ctx, id))
}

func (c *Coordinator) emit(ctx context.Context, sev alerts.Severity, msg string) {
	c.alerts.Emit(ctx, alerts.New(sev, titleClaim, msg))
}
