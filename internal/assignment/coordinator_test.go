package assignment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrs-io/gotrs-hitl/internal/alerts"
	"github.com/gotrs-io/gotrs-hitl/sdk/auth"
	"github.com/gotrs-io/gotrs-hitl/sdk/client"
	"github.com/gotrs-io/gotrs-hitl/sdk/errors"
	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

type staticLookup struct {
	names map[int64][]string
	err   error
	calls int
}

func (s *staticLookup) TypeNames(_ context.Context, orgID int64) ([]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.names[orgID], nil
}

type funcClaimer func(ctx context.Context, id types.ConversationID) error

func (f funcClaimer) AssignHitl(ctx context.Context, id types.ConversationID) error {
	return f(ctx, id)
}

func TestExtractHitlType(t *testing.T) {
	tests := []struct {
		message string
		name    string
		ok      bool
	}{
		{"[Billing] customer needs refund", "Billing", true},
		{"[ Tech Support ]help", "Tech Support", true},
		{"[billing]", "billing", true},
		{"customer needs refund", "", false},
		{"refund [Billing]", "", false},
		{" [Billing] leading space", "", false},
		{"[] empty", "", false},
		{"[   ] blank", "", false},
		{"[Billing unclosed", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			name, ok := ExtractHitlType(tt.message)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestMatchesHitlType(t *testing.T) {
	names := []string{"Billing", "Straße"}
	assert.True(t, MatchesHitlType("billing", names))
	assert.True(t, MatchesHitlType("BILLING", names))
	assert.True(t, MatchesHitlType("STRASSE", names))
	assert.False(t, MatchesHitlType("Bill", names))
	assert.False(t, MatchesHitlType("", names))
	assert.False(t, MatchesHitlType("", []string{""}))
}

func TestVerifyWithNoTypes(t *testing.T) {
	lookup := &staticLookup{names: map[int64][]string{}}
	c := NewCoordinator(lookup, nil, nil, nil, nil)
	ctx := context.Background()

	for _, name := range []string{"", "Billing", "billing", "[Billing]"} {
		assert.False(t, c.VerifyHitlTypeExists(ctx, 5, name), name)
	}

	lookup.err = errors.ErrInternalServer
	lookup.names[5] = []string{"Billing"}
	assert.False(t, c.VerifyHitlTypeExists(ctx, 5, "Billing"))
}

func TestOffer(t *testing.T) {
	lookup := &staticLookup{names: map[int64][]string{5: {"Billing"}}}
	rec := alerts.NewRecorder(0)
	c := NewCoordinator(lookup, nil, rec, nil, nil)
	ctx := context.Background()

	base := Request{Message: "[billing] customer needs refund", ConversationID: "c-1", Role: types.RoleHitl, OrganizationID: 5}

	t.Run("owner is not offered", func(t *testing.T) {
		req := base
		req.Role = types.RoleOwner
		assert.Equal(t, DecisionNotApplicable, c.Offer(ctx, req))
	})

	t.Run("no organization", func(t *testing.T) {
		req := base
		req.OrganizationID = 0
		assert.Equal(t, DecisionNotApplicable, c.Offer(ctx, req))
	})

	t.Run("no tag is silent", func(t *testing.T) {
		req := base
		req.Message = "customer needs refund"
		calls := lookup.calls
		assert.Equal(t, DecisionNoTag, c.Offer(ctx, req))
		assert.Equal(t, calls, lookup.calls)
	})

	t.Run("unrecognized tag is silent", func(t *testing.T) {
		req := base
		req.Message = "[Sales] lead"
		assert.Equal(t, DecisionUnrecognized, c.Offer(ctx, req))
	})

	assert.Empty(t, rec.List())

	t.Run("recognized tag offers a claim", func(t *testing.T) {
		assert.Equal(t, DecisionOffered, c.Offer(ctx, base))
		list := rec.List()
		require.Len(t, list, 1)
		a := list[0]
		assert.Equal(t, alerts.SeverityWarning, a.Severity)
		require.NotNil(t, a.Action)
		assert.Equal(t, alerts.ActionClaim, a.Action.Kind)
		assert.Equal(t, types.ConversationID("c-1"), a.Action.ConversationID)
		assert.Equal(t, "billing", a.Action.HitlType)
	})

	t.Run("cancelled offer is discarded", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		before := len(rec.List())
		assert.Equal(t, DecisionDiscarded, c.Offer(cctx, base))
		assert.Len(t, rec.List(), before)
	})
}

func TestOfferNeverClaims(t *testing.T) {
	var claims int32
	claimer := funcClaimer(func(context.Context, types.ConversationID) error {
		atomic.AddInt32(&claims, 1)
		return nil
	})
	c := NewCoordinator(&staticLookup{names: map[int64][]string{5: {"Billing"}}}, claimer, nil, nil, nil)
	c.Offer(context.Background(), Request{Message: "[Billing] x", ConversationID: "1", Role: types.RoleHitl, OrganizationID: 5})
	assert.Zero(t, atomic.LoadInt32(&claims))
}

func TestHandleAutoAssignmentOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		outcome  Outcome
		severity alerts.Severity
		message  string
	}{
		{"success", nil, OutcomeSuccess, alerts.SeveritySuccess, MsgClaimed},
		{"structured code", errors.NewAPIError(http.StatusConflict, "Conflict", errors.CodeAlreadyAssigned, ""), OutcomeAlreadyAssigned, alerts.SeverityInfo, MsgAlreadyAssigned},
		{"legacy phrase", errors.NewAPIError(http.StatusBadRequest, "Conversation is already assigned to another user", "", ""), OutcomeAlreadyAssigned, alerts.SeverityInfo, MsgAlreadyAssigned},
		{"server error", errors.ErrInternalServer, OutcomeFailed, alerts.SeverityError, MsgClaimFailed},
		{"network", &errors.NetworkError{Operation: "POST", URL: "x", Err: context.DeadlineExceeded}, OutcomeFailed, alerts.SeverityError, MsgClaimFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := alerts.NewRecorder(0)
			c := NewCoordinator(nil, funcClaimer(func(context.Context, types.ConversationID) error { return tt.err }), rec, nil, nil)

			assert.Equal(t, tt.outcome, c.HandleAutoAssignment(context.Background(), "c-1"))
			list := rec.List()
			require.Len(t, list, 1)
			assert.Equal(t, tt.severity, list[0].Severity)
			assert.Equal(t, tt.message, list[0].Message)
		})
	}

	t.Run("empty id", func(t *testing.T) {
		rec := alerts.NewRecorder(0)
		c := NewCoordinator(nil, nil, rec, nil, nil)
		assert.Equal(t, OutcomeFailed, c.HandleAutoAssignment(context.Background(), ""))
		assert.Equal(t, MsgNoConversationID, rec.List()[0].Message)
	})
}

func TestClaimInFlightGuard(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int32
	claimer := funcClaimer(func(context.Context, types.ConversationID) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return nil
	})
	c := NewCoordinator(nil, claimer, nil, nil, nil)
	ctx := context.Background()

	done := make(chan Outcome)
	go func() { done <- c.HandleAutoAssignment(ctx, "c-1") }()
	<-started

	assert.Equal(t, OutcomeInFlight, c.HandleAutoAssignment(ctx, "c-1"))
	close(release)
	assert.Equal(t, OutcomeSuccess, <-done)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// a later claim goes through again
	assert.Equal(t, OutcomeSuccess, c.HandleAutoAssignment(ctx, "c-1"))
}

// Two clients race for one conversation; the server grants the first claim
// only.
func TestClaimRace(t *testing.T) {
	var mu sync.Mutex
	owner := ""
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path != "/conversations/c-1/assign-hitl" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		user := r.Header.Get("X-API-Key")
		if owner == "" {
			owner = user
			_, _ = w.Write([]byte(`{"success":true,"data":{"id":"c-1"}}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"statusCode":400,"message":"Conversation is already assigned to another user","error":"Bad Request"}`))
	}))
	defer srv.Close()

	claimant := func(key string) (*Coordinator, *alerts.Recorder) {
		api := client.NewClient(&client.Config{BaseURL: srv.URL, Auth: auth.NewAPIKeyAuth(key), RetryCount: -1})
		rec := alerts.NewRecorder(0)
		return NewCoordinator(nil, api.Conversations, rec, nil, nil), rec
	}
	first, firstAlerts := claimant("alice")
	second, secondAlerts := claimant("bob")
	ctx := context.Background()

	var firstOutcome, secondOutcome Outcome
	assert.NotPanics(t, func() {
		firstOutcome = first.HandleAutoAssignment(ctx, "c-1")
		secondOutcome = second.HandleAutoAssignment(ctx, "c-1")
	})

	assert.Equal(t, OutcomeSuccess, firstOutcome)
	assert.Equal(t, alerts.SeveritySuccess, firstAlerts.List()[0].Severity)
	assert.Equal(t, OutcomeAlreadyAssigned, secondOutcome)
	assert.Equal(t, alerts.SeverityInfo, secondAlerts.List()[0].Severity)
	assert.Equal(t, "alice", owner)
}

func TestClaimConversationImplementsClaimer(t *testing.T) {
	var _ alerts.Claimer = (*Coordinator)(nil)
	c := NewCoordinator(nil, funcClaimer(func(context.Context, types.ConversationID) error { return nil }), nil, nil, nil)
	assert.Equal(t, "success", c.ClaimConversation(context.Background(), "1"))
}
