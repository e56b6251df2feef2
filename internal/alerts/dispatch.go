package alerts

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

var (
	ErrNoAction          = errors.New("alert has no action")
	ErrUnknownAction     = errors.New("unknown alert action")
	ErrClaimNotAvailable = errors.New("claiming is not available")
)

// Navigator opens the conversation-detail view. The router that actually
// changes views lives outside this module.
type Navigator interface {
	Navigate(ctx context.Context, id types.ConversationID) (string, error)
}

// DefaultConversationPath is the app-relative conversation route used when no
// template is configured
const DefaultConversationPath = "/conversations/{id}"

// URLNavigator resolves a conversation to a link built from a template
// containing "{id}", e.g. "https://app.example.com/conversations/{id}". When
// Open is set it is called with the link.
type URLNavigator struct {
	Template string
	Open     func(ctx context.Context, link string) error
}

func (n URLNavigator) Navigate(ctx context.Context, id types.ConversationID) (string, error) {
	link := n.Link(id)
	if n.Open != nil {
		if err := n.Open(ctx, link); err != nil {
			return link, err
		}
	}
	return link, nil
}

// Link renders the template for id, falling back to DefaultConversationPath
func (n URLNavigator) Link(id types.ConversationID) string {
	template := n.Template
	if template == "" {
		template = DefaultConversationPath
	}
	return strings.ReplaceAll(template, "{id}", url.PathEscape(id.String()))
}

// Claimer claims a conversation and reports the outcome name
type Claimer interface {
	ClaimConversation(ctx context.Context, id types.ConversationID) string
}

// Result describes what performing an alert's action did
type Result struct {
	Kind    ActionKind `json:"kind"`
	Link    string     `json:"link,omitempty"`
	Outcome string     `json:"outcome,omitempty"`
}

// Dispatcher performs alert actions on behalf of a presentation surface
type Dispatcher struct {
	Navigator Navigator
	Claimer   Claimer
}

// Perform executes the alert's action. Navigation is delegated to the
// Navigator; claims go through the Claimer, which emits its own outcome
// alerts.
func (d *Dispatcher) Perform(ctx context.Context, alert Alert) (Result, error) {
	if alert.Action == nil {
		return Result{}, ErrNoAction
	}
	action := *alert.Action
	switch action.Kind {
	case ActionNavigate:
		if d.Navigator == nil {
			return Result{Kind: action.Kind}, fmt.Errorf("no navigator configured")
		}
		link, err := d.Navigator.Navigate(ctx, action.ConversationID)
		return Result{Kind: action.Kind, Link: link}, err
	case ActionClaim:
		if d.Claimer == nil {
			return Result{Kind: action.Kind}, ErrClaimNotAvailable
		}
		outcome := d.Claimer.ClaimConversation(ctx, action.ConversationID)
		return Result{Kind: action.Kind, Outcome: outcome}, nil
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, action.Kind)
	}
}
