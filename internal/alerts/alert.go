// Package alerts models the transient, dismissible messages the HITL core
// hands to whatever surface presents them (terminal, Slack, the local API).
// Alerts are plain values: an actionable alert carries an Action describing
// what a click should do, never the click handler itself.
package alerts

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

// Severity of an alert
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

var severityRank = map[Severity]int{
	SeveritySuccess: 0,
	SeverityInfo:    1,
	SeverityWarning: 2,
	SeverityError:   3,
}

// AtLeast reports whether s is as severe as min. Success and info rank
// lowest.
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// ParseSeverity maps a config string to a Severity, defaulting to info
func ParseSeverity(s string) Severity {
	if _, ok := severityRank[Severity(s)]; ok {
		return Severity(s)
	}
	return SeverityInfo
}

// ActionKind says what interacting with an alert does
type ActionKind string

const (
	// ActionNavigate opens the conversation view
	ActionNavigate ActionKind = "navigate"
	// ActionClaim claims the conversation for the caller
	ActionClaim ActionKind = "claim"
)

// Action is the decision attached to an actionable alert
type Action struct {
	Kind           ActionKind           `json:"kind"`
	ConversationID types.ConversationID `json:"conversationId"`
	OrganizationID int64                `json:"organizationId,omitempty"`
	HitlType       string               `json:"hitlType,omitempty"`
}

// Alert is a transient message addressed to the caller
type Alert struct {
	ID        string    `json:"id"`
	Severity  Severity  `json:"severity"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Action    *Action   `json:"action,omitempty"`
	Blocking  bool      `json:"blocking,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// New builds an alert with a fresh id
func New(severity Severity, title, message string) Alert {
	return Alert{
		ID:        uuid.NewString(),
		Severity:  severity,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
	}
}

// WithAction returns a copy of a carrying action
func (a Alert) WithAction(action Action) Alert {
	a.Action = &action
	return a
}

// Sink receives alerts. Implementations must not block the caller for long;
// the live channel emits from its dispatch goroutine.
type Sink interface {
	Emit(ctx context.Context, alert Alert)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, alert Alert)

func (f SinkFunc) Emit(ctx context.Context, alert Alert) {
	f(ctx, alert)
}

// Multi fans an alert out to every sink in order
type Multi []Sink

func (m Multi) Emit(ctx context.Context, alert Alert) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, alert)
		}
	}
}

// Discard drops every alert
var Discard Sink = SinkFunc(func(context.Context, Alert) {})

// OrDiscard returns s, or Discard when s is nil
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}
