package types

import "time"

// NotificationEvent is the payload of a "hitl-notification" live event. The
// message may start with a bracketed type tag, e.g. "[Billing] needs refund".
type NotificationEvent struct {
	Type           string         `json:"type"`
	Message        string         `json:"message"`
	ConversationID ConversationID `json:"conversationId"`
	HitlType       string         `json:"hitlType,omitempty"`
	Timestamp      *time.Time     `json:"timestamp,omitempty"`
}

// AssignmentUpdatedEvent is the payload of a "hitl-assignment-updated" live
// event, sent when the caller is bound to or unbound from a HITL type
type AssignmentUpdatedEvent struct {
	HitlTypeID int64            `json:"hitlTypeId"`
	Action     AssignmentAction `json:"action"`
}

// OrganizationRoom is sent on join-organization / leave-organization so the
// server scopes delivery to one tenant
type OrganizationRoom struct {
	OrganizationID int64 `json:"organizationId"`
}
