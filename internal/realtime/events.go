package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

// Live channel event names
const (
	EventConnect           = "connect"
	EventDisconnect        = "disconnect"
	EventHitlNotification  = "hitl-notification"
	EventAssignmentUpdated = "hitl-assignment-updated"
	EventJoinOrganization  = "join-organization"
	EventLeaveOrganization = "leave-organization"
)

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrInvalidPayload = errors.New("invalid event payload")
)

// Frame is one message on the wire
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is a decoded, validated live event. Handlers switch on the concrete
// type.
type Event interface {
	Name() string
}

// Notification wraps a hitl-notification payload
type Notification struct {
	types.NotificationEvent
}

func (Notification) Name() string { return EventHitlNotification }

// AssignmentUpdated wraps a hitl-assignment-updated payload
type AssignmentUpdated struct {
	types.AssignmentUpdatedEvent
}

func (AssignmentUpdated) Name() string { return EventAssignmentUpdated }

// Connected is dispatched locally after every successful dial
type Connected struct{}

func (Connected) Name() string { return EventConnect }

// Disconnected is dispatched locally when the socket goes away. Err is nil
// after a local Close.
type Disconnected struct {
	Err error
}

func (Disconnected) Name() string { return EventDisconnect }

const notificationSchema = `{
  "type": "object",
  "required": ["message", "conversationId"],
  "properties": {
    "type": {"type": "string"},
    "message": {"type": "string"},
    "conversationId": {"type": ["string", "integer"]},
    "hitlType": {"type": ["string", "null"]},
    "timestamp": {"type": ["string", "null"], "format": "date-time"}
  }
}`

const assignmentUpdatedSchema = `{
  "type": "object",
  "required": ["hitlTypeId", "action"],
  "properties": {
    "hitlTypeId": {"type": "integer"},
    "action": {"enum": ["assigned", "removed"]}
  }
}`

var schemas = map[string]*gojsonschema.Schema{
	EventHitlNotification:  mustSchema(notificationSchema),
	EventAssignmentUpdated: mustSchema(assignmentUpdatedSchema),
}

func mustSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("invalid event schema: %v", err))
	}
	return schema
}

// Decode validates a frame against its event schema and returns the typed
// event. Frames for events this client does not consume yield
// ErrUnknownEvent.
func Decode(f Frame) (Event, error) {
	schema, ok := schemas[f.Event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, f.Event)
	}
	data := f.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, f.Event, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s: %s", ErrInvalidPayload, f.Event, strings.Join(msgs, "; "))
	}

	switch f.Event {
	case EventHitlNotification:
		var n Notification
		if err := json.Unmarshal(data, &n.NotificationEvent); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, f.Event, err)
		}
		return n, nil
	default:
		var a AssignmentUpdated
		if err := json.Unmarshal(data, &a.AssignmentUpdatedEvent); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidPayload, f.Event, err)
		}
		return a, nil
	}
}
