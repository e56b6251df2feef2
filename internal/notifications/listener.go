package notifications

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gotrs-io/gotrs-hitl/internal/alerts"
	"github.com/gotrs-io/gotrs-hitl/internal/assignment"
	"github.com/gotrs-io/gotrs-hitl/internal/metrics"
	"github.com/gotrs-io/gotrs-hitl/internal/realtime"
	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

const (
	defaultNotificationType = "hitl-notification"
	titleNotification       = "HITL request"
	titleAssignment         = "HITL assignment"
	msgAssigned             = "You have been assigned to a HITL type"
	msgRemoved              = "You have been removed from a HITL type"
)

// Subscriber is the slice of a realtime.Connection the listener needs
type Subscriber interface {
	On(event string, h realtime.Handler) func()
	Emit(event string, data interface{}) error
	Connected() bool
}

// Offerer is handed every notification received while bound, to decide on a
// claim offer. It runs off the read goroutine; ctx is cancelled on Detach.
type Offerer interface {
	OfferClaim(ctx context.Context, orgID int64, n types.HitlNotification)
}

// ListenerOptions configures a Listener
type ListenerOptions struct {
	Store            *Store
	Alerts           alerts.Sink
	Offerer          Offerer
	Logger           *zap.Logger
	Metrics          *metrics.Metrics
	ClearOnOrgChange bool
}

// Listener turns live channel events into notification log entries and
// alerts for exactly one (connection, organization) binding at a time.
type Listener struct {
	store            *Store
	alerts           alerts.Sink
	offerer          Offerer
	log              *zap.Logger
	metrics          *metrics.Metrics
	clearOnOrgChange bool

	mu      sync.Mutex
	conn    Subscriber
	orgID   int64
	unsubs  []func()
	cancel  context.CancelFunc
	lastOrg int64

	offers sync.WaitGroup
	now    func() time.Time
}

func NewListener(opts ListenerOptions) *Listener {
	store := opts.Store
	if store == nil {
		store = NewStore(DefaultMaxEntries, opts.Metrics)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Listener{
		store:            store,
		alerts:           alerts.OrDiscard(opts.Alerts),
		offerer:          opts.Offerer,
		log:              log.With(zap.String("component", "notifications")),
		metrics:          opts.Metrics,
		clearOnOrgChange: opts.ClearOnOrgChange,
		now:              time.Now,
	}
}

// Store returns the notification log the listener writes to
func (l *Listener) Store() *Store {
	return l.store
}

// Bound reports the organization currently bound, or 0
func (l *Listener) Bound() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.orgID
}

// Bind subscribes to conn for orgID. A nil connection or missing
// organization detaches instead. Rebinding the same pair is a no-op; any
// other change fully removes the previous handlers before registering new
// ones.
func (l *Listener) Bind(conn Subscriber, orgID int64) {
	if conn == nil || orgID <= 0 {
		l.Detach()
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == conn && l.orgID == orgID {
		return
	}
	l.detachLocked()

	if l.clearOnOrgChange && l.lastOrg != 0 && l.lastOrg != orgID {
		l.store.Clear()
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.conn, l.orgID, l.cancel, l.lastOrg = conn, orgID, cancel, orgID
	l.unsubs = []func(){
		conn.On(realtime.EventHitlNotification, func(ev realtime.Event) {
			if n, ok := ev.(realtime.Notification); ok {
				l.onNotification(ctx, orgID, n)
			}
		}),
		conn.On(realtime.EventAssignmentUpdated, func(ev realtime.Event) {
			if a, ok := ev.(realtime.AssignmentUpdated); ok {
				l.onAssignmentUpdated(ctx, a)
			}
		}),
		conn.On(realtime.EventConnect, func(realtime.Event) {
			l.store.SetConnected(true)
			l.join(conn, orgID)
		}),
		conn.On(realtime.EventDisconnect, func(realtime.Event) {
			l.store.SetConnected(false)
		}),
	}

	connected := conn.Connected()
	l.store.SetConnected(connected)
	if connected {
		l.join(conn, orgID)
	}
	l.log.Info("listening for hitl events", zap.Int64("organization_id", orgID))
}

// Detach removes every handler. It is synchronous and idempotent; offers
// already in flight may finish but their context is cancelled.
func (l *Listener) Detach() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.detachLocked()
}

func (l *Listener) detachLocked() {
	if l.conn == nil {
		return
	}
	for _, unsubscribe := range l.unsubs {
		unsubscribe()
	}
	if l.conn.Connected() {
		if err := l.conn.Emit(realtime.EventLeaveOrganization, types.OrganizationRoom{OrganizationID: l.orgID}); err != nil {
			l.log.Debug("leave-organization not sent", zap.Error(err))
		}
	}
	l.cancel()
	l.log.Info("stopped listening for hitl events", zap.Int64("organization_id", l.orgID))

	l.conn, l.orgID, l.unsubs, l.cancel = nil, 0, nil, nil
	l.store.SetConnected(false)
}

// Wait blocks until in-flight offers have returned
func (l *Listener) Wait() {
	l.offers.Wait()
}

func (l *Listener) join(conn Subscriber, orgID int64) {
	if err := conn.Emit(realtime.EventJoinOrganization, types.OrganizationRoom{OrganizationID: orgID}); err != nil {
		l.log.Warn("join-organization failed", zap.Int64("organization_id", orgID), zap.Error(err))
	}
}

func (l *Listener) onNotification(ctx context.Context, orgID int64, ev realtime.Notification) {
	n := types.HitlNotification{
		ID:             uuid.NewString(),
		Type:           ev.Type,
		Message:        ev.Message,
		ConversationID: ev.ConversationID,
		HitlType:       ev.HitlType,
		Timestamp:      l.now(),
	}
	if n.Type == "" {
		n.Type = defaultNotificationType
	}
	if ev.Timestamp != nil && !ev.Timestamp.IsZero() {
		n.Timestamp = *ev.Timestamp
	}
	if n.HitlType == "" {
		n.HitlType, _ = assignment.ExtractHitlType(n.Message)
	}

	l.store.Add(n)
	l.metrics.NotificationReceived()
	l.log.Debug("hitl notification",
		zap.String("conversation_id", n.ConversationID.String()),
		zap.String("hitl_type", n.HitlType))

	l.alerts.Emit(ctx, alerts.New(alerts.SeverityInfo, titleNotification, n.Message).WithAction(alerts.Action{
		Kind:           alerts.ActionNavigate,
		ConversationID: n.ConversationID,
		OrganizationID: orgID,
		HitlType:       n.HitlType,
	}))

	if l.offerer != nil {
		l.offers.Add(1)
		go func() {
			defer l.offers.Done()
			l.offerer.OfferClaim(ctx, orgID, n)
		}()
	}
}

func (l *Listener) onAssignmentUpdated(ctx context.Context, ev realtime.AssignmentUpdated) {
	l.metrics.AssignmentUpdated(string(ev.Action))
	msg := msgAssigned
	if ev.Action == types.AssignmentRemoved {
		msg = msgRemoved
	}
	l.log.Debug("hitl assignment updated", zap.Int64("hitl_type_id", ev.HitlTypeID), zap.String("action", string(ev.Action)))
	l.alerts.Emit(ctx, alerts.New(alerts.SeverityInfo, titleAssignment, msg))
}

// MarkAsRead flags one entry; see Store.MarkAsRead
func (l *Listener) MarkAsRead(index int) bool { return l.store.MarkAsRead(index) }

func (l *Listener) MarkAllAsRead() { l.store.MarkAllAsRead() }

func (l *Listener) Clear() { l.store.Clear() }

// FilterByType returns the entries tagged with hitlType
func (l *Listener) FilterByType(hitlType string) []types.HitlNotification {
	return l.store.GetNotificationsByType(hitlType)
}

// FilterUnread returns the unread entries
func (l *Listener) FilterUnread() []types.HitlNotification {
	return l.store.GetUnreadNotifications()
}
