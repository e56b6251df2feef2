package alerts

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Recorder keeps the most recent alerts in memory, newest first, so a UI can
// poll them and act on them by id.
type Recorder struct {
	mu     sync.RWMutex
	alerts []Alert
	limit  int
}

// NewRecorder keeps at most limit alerts; limit <= 0 means 100
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = 100
	}
	return &Recorder{limit: limit}
}

func (r *Recorder) Emit(_ context.Context, alert Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append([]Alert{alert}, r.alerts...)
	if len(r.alerts) > r.limit {
		r.alerts = r.alerts[:r.limit]
	}
}

// List returns a copy of the recorded alerts, newest first
func (r *Recorder) List() []Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}

// Get looks an alert up by id
func (r *Recorder) Get(id string) (Alert, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.alerts {
		if a.ID == id {
			return a, true
		}
	}
	return Alert{}, false
}

// Dismiss removes an alert; unknown ids are ignored
func (r *Recorder) Dismiss(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, a := range r.alerts {
		if a.ID == id {
			r.alerts = append(r.alerts[:i], r.alerts[i+1:]...)
			return
		}
	}
}

// Clear drops every recorded alert
func (r *Recorder) Clear() {
	r.mu.Lock()
	r.alerts = nil
	r.mu.Unlock()
}

// Logger writes alerts to a zap logger at a level matching their severity
type Logger struct {
	Log *zap.Logger
}

func (l Logger) Emit(_ context.Context, alert Alert) {
	if l.Log == nil {
		return
	}
	fields := []zap.Field{
		zap.String("alert_id", alert.ID),
		zap.String("title", alert.Title),
		zap.String("message", alert.Message),
	}
	if alert.Action != nil {
		fields = append(fields,
			zap.String("action", string(alert.Action.Kind)),
			zap.String("conversation_id", alert.Action.ConversationID.String()))
	}
	switch alert.Severity {
	case SeverityError:
		l.Log.Error("alert", fields...)
	case SeverityWarning:
		l.Log.Warn("alert", fields...)
	default:
		l.Log.Info("alert", fields...)
	}
}
