package alerts

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"
)

// Terminal prints alerts as colored lines, one per alert
type Terminal struct {
	mu  sync.Mutex
	out io.Writer
	// ClaimHint renders the instruction shown under actionable claim alerts
	ClaimHint func(Action) string
}

// NewTerminal writes to out
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{
		out: out,
		ClaimHint: func(a Action) string {
			return fmt.Sprintf("claim it with: gotrs-hitl claim %s", a.ConversationID)
		},
	}
}

func severityColor(s Severity) *color.Color {
	switch s {
	case SeveritySuccess:
		return color.New(color.FgGreen, color.Bold)
	case SeverityWarning:
		return color.New(color.FgYellow, color.Bold)
	case SeverityError:
		return color.New(color.FgRed, color.Bold)
	default:
		return color.New(color.FgCyan)
	}
}

func (t *Terminal) Emit(_ context.Context, alert Alert) {
	t.mu.Lock()
	defer t.mu.Unlock()

	label := severityColor(alert.Severity).Sprintf("[%s]", alert.Severity)
	if alert.Title != "" {
		fmt.Fprintf(t.out, "%s %s: %s\n", label, alert.Title, alert.Message)
	} else {
		fmt.Fprintf(t.out, "%s %s\n", label, alert.Message)
	}

	if alert.Action == nil {
		return
	}
	hint := color.New(color.Faint)
	switch alert.Action.Kind {
	case ActionClaim:
		hint.Fprintf(t.out, "    %s\n", t.ClaimHint(*alert.Action))
	case ActionNavigate:
		hint.Fprintf(t.out, "    conversation %s\n", alert.Action.ConversationID)
	}
}
