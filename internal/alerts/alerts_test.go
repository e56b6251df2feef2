package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

func TestSeverity(t *testing.T) {
	assert.True(t, SeverityError.AtLeast(SeverityWarning))
	assert.True(t, SeverityWarning.AtLeast(SeverityWarning))
	assert.False(t, SeverityInfo.AtLeast(SeverityWarning))
	assert.Equal(t, SeverityError, ParseSeverity("error"))
	assert.Equal(t, SeverityInfo, ParseSeverity("nonsense"))
}

func TestRecorder(t *testing.T) {
	r := NewRecorder(2)
	ctx := context.Background()

	first := New(SeverityInfo, "one", "1")
	second := New(SeverityInfo, "two", "2")
	third := New(SeverityError, "three", "3")
	r.Emit(ctx, first)
	r.Emit(ctx, second)
	r.Emit(ctx, third)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "three", list[0].Title)
	assert.Equal(t, "two", list[1].Title)

	_, ok := r.Get(first.ID)
	assert.False(t, ok)
	got, ok := r.Get(second.ID)
	assert.True(t, ok)
	assert.Equal(t, "two", got.Title)

	r.Dismiss(second.ID)
	r.Dismiss("unknown")
	assert.Len(t, r.List(), 1)
	r.Clear()
	assert.Empty(t, r.List())
}

func TestMultiAndDiscard(t *testing.T) {
	a, b := NewRecorder(0), NewRecorder(0)
	Multi{a, nil, b}.Emit(context.Background(), New(SeverityInfo, "x", "y"))
	assert.Len(t, a.List(), 1)
	assert.Len(t, b.List(), 1)
	assert.NotPanics(t, func() { OrDiscard(nil).Emit(context.Background(), Alert{}) })
}

func TestTerminal(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	term := NewTerminal(&buf)

	term.Emit(context.Background(), New(SeveritySuccess, "Assigned", "Conversation assigned to you"))
	term.Emit(context.Background(), New(SeverityWarning, "HITL request", "[Billing] refund").
		WithAction(Action{Kind: ActionClaim, ConversationID: "c-9"}))

	out := buf.String()
	assert.Contains(t, out, "[success] Assigned: Conversation assigned to you")
	assert.Contains(t, out, "[warning] HITL request: [Billing] refund")
	assert.Contains(t, out, "gotrs-hitl claim c-9")
}

func TestLoggerSink(t *testing.T) {
	assert.NotPanics(t, func() {
		Logger{Log: zap.NewNop()}.Emit(context.Background(), New(SeverityError, "x", "y").WithAction(Action{Kind: ActionNavigate, ConversationID: "1"}))
		Logger{}.Emit(context.Background(), New(SeverityInfo, "x", "y"))
	})
}

func TestSlack(t *testing.T) {
	var mu sync.Mutex
	var got []map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		got = append(got, body)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewSlack(SlackOptions{
		WebhookURL:  srv.URL,
		Channel:     "#hitl",
		MinSeverity: SeverityWarning,
		ConversationURL: func(a Action) string {
			return "https://app.example.com/conversations/" + a.ConversationID.String()
		},
	}, zap.NewNop())

	ctx := context.Background()
	s.Emit(ctx, New(SeverityInfo, "skipped", "below threshold"))
	s.Emit(ctx, New(SeverityWarning, "HITL request", "[Billing] refund").
		WithAction(Action{Kind: ActionClaim, ConversationID: "42"}))
	s.Close()
	s.Close()
	s.Emit(ctx, New(SeverityError, "late", "after close"))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "#hitl", got[0]["channel"])
	attachments := got[0]["attachments"].([]interface{})
	first := attachments[0].(map[string]interface{})
	assert.Equal(t, "warning", first["color"])
	assert.Equal(t, "https://app.example.com/conversations/42", first["title_link"])
}

type fakeClaimer struct {
	ids []types.ConversationID
}

func (f *fakeClaimer) ClaimConversation(_ context.Context, id types.ConversationID) string {
	f.ids = append(f.ids, id)
	return "success"
}

func TestDispatcher(t *testing.T) {
	ctx := context.Background()
	claimer := &fakeClaimer{}
	var opened []string
	d := &Dispatcher{
		Navigator: URLNavigator{
			Template: "https://app.example.com/conversations/{id}",
			Open: func(_ context.Context, link string) error {
				opened = append(opened, link)
				return nil
			},
		},
		Claimer: claimer,
	}

	t.Run("navigate", func(t *testing.T) {
		res, err := d.Perform(ctx, New(SeverityInfo, "n", "m").WithAction(Action{Kind: ActionNavigate, ConversationID: "a b"}))
		require.NoError(t, err)
		assert.Equal(t, "https://app.example.com/conversations/a%20b", res.Link)
		assert.Equal(t, []string{res.Link}, opened)
	})

	t.Run("claim", func(t *testing.T) {
		res, err := d.Perform(ctx, New(SeverityWarning, "n", "m").WithAction(Action{Kind: ActionClaim, ConversationID: "7"}))
		require.NoError(t, err)
		assert.Equal(t, "success", res.Outcome)
		assert.Equal(t, []types.ConversationID{"7"}, claimer.ids)
	})

	t.Run("no action", func(t *testing.T) {
		_, err := d.Perform(ctx, New(SeverityInfo, "n", "m"))
		assert.ErrorIs(t, err, ErrNoAction)
	})

	t.Run("unknown action", func(t *testing.T) {
		_, err := d.Perform(ctx, New(SeverityInfo, "n", "m").WithAction(Action{Kind: "explode"}))
		assert.ErrorIs(t, err, ErrUnknownAction)
	})

	t.Run("claim unavailable", func(t *testing.T) {
		_, err := (&Dispatcher{}).Perform(ctx, New(SeverityInfo, "n", "m").WithAction(Action{Kind: ActionClaim}))
		assert.ErrorIs(t, err, ErrClaimNotAvailable)
	})

	t.Run("missing template falls back to the relative route", func(t *testing.T) {
		link, err := URLNavigator{}.Navigate(ctx, "c 1")
		require.NoError(t, err)
		assert.Equal(t, "/conversations/c%201", link)

		res, err := (&Dispatcher{Navigator: URLNavigator{}}).Perform(ctx, New(SeverityInfo, "n", "m").WithAction(Action{Kind: ActionNavigate, ConversationID: "7"}))
		require.NoError(t, err)
		assert.Equal(t, "/conversations/7", res.Link)
	})
}
