package alerts

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// SlackOptions configures the Slack webhook sink
type SlackOptions struct {
	WebhookURL  string
	Channel     string
	MinSeverity Severity
	// ConversationURL builds the link attached to actionable alerts; optional
	ConversationURL func(Action) string
	HTTPClient      *http.Client
	QueueSize       int
}

// Slack forwards alerts to an incoming webhook. Emit only enqueues; a single
// worker posts in order so the live channel is never blocked on Slack.
type Slack struct {
	opts  SlackOptions
	log   *zap.Logger
	queue chan Alert
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewSlack starts the posting worker; call Close to drain and stop it
func NewSlack(opts SlackOptions, log *zap.Logger) *Slack {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.MinSeverity == "" {
		opts.MinSeverity = SeverityWarning
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Slack{opts: opts, log: log, queue: make(chan Alert, opts.QueueSize)}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *Slack) Emit(_ context.Context, alert Alert) {
	if !alert.Severity.AtLeast(s.opts.MinSeverity) {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- alert:
	default:
		s.log.Warn("slack alert queue full, dropping alert", zap.String("alert_id", alert.ID))
	}
}

// Close stops accepting alerts and waits for queued ones to be posted
func (s *Slack) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Slack) run() {
	defer s.wg.Done()
	for alert := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := slack.PostWebhookCustomHTTPContext(ctx, s.opts.WebhookURL, s.opts.HTTPClient, s.message(alert)); err != nil {
			s.log.Warn("failed to post alert to slack", zap.String("alert_id", alert.ID), zap.Error(err))
		}
		cancel()
	}
}

func slackColor(sev Severity) string {
	switch sev {
	case SeveritySuccess:
		return "good"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "danger"
	default:
		return "#439FE0"
	}
}

func (s *Slack) message(alert Alert) *slack.WebhookMessage {
	attachment := slack.Attachment{
		Color:    slackColor(alert.Severity),
		Title:    alert.Title,
		Text:     alert.Message,
		Fallback: fmt.Sprintf("%s: %s", alert.Title, alert.Message),
	}
	if alert.Action != nil {
		attachment.Footer = fmt.Sprintf("conversation %s", alert.Action.ConversationID)
		if s.opts.ConversationURL != nil {
			attachment.TitleLink = s.opts.ConversationURL(*alert.Action)
		}
	}
	return &slack.WebhookMessage{
		Channel:     s.opts.Channel,
		Text:        alert.Title,
		Attachments: []slack.Attachment{attachment},
	}
}
