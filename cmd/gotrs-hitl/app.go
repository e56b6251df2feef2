package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/gotrs-io/gotrs-hitl/internal/alerts"
	"github.com/gotrs-io/gotrs-hitl/internal/assignment"
	"github.com/gotrs-io/gotrs-hitl/internal/cache"
	"github.com/gotrs-io/gotrs-hitl/internal/config"
	"github.com/gotrs-io/gotrs-hitl/internal/logging"
	"github.com/gotrs-io/gotrs-hitl/internal/metrics"
	"github.com/gotrs-io/gotrs-hitl/internal/notifications"
	"github.com/gotrs-io/gotrs-hitl/internal/realtime"
	"github.com/gotrs-io/gotrs-hitl/internal/repository"
	"github.com/gotrs-io/gotrs-hitl/internal/session"
	"github.com/gotrs-io/gotrs-hitl/internal/version"
	"github.com/gotrs-io/gotrs-hitl/sdk"
	"github.com/gotrs-io/gotrs-hitl/sdk/auth"
	"github.com/gotrs-io/gotrs-hitl/sdk/types"
)

// app is everything a command needs, built once from configuration
type app struct {
	cfgs     *config.Manager
	cfg      *config.Config
	log      *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	client   *sdk.Client
	index    cache.TypeIndex
	recorder *alerts.Recorder
	slack    *alerts.Slack
	sink     alerts.Sink
	types    *repository.HitlTypes
}

func newApp() (*app, error) {
	cfgs, err := config.Load(config.Options{File: cfgFile, EnvFile: envFile})
	if err != nil {
		return nil, err
	}
	cfg := cfgs.Get()

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	log, err := logging.New(logging.Options{Level: level, Format: cfg.Logging.Format})
	if err != nil {
		return nil, err
	}

	a := &app{
		cfgs:     cfgs,
		cfg:      cfg,
		log:      log,
		registry: prometheus.NewRegistry(),
	}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.New(a.registry)

	authenticator, err := newAuthenticator(cfg.API)
	if err != nil {
		return nil, err
	}
	a.client = sdk.NewClient(&sdk.Config{
		BaseURL:    cfg.API.BaseURL,
		Auth:       authenticator,
		UserAgent:  "gotrs-hitl/" + version.Version,
		Timeout:    cfg.API.Timeout,
		RetryCount: cfg.API.RetryCount,
		Debug:      cfg.API.Debug,
	})

	a.index, err = cache.New(cache.Options{
		Backend:         cfg.Cache.Backend,
		TTL:             cfg.Cache.TTL,
		MaxEntries:      cfg.Cache.MaxEntries,
		CleanupInterval: cfg.Cache.CleanupInterval,
		RedisAddr:       cfg.Cache.Redis.Addr,
		RedisPassword:   cfg.Cache.Redis.Password,
		RedisDB:         cfg.Cache.Redis.DB,
		KeyPrefix:       cfg.Cache.Redis.Prefix,
	}, a.registry)
	if err != nil {
		return nil, err
	}

	a.recorder = alerts.NewRecorder(cfg.Alerts.HistorySize)
	sinks := alerts.Multi{a.recorder, alerts.Logger{Log: log.Named("alerts")}}
	if cfg.Alerts.Terminal {
		sinks = append(sinks, alerts.NewTerminal(os.Stdout))
	}
	if cfg.Alerts.Slack.Enabled {
		nav := a.navigator()
		a.slack = alerts.NewSlack(alerts.SlackOptions{
			WebhookURL:      cfg.Alerts.Slack.WebhookURL,
			Channel:         cfg.Alerts.Slack.Channel,
			MinSeverity:     alerts.ParseSeverity(cfg.Alerts.Slack.MinSeverity),
			ConversationURL: func(act alerts.Action) string {
				// slack needs an absolute link
				if nav.Template == "" {
					return ""
				}
				return nav.Link(act.ConversationID)
			},
		}, log.Named("slack"))
		sinks = append(sinks, a.slack)
	}
	a.sink = sinks

	opts := []repository.Option{repository.WithLogger(log), repository.WithMetrics(a.metrics)}
	if a.index != nil {
		opts = append(opts, repository.WithIndex(a.index))
	}
	a.types = repository.NewHitlTypes(a.client.HitlTypes, a.sink, opts...)
	return a, nil
}

func newAuthenticator(cfg config.APIConfig) (auth.Authenticator, error) {
	switch {
	case cfg.APIKey != "":
		return auth.NewAPIKeyAuth(cfg.APIKey), nil
	case cfg.Token != "":
		jwtAuth, err := auth.NewJWTAuthFromToken(cfg.Token, cfg.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("api.token: %w", err)
		}
		return jwtAuth, nil
	default:
		return auth.NewNoAuth(), nil
	}
}

// organization is the --org flag or organization.id
func (a *app) organization() int64 {
	if orgFlag > 0 {
		return orgFlag
	}
	return a.cfg.Organization.ID
}

func (a *app) navigator() alerts.URLNavigator {
	return alerts.URLNavigator{Template: a.cfg.Links.ConversationURL}
}

func (a *app) coordinator() *assignment.Coordinator {
	return assignment.NewCoordinator(a.types, a.client.Conversations, a.sink, a.log, a.metrics)
}

func (a *app) newSession(coord *assignment.Coordinator) *session.Session {
	return session.New(session.Options{
		Listener: notifications.ListenerOptions{
			Store:            notifications.NewStore(a.cfg.Notifications.MaxEntries, a.metrics),
			Alerts:           a.sink,
			Metrics:          a.metrics,
			ClearOnOrgChange: a.cfg.Notifications.ClearOnOrgChange,
		},
		Coordinator: coord,
		Logger:      a.log,
	})
}

// memberships asks the API first and falls back to the token's orgs claim
func (a *app) memberships(ctx context.Context) ([]types.Membership, error) {
	list, err := a.client.Users.Memberships(ctx)
	if err == nil {
		return list, nil
	}
	if jwtAuth, ok := a.client.Authenticator().(*auth.JWTAuth); ok {
		fromToken, tokenErr := auth.MembershipsFromToken(jwtAuth.Token())
		if tokenErr == nil {
			a.log.Warn("memberships lookup failed, using token claims", zap.Error(err))
			return fromToken, nil
		}
	}
	return nil, err
}

// connection builds the live channel with the same credentials as the REST
// client
func (a *app) connection() (*realtime.Connection, error) {
	wsURL, err := realtimeURL(a.cfg.Realtime.URL, a.cfg.API.BaseURL)
	if err != nil {
		return nil, err
	}

	return realtime.New(realtime.Options{
		URL:            wsURL,
		HeaderFunc:     a.client.AuthHeader,
		PingInterval:   a.cfg.Realtime.PingInterval,
		PongWait:       a.cfg.Realtime.PongWait,
		WriteWait:      a.cfg.Realtime.WriteWait,
		ReconnectDelay: a.cfg.Realtime.ReconnectDelay,
		Metrics:        a.metrics,
	}, a.log), nil
}

// realtimeURL returns explicit, or the API base URL switched to ws(s) with
// /ws appended
func realtimeURL(explicit, baseURL string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid api.base_url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("cannot derive realtime url from %q", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

func (a *app) close() {
	if a.slack != nil {
		a.slack.Close()
	}
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.log.Debug("closing type index", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}
