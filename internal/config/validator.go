package config

import (
	"fmt"
	"net/url"
	"strings"
)

var cacheBackends = map[string]bool{"": true, "local": true, "redis": true, "none": true}

var logFormats = map[string]bool{"": true, "json": true, "console": true}

var severities = map[string]bool{"": true, "success": true, "info": true, "warning": true, "error": true}

// Validate checks the configuration and reports every problem at once
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if c.API.BaseURL == "" {
		add("api.base_url is required")
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		add("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.API.APIKey != "" && c.API.Token != "" {
		add("api.api_key and api.token are mutually exclusive")
	}
	if c.API.Timeout < 0 {
		add("api.timeout must not be negative")
	}

	if c.Realtime.URL != "" {
		if u, err := url.Parse(c.Realtime.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
			add("realtime.url %q must use ws:// or wss://", c.Realtime.URL)
		}
	}

	if c.Organization.ID < 0 {
		add("organization.id must not be negative")
	}

	if !cacheBackends[c.Cache.Backend] {
		add("cache.backend %q must be one of local, redis, none", c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		add("cache.ttl must not be negative")
	}
	if c.Cache.Backend == "redis" && c.Cache.Redis.Addr == "" {
		add("cache.redis.addr is required for the redis backend")
	}

	if c.Alerts.Slack.Enabled && c.Alerts.Slack.WebhookURL == "" {
		add("alerts.slack.webhook_url is required when slack alerts are enabled")
	}
	if !severities[c.Alerts.Slack.MinSeverity] {
		add("alerts.slack.min_severity %q is not a severity", c.Alerts.Slack.MinSeverity)
	}
	if c.Notifications.MaxEntries < 0 {
		add("notifications.max_entries must not be negative")
	}

	if c.Links.ConversationURL != "" && !strings.Contains(c.Links.ConversationURL, "{id}") {
		add("links.conversation_url must contain {id}")
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		add("server.port %d is out of range", c.Server.Port)
	}
	if !logFormats[c.Logging.Format] {
		add("logging.format %q must be json or console", c.Logging.Format)
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}
