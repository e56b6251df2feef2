package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g.
// GOTRS_HITL_API_BASE_URL for api.base_url
const EnvPrefix = "GOTRS_HITL"

// Config represents the application configuration
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	API           APIConfig           `mapstructure:"api"`
	Realtime      RealtimeConfig      `mapstructure:"realtime"`
	Organization  OrganizationConfig  `mapstructure:"organization"`
	User          UserConfig          `mapstructure:"user"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Alerts        AlertsConfig        `mapstructure:"alerts"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Links         LinksConfig         `mapstructure:"links"`
	Server        ServerConfig        `mapstructure:"server"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

type APIConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Token        string        `mapstructure:"token"`
	RefreshToken string        `mapstructure:"refresh_token"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RetryCount   int           `mapstructure:"retry_count"`
	Debug        bool          `mapstructure:"debug"`
}

type RealtimeConfig struct {
	URL            string        `mapstructure:"url"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	ReconnectDelay time.Duration `mapstructure:"reconnect_delay"`
}

type OrganizationConfig struct {
	ID int64 `mapstructure:"id"`
}

type UserConfig struct {
	ID int64 `mapstructure:"id"`
}

type CacheConfig struct {
	Backend         string        `mapstructure:"backend"`
	TTL             time.Duration `mapstructure:"ttl"`
	MaxEntries      int           `mapstructure:"max_entries"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Redis           struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		Prefix   string `mapstructure:"prefix"`
	} `mapstructure:"redis"`
}

type AlertsConfig struct {
	Terminal    bool `mapstructure:"terminal"`
	HistorySize int  `mapstructure:"history_size"`
	Slack       struct {
		Enabled     bool   `mapstructure:"enabled"`
		WebhookURL  string `mapstructure:"webhook_url"`
		Channel     string `mapstructure:"channel"`
		MinSeverity string `mapstructure:"min_severity"`
	} `mapstructure:"slack"`
}

type NotificationsConfig struct {
	ClearOnOrgChange bool `mapstructure:"clear_on_org_change"`
	MaxEntries       int  `mapstructure:"max_entries"`
}

type LinksConfig struct {
	ConversationURL string `mapstructure:"conversation_url"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SchedulerConfig struct {
	MembershipRefresh string `mapstructure:"membership_refresh"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "gotrs-hitl")
	v.SetDefault("app.env", "development")

	v.SetDefault("api.base_url", "")
	v.SetDefault("api.api_key", "")
	v.SetDefault("api.token", "")
	v.SetDefault("api.refresh_token", "")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.retry_count", 3)
	v.SetDefault("api.debug", false)

	v.SetDefault("realtime.url", "")
	v.SetDefault("realtime.ping_interval", 54*time.Second)
	v.SetDefault("realtime.pong_wait", 60*time.Second)
	v.SetDefault("realtime.write_wait", 10*time.Second)
	v.SetDefault("realtime.reconnect_delay", 5*time.Second)

	v.SetDefault("organization.id", 0)
	v.SetDefault("user.id", 0)

	v.SetDefault("cache.backend", "local")
	v.SetDefault("cache.ttl", time.Minute)
	v.SetDefault("cache.max_entries", 1000)
	v.SetDefault("cache.cleanup_interval", time.Minute)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.prefix", "gotrs-hitl:")

	v.SetDefault("alerts.terminal", true)
	v.SetDefault("alerts.history_size", 100)
	v.SetDefault("alerts.slack.enabled", false)
	v.SetDefault("alerts.slack.webhook_url", "")
	v.SetDefault("alerts.slack.channel", "")
	v.SetDefault("alerts.slack.min_severity", "warning")

	v.SetDefault("notifications.clear_on_org_change", false)
	v.SetDefault("notifications.max_entries", 200)

	v.SetDefault("links.conversation_url", "")

	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8089)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("scheduler.membership_refresh", "@every 5m")
}

// Options controls where configuration is read from
type Options struct {
	// File is an explicit config file; when empty ./config.yaml is used if
	// present
	File string
	// EnvFile is loaded into the process environment first; a missing file
	// is ignored
	EnvFile string
	Logger  *zap.Logger
}

// ChangeFunc is called after a successful hot reload
type ChangeFunc func(old, updated *Config)

// Manager holds the live configuration and reloads it when the file changes
type Manager struct {
	v   *viper.Viper
	log *zap.Logger

	mu        sync.RWMutex
	cfg       *Config
	listeners []ChangeFunc
	watchOnce sync.Once
}

// Load reads .env, the config file and GOTRS_HITL_* overrides, and validates
// the result
func Load(opts Options) (*Manager, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
		log.Debug("no env file found, using environment variables", zap.String("file", envFile))
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	return &Manager{v: v, log: log, cfg: cfg}, nil
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Get returns the current configuration (thread-safe). Callers must not
// modify it.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

// ConfigFile reports the file in use, or "" when running on defaults
func (m *Manager) ConfigFile() string {
	return m.v.ConfigFileUsed()
}

// OnChange registers fn for hot reloads
func (m *Manager) OnChange(fn ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Watch enables hot reload of the config file. Invalid edits are logged and
// the previous configuration stays active.
func (m *Manager) Watch() {
	if m.v.ConfigFileUsed() == "" {
		return
	}
	m.watchOnce.Do(func() {
		m.v.OnConfigChange(func(e fsnotify.Event) {
			m.log.Info("config file changed", zap.String("file", e.Name), zap.String("op", e.Op.String()))
			if err := m.reload(); err != nil {
				m.log.Error("failed to reload config", zap.Error(err))
			}
		})
		m.v.WatchConfig()
	})
}

func (m *Manager) reload() error {
	updated, err := decode(m.v)
	if err != nil {
		return err
	}

	// Atomic swap
	m.mu.Lock()
	old := m.cfg
	m.cfg = updated
	listeners := append([]ChangeFunc(nil), m.listeners...)
	m.mu.Unlock()

	m.log.Info("configuration reloaded")
	for _, fn := range listeners {
		fn(old, updated)
	}
	return nil
}

var secretKeys = []string{
	"api.api_key",
	"api.token",
	"api.refresh_token",
	"cache.redis.password",
	"alerts.slack.webhook_url",
}

// Redacted returns the effective settings with credentials masked
func (m *Manager) Redacted() map[string]interface{} {
	settings := m.v.AllSettings()
	for _, key := range secretKeys {
		redact(settings, strings.Split(key, "."))
	}
	return settings
}

func redact(settings map[string]interface{}, path []string) {
	value, ok := settings[path[0]]
	if !ok {
		return
	}
	if len(path) > 1 {
		if nested, ok := value.(map[string]interface{}); ok {
			redact(nested, path[1:])
		}
		return
	}
	if s, ok := value.(string); ok && s != "" {
		settings[path[0]] = "********"
	}
}

// YAML renders the redacted settings
func (m *Manager) YAML() ([]byte, error) {
	return yaml.Marshal(m.Redacted())
}

// GetServerAddr returns the local API listen address
func (c *ServerConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsProduction returns true if running in production mode
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// IsDevelopment returns true if running in development mode
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}
