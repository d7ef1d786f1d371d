package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/khanghh/donorshield/internal/anomaly"
	"github.com/khanghh/donorshield/internal/security"
	"github.com/khanghh/donorshield/params"
	"github.com/spf13/viper"
)

const (
	DefaultListenAddr   = ":3000"
	DefaultCookieName   = "donorshield_session"
	DefaultCookieMaxAge = 24 * time.Hour
	DefaultNatsSubject  = "donorshield.security.alerts"
)

type MySQLConfig struct {
	Dsn             string `mapstructure:"dsn"`
	TablePrefix     string `mapstructure:"tablePrefix"`
	MaxIdleConns    int    `mapstructure:"maxIdleConns"`
	MaxOpenConns    int    `mapstructure:"maxOpenConns"`
	ConnMaxIdleTime int    `mapstructure:"connMaxIdleTime"`
	ConnMaxLifetime int    `mapstructure:"connMaxLifetime"`
}

type SessionConfig struct {
	SessionMaxAge  time.Duration `mapstructure:"sessionMaxAge"`
	CookieName     string        `mapstructure:"cookieName"`
	CookieHttpOnly bool          `mapstructure:"cookieHttpOnly"`
	CookieSecure   bool          `mapstructure:"cookieSecure"`
}

type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	TLS      bool   `mapstructure:"tls"`
	CertFile string `mapstructure:"certFile"`
	KeyFile  string `mapstructure:"keyFile"`
	CAFile   string `mapstructure:"caFile"`
}

// MailConfig enables alert e-mails when a backend and at least one
// recipient are set.
type MailConfig struct {
	Backend              string     `mapstructure:"backend"`
	SMTP                 SMTPConfig `mapstructure:"smtp"`
	AlertRecipients      []string   `mapstructure:"alertRecipients"`
	MinSeverity          string     `mapstructure:"minSeverity"`
	EscalationRecipients []string   `mapstructure:"escalationRecipients"` // copied on critical alerts
}

type RedisConfig struct {
	URL                 string        `mapstructure:"url"`
	PoolSize            int           `mapstructure:"poolSize"`
	ConnectTimeout      time.Duration `mapstructure:"connectTimeout"`
	HealthCheckInterval time.Duration `mapstructure:"healthCheckInterval"`
	KeyPrefix           string        `mapstructure:"keyPrefix"`
}

type NatsConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// SigningConfig sets the secret shared with collaborator services and the
// longest lifetime (expiresAt - timestamp) an envelope may claim.
type SigningConfig struct {
	Secret string        `mapstructure:"secret"`
	MaxTTL time.Duration `mapstructure:"maxTTL"`
}

type RateLimitConfig struct {
	Max    int           `mapstructure:"max"`
	Window time.Duration `mapstructure:"window"`
}

type ThresholdConfig struct {
	Count    int           `mapstructure:"count"`
	Window   time.Duration `mapstructure:"window"`
	Severity string        `mapstructure:"severity"`
}

type Config struct {
	Debug           bool                       `mapstructure:"debug"`
	Issuer          string                     `mapstructure:"issuer"`
	Account         string                     `mapstructure:"account"`
	MasterKey       string                     `mapstructure:"masterKey"`
	ListenAddr      string                     `mapstructure:"listenAddr"`
	HealthCheckAddr string                     `mapstructure:"healthCheckAddr"`
	AllowOrigins    []string                   `mapstructure:"allowOrigins"`
	Redis           RedisConfig                `mapstructure:"redis"`
	Session         SessionConfig              `mapstructure:"session"`
	Mail            MailConfig                 `mapstructure:"mail"`
	MySQL           MySQLConfig                `mapstructure:"mysql"`
	Nats            NatsConfig                 `mapstructure:"nats"`
	Signing         SigningConfig              `mapstructure:"signing"`
	RateLimit       RateLimitConfig            `mapstructure:"rateLimit"`
	Thresholds      map[string]ThresholdConfig `mapstructure:"thresholds"`
	Anomaly         anomaly.Config             `mapstructure:"anomaly"`
}

func (c *Config) Sanitize() error {
	if c.Redis.URL == "" {
		return ErrMissingRedisURL
	}
	if c.MasterKey == "" {
		return ErrMissingMasterKey
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.HealthCheckAddr == "" {
		c.HealthCheckAddr = params.HealthCheckServerAddr
	}
	if c.Issuer == "" {
		c.Issuer = params.TOTPIssuer
	}
	if c.Account == "" {
		c.Account = params.TOTPAccount
	}
	if c.Redis.ConnectTimeout == 0 {
		c.Redis.ConnectTimeout = params.StoreConnectTimeout
	}
	if c.Redis.HealthCheckInterval == 0 {
		c.Redis.HealthCheckInterval = params.StoreHealthCheckInterval
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = params.SecurityKeyPrefix
	}
	if c.Session.SessionMaxAge == 0 {
		c.Session.SessionMaxAge = DefaultCookieMaxAge
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = DefaultCookieName
	}
	if c.Signing.MaxTTL == 0 {
		c.Signing.MaxTTL = params.SignedRequestMaxTTL
	}
	if c.RateLimit.Max == 0 {
		c.RateLimit.Max = params.RateLimitMax
	}
	if c.RateLimit.Window == 0 {
		c.RateLimit.Window = params.RateLimitWindow
	}
	if c.Nats.Subject == "" {
		c.Nats.Subject = DefaultNatsSubject
	}
	if c.Mail.MinSeverity == "" {
		c.Mail.MinSeverity = security.SeverityHigh.String()
	}
	_, err := c.SecurityThresholds()
	return err
}

// SecurityThresholds returns the default threshold table overridden by the
// configured entries. An entry with a zero count disables alerting for its
// event type.
func (c *Config) SecurityThresholds() (security.Thresholds, error) {
	thresholds := security.DefaultThresholds()
	for name, entry := range c.Thresholds {
		eventType, err := security.ParseEventType(name)
		if err != nil {
			return nil, fmt.Errorf("thresholds.%s: %w", name, err)
		}
		if entry.Count == 0 {
			delete(thresholds, eventType)
			continue
		}
		threshold, err := security.NewThreshold(entry.Count, entry.Window, entry.Severity)
		if err != nil {
			return nil, fmt.Errorf("thresholds.%s: %w", name, err)
		}
		thresholds[eventType] = threshold
	}
	return thresholds, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Sanitize(); err != nil {
		return nil, err
	}
	return &config, nil
}

func loadConfig(v *viper.Viper, filename string) (*Config, error) {
	v.SetConfigFile(filename)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return decode(v)
}

func LoadConfig(filename string) (*Config, error) {
	return loadConfig(viper.GetViper(), filename)
}

// Watch calls onChange with the re-read config every time the config file
// changes. A file that no longer validates is logged and skipped.
func Watch(onChange func(*Config)) {
	v := viper.GetViper()
	v.OnConfigChange(func(e fsnotify.Event) {
		config, err := decode(v)
		if err != nil {
			slog.Error("Ignoring invalid config change", "file", e.Name, "error", err)
			return
		}
		slog.Info("Config file changed", "file", e.Name, "op", e.Op.String())
		onChange(config)
	})
	v.WatchConfig()
}
