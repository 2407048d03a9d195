package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Log           LogConfig           `yaml:"log"`
	Whois         WhoisConfig         `yaml:"whois"`
	Checks        ChecksConfig        `yaml:"checks"`
	Monitor       MonitorConfig       `yaml:"monitor"`
	Notifications NotificationsConfig `yaml:"notifications"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port        string   `yaml:"port"`
	Mode        string   `yaml:"mode"` // debug/release/test
	CORSOrigins []string `yaml:"cors_origins"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite
	Path string `yaml:"path"` // file path or :memory:
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string `yaml:"level"` // debug/info/warn/error
}

// WhoisConfig represents WHOIS lookup configuration
type WhoisConfig struct {
	Provider string `yaml:"provider"` // api/direct
	APIURL   string `yaml:"api_url"`
	Timeout  string `yaml:"timeout"`
}

// ChecksConfig represents the SSL/DNS/uptime checkers and bulk check pacing
type ChecksConfig struct {
	SSLTimeout    string `yaml:"ssl_timeout"`
	DNSTimeout    string `yaml:"dns_timeout"`
	UptimeTimeout string `yaml:"uptime_timeout"`
	Resolver      string `yaml:"resolver"` // host:port
	BatchSize     int    `yaml:"batch_size"`
	BatchDelay    string `yaml:"batch_delay"`
}

// MonitorConfig represents monitoring configuration
type MonitorConfig struct {
	CheckInterval  string `yaml:"check_interval"` // Cron expression
	RetryInterval  string `yaml:"retry_interval"` // Cron expression
	MaxRetries     int    `yaml:"max_retries"`
	CriticalWindow string `yaml:"critical_window"` // 0 counts all history
}

// NotificationsConfig represents notification configuration
type NotificationsConfig struct {
	Email     EmailConfig `yaml:"email"`
	Timeout   string      `yaml:"timeout"`
	RateLimit float64     `yaml:"rate_limit"` // Outbound sends per second
	RateBurst int         `yaml:"rate_burst"`
}

// EmailConfig represents the SMTP relay used by the email channel. The
// recipient comes from each account's notification settings.
type EmailConfig struct {
	SMTPHost string `yaml:"smtp_host"`
	SMTPPort int    `yaml:"smtp_port"`
	From     string `yaml:"from"`
	Password string `yaml:"password"`
}

// Default returns the configuration used for any field the file leaves empty
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: "8080", Mode: "release"},
		Database: DatabaseConfig{Type: "sqlite", Path: "./data/domain-monitor.db"},
		Log:      LogConfig{Level: "info"},
		Whois:    WhoisConfig{Provider: "direct", Timeout: "15s"},
		Checks: ChecksConfig{
			SSLTimeout:    "10s",
			DNSTimeout:    "5s",
			UptimeTimeout: "10s",
			Resolver:      "1.1.1.1:53",
			BatchSize:     3,
			BatchDelay:    "1s",
		},
		Monitor: MonitorConfig{
			CheckInterval:  "0 0 * * *",
			RetryInterval:  "*/5 * * * *",
			MaxRetries:     5,
			CriticalWindow: "720h",
		},
		Notifications: NotificationsConfig{
			Email:     EmailConfig{SMTPPort: 587},
			Timeout:   "10s",
			RateLimit: 5,
			RateBurst: 10,
		},
	}
}

// LoadConfig loads configuration from a YAML file, fills defaults and then
// applies DM_* environment overrides. A .env file next to the process is
// loaded first when present. A missing config file is not an error.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	config := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	applyEnv(config)
	config.fillDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(c *Config) {
	c.Server.Port = getenv("DM_PORT", c.Server.Port)
	c.Server.Mode = getenv("DM_GIN_MODE", c.Server.Mode)
	if v := getenv("DM_CORS_ORIGINS", ""); v != "" {
		c.Server.CORSOrigins = splitCSV(v)
	}
	c.Database.Path = getenv("DM_DB_PATH", c.Database.Path)
	c.Log.Level = getenv("DM_LOG_LEVEL", c.Log.Level)
	c.Whois.Provider = getenv("DM_WHOIS_PROVIDER", c.Whois.Provider)
	c.Whois.APIURL = getenv("DM_WHOIS_API_URL", c.Whois.APIURL)
	c.Checks.Resolver = getenv("DM_DNS_RESOLVER", c.Checks.Resolver)
	c.Monitor.CheckInterval = getenv("DM_CHECK_INTERVAL", c.Monitor.CheckInterval)
	c.Monitor.MaxRetries = getint("DM_MAX_RETRIES", c.Monitor.MaxRetries)
	c.Notifications.Email.SMTPHost = getenv("DM_SMTP_HOST", c.Notifications.Email.SMTPHost)
	c.Notifications.Email.SMTPPort = getint("DM_SMTP_PORT", c.Notifications.Email.SMTPPort)
	c.Notifications.Email.From = getenv("DM_SMTP_FROM", c.Notifications.Email.From)
	c.Notifications.Email.Password = getenv("DM_SMTP_PASSWORD", c.Notifications.Email.Password)
}

// fillDefaults restores defaults for fields a partial YAML file zeroed out
func (c *Config) fillDefaults() {
	d := Default()
	if c.Server.Port == "" {
		c.Server.Port = d.Server.Port
	}
	if c.Server.Mode == "" {
		c.Server.Mode = d.Server.Mode
	}
	if c.Database.Type == "" {
		c.Database.Type = d.Database.Type
	}
	if c.Database.Path == "" {
		c.Database.Path = d.Database.Path
	}
	c.Log.Level = strings.ToLower(c.Log.Level)
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Level == "warning" {
		c.Log.Level = "warn"
	}
	if c.Whois.Provider == "" {
		c.Whois.Provider = d.Whois.Provider
	}
	if c.Whois.Timeout == "" {
		c.Whois.Timeout = d.Whois.Timeout
	}
	if c.Checks.SSLTimeout == "" {
		c.Checks.SSLTimeout = d.Checks.SSLTimeout
	}
	if c.Checks.DNSTimeout == "" {
		c.Checks.DNSTimeout = d.Checks.DNSTimeout
	}
	if c.Checks.UptimeTimeout == "" {
		c.Checks.UptimeTimeout = d.Checks.UptimeTimeout
	}
	if c.Checks.Resolver == "" {
		c.Checks.Resolver = d.Checks.Resolver
	}
	if c.Checks.BatchSize <= 0 {
		c.Checks.BatchSize = d.Checks.BatchSize
	}
	if c.Checks.BatchDelay == "" {
		c.Checks.BatchDelay = d.Checks.BatchDelay
	}
	if c.Monitor.CheckInterval == "" {
		c.Monitor.CheckInterval = d.Monitor.CheckInterval
	}
	if c.Monitor.RetryInterval == "" {
		c.Monitor.RetryInterval = d.Monitor.RetryInterval
	}
	if c.Monitor.MaxRetries < 0 {
		c.Monitor.MaxRetries = d.Monitor.MaxRetries
	}
	if c.Monitor.CriticalWindow == "" {
		c.Monitor.CriticalWindow = d.Monitor.CriticalWindow
	}
	if c.Notifications.Timeout == "" {
		c.Notifications.Timeout = d.Notifications.Timeout
	}
	if c.Notifications.Email.SMTPPort == 0 {
		c.Notifications.Email.SMTPPort = d.Notifications.Email.SMTPPort
	}
	if c.Notifications.RateLimit <= 0 {
		c.Notifications.RateLimit = d.Notifications.RateLimit
	}
	if c.Notifications.RateBurst < 1 {
		c.Notifications.RateBurst = d.Notifications.RateBurst
	}
}

// Validate checks values that would otherwise fail later at startup
func (c *Config) Validate() error {
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode must be one of debug, release, test; got %q", c.Server.Mode)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
	}
	switch c.Whois.Provider {
	case "api":
		if c.Whois.APIURL == "" {
			return errors.New("whois.api_url is required when whois.provider is api")
		}
	case "direct":
	default:
		return fmt.Errorf("whois.provider must be api or direct; got %q", c.Whois.Provider)
	}
	if c.Database.Type != "sqlite" {
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}
	for name, v := range map[string]string{
		"whois.timeout":           c.Whois.Timeout,
		"checks.ssl_timeout":      c.Checks.SSLTimeout,
		"checks.dns_timeout":      c.Checks.DNSTimeout,
		"checks.uptime_timeout":   c.Checks.UptimeTimeout,
		"checks.batch_delay":      c.Checks.BatchDelay,
		"monitor.critical_window": c.Monitor.CriticalWindow,
		"notifications.timeout":   c.Notifications.Timeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Duration parses a duration field that Validate already accepted
func Duration(v string) time.Duration {
	d, _ := time.ParseDuration(v)
	return d
}

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
