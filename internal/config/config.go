package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the errwatch server.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Alert    AlertConfig
	Capture  CaptureConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// AlertConfig selects and configures the alert delivery channel.
type AlertConfig struct {
	Channel string // "smtp" or "webhook"
	SMTP    SMTPConfig
	Webhook WebhookConfig
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       []string
	Timeout  time.Duration
}

type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

// CaptureConfig tunes the capture pipeline: queue sizing, worker count and
// the alert cadence.
type CaptureConfig struct {
	QueueCapacity     int
	Workers           int
	AlertEvery        int
	SuppressionWindow time.Duration
}

var validChannels = map[string]bool{
	"smtp":    true,
	"webhook": true,
}

// Load reads configuration from environment variables and returns a validated
// Config. Returns an error with a descriptive message if any required value is
// missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("ERRWATCH_PORT", 8080),
			Env:  envString("ERRWATCH_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Alert: AlertConfig{
			Channel: envString("ALERT_CHANNEL", "smtp"),
			SMTP: SMTPConfig{
				Host:     os.Getenv("SMTP_HOST"),
				Port:     envInt("SMTP_PORT", 587),
				Username: os.Getenv("SMTP_USERNAME"),
				Password: os.Getenv("SMTP_PASSWORD"),
				From:     os.Getenv("ALERT_FROM"),
				To:       envStringList("ALERT_TO"),
				Timeout:  envDuration("SMTP_TIMEOUT", 15*time.Second),
			},
			Webhook: WebhookConfig{
				URL:     os.Getenv("ALERT_WEBHOOK_URL"),
				Timeout: envDuration("ALERT_WEBHOOK_TIMEOUT", 10*time.Second),
			},
		},
		Capture: CaptureConfig{
			QueueCapacity:     envInt("CAPTURE_QUEUE_CAPACITY", 1024),
			Workers:           envInt("CAPTURE_WORKERS", 4),
			AlertEvery:        envInt("ALERT_EVERY_N_OCCURRENCES", 10),
			SuppressionWindow: envDuration("ALERT_SUPPRESSION_WINDOW", time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if !validChannels[c.Alert.Channel] {
		return fmt.Errorf("ALERT_CHANNEL must be one of smtp, webhook; got %q", c.Alert.Channel)
	}

	switch c.Alert.Channel {
	case "smtp":
		if c.Alert.SMTP.Host == "" {
			return fmt.Errorf("SMTP_HOST is required when ALERT_CHANNEL is smtp")
		}
		if c.Alert.SMTP.From == "" {
			return fmt.Errorf("ALERT_FROM is required when ALERT_CHANNEL is smtp")
		}
		if len(c.Alert.SMTP.To) == 0 {
			return fmt.Errorf("ALERT_TO is required when ALERT_CHANNEL is smtp")
		}
	case "webhook":
		if c.Alert.Webhook.URL == "" {
			return fmt.Errorf("ALERT_WEBHOOK_URL is required when ALERT_CHANNEL is webhook")
		}
		if !strings.HasPrefix(c.Alert.Webhook.URL, "http://") && !strings.HasPrefix(c.Alert.Webhook.URL, "https://") {
			return fmt.Errorf("ALERT_WEBHOOK_URL must start with http:// or https://, got %q", c.Alert.Webhook.URL)
		}
	}

	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envStringList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
