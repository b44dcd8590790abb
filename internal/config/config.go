package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/anjeev1098/reservation-system/internal/registration"
)

// Config contains runtime configuration required by the service.
type Config struct {
	Addr              string        `yaml:"addr"`
	DBURL             string        `yaml:"db_url"`
	RedisAddr         string        `yaml:"redis_addr"`
	ReservationWindow time.Duration `yaml:"reservation_window"`
	// CatalogCacheTTL of 0 disables the catalog cache.
	CatalogCacheTTL time.Duration `yaml:"catalog_cache_ttl"`
	SweepSchedule   string        `yaml:"sweep_schedule"`
	LogLevel        string        `yaml:"log_level"`
	Mail            MailConfig    `yaml:"mail"`
}

// MailConfig configures the SendGrid client.
type MailConfig struct {
	SendGridURL     string `yaml:"sendgrid_url"`
	SendGridToken   string `yaml:"sendgrid_token"`
	From            string `yaml:"from"`
	ReportRecipient string `yaml:"report_recipient"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Addr:              ":8080",
		RedisAddr:         "localhost:6379",
		ReservationWindow: registration.DefaultReservationWindow,
		CatalogCacheTTL:   time.Minute,
		SweepSchedule:     "*/1 * * * *",
		LogLevel:          "info",
		Mail: MailConfig{
			From: "noreply@attendworker.portal.my",
		},
	}
}

// Load reads the optional YAML file at path over the defaults, then applies
// environment variables on top. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration) error {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s must be a duration: %w", key, err)
		}
		*dst = d
		return nil
	}

	setString("HTTP_ADDR", &cfg.Addr)
	setString("DB_URL", &cfg.DBURL)
	setString("REDIS_ADDR", &cfg.RedisAddr)
	setString("RESERVATION_SWEEP_CRON", &cfg.SweepSchedule)
	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("SENDGRID_URL", &cfg.Mail.SendGridURL)
	setString("SENDGRID_API_TOKEN", &cfg.Mail.SendGridToken)
	setString("MAIL_FROM", &cfg.Mail.From)
	setString("REPORT_RECIPIENT", &cfg.Mail.ReportRecipient)

	if err := setDuration("RESERVATION_WINDOW", &cfg.ReservationWindow); err != nil {
		return err
	}
	return setDuration("CATALOG_CACHE_TTL", &cfg.CatalogCacheTTL)
}

// Validate checks values that have no usable fallback.
func (c Config) Validate() error {
	if c.ReservationWindow <= 0 {
		return errors.New("reservation_window must be positive")
	}
	if c.CatalogCacheTTL < 0 {
		return errors.New("catalog_cache_ttl must not be negative")
	}
	if strings.TrimSpace(c.SweepSchedule) == "" {
		return errors.New("sweep_schedule required")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// RequireDB fails when no database is configured.
func (c Config) RequireDB() error {
	if c.DBURL == "" {
		return errors.New("DB_URL required")
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level.
func (c Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if c.LogLevel == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return lvl, nil
}
