package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	log "github.com/sirupsen/logrus"

	"taskbridge/internal/dates"
)

// Config keeps runtime settings for the gateway, the sweep and the client.
type Config struct {
	GatewayURL            string        `env:"TASKBRIDGE_GATEWAY_URL" envDefault:"http://localhost:8080"`
	PollInterval          time.Duration `env:"TASKBRIDGE_POLL_INTERVAL" envDefault:"10s"`
	Cooldown              time.Duration `env:"TASKBRIDGE_COOLDOWN" envDefault:"15s"`
	SweepHour             int           `env:"TASKBRIDGE_SWEEP_HOUR" envDefault:"6"`
	TimeZone              string        `env:"TASKBRIDGE_TIMEZONE" envDefault:"America/Bogota"`
	RequestTimeout        time.Duration `env:"TASKBRIDGE_REQUEST_TIMEOUT" envDefault:"20s"`
	LockWait              time.Duration `env:"TASKBRIDGE_LOCK_WAIT" envDefault:"30s"`
	PerCollectionCooldown bool          `env:"TASKBRIDGE_PER_COLLECTION_COOLDOWN" envDefault:"false"`
	DatabaseURL           string        `env:"DATABASE_URL" envDefault:"taskbridge.db"`
	// CachePath is the client's local copy of the board. Empty disables it.
	CachePath             string        `env:"TASKBRIDGE_CACHE" envDefault:"taskbridge-cache.db"`
	ListenAddr            string        `env:"TASKBRIDGE_LISTEN" envDefault:":8080"`
	TelegramToken         string        `env:"TELEGRAM_TOKEN"`
	TelegramChatID        int64         `env:"TELEGRAM_CHAT_ID"`
	LogLevel              string        `env:"TASKBRIDGE_LOG_LEVEL" envDefault:"info"`

	dates *dates.Normalizer
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads configuration from vars instead of the process environment.
func LoadFrom(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	cfg.GatewayURL = strings.TrimRight(strings.TrimSpace(cfg.GatewayURL), "/")
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	return cfg, cfg.Validate()
}

// Validate rejects values the rest of the program cannot run with.
func (c *Config) Validate() error {
	if c.SweepHour < 0 || c.SweepHour > 23 {
		return fmt.Errorf("TASKBRIDGE_SWEEP_HOUR must be 0..23, got %d", c.SweepHour)
	}
	for name, d := range map[string]time.Duration{
		"TASKBRIDGE_POLL_INTERVAL":   c.PollInterval,
		"TASKBRIDGE_COOLDOWN":        c.Cooldown,
		"TASKBRIDGE_REQUEST_TIMEOUT": c.RequestTimeout,
		"TASKBRIDGE_LOCK_WAIT":       c.LockWait,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	norm, err := dates.LoadNormalizer(c.TimeZone)
	if err != nil {
		return fmt.Errorf("TASKBRIDGE_TIMEZONE: %w", err)
	}
	c.dates = norm
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("TASKBRIDGE_LOG_LEVEL: %w", err)
	}
	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set")
	}
	return nil
}

// Dates is the normalizer for TimeZone. Valid after Validate.
func (c Config) Dates() *dates.Normalizer {
	return c.dates
}

// Location is the resolved TimeZone. Valid after Validate.
func (c Config) Location() *time.Location {
	if c.dates == nil {
		return nil
	}
	return c.dates.Location()
}

// ApplyLogging sets the process log level.
func (c Config) ApplyLogging() {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
